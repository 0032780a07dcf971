package entities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-slug"
	"github.com/google/uuid"

	"github.com/goliatone/go-gfm/internal/identity"
	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// Service manages the records references point at and announces text
// changes to live subscribers.
type Service interface {
	CreateProject(ctx context.Context, input CreateProjectInput) (*Project, error)
	GetProject(ctx context.Context, fullPath string) (*Project, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*User, error)
	AddMember(ctx context.Context, input AddMemberInput) (*ProjectMember, error)
	ListMembers(ctx context.Context, fullPath string) ([]*ProjectMember, error)

	CreateIssue(ctx context.Context, input CreateItemInput) (*Issue, error)
	CreateMergeRequest(ctx context.Context, input CreateItemInput) (*MergeRequest, error)
	CreateMilestone(ctx context.Context, input CreateItemInput) (*Milestone, error)
	CreateCommit(ctx context.Context, input CreateCommitInput) (*Commit, error)

	// UpdateField persists new raw text for an item field and publishes the
	// change. A publish failure is returned after the text was stored.
	UpdateField(ctx context.Context, entityID, field, text string) (interfaces.EntityChangeEvent, error)
	SetState(ctx context.Context, entityID, state string) error
	DeleteItem(ctx context.Context, entityID string) error

	FieldText(ctx context.Context, entityID, field string) (string, error)
	EntityScope(ctx context.Context, entityID string) (interfaces.ProjectScope, error)
}

// ErrPublishFailed wraps publisher errors returned by UpdateField.
var ErrPublishFailed = errors.New("entities: change publish failed")

// ServiceOption configures service behaviour.
type ServiceOption func(*service)

// WithPublisher announces field updates through publisher.
func WithPublisher(publisher interfaces.ChangePublisher) ServiceOption {
	return func(s *service) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithServiceLogger overrides the service logger.
func WithServiceLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNow overrides the clock used for timestamps.
func WithNow(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

type service struct {
	repo      Repository
	publisher interfaces.ChangePublisher
	logger    interfaces.Logger
	now       func() time.Time
}

// NewService constructs a Service backed by repo.
func NewService(repo Repository, opts ...ServiceOption) Service {
	if repo == nil {
		panic(ErrRepositoryRequired)
	}
	s := &service{
		repo:   repo,
		logger: logging.NoOp(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateProject(ctx context.Context, input CreateProjectInput) (*Project, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProjectRequired, err)
	}
	namespace := normalizePath(input.Namespace)
	path := normalizePath(input.Path)
	if path == "" || strings.Contains(path, "/") {
		return nil, fmt.Errorf("%w: invalid path %q", ErrProjectRequired, input.Path)
	}
	scope := interfaces.ProjectScope{Namespace: namespace, Project: path}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = input.Path
	}

	now := s.now().UTC()
	project, err := s.repo.CreateProject(ctx, &Project{
		ID:        identity.ProjectUUID(scope.FullPath()),
		Namespace: namespace,
		Path:      path,
		FullPath:  scope.FullPath(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("entities.project.created", "project", project.FullPath)
	return project, nil
}

func (s *service) GetProject(ctx context.Context, fullPath string) (*Project, error) {
	if strings.TrimSpace(fullPath) == "" {
		return nil, ErrProjectRequired
	}
	return s.repo.GetProjectByPath(ctx, normalizePath(fullPath))
}

func (s *service) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	username := strings.TrimPrefix(strings.TrimSpace(input.Username), "@")
	if username == "" {
		return nil, ErrUsernameRequired
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	state := input.State
	if state == "" {
		state = UserActive
	}
	return s.repo.CreateUser(ctx, &User{
		ID:        identity.UserUUID(username),
		Username:  strings.ToLower(username),
		Name:      strings.TrimSpace(input.Name),
		State:     state,
		CreatedAt: s.now().UTC(),
	})
}

func (s *service) AddMember(ctx context.Context, input AddMemberInput) (*ProjectMember, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	project, err := s.GetProject(ctx, input.Project)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetUserByUsername(ctx, strings.TrimPrefix(input.Username, "@"))
	if err != nil {
		return nil, err
	}
	level := input.AccessLevel
	if level == 0 {
		level = 30
	}
	return s.repo.AddMember(ctx, &ProjectMember{
		ID:          identity.MemberUUID(project.ID, user.ID),
		ProjectID:   project.ID,
		UserID:      user.ID,
		AccessLevel: level,
		CreatedAt:   s.now().UTC(),
	})
}

func (s *service) ListMembers(ctx context.Context, fullPath string) ([]*ProjectMember, error) {
	project, err := s.GetProject(ctx, fullPath)
	if err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, project.ID)
}

func (s *service) CreateIssue(ctx context.Context, input CreateItemInput) (*Issue, error) {
	item, err := s.createItem(ctx, interfaces.ReferenceIssue, input)
	if err != nil {
		return nil, err
	}
	return &Issue{WorkItem: *item}, nil
}

func (s *service) CreateMergeRequest(ctx context.Context, input CreateItemInput) (*MergeRequest, error) {
	item, err := s.createItem(ctx, interfaces.ReferenceMergeRequest, input)
	if err != nil {
		return nil, err
	}
	return &MergeRequest{WorkItem: *item}, nil
}

func (s *service) CreateMilestone(ctx context.Context, input CreateItemInput) (*Milestone, error) {
	item, err := s.createItem(ctx, interfaces.ReferenceMilestone, input)
	if err != nil {
		return nil, err
	}
	return &Milestone{WorkItem: *item}, nil
}

func (s *service) createItem(ctx context.Context, kind interfaces.ReferenceKind, input CreateItemInput) (*WorkItem, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, ErrTitleRequired
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	project, err := s.GetProject(ctx, input.Project)
	if err != nil {
		return nil, err
	}
	iid := input.IID
	if iid == 0 {
		highest, err := s.repo.MaxIID(ctx, kind, project.ID)
		if err != nil {
			return nil, err
		}
		iid = highest + 1
	}
	state := input.State
	if state == "" {
		state = StateOpened
	}

	now := s.now().UTC()
	item, err := s.repo.CreateItem(ctx, kind, &WorkItem{
		ID:          identity.ItemUUID(string(kind), project.ID, iid),
		ProjectID:   project.ID,
		IID:         iid,
		Title:       input.Title,
		Description: input.Description,
		State:       state,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("entities.item.created", "kind", kind, "project", project.FullPath, "iid", iid)
	return item, nil
}

func (s *service) CreateCommit(ctx context.Context, input CreateCommitInput) (*Commit, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	sha := strings.ToLower(strings.TrimSpace(input.SHA))
	if !validSHA(sha) {
		return nil, ErrInvalidSHA
	}
	project, err := s.GetProject(ctx, input.Project)
	if err != nil {
		return nil, err
	}
	commit := &Commit{
		ID:          identity.CommitUUID(project.ID, sha),
		ProjectID:   project.ID,
		SHA:         sha,
		Message:     input.Message,
		CommittedAt: s.now().UTC(),
	}
	if author := strings.TrimSpace(input.Author); author != "" {
		user, err := s.repo.GetUserByUsername(ctx, strings.TrimPrefix(author, "@"))
		if err != nil {
			return nil, err
		}
		commit.AuthorID = user.ID
	}
	return s.repo.CreateCommit(ctx, commit)
}

func (s *service) UpdateField(ctx context.Context, entityID, field, text string) (interfaces.EntityChangeEvent, error) {
	kind, id, err := ParseEntityID(entityID)
	if err != nil {
		return interfaces.EntityChangeEvent{}, err
	}
	if !isItemKind(kind) {
		return interfaces.EntityChangeEvent{}, fmt.Errorf("%w: %s has no editable %q", ErrUnsupportedField, kind, field)
	}
	item, err := s.repo.GetItem(ctx, kind, id)
	if err != nil {
		return interfaces.EntityChangeEvent{}, err
	}

	switch field {
	case FieldTitle:
		text = strings.TrimSpace(text)
		if text == "" {
			return interfaces.EntityChangeEvent{}, ErrTitleRequired
		}
		item.Title = text
	case FieldDescription:
		item.Description = text
	default:
		return interfaces.EntityChangeEvent{}, fmt.Errorf("%w: %q", ErrUnsupportedField, field)
	}

	now := s.now().UTC()
	item.UpdatedAt = now
	if _, err := s.repo.UpdateItem(ctx, kind, item); err != nil {
		return interfaces.EntityChangeEvent{}, err
	}

	event := interfaces.EntityChangeEvent{
		EntityID:   entityID,
		Field:      field,
		Text:       text,
		OccurredAt: now,
	}
	logger := logging.WithFieldContext(s.logger, "", entityID, field)
	if s.publisher == nil {
		logger.Debug("entities.field.updated")
		return event, nil
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn("entities.field.publish_failed", "error", err)
		return event, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	logger.Debug("entities.field.published")
	return event, nil
}

func (s *service) SetState(ctx context.Context, entityID, state string) error {
	kind, id, err := ParseEntityID(entityID)
	if err != nil {
		return err
	}
	if !isItemKind(kind) {
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	switch state {
	case StateOpened, StateClosed:
	case StateMerged:
		if kind != interfaces.ReferenceMergeRequest {
			return fmt.Errorf("%w: only merge requests can be merged", ErrUnsupportedField)
		}
	default:
		return fmt.Errorf("%w: state %q", ErrUnsupportedField, state)
	}
	item, err := s.repo.GetItem(ctx, kind, id)
	if err != nil {
		return err
	}
	item.State = state
	item.UpdatedAt = s.now().UTC()
	_, err = s.repo.UpdateItem(ctx, kind, item)
	return err
}

func (s *service) DeleteItem(ctx context.Context, entityID string) error {
	kind, id, err := ParseEntityID(entityID)
	if err != nil {
		return err
	}
	if !isItemKind(kind) {
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	if err := s.repo.DeleteItem(ctx, kind, id); err != nil {
		return err
	}
	s.logger.Debug("entities.item.deleted", "entity_id", entityID)
	return nil
}

func (s *service) FieldText(ctx context.Context, entityID, field string) (string, error) {
	kind, id, err := ParseEntityID(entityID)
	if err != nil {
		return "", err
	}
	if kind == interfaces.ReferenceCommit {
		commit, err := s.repo.GetCommit(ctx, id)
		if err != nil {
			return "", err
		}
		switch field {
		case FieldMessage:
			return commit.Message, nil
		case FieldTitle:
			return commit.Title(), nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnsupportedField, field)
	}
	if !isItemKind(kind) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	item, err := s.repo.GetItem(ctx, kind, id)
	if err != nil {
		return "", err
	}
	switch field {
	case FieldTitle:
		return item.Title, nil
	case FieldDescription:
		return item.Description, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedField, field)
}

func (s *service) EntityScope(ctx context.Context, entityID string) (interfaces.ProjectScope, error) {
	kind, id, err := ParseEntityID(entityID)
	if err != nil {
		return interfaces.ProjectScope{}, err
	}
	var projectID uuid.UUID
	switch {
	case kind == interfaces.ReferenceCommit:
		commit, err := s.repo.GetCommit(ctx, id)
		if err != nil {
			return interfaces.ProjectScope{}, err
		}
		projectID = commit.ProjectID
	case isItemKind(kind):
		item, err := s.repo.GetItem(ctx, kind, id)
		if err != nil {
			return interfaces.ProjectScope{}, err
		}
		projectID = item.ProjectID
	default:
		return interfaces.ProjectScope{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return interfaces.ProjectScope{}, err
	}
	return interfaces.ProjectScope{Namespace: project.Namespace, Project: project.Path}, nil
}

// normalizePath slugifies each segment of a slash separated path.
func normalizePath(value string) string {
	segments := strings.Split(strings.Trim(strings.TrimSpace(value), "/"), "/")
	out := segments[:0]
	for _, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		normalized, err := slug.Normalize(segment)
		if err != nil || normalized == "" {
			normalized = strings.ToLower(segment)
		}
		out = append(out, normalized)
	}
	return strings.Join(out, "/")
}
