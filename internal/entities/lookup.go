package entities

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// Lookup answers reference lookups from a Repository.
type Lookup struct {
	repo Repository
}

var _ interfaces.LookupService = (*Lookup)(nil)

// NewLookup wraps repo as an interfaces.LookupService.
func NewLookup(repo Repository) *Lookup {
	if repo == nil {
		panic(ErrRepositoryRequired)
	}
	return &Lookup{repo: repo}
}

// Find resolves key inside scope. Users ignore the scope; blocked users are
// reported as missing. Commit keys match a unique SHA prefix.
func (l *Lookup) Find(ctx context.Context, scope interfaces.ProjectScope, kind interfaces.ReferenceKind, key string) (*interfaces.Entity, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, &NotFoundError{Resource: string(kind)}
	}

	switch kind {
	case interfaces.ReferenceUser:
		return l.findUser(ctx, key)
	case interfaces.ReferenceIssue, interfaces.ReferenceMergeRequest, interfaces.ReferenceMilestone:
		project, err := l.repo.GetProjectByPath(ctx, scope.FullPath())
		if err != nil {
			return nil, err
		}
		return l.findItem(ctx, project, kind, key)
	case interfaces.ReferenceCommit:
		project, err := l.repo.GetProjectByPath(ctx, scope.FullPath())
		if err != nil {
			return nil, err
		}
		return l.findCommit(ctx, project, key)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
}

func (l *Lookup) findUser(ctx context.Context, username string) (*interfaces.Entity, error) {
	user, err := l.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user.State == UserBlocked {
		return nil, &NotFoundError{Resource: "user", Key: username}
	}
	title := user.Name
	if title == "" {
		title = user.Username
	}
	return &interfaces.Entity{
		ID:    EntityID(interfaces.ReferenceUser, user.ID),
		Kind:  interfaces.ReferenceUser,
		Key:   user.Username,
		Title: title,
	}, nil
}

func (l *Lookup) findItem(ctx context.Context, project *Project, kind interfaces.ReferenceKind, key string) (*interfaces.Entity, error) {
	iid, err := strconv.ParseInt(key, 10, 64)
	if err != nil || iid <= 0 {
		return nil, &NotFoundError{Resource: itemResource(kind), Key: key}
	}
	item, err := l.repo.GetItemByIID(ctx, kind, project.ID, iid)
	if err != nil {
		return nil, err
	}
	title := item.Title
	switch item.State {
	case StateClosed, StateMerged:
		title += " (" + item.State + ")"
	}
	return &interfaces.Entity{
		ID:          EntityID(kind, item.ID),
		Kind:        kind,
		ProjectPath: project.FullPath,
		Key:         formatIID(item.IID),
		Title:       title,
	}, nil
}

func (l *Lookup) findCommit(ctx context.Context, project *Project, prefix string) (*interfaces.Entity, error) {
	prefix = strings.ToLower(prefix)
	if !validSHA(prefix) {
		return nil, &NotFoundError{Resource: "commit", Key: prefix}
	}
	commits, err := l.repo.FindCommits(ctx, project.ID, prefix, 2)
	if err != nil {
		return nil, err
	}
	// An ambiguous prefix does not link.
	if len(commits) != 1 {
		return nil, &NotFoundError{Resource: "commit", Key: prefix}
	}
	commit := commits[0]
	return &interfaces.Entity{
		ID:          EntityID(interfaces.ReferenceCommit, commit.ID),
		Kind:        interfaces.ReferenceCommit,
		ProjectPath: project.FullPath,
		Key:         commit.SHA,
		Title:       commit.Title(),
	}, nil
}

func validSHA(value string) bool {
	if len(value) < 7 || len(value) > 40 {
		return false
	}
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
