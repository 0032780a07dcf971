package entities

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// MemoryRepository provides an in-memory implementation of Repository.
type MemoryRepository struct {
	mu       sync.RWMutex
	projects map[uuid.UUID]*Project
	byPath   map[string]uuid.UUID
	users    map[uuid.UUID]*User
	byName   map[string]uuid.UUID
	members  map[uuid.UUID]*ProjectMember
	items    map[interfaces.ReferenceKind]map[uuid.UUID]*WorkItem
	commits  map[uuid.UUID]*Commit
}

// NewMemoryRepository constructs an empty memory-backed repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		projects: make(map[uuid.UUID]*Project),
		byPath:   make(map[string]uuid.UUID),
		users:    make(map[uuid.UUID]*User),
		byName:   make(map[string]uuid.UUID),
		members:  make(map[uuid.UUID]*ProjectMember),
		items: map[interfaces.ReferenceKind]map[uuid.UUID]*WorkItem{
			interfaces.ReferenceIssue:        {},
			interfaces.ReferenceMergeRequest: {},
			interfaces.ReferenceMilestone:    {},
		},
		commits: make(map[uuid.UUID]*Commit),
	}
}

func (r *MemoryRepository) CreateProject(_ context.Context, project *Project) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(project.FullPath)
	if _, ok := r.byPath[key]; ok {
		return nil, ErrDuplicate
	}
	cloned := *project
	r.projects[cloned.ID] = &cloned
	r.byPath[key] = cloned.ID
	out := cloned
	return &out, nil
}

func (r *MemoryRepository) GetProject(_ context.Context, id uuid.UUID) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	project, ok := r.projects[id]
	if !ok {
		return nil, &NotFoundError{Resource: "project", Key: id.String()}
	}
	out := *project
	return &out, nil
}

func (r *MemoryRepository) GetProjectByPath(_ context.Context, fullPath string) (*Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPath[strings.ToLower(fullPath)]
	if !ok {
		return nil, &NotFoundError{Resource: "project", Key: fullPath}
	}
	out := *r.projects[id]
	return &out, nil
}

func (r *MemoryRepository) CreateUser(_ context.Context, user *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Username)
	if _, ok := r.byName[key]; ok {
		return nil, ErrDuplicate
	}
	cloned := *user
	r.users[cloned.ID] = &cloned
	r.byName[key] = cloned.ID
	out := cloned
	return &out, nil
}

func (r *MemoryRepository) GetUser(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, &NotFoundError{Resource: "user", Key: id.String()}
	}
	out := *user
	return &out, nil
}

func (r *MemoryRepository) GetUserByUsername(_ context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[strings.ToLower(username)]
	if !ok {
		return nil, &NotFoundError{Resource: "user", Key: username}
	}
	out := *r.users[id]
	return &out, nil
}

func (r *MemoryRepository) AddMember(_ context.Context, member *ProjectMember) (*ProjectMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cloned := *member
	r.members[cloned.ID] = &cloned
	out := cloned
	return &out, nil
}

func (r *MemoryRepository) ListMembers(_ context.Context, projectID uuid.UUID) ([]*ProjectMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*ProjectMember
	for _, member := range r.members {
		if member.ProjectID == projectID {
			cloned := *member
			out = append(out, &cloned)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) table(kind interfaces.ReferenceKind) (map[uuid.UUID]*WorkItem, error) {
	table, ok := r.items[kind]
	if !ok {
		return nil, ErrUnsupportedKind
	}
	return table, nil
}

func (r *MemoryRepository) CreateItem(_ context.Context, kind interfaces.ReferenceKind, item *WorkItem) (*WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	for _, existing := range table {
		if existing.ProjectID == item.ProjectID && existing.IID == item.IID {
			return nil, ErrDuplicate
		}
	}
	cloned := *item
	table[cloned.ID] = &cloned
	out := cloned
	return &out, nil
}

func (r *MemoryRepository) UpdateItem(_ context.Context, kind interfaces.ReferenceKind, item *WorkItem) (*WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	if _, ok := table[item.ID]; !ok {
		return nil, &NotFoundError{Resource: itemResource(kind), Key: item.ID.String()}
	}
	cloned := *item
	table[cloned.ID] = &cloned
	out := cloned
	return &out, nil
}

func (r *MemoryRepository) GetItem(_ context.Context, kind interfaces.ReferenceKind, id uuid.UUID) (*WorkItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	item, ok := table[id]
	if !ok {
		return nil, &NotFoundError{Resource: itemResource(kind), Key: id.String()}
	}
	out := *item
	return &out, nil
}

func (r *MemoryRepository) GetItemByIID(_ context.Context, kind interfaces.ReferenceKind, projectID uuid.UUID, iid int64) (*WorkItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	for _, item := range table {
		if item.ProjectID == projectID && item.IID == iid {
			out := *item
			return &out, nil
		}
	}
	return nil, &NotFoundError{Resource: itemResource(kind), Key: formatIID(iid)}
}

func (r *MemoryRepository) MaxIID(_ context.Context, kind interfaces.ReferenceKind, projectID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	table, err := r.table(kind)
	if err != nil {
		return 0, err
	}
	var highest int64
	for _, item := range table {
		if item.ProjectID == projectID && item.IID > highest {
			highest = item.IID
		}
	}
	return highest, nil
}

func (r *MemoryRepository) DeleteItem(_ context.Context, kind interfaces.ReferenceKind, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	table, err := r.table(kind)
	if err != nil {
		return err
	}
	if _, ok := table[id]; !ok {
		return &NotFoundError{Resource: itemResource(kind), Key: id.String()}
	}
	delete(table, id)
	return nil
}

func (r *MemoryRepository) CreateCommit(_ context.Context, commit *Commit) (*Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.commits {
		if existing.ProjectID == commit.ProjectID && existing.SHA == commit.SHA {
			return nil, ErrDuplicate
		}
	}
	cloned := *commit
	r.commits[cloned.ID] = &cloned
	out := cloned
	return &out, nil
}

func (r *MemoryRepository) GetCommit(_ context.Context, id uuid.UUID) (*Commit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commit, ok := r.commits[id]
	if !ok {
		return nil, &NotFoundError{Resource: "commit", Key: id.String()}
	}
	out := *commit
	return &out, nil
}

func (r *MemoryRepository) FindCommits(_ context.Context, projectID uuid.UUID, prefix string, limit int) ([]*Commit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Commit
	for _, commit := range r.commits {
		if commit.ProjectID == projectID && strings.HasPrefix(commit.SHA, prefix) {
			cloned := *commit
			out = append(out, &cloned)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SHA < out[j].SHA })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
