package entities

import (
	"context"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// BunRepository implements Repository on bun with optional caching. Point
// reads and writes go through the cache; filtered list queries always hit
// the database.
type BunRepository struct {
	projects tableRepos[*Project]
	users    tableRepos[*User]
	members  tableRepos[*ProjectMember]
	commits  tableRepos[*Commit]
	items    map[interfaces.ReferenceKind]itemTable
}

// NewBunRepository creates a repository without caching.
func NewBunRepository(db *bun.DB) *BunRepository {
	return NewBunRepositoryWithCache(db, nil, nil)
}

// NewBunRepositoryWithCache creates a repository with caching support.
func NewBunRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, serializer cache.KeySerializer) *BunRepository {
	return &BunRepository{
		projects: withCache(NewProjectRepository(db), cacheService, serializer),
		users:    withCache(NewUserRepository(db), cacheService, serializer),
		members:  withCache(NewMemberRepository(db), cacheService, serializer),
		commits:  withCache(NewCommitRepository(db), cacheService, serializer),
		items: map[interfaces.ReferenceKind]itemTable{
			interfaces.ReferenceIssue: &bunItemTable[*Issue]{
				kind:  interfaces.ReferenceIssue,
				repos: withCache(newItemRepository(db, func() *Issue { return &Issue{} }), cacheService, serializer),
				wrap:  func(item WorkItem) *Issue { return &Issue{WorkItem: item} },
			},
			interfaces.ReferenceMergeRequest: &bunItemTable[*MergeRequest]{
				kind:  interfaces.ReferenceMergeRequest,
				repos: withCache(newItemRepository(db, func() *MergeRequest { return &MergeRequest{} }), cacheService, serializer),
				wrap:  func(item WorkItem) *MergeRequest { return &MergeRequest{WorkItem: item} },
			},
			interfaces.ReferenceMilestone: &bunItemTable[*Milestone]{
				kind:  interfaces.ReferenceMilestone,
				repos: withCache(newItemRepository(db, func() *Milestone { return &Milestone{} }), cacheService, serializer),
				wrap:  func(item WorkItem) *Milestone { return &Milestone{WorkItem: item} },
			},
		},
	}
}

// tableRepos pairs the repository used for point reads and writes with the
// uncached one used for filtered queries.
type tableRepos[T any] struct {
	repo  repository.Repository[T]
	query repository.Repository[T]
}

func withCache[T any](base repository.Repository[T], cacheService cache.CacheService, serializer cache.KeySerializer) tableRepos[T] {
	repos := tableRepos[T]{repo: base, query: base}
	if cacheService != nil && serializer != nil {
		repos.repo = repositorycache.New(base, cacheService, serializer)
	}
	return repos
}

func (r *BunRepository) CreateProject(ctx context.Context, project *Project) (*Project, error) {
	return r.projects.repo.Create(ctx, project)
}

func (r *BunRepository) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	record, err := r.projects.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, "project", id.String())
	}
	return record, nil
}

func (r *BunRepository) GetProjectByPath(ctx context.Context, fullPath string) (*Project, error) {
	record, err := r.projects.repo.GetByIdentifier(ctx, strings.ToLower(fullPath))
	if err != nil {
		return nil, mapRepositoryError(err, "project", fullPath)
	}
	return record, nil
}

func (r *BunRepository) CreateUser(ctx context.Context, user *User) (*User, error) {
	return r.users.repo.Create(ctx, user)
}

func (r *BunRepository) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	record, err := r.users.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, "user", id.String())
	}
	return record, nil
}

func (r *BunRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	record, err := r.users.repo.GetByIdentifier(ctx, strings.ToLower(username))
	if err != nil {
		return nil, mapRepositoryError(err, "user", username)
	}
	return record, nil
}

func (r *BunRepository) AddMember(ctx context.Context, member *ProjectMember) (*ProjectMember, error) {
	return r.members.repo.Create(ctx, member)
}

func (r *BunRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*ProjectMember, error) {
	records, _, err := r.members.query.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.project_id = ?", projectID).OrderExpr("?TableAlias.created_at ASC")
	}))
	return records, err
}

func (r *BunRepository) table(kind interfaces.ReferenceKind) (itemTable, error) {
	table, ok := r.items[kind]
	if !ok {
		return nil, ErrUnsupportedKind
	}
	return table, nil
}

func (r *BunRepository) CreateItem(ctx context.Context, kind interfaces.ReferenceKind, item *WorkItem) (*WorkItem, error) {
	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	return table.create(ctx, item)
}

func (r *BunRepository) UpdateItem(ctx context.Context, kind interfaces.ReferenceKind, item *WorkItem) (*WorkItem, error) {
	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	return table.update(ctx, item)
}

func (r *BunRepository) GetItem(ctx context.Context, kind interfaces.ReferenceKind, id uuid.UUID) (*WorkItem, error) {
	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	return table.get(ctx, id)
}

func (r *BunRepository) GetItemByIID(ctx context.Context, kind interfaces.ReferenceKind, projectID uuid.UUID, iid int64) (*WorkItem, error) {
	table, err := r.table(kind)
	if err != nil {
		return nil, err
	}
	return table.getByIID(ctx, projectID, iid)
}

func (r *BunRepository) MaxIID(ctx context.Context, kind interfaces.ReferenceKind, projectID uuid.UUID) (int64, error) {
	table, err := r.table(kind)
	if err != nil {
		return 0, err
	}
	return table.maxIID(ctx, projectID)
}

func (r *BunRepository) DeleteItem(ctx context.Context, kind interfaces.ReferenceKind, id uuid.UUID) error {
	table, err := r.table(kind)
	if err != nil {
		return err
	}
	return table.delete(ctx, id)
}

func (r *BunRepository) CreateCommit(ctx context.Context, commit *Commit) (*Commit, error) {
	return r.commits.repo.Create(ctx, commit)
}

func (r *BunRepository) GetCommit(ctx context.Context, id uuid.UUID) (*Commit, error) {
	record, err := r.commits.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, "commit", id.String())
	}
	return record, nil
}

func (r *BunRepository) FindCommits(ctx context.Context, projectID uuid.UUID, prefix string, limit int) ([]*Commit, error) {
	records, _, err := r.commits.query.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("?TableAlias.project_id = ?", projectID).
				Where("?TableAlias.sha LIKE ?", prefix+"%").
				OrderExpr("?TableAlias.sha ASC")
			if limit > 0 {
				q = q.Limit(limit)
			}
			return q
		}),
	)
	return records, err
}

type itemTable interface {
	create(ctx context.Context, item *WorkItem) (*WorkItem, error)
	update(ctx context.Context, item *WorkItem) (*WorkItem, error)
	get(ctx context.Context, id uuid.UUID) (*WorkItem, error)
	getByIID(ctx context.Context, projectID uuid.UUID, iid int64) (*WorkItem, error)
	maxIID(ctx context.Context, projectID uuid.UUID) (int64, error)
	delete(ctx context.Context, id uuid.UUID) error
}

type bunItemTable[T itemRecord] struct {
	kind  interfaces.ReferenceKind
	repos tableRepos[T]
	wrap  func(WorkItem) T
}

func (t *bunItemTable[T]) create(ctx context.Context, item *WorkItem) (*WorkItem, error) {
	record, err := t.repos.repo.Create(ctx, t.wrap(*item))
	if err != nil {
		return nil, err
	}
	return unwrapItem(record), nil
}

func (t *bunItemTable[T]) update(ctx context.Context, item *WorkItem) (*WorkItem, error) {
	record, err := t.repos.repo.Update(ctx, t.wrap(*item))
	if err != nil {
		return nil, mapRepositoryError(err, itemResource(t.kind), item.ID.String())
	}
	return unwrapItem(record), nil
}

func (t *bunItemTable[T]) get(ctx context.Context, id uuid.UUID) (*WorkItem, error) {
	record, err := t.repos.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, itemResource(t.kind), id.String())
	}
	return unwrapItem(record), nil
}

func (t *bunItemTable[T]) getByIID(ctx context.Context, projectID uuid.UUID, iid int64) (*WorkItem, error) {
	records, _, err := t.repos.query.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.project_id = ?", projectID).Where("?TableAlias.iid = ?", iid)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: itemResource(t.kind), Key: formatIID(iid)}
	}
	return unwrapItem(records[0]), nil
}

func (t *bunItemTable[T]) maxIID(ctx context.Context, projectID uuid.UUID) (int64, error) {
	records, _, err := t.repos.query.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.project_id = ?", projectID).OrderExpr("?TableAlias.iid DESC")
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil || len(records) == 0 {
		return 0, err
	}
	return records[0].item().IID, nil
}

func (t *bunItemTable[T]) delete(ctx context.Context, id uuid.UUID) error {
	if _, err := t.get(ctx, id); err != nil {
		return err
	}
	return t.repos.repo.Delete(ctx, t.wrap(WorkItem{ID: id}))
}

func unwrapItem[T itemRecord](record T) *WorkItem {
	out := *record.item()
	return &out
}
