package entities

import (
	"context"

	"github.com/google/uuid"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// Repository persists projects, users and their referenceable records.
// Item methods take the reference kind of the table they address: issue,
// merge_request or milestone.
type Repository interface {
	CreateProject(ctx context.Context, project *Project) (*Project, error)
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)
	GetProjectByPath(ctx context.Context, fullPath string) (*Project, error)

	CreateUser(ctx context.Context, user *User) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	AddMember(ctx context.Context, member *ProjectMember) (*ProjectMember, error)
	ListMembers(ctx context.Context, projectID uuid.UUID) ([]*ProjectMember, error)

	CreateItem(ctx context.Context, kind interfaces.ReferenceKind, item *WorkItem) (*WorkItem, error)
	UpdateItem(ctx context.Context, kind interfaces.ReferenceKind, item *WorkItem) (*WorkItem, error)
	GetItem(ctx context.Context, kind interfaces.ReferenceKind, id uuid.UUID) (*WorkItem, error)
	GetItemByIID(ctx context.Context, kind interfaces.ReferenceKind, projectID uuid.UUID, iid int64) (*WorkItem, error)
	MaxIID(ctx context.Context, kind interfaces.ReferenceKind, projectID uuid.UUID) (int64, error)
	DeleteItem(ctx context.Context, kind interfaces.ReferenceKind, id uuid.UUID) error

	CreateCommit(ctx context.Context, commit *Commit) (*Commit, error)
	GetCommit(ctx context.Context, id uuid.UUID) (*Commit, error)
	// FindCommits returns at most limit commits of a project whose SHA starts with prefix.
	FindCommits(ctx context.Context, projectID uuid.UUID, prefix string, limit int) ([]*Commit, error)
}

func itemResource(kind interfaces.ReferenceKind) string {
	return string(kind)
}
