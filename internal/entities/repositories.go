package entities

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewProjectRepository creates a repository for projects keyed by full path.
func NewProjectRepository(db *bun.DB) repository.Repository[*Project] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Project]{
		NewRecord:          func() *Project { return &Project{} },
		GetID:              func(project *Project) uuid.UUID { return project.ID },
		SetID:              func(project *Project, id uuid.UUID) { project.ID = id },
		GetIdentifier:      func() string { return "full_path" },
		GetIdentifierValue: func(project *Project) string { return project.FullPath },
	})
}

// NewUserRepository creates a repository for users keyed by username.
func NewUserRepository(db *bun.DB) repository.Repository[*User] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*User]{
		NewRecord:          func() *User { return &User{} },
		GetID:              func(user *User) uuid.UUID { return user.ID },
		SetID:              func(user *User, id uuid.UUID) { user.ID = id },
		GetIdentifier:      func() string { return "username" },
		GetIdentifierValue: func(user *User) string { return user.Username },
	})
}

// NewMemberRepository creates a repository for project memberships.
func NewMemberRepository(db *bun.DB) repository.Repository[*ProjectMember] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*ProjectMember]{
		NewRecord:          func() *ProjectMember { return &ProjectMember{} },
		GetID:              func(member *ProjectMember) uuid.UUID { return member.ID },
		SetID:              func(member *ProjectMember, id uuid.UUID) { member.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(member *ProjectMember) string { return member.ID.String() },
	})
}

// NewCommitRepository creates a repository for commits.
func NewCommitRepository(db *bun.DB) repository.Repository[*Commit] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Commit]{
		NewRecord:          func() *Commit { return &Commit{} },
		GetID:              func(commit *Commit) uuid.UUID { return commit.ID },
		SetID:              func(commit *Commit, id uuid.UUID) { commit.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(commit *Commit) string { return commit.ID.String() },
	})
}

type itemRecord interface {
	item() *WorkItem
}

func newItemRepository[T itemRecord](db *bun.DB, newRecord func() T) repository.Repository[T] {
	return repository.MustNewRepository(db, repository.ModelHandlers[T]{
		NewRecord:          newRecord,
		GetID:              func(record T) uuid.UUID { return record.item().ID },
		SetID:              func(record T, id uuid.UUID) { record.item().ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(record T) string { return record.item().ID.String() },
	})
}
