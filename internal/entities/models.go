package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Item states.
const (
	StateOpened = "opened"
	StateClosed = "closed"
	StateMerged = "merged"
)

// User states.
const (
	UserActive  = "active"
	UserBlocked = "blocked"
)

// Text fields addressable by UpdateField and FieldText.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldMessage     = "message"
)

// Project groups issues, merge requests, milestones and commits.
type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	Namespace string    `bun:"namespace,notnull" json:"namespace"`
	Path      string    `bun:"path,notnull" json:"path"`
	FullPath  string    `bun:"full_path,notnull,unique" json:"full_path"`
	Name      string    `bun:"name" json:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// User is an instance-wide account addressable with @username.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	Username  string    `bun:"username,notnull,unique" json:"username"`
	Name      string    `bun:"name" json:"name"`
	State     string    `bun:"state,notnull,default:'active'" json:"state"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// ProjectMember links a user to a project.
type ProjectMember struct {
	bun.BaseModel `bun:"table:project_members,alias:pm"`

	ID          uuid.UUID `bun:",pk,type:uuid" json:"id"`
	ProjectID   uuid.UUID `bun:"project_id,notnull,type:uuid" json:"project_id"`
	UserID      uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	AccessLevel int       `bun:"access_level,notnull,default:30" json:"access_level"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// WorkItem holds the columns shared by issues, merge requests and
// milestones. IID is the per-project number used in references.
type WorkItem struct {
	ID          uuid.UUID `bun:",pk,type:uuid" json:"id"`
	ProjectID   uuid.UUID `bun:"project_id,notnull,type:uuid" json:"project_id"`
	IID         int64     `bun:"iid,notnull" json:"iid"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description" json:"description"`
	State       string    `bun:"state,notnull,default:'opened'" json:"state"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

func (w *WorkItem) item() *WorkItem { return w }

// Issue is referenced as #N.
type Issue struct {
	bun.BaseModel `bun:"table:issues,alias:i"`
	WorkItem
}

// MergeRequest is referenced as !N.
type MergeRequest struct {
	bun.BaseModel `bun:"table:merge_requests,alias:mr"`
	WorkItem
}

// Milestone is referenced as %N.
type Milestone struct {
	bun.BaseModel `bun:"table:milestones,alias:ms"`
	WorkItem
}

// Commit is referenced by SHA or unique SHA prefix.
type Commit struct {
	bun.BaseModel `bun:"table:commits,alias:c"`

	ID          uuid.UUID `bun:",pk,type:uuid" json:"id"`
	ProjectID   uuid.UUID `bun:"project_id,notnull,type:uuid" json:"project_id"`
	SHA         string    `bun:"sha,notnull" json:"sha"`
	Message     string    `bun:"message" json:"message"`
	AuthorID    uuid.UUID `bun:"author_id,type:uuid,nullzero" json:"author_id,omitempty"`
	CommittedAt time.Time `bun:"committed_at,nullzero,default:current_timestamp" json:"committed_at"`
}

// Title returns the first line of the commit message.
func (c *Commit) Title() string {
	for i := 0; i < len(c.Message); i++ {
		if c.Message[i] == '\n' {
			return c.Message[:i]
		}
	}
	return c.Message
}

// Models lists every bun model, in creation order.
func Models() []any {
	return []any{
		(*Project)(nil),
		(*User)(nil),
		(*ProjectMember)(nil),
		(*Issue)(nil),
		(*MergeRequest)(nil),
		(*Milestone)(nil),
		(*Commit)(nil),
	}
}
