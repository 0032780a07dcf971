package interfaces

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ReferenceKind enumerates the shorthand reference variants the engine knows.
type ReferenceKind string

const (
	ReferenceIssue        ReferenceKind = "issue"
	ReferenceMergeRequest ReferenceKind = "merge_request"
	ReferenceMilestone    ReferenceKind = "milestone"
	ReferenceUser         ReferenceKind = "user"
	ReferenceCommit       ReferenceKind = "commit"
)

// ReferenceKinds lists every supported kind in a stable order.
func ReferenceKinds() []ReferenceKind {
	return []ReferenceKind{
		ReferenceIssue,
		ReferenceMergeRequest,
		ReferenceMilestone,
		ReferenceUser,
		ReferenceCommit,
	}
}

// Valid reports whether the kind is one of the known variants.
func (k ReferenceKind) Valid() bool {
	switch k {
	case ReferenceIssue, ReferenceMergeRequest, ReferenceMilestone, ReferenceUser, ReferenceCommit:
		return true
	default:
		return false
	}
}

// Sigil returns the prefix character used to write the kind. Commits have none.
func (k ReferenceKind) Sigil() string {
	switch k {
	case ReferenceIssue:
		return "#"
	case ReferenceMergeRequest:
		return "!"
	case ReferenceMilestone:
		return "%"
	case ReferenceUser:
		return "@"
	default:
		return ""
	}
}

// ProjectScope is the namespace boundary unqualified references resolve in.
type ProjectScope struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Project   string `json:"project" yaml:"project"`
}

// ParseProjectScope splits a "namespace/project" path. A path without a
// slash yields a scope with an empty namespace.
func ParseProjectScope(path string) ProjectScope {
	path = strings.Trim(strings.TrimSpace(path), "/")
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ProjectScope{Project: path}
	}
	return ProjectScope{Namespace: path[:idx], Project: path[idx+1:]}
}

// FullPath renders the scope as "namespace/project".
func (s ProjectScope) FullPath() string {
	if s.Namespace == "" {
		return s.Project
	}
	return s.Namespace + "/" + s.Project
}

// IsZero reports whether no project is set.
func (s ProjectScope) IsZero() bool {
	return s.Project == "" && s.Namespace == ""
}

// Validate ensures the scope names a project.
func (s ProjectScope) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Project, validation.Required.Error("project is required")),
	)
}

// ReferenceToken is a candidate reference found in raw text. Start and End
// are byte offsets into the scanned text; Raw equals text[Start:End].
type ReferenceToken struct {
	Raw     string        `json:"raw"`
	Kind    ReferenceKind `json:"kind"`
	Key     string        `json:"key"`
	Project string        `json:"project,omitempty"`
	Start   int           `json:"start"`
	End     int           `json:"end"`
}

// Qualified reports whether the token carries an explicit project qualifier.
func (t ReferenceToken) Qualified() bool {
	return t.Project != ""
}

// ResolvedReference is the outcome of resolving one token in one render pass.
type ResolvedReference struct {
	Token          ReferenceToken `json:"token"`
	TargetEntityID string         `json:"target_entity_id,omitempty"`
	DisplayText    string         `json:"display_text"`
	LinkTarget     string         `json:"link_target,omitempty"`
	Title          string         `json:"title,omitempty"`
	ProjectPath    string         `json:"project_path,omitempty"`
	Resolvable     bool           `json:"resolvable"`
}

// Unresolved builds the plain-text outcome for a token.
func Unresolved(token ReferenceToken) ResolvedReference {
	return ResolvedReference{Token: token, DisplayText: token.Raw}
}

// Entity is the read-only view of a referenceable record returned by lookups.
type Entity struct {
	ID          string        `json:"id"`
	Kind        ReferenceKind `json:"kind"`
	ProjectPath string        `json:"project_path,omitempty"`
	Key         string        `json:"key"`
	Title       string        `json:"title"`
}

// LookupService finds entities by shorthand key inside a project. Users are
// instance-wide; implementations ignore the scope for ReferenceUser.
// Missing entities return an error matching ErrEntityNotFound.
type LookupService interface {
	Find(ctx context.Context, scope ProjectScope, kind ReferenceKind, key string) (*Entity, error)
}

// ReferenceMetrics observes resolution activity.
type ReferenceMetrics interface {
	ObserveResolveDuration(kind ReferenceKind, duration time.Duration)
	IncrementResolved(kind ReferenceKind, resolvable bool)
	IncrementLookupError(kind ReferenceKind)
}

var (
	// ErrEntityNotFound signals an unknown or deleted entity.
	ErrEntityNotFound = errors.New("gfm: entity not found")
	// ErrLookupUnavailable signals the lookup service could not answer.
	ErrLookupUnavailable = errors.New("gfm: lookup service unavailable")
)
