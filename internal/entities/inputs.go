package entities

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// CreateProjectInput describes a project to create. Namespace may contain
// nested groups separated by slashes.
type CreateProjectInput struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Path      string `json:"path" yaml:"path"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (in CreateProjectInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Path, validation.Required),
	)
}

// CreateUserInput describes an account.
type CreateUserInput struct {
	Username string `json:"username" yaml:"username"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	State    string `json:"state,omitempty" yaml:"state,omitempty"`
}

func (in CreateUserInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.State, validation.In(UserActive, UserBlocked)),
	)
}

// AddMemberInput grants a user access to a project.
type AddMemberInput struct {
	Project     string `json:"project" yaml:"project"`
	Username    string `json:"username" yaml:"username"`
	AccessLevel int    `json:"access_level,omitempty" yaml:"access_level,omitempty"`
}

func (in AddMemberInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Project, validation.Required),
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.AccessLevel, validation.Min(0)),
	)
}

// CreateItemInput describes an issue, merge request or milestone. A zero
// IID takes the next free number in the project.
type CreateItemInput struct {
	Project     string `json:"project" yaml:"project"`
	IID         int64  `json:"iid,omitempty" yaml:"iid,omitempty"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	State       string `json:"state,omitempty" yaml:"state,omitempty"`
}

func (in CreateItemInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Project, validation.Required),
		validation.Field(&in.IID, validation.Min(int64(0))),
		validation.Field(&in.Title, validation.Required),
		validation.Field(&in.State, validation.In(StateOpened, StateClosed, StateMerged)),
	)
}

// CreateCommitInput records a commit. Author is an optional username.
type CreateCommitInput struct {
	Project string `json:"project" yaml:"project"`
	SHA     string `json:"sha" yaml:"sha"`
	Message string `json:"message" yaml:"message"`
	Author  string `json:"author,omitempty" yaml:"author,omitempty"`
}

func (in CreateCommitInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Project, validation.Required),
		validation.Field(&in.SHA, validation.Required),
	)
}
