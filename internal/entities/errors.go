package entities

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

var (
	ErrRepositoryRequired = errors.New("entities: repository required")
	ErrInvalidEntityID    = errors.New("entities: invalid entity id")
	ErrUnsupportedField   = errors.New("entities: unsupported field")
	ErrUnsupportedKind    = errors.New("entities: unsupported entity kind")
	ErrProjectRequired    = errors.New("entities: project path required")
	ErrUsernameRequired   = errors.New("entities: username required")
	ErrTitleRequired      = errors.New("entities: title required")
	ErrInvalidSHA         = errors.New("entities: commit sha must be 7 to 40 hex characters")
	ErrDuplicate          = errors.New("entities: record already exists")
)

// NotFoundError is returned when a record cannot be located. It matches
// interfaces.ErrEntityNotFound with errors.Is.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// Is reports whether target is interfaces.ErrEntityNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == interfaces.ErrEntityNotFound
}

func mapRepositoryError(err error, resource, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &NotFoundError{Resource: resource, Key: key}
	}
	return fmt.Errorf("%s repository error: %w", resource, err)
}
