package references

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

const lookupUnavailableCode = "LOOKUP_UNAVAILABLE"

var (
	// ErrLookupRequired is returned when a resolver is built without a lookup service.
	ErrLookupRequired = errors.New("references: lookup service is required")
	// ErrUnsupportedKind indicates a token kind no linker knows how to address.
	ErrUnsupportedKind = errors.New("references: unsupported reference kind")
	// ErrUnsafeTarget indicates a link target rejected by the sanitizer.
	ErrUnsafeTarget = errors.New("references: unsafe link target")
)

// lookupUnavailable tags a lookup failure so callers can tell it apart from
// an unresolvable reference with errors.Is(err, interfaces.ErrLookupUnavailable).
func lookupUnavailable(token interfaces.ReferenceToken, cause error) error {
	wrapped := goerrors.Wrap(cause, goerrors.CategoryExternal, fmt.Sprintf("lookup %s %q failed", token.Kind, token.Raw)).
		WithTextCode(lookupUnavailableCode)
	return fmt.Errorf("%w: %w", interfaces.ErrLookupUnavailable, wrapped)
}
