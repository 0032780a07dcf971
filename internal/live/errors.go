package live

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

const subscriptionLostCode = "SUBSCRIPTION_LOST"

var (
	// ErrWatcherDependencies is returned when a watcher is built without a renderer or change source.
	ErrWatcherDependencies = errors.New("live: renderer and change source are required")
	// ErrInvalidRequest indicates a watch request without entity or field.
	ErrInvalidRequest = errors.New("live: entity id and field are required")
	// ErrFieldTextSourceRequired is returned for WatchRequest.Load without WithFieldTextSource.
	ErrFieldTextSourceRequired = errors.New("live: field text source required")
	// ErrWatcherClosed is returned by WatchField after Close.
	ErrWatcherClosed = errors.New("live: watcher closed")
	// ErrBrokerClosed is returned by a closed broker.
	ErrBrokerClosed = errors.New("live: broker closed")
)

// subscriptionLost tags a dropped change stream for the field identified by key.
func subscriptionLost(key string, cause error) error {
	if cause == nil {
		cause = interfaces.ErrSubscriptionLost
	}
	wrapped := goerrors.Wrap(cause, goerrors.CategoryExternal, fmt.Sprintf("change stream for %s dropped", key)).
		WithTextCode(subscriptionLostCode)
	return fmt.Errorf("%w: %w", interfaces.ErrSubscriptionLost, wrapped)
}
