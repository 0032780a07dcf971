package interfaces

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ErrSubscriptionLost is returned by a ChangeStream when the notification
// channel dropped. Consumers should resubscribe.
var ErrSubscriptionLost = errors.New("gfm: subscription lost")

// FieldID names one text field of one entity, e.g. "issue:42:title".
func FieldID(entityID, field string) string {
	return fmt.Sprintf("%s:%s", entityID, field)
}

// EntityChangeEvent announces new raw text for an entity field. Sequence is
// assigned by the publisher and increases per field; it is only comparable
// between events carrying the same Origin.
type EntityChangeEvent struct {
	EntityID string `json:"entity_id"`
	Field    string `json:"field"`
	Text     string `json:"text"`
	// Origin identifies the publisher instance that numbered the event.
	Origin     string    `json:"origin,omitempty"`
	Sequence   uint64    `json:"sequence,omitempty"`
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// Validate ensures the event targets a field.
func (e EntityChangeEvent) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.EntityID, validation.Required),
		validation.Field(&e.Field, validation.Required),
	)
}

// ChangeStream delivers change events for one subscription. Events is closed
// when the stream ends; Err then reports why (nil after Close,
// ErrSubscriptionLost when the source dropped the stream).
type ChangeStream interface {
	Events() <-chan EntityChangeEvent
	Err() error
	Close() error
}

// ChangeSource is the push notification channel for entity text changes.
type ChangeSource interface {
	Subscribe(ctx context.Context, entityID, field string) (ChangeStream, error)
}

// ChangePublisher emits change events to subscribers.
type ChangePublisher interface {
	Publish(ctx context.Context, event EntityChangeEvent) error
}

// RenderedFragment is the output markup for one field at one point in time.
type RenderedFragment struct {
	SourceFieldID string        `json:"source_field_id"`
	Markup        template.HTML `json:"markup"`
	Sequence      uint64        `json:"sequence"`
	GeneratedAt   time.Time     `json:"generated_at"`
}
