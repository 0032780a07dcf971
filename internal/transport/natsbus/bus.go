// Package natsbus carries entity change events over NATS core subjects.
// Each field maps to the subject "<prefix>.<entity id>.<field>" and events
// travel as JSON.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "gfm.entities"

const defaultStreamBuffer = 16

var (
	ErrConnectionRequired = errors.New("natsbus: connection required")
	ErrInvalidRequest     = errors.New("natsbus: entity id and field are required")
	ErrBusClosed          = errors.New("natsbus: bus closed")
)

// Bus implements interfaces.ChangeSource and interfaces.ChangePublisher on
// a NATS connection. Sequences assigned by Publish increase per field within
// one Bus, and every Bus stamps its events with its own origin so restarts
// and concurrent publishers never share a numbering.
type Bus struct {
	origin string
	conn   *nats.Conn
	owned  bool
	prefix string
	buffer int
	logger interfaces.Logger
	now    func() time.Time

	mu       sync.Mutex
	streams  map[*stream]struct{}
	sequence map[string]uint64
	closed   bool
}

var (
	_ interfaces.ChangeSource    = (*Bus)(nil)
	_ interfaces.ChangePublisher = (*Bus)(nil)
)

// Option customises a Bus.
type Option func(*Bus)

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) Option {
	return func(b *Bus) {
		if prefix = strings.Trim(strings.TrimSpace(prefix), "."); prefix != "" {
			b.prefix = prefix
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithStreamBuffer sets the per-subscription buffer size.
func WithStreamBuffer(size int) Option {
	return func(b *Bus) {
		if size > 0 {
			b.buffer = size
		}
	}
}

// WithClock overrides the clock used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(b *Bus) {
		if now != nil {
			b.now = now
		}
	}
}

// New wraps an established connection. Open streams end with
// interfaces.ErrSubscriptionLost when the connection disconnects or closes.
func New(conn *nats.Conn, opts ...Option) (*Bus, error) {
	if conn == nil {
		return nil, ErrConnectionRequired
	}
	b := &Bus{
		origin:   uuid.NewString(),
		conn:     conn,
		prefix:   DefaultSubjectPrefix,
		buffer:   defaultStreamBuffer,
		logger:   logging.NoOp(),
		now:      func() time.Time { return time.Now().UTC() },
		streams:  map[*stream]struct{}{},
		sequence: map[string]uint64{},
	}
	for _, opt := range opts {
		opt(b)
	}
	conn.SetDisconnectErrHandler(func(_ *nats.Conn, err error) {
		b.logger.Warn("natsbus.disconnected", "error", err)
		b.dropAll(err)
	})
	conn.SetClosedHandler(func(*nats.Conn) {
		b.dropAll(nats.ErrConnectionClosed)
	})
	return b, nil
}

// Connect dials url and wraps the connection. Close also closes the
// connection.
func Connect(url string, opts ...Option) (*Bus, error) {
	conn, err := nats.Connect(url, nats.Name("go-gfm"))
	if err != nil {
		return nil, fmt.Errorf("natsbus: connect %s: %w", url, err)
	}
	b, err := New(conn, opts...)
	if err != nil {
		conn.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

// Origin returns the identifier stamped on events this bus numbers.
func (b *Bus) Origin() string {
	return b.origin
}

// Subject returns the subject carrying events for one field.
func (b *Bus) Subject(entityID, field string) string {
	return b.prefix + "." + subjectToken(entityID) + "." + subjectToken(field)
}

// Publish stamps and sends event. Events without an origin get the bus
// origin and, when Sequence is zero, the next per-field sequence number.
func (b *Bus) Publish(ctx context.Context, event interfaces.EntityChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := event.Validate(); err != nil {
		return err
	}
	key := interfaces.FieldID(event.EntityID, event.Field)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	if event.Origin == "" {
		event.Origin = b.origin
		if event.Sequence == 0 {
			b.sequence[key]++
			event.Sequence = b.sequence[key]
		} else if event.Sequence > b.sequence[key] {
			b.sequence[key] = event.Sequence
		}
	}
	b.mu.Unlock()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("natsbus: encode event: %w", err)
	}
	if err := b.conn.Publish(b.Subject(event.EntityID, event.Field), payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryExternal, "natsbus: publish failed").
			WithTextCode("PUBLISH_FAILED")
	}
	return nil
}

// Subscribe opens a stream for one field. It returns once the server has
// registered the subscription.
func (b *Bus) Subscribe(ctx context.Context, entityID, field string) (interfaces.ChangeStream, error) {
	if entityID == "" || field == "" {
		return nil, ErrInvalidRequest
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &stream{
		bus:    b,
		key:    interfaces.FieldID(entityID, field),
		events: make(chan interfaces.EntityChangeEvent, b.buffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	b.streams[s] = struct{}{}
	b.mu.Unlock()

	sub, err := b.conn.Subscribe(b.Subject(entityID, field), func(msg *nats.Msg) {
		var event interfaces.EntityChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Warn("natsbus.decode_failed", "subject", msg.Subject, "error", err)
			return
		}
		if event.EntityID != entityID || event.Field != field {
			return
		}
		s.deliver(event)
	})
	if err == nil {
		err = b.conn.Flush()
	}
	if err != nil {
		b.remove(s)
		if sub != nil {
			_ = sub.Unsubscribe()
		}
		return nil, subscriptionLost(s.key, err)
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = s.Close()
	})
	s.mu.Lock()
	if s.closed {
		stop()
	} else {
		s.stop = stop
	}
	s.mu.Unlock()
	return s, nil
}

// Close ends every open stream and drains the connection when the bus
// dialled it. Streams end with interfaces.ErrSubscriptionLost.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.dropAll(nil)
	if !b.owned || b.conn.IsClosed() {
		return nil
	}
	return b.conn.Drain()
}

func (b *Bus) dropAll(cause error) {
	b.mu.Lock()
	streams := b.streams
	b.streams = map[*stream]struct{}{}
	b.mu.Unlock()

	for s := range streams {
		s.end(subscriptionLost(s.key, cause))
	}
}

func (b *Bus) remove(s *stream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.streams, s)
}

func subjectToken(value string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, value)
}

func subscriptionLost(key string, cause error) error {
	if cause == nil {
		cause = interfaces.ErrSubscriptionLost
	}
	wrapped := goerrors.Wrap(cause, goerrors.CategoryExternal, fmt.Sprintf("nats stream for %s dropped", key)).
		WithTextCode("SUBSCRIPTION_LOST")
	return fmt.Errorf("%w: %w", interfaces.ErrSubscriptionLost, wrapped)
}
