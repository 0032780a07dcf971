package live

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

const defaultStreamBuffer = 16

// Broker is an in-process change source and publisher. Each subscription
// gets its own buffered stream; when a slow subscriber's buffer is full the
// oldest pending event is dropped so publishers never block. Events without
// an origin are stamped with the broker's own, random per instance.
type Broker struct {
	origin   string
	mu       sync.RWMutex
	streams  map[string]map[*brokerStream]struct{}
	sequence map[string]uint64
	closed   bool
	buffer   int
	now      func() time.Time
}

// BrokerOption customises a Broker.
type BrokerOption func(*Broker)

// WithStreamBuffer sets the per-subscription buffer size.
func WithStreamBuffer(size int) BrokerOption {
	return func(b *Broker) {
		if size > 0 {
			b.buffer = size
		}
	}
}

// WithBrokerClock overrides the clock used to stamp events.
func WithBrokerClock(now func() time.Time) BrokerOption {
	return func(b *Broker) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBroker constructs an empty broker.
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		origin:   uuid.NewString(),
		streams:  map[string]map[*brokerStream]struct{}{},
		sequence: map[string]uint64{},
		buffer:   defaultStreamBuffer,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe opens a stream for one entity field. The stream is closed when
// ctx is done or Close is called on it.
func (b *Broker) Subscribe(ctx context.Context, entityID, field string) (interfaces.ChangeStream, error) {
	if entityID == "" || field == "" {
		return nil, ErrInvalidRequest
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := interfaces.FieldID(entityID, field)
	stream := &brokerStream{
		broker: b,
		key:    key,
		events: make(chan interfaces.EntityChangeEvent, b.buffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBrokerClosed
	}
	if b.streams[key] == nil {
		b.streams[key] = map[*brokerStream]struct{}{}
	}
	b.streams[key][stream] = struct{}{}
	b.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = stream.Close()
	})
	stream.mu.Lock()
	if stream.closed {
		stop()
	} else {
		stream.stop = stop
	}
	stream.mu.Unlock()
	return stream, nil
}

// Publish delivers event to every stream watching its field. Events from
// another origin pass through unchanged; otherwise a zero Sequence is
// replaced with the next per-field sequence number.
func (b *Broker) Publish(ctx context.Context, event interfaces.EntityChangeEvent) error {
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
		return ErrBrokerClosed
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
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.now()
	}
	targets := make([]*brokerStream, 0, len(b.streams[key]))
	for stream := range b.streams[key] {
		targets = append(targets, stream)
	}
	b.mu.Unlock()

	for _, stream := range targets {
		stream.deliver(event)
	}
	return nil
}

// Subscribers reports how many open streams watch a field.
func (b *Broker) Subscribers(entityID, field string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.streams[interfaces.FieldID(entityID, field)])
}

// Drop ends every stream of a field with interfaces.ErrSubscriptionLost.
func (b *Broker) Drop(entityID, field string) {
	key := interfaces.FieldID(entityID, field)
	b.mu.Lock()
	streams := b.streams[key]
	delete(b.streams, key)
	b.mu.Unlock()

	for stream := range streams {
		stream.end(subscriptionLost(key, nil))
	}
}

// Close ends all streams with interfaces.ErrSubscriptionLost and rejects
// further use.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	all := b.streams
	b.streams = map[string]map[*brokerStream]struct{}{}
	b.mu.Unlock()

	for key, streams := range all {
		for stream := range streams {
			stream.end(subscriptionLost(key, nil))
		}
	}
	return nil
}

func (b *Broker) remove(stream *brokerStream) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if streams, ok := b.streams[stream.key]; ok {
		delete(streams, stream)
		if len(streams) == 0 {
			delete(b.streams, stream.key)
		}
	}
}

type brokerStream struct {
	broker *Broker
	key    string
	events chan interfaces.EntityChangeEvent
	stop   func() bool

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *brokerStream) Events() <-chan interfaces.EntityChangeEvent {
	return s.events
}

func (s *brokerStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *brokerStream) Close() error {
	s.broker.remove(s)
	s.end(nil)
	return nil
}

func (s *brokerStream) deliver(event interfaces.EntityChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.events <- event:
			return
		default:
		}
		select {
		case <-s.events:
		default:
		}
	}
}

func (s *brokerStream) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.events)
	if s.stop != nil {
		s.stop()
	}
}
