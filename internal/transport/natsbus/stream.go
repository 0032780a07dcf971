package natsbus

import (
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

type stream struct {
	bus    *Bus
	key    string
	events chan interfaces.EntityChangeEvent

	mu     sync.Mutex
	sub    *nats.Subscription
	stop   func() bool
	closed bool
	err    error
}

var _ interfaces.ChangeStream = (*stream)(nil)

func (s *stream) Events() <-chan interfaces.EntityChangeEvent {
	return s.events
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() error {
	s.bus.remove(s)
	s.end(nil)
	return nil
}

// deliver drops the oldest pending event when the buffer is full.
func (s *stream) deliver(event interfaces.EntityChangeEvent) {
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

func (s *stream) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	if s.sub != nil && s.sub.IsValid() {
		_ = s.sub.Unsubscribe()
	}
	close(s.events)
	if s.stop != nil {
		s.stop()
	}
}
