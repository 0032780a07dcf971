package live

import (
	"context"
	"errors"
	"html/template"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// Subscription owns the displayed fragment of one watched field.
type Subscription struct {
	watcher *Watcher
	req     WatchRequest
	logger  interfaces.Logger

	current atomic.Pointer[interfaces.RenderedFragment]
	updates chan interfaces.RenderedFragment
	cancel  context.CancelFunc
	done    chan struct{}

	errMu sync.Mutex
	err   error

	// owned by the run goroutine
	arrivals  uint64
	lastEvent map[string]uint64
}

type renderOutcome struct {
	arrival uint64
	event   interfaces.EntityChangeEvent
	markup  template.HTML
	err     error
}

func newSubscription(w *Watcher, req WatchRequest, cancel context.CancelFunc) *Subscription {
	return &Subscription{
		watcher: w,
		req:     req,
		logger:  logging.WithFieldContext(w.logger, req.Scope.FullPath(), req.EntityID, req.Field),
		updates:   make(chan interfaces.RenderedFragment, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
		lastEvent: map[string]uint64{},
	}
}

// Key returns the watched field identifier.
func (s *Subscription) Key() string {
	return s.req.Key()
}

// Current returns the fragment currently displayed for the field.
func (s *Subscription) Current() interfaces.RenderedFragment {
	return *s.current.Load()
}

// Updates delivers applied fragments. Only the most recent undelivered
// fragment is kept. The channel is closed when the subscription ends.
func (s *Subscription) Updates() <-chan interfaces.RenderedFragment {
	return s.updates
}

// Cancel stops future re-renders. A render in flight completes but its
// result is discarded.
func (s *Subscription) Cancel() {
	s.cancel()
}

// Done is closed once the field task has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports the last render or subscription failure, or nil after a
// successful render.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Subscription) setErr(err error) {
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()
}

func (s *Subscription) run(ctx context.Context, stream interfaces.ChangeStream) {
	defer func() {
		if stream != nil {
			_ = stream.Close()
		}
		s.watcher.forget(s)
		close(s.updates)
		close(s.done)
		s.logger.Debug("live.watch.stopped")
	}()

	var (
		events   = stream.Events()
		results  = make(chan renderOutcome, 1)
		pending  *interfaces.EntityChangeEvent
		inFlight bool
	)

	start := func(event interfaces.EntityChangeEvent) {
		inFlight = true
		arrival := s.arrivals
		go func() {
			result, err := s.watcher.renderer.Render(ctx, event.Text, s.req.Scope)
			results <- renderOutcome{arrival: arrival, event: event, markup: result.Markup, err: err}
		}()
	}
	enqueue := func(event interfaces.EntityChangeEvent) {
		if !s.accept(event) {
			return
		}
		s.arrivals++
		if inFlight {
			pending = &event
			return
		}
		start(event)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				next, err := s.resubscribe(ctx, stream)
				stream = next
				if err != nil {
					return
				}
				events = stream.Events()
				if event, ok := s.catchUp(ctx); ok {
					enqueue(event)
				}
				continue
			}
			enqueue(event)

		case outcome := <-results:
			// Events already queued on the stream supersede the finished render.
		drain:
			for {
				select {
				case event, ok := <-events:
					if !ok {
						break drain
					}
					enqueue(event)
				default:
					break drain
				}
			}
			inFlight = false
			s.settle(ctx, outcome)
			if pending != nil {
				start(*pending)
				pending = nil
			}
		}
	}
}

// accept filters events for other fields and replays of events already seen
// from the same origin. Events of different origins apply in arrival order.
func (s *Subscription) accept(event interfaces.EntityChangeEvent) bool {
	if event.EntityID != s.req.EntityID || event.Field != s.req.Field {
		return false
	}
	if event.Sequence != 0 {
		if last, seen := s.lastEvent[event.Origin]; seen && event.Sequence <= last {
			s.logger.Debug("live.watch.stale_event", "sequence", event.Sequence, "origin", event.Origin)
			return false
		}
		s.lastEvent[event.Origin] = event.Sequence
	}
	return true
}

// catchUp reads the current field text after a resubscription so changes
// published while the stream was down are rendered.
func (s *Subscription) catchUp(ctx context.Context) (interfaces.EntityChangeEvent, bool) {
	if s.watcher.fields == nil {
		return interfaces.EntityChangeEvent{}, false
	}
	text, err := s.watcher.fields.FieldText(ctx, s.req.EntityID, s.req.Field)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("live.watch.catch_up_failed", "error", err)
			s.setErr(err)
		}
		return interfaces.EntityChangeEvent{}, false
	}
	return interfaces.EntityChangeEvent{
		EntityID:   s.req.EntityID,
		Field:      s.req.Field,
		Text:       text,
		OccurredAt: s.watcher.now(),
	}, true
}

// settle applies a finished render unless a newer event arrived meanwhile.
func (s *Subscription) settle(ctx context.Context, outcome renderOutcome) {
	if ctx.Err() != nil {
		return
	}
	if outcome.arrival != s.arrivals {
		s.logger.Debug("live.watch.superseded", "arrival", outcome.arrival, "latest", s.arrivals)
		return
	}
	if outcome.err != nil {
		if errors.Is(outcome.err, interfaces.ErrLookupUnavailable) {
			s.logger.Warn("live.watch.render_failed", "error", outcome.err, "sequence", outcome.event.Sequence)
		} else {
			s.logger.Error("live.watch.render_failed", "error", outcome.err, "sequence", outcome.event.Sequence)
		}
		s.setErr(outcome.err)
		return
	}

	fragment := interfaces.RenderedFragment{
		SourceFieldID: s.Key(),
		Markup:        outcome.markup,
		Sequence:      outcome.arrival,
		GeneratedAt:   s.watcher.now(),
	}
	s.current.Store(&fragment)
	s.setErr(nil)
	s.publish(fragment)
	s.logger.Debug("live.watch.applied", "sequence", fragment.Sequence)
}

func (s *Subscription) publish(fragment interfaces.RenderedFragment) {
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- fragment:
	default:
	}
}

// resubscribe replaces a closed stream. Streams that end without
// interfaces.ErrSubscriptionLost stop the task.
func (s *Subscription) resubscribe(ctx context.Context, lost interfaces.ChangeStream) (interfaces.ChangeStream, error) {
	cause := lost.Err()
	_ = lost.Close()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !errors.Is(cause, interfaces.ErrSubscriptionLost) {
		if cause != nil {
			s.logger.Error("live.watch.stream_failed", "error", cause)
			s.setErr(cause)
		}
		return nil, errStreamEnded
	}

	s.logger.Warn("live.watch.subscription_lost", "error", cause)
	s.setErr(subscriptionLost(s.Key(), cause))

	var next interfaces.ChangeStream
	operation := func() error {
		stream, err := s.watcher.source.Subscribe(ctx, s.req.EntityID, s.req.Field)
		if err != nil {
			return err
		}
		next = stream
		return nil
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Debug("live.watch.resubscribe_retry", "error", err, "wait", wait)
	}
	if err := backoff.RetryNotify(operation, s.watcher.newBackOff(ctx), notify); err != nil {
		if ctx.Err() == nil {
			s.logger.Error("live.watch.resubscribe_failed", "error", err)
			s.setErr(subscriptionLost(s.Key(), err))
		}
		return nil, err
	}
	s.setErr(nil)
	s.logger.Info("live.watch.resubscribed")
	return next, nil
}

var errStreamEnded = errors.New("live: change stream ended")
