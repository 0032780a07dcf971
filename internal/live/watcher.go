package live

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/internal/markdown"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// TextRenderer renders raw field text within a project scope.
type TextRenderer interface {
	Render(ctx context.Context, raw string, scope interfaces.ProjectScope) (markdown.Result, error)
}

// FieldTextSource reads the current raw text of an entity field.
type FieldTextSource interface {
	FieldText(ctx context.Context, entityID, field string) (string, error)
}

// WatchRequest names the field to watch and the markup already displayed.
type WatchRequest struct {
	EntityID string
	Field    string
	Scope    interfaces.ProjectScope
	// Initial is the markup rendered for the field before watching started.
	Initial template.HTML
	// Load reads and renders the current text once the subscription is
	// open, replacing Initial. It needs a FieldTextSource.
	Load bool
}

// Key returns the field identifier for the request.
func (r WatchRequest) Key() string {
	return interfaces.FieldID(r.EntityID, r.Field)
}

// Watcher re-renders watched fields when their source text changes. Every
// watched field runs in its own goroutine and never waits on another field.
type Watcher struct {
	renderer TextRenderer
	source   interfaces.ChangeSource
	fields   FieldTextSource
	logger   interfaces.Logger
	now      func() time.Time

	resubscribeInitial    time.Duration
	resubscribeMax        time.Duration
	resubscribeMaxElapsed time.Duration

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// Option customises a Watcher.
type Option func(*Watcher)

// WithLogger attaches a logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithFieldTextSource lets subscriptions read the current field text, used
// for WatchRequest.Load and to catch up after a lost stream is restored.
func WithFieldTextSource(fields FieldTextSource) Option {
	return func(w *Watcher) {
		if fields != nil {
			w.fields = fields
		}
	}
}

// WithClock overrides the clock used to stamp fragments.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) {
		if now != nil {
			w.now = now
		}
	}
}

// WithResubscribeBackoff configures the exponential backoff used after a
// stream is lost. A zero maxElapsed retries until the subscription is
// cancelled.
func WithResubscribeBackoff(initial, maxInterval, maxElapsed time.Duration) Option {
	return func(w *Watcher) {
		if initial > 0 {
			w.resubscribeInitial = initial
		}
		if maxInterval > 0 {
			w.resubscribeMax = maxInterval
		}
		if maxElapsed >= 0 {
			w.resubscribeMaxElapsed = maxElapsed
		}
	}
}

// NewWatcher builds a watcher rendering with renderer and listening on source.
func NewWatcher(renderer TextRenderer, source interfaces.ChangeSource, opts ...Option) (*Watcher, error) {
	if renderer == nil || source == nil {
		return nil, ErrWatcherDependencies
	}
	w := &Watcher{
		renderer:           renderer,
		source:             source,
		logger:             logging.NoOp(),
		now:                func() time.Time { return time.Now().UTC() },
		resubscribeInitial: 250 * time.Millisecond,
		resubscribeMax:     30 * time.Second,
		subs:               map[*Subscription]struct{}{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WatchField subscribes to changes of one entity field and returns the
// handle owning its fragment. The subscription lives until Cancel is called,
// ctx is done or the watcher is closed.
func (w *Watcher) WatchField(ctx context.Context, req WatchRequest) (*Subscription, error) {
	req.EntityID = strings.TrimSpace(req.EntityID)
	req.Field = strings.TrimSpace(req.Field)
	if req.EntityID == "" || req.Field == "" {
		return nil, ErrInvalidRequest
	}
	if req.Load && w.fields == nil {
		return nil, ErrFieldTextSourceRequired
	}

	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil, ErrWatcherClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	stream, err := w.source.Subscribe(subCtx, req.EntityID, req.Field)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", req.Key(), err)
	}

	var loadErr error
	if req.Load {
		markup, err := w.load(subCtx, req)
		if err != nil && !errors.Is(err, interfaces.ErrLookupUnavailable) {
			cancel()
			_ = stream.Close()
			return nil, err
		}
		req.Initial, loadErr = markup, err
	}

	sub := newSubscription(w, req, cancel)
	sub.setErr(loadErr)
	sub.current.Store(&interfaces.RenderedFragment{
		SourceFieldID: req.Key(),
		Markup:        req.Initial,
		GeneratedAt:   w.now(),
	})

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		cancel()
		_ = stream.Close()
		return nil, ErrWatcherClosed
	}
	w.subs[sub] = struct{}{}
	w.mu.Unlock()

	sub.logger.Debug("live.watch.started")
	go sub.run(subCtx, stream)
	return sub, nil
}

// load renders the current text of the requested field. Lookup failures
// still return the degraded markup.
func (w *Watcher) load(ctx context.Context, req WatchRequest) (template.HTML, error) {
	text, err := w.fields.FieldText(ctx, req.EntityID, req.Field)
	if err != nil {
		return "", err
	}
	result, err := w.renderer.Render(ctx, text, req.Scope)
	return result.Markup, err
}

// Active reports the number of running subscriptions.
func (w *Watcher) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs)
}

// Close cancels every subscription and waits for their tasks to stop.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	subs := make([]*Subscription, 0, len(w.subs))
	for sub := range w.subs {
		subs = append(subs, sub)
	}
	w.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	for _, sub := range subs {
		<-sub.Done()
	}
	return nil
}

func (w *Watcher) forget(sub *Subscription) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.subs, sub)
}

func (w *Watcher) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.resubscribeInitial
	b.MaxInterval = w.resubscribeMax
	b.MaxElapsedTime = w.resubscribeMaxElapsed
	b.Reset()
	return backoff.WithContext(b, ctx)
}
