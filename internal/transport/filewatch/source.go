// Package filewatch turns edits of tracked files into entity change events.
// The preview CLI uses it to re-render a markdown file whenever it is saved.
package filewatch

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-gfm/internal/live"
	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// BodyField is the field name events for tracked files carry.
const BodyField = "body"

const defaultDebounce = 100 * time.Millisecond

var (
	ErrSourceClosed = errors.New("filewatch: source closed")
	ErrNotTracked   = errors.New("filewatch: path not tracked")
)

// EntityID returns the entity identifier used for a file path.
func EntityID(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return "file:" + filepath.Clean(path)
}

// Source watches tracked files and publishes their full contents whenever
// they change. It implements interfaces.ChangeSource.
type Source struct {
	watcher  *fsnotify.Watcher
	broker   *live.Broker
	logger   interfaces.Logger
	debounce time.Duration

	mu      sync.Mutex
	tracked map[string]tracked
	dirs    map[string]int
	pending map[string]time.Time
	closed  bool

	done chan struct{}
}

type tracked struct {
	entityID string
	hash     [sha256.Size]byte
}

var _ interfaces.ChangeSource = (*Source)(nil)

// Option customises a Source.
type Option func(*Source)

// WithDebounce sets how long changes to a file settle before it is read.
func WithDebounce(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a source. Call Start to begin processing file events.
func New(opts ...Option) (*Source, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("filewatch: %w", err)
	}
	s := &Source{
		watcher:  fsw,
		broker:   live.NewBroker(),
		logger:   logging.NoOp(),
		debounce: defaultDebounce,
		tracked:  map[string]tracked{},
		dirs:     map[string]int{},
		pending:  map[string]time.Time{},
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Track starts watching path and returns its entity id. The parent
// directory is watched so editors that replace files on save are seen.
func (s *Source) Track(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("filewatch: %w", err)
	}
	abs = filepath.Clean(abs)
	content, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("filewatch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSourceClosed
	}
	if entry, ok := s.tracked[abs]; ok {
		return entry.entityID, nil
	}
	dir := filepath.Dir(abs)
	if s.dirs[dir] == 0 {
		if err := s.watcher.Add(dir); err != nil {
			return "", fmt.Errorf("filewatch: watch %s: %w", dir, err)
		}
	}
	s.dirs[dir]++
	entry := tracked{entityID: EntityID(abs), hash: sha256.Sum256(content)}
	s.tracked[abs] = entry
	return entry.entityID, nil
}

// Untrack stops watching path.
func (s *Source) Untrack(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tracked[abs]
	if !ok {
		return ErrNotTracked
	}
	delete(s.tracked, abs)
	delete(s.pending, abs)
	dir := filepath.Dir(abs)
	s.dirs[dir]--
	if s.dirs[dir] <= 0 {
		delete(s.dirs, dir)
		_ = s.watcher.Remove(dir)
	}
	s.broker.Drop(entry.entityID, BodyField)
	return nil
}

// Subscribe implements interfaces.ChangeSource.
func (s *Source) Subscribe(ctx context.Context, entityID, field string) (interfaces.ChangeStream, error) {
	return s.broker.Subscribe(ctx, entityID, field)
}

// Start processes file events until ctx is done or Close is called.
func (s *Source) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Source) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(max(s.debounce/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("filewatch.watch_error", "error", err)
		case <-ticker.C:
			s.flush(ctx)
		}
	}
}

func (s *Source) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	path := filepath.Clean(event.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracked[path]; ok {
		s.pending[path] = time.Now()
	}
}

func (s *Source) flush(ctx context.Context) {
	now := time.Now()
	s.mu.Lock()
	var paths []string
	for path, last := range s.pending {
		if now.Sub(last) >= s.debounce {
			paths = append(paths, path)
			delete(s.pending, path)
		}
	}
	s.mu.Unlock()

	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			// Replaced files may be briefly missing; the following Create retries.
			s.logger.Debug("filewatch.read_failed", "path", path, "error", err)
			continue
		}
		hash := sha256.Sum256(content)

		s.mu.Lock()
		entry, ok := s.tracked[path]
		changed := ok && entry.hash != hash
		if changed {
			entry.hash = hash
			s.tracked[path] = entry
		}
		s.mu.Unlock()
		if !changed {
			continue
		}

		err = s.broker.Publish(ctx, interfaces.EntityChangeEvent{
			EntityID: entry.entityID,
			Field:    BodyField,
			Text:     string(content),
		})
		if err != nil {
			s.logger.Warn("filewatch.publish_failed", "path", path, "error", err)
			continue
		}
		s.logger.Debug("filewatch.changed", "path", path)
	}
}

// Close stops watching and ends every stream with
// interfaces.ErrSubscriptionLost.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.watcher.Close()
	_ = s.broker.Close()
	return err
}

// Done is closed once the event loop started by Start has exited.
func (s *Source) Done() <-chan struct{} {
	return s.done
}
