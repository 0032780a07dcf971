package filewatch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-gfm/internal/transport/filewatch"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

func newSource(t *testing.T) *filewatch.Source {
	t.Helper()
	source, err := filewatch.New(filewatch.WithDebounce(10 * time.Millisecond))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	source.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = source.Close()
	})
	return source
}

func TestSourcePublishesFileContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("fix #42"), 0o644))

	source := newSource(t)
	entityID, err := source.Track(path)
	require.NoError(t, err)
	assert.Equal(t, filewatch.EntityID(path), entityID)

	stream, err := source.Subscribe(context.Background(), entityID, filewatch.BodyField)
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, os.WriteFile(path, []byte("fix #42 and update"), 0o644))

	select {
	case event := <-stream.Events():
		assert.Equal(t, "fix #42 and update", event.Text)
		assert.Equal(t, filewatch.BodyField, event.Field)
		assert.Equal(t, uint64(1), event.Sequence)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for file change")
	}
}

func TestSourceIgnoresUntrackedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracked.md")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	source := newSource(t)
	entityID, err := source.Track(path)
	require.NoError(t, err)
	stream, err := source.Subscribe(context.Background(), entityID, filewatch.BodyField)
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.md"), []byte("b"), 0o644))

	select {
	case event := <-stream.Events():
		t.Fatalf("unexpected event %+v", event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSourceTrackRequiresExistingFile(t *testing.T) {
	source := newSource(t)
	_, err := source.Track(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
	assert.ErrorIs(t, source.Untrack("missing.md"), filewatch.ErrNotTracked)
}

func TestSourceCloseEndsStreams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	source, err := filewatch.New()
	require.NoError(t, err)
	entityID, err := source.Track(path)
	require.NoError(t, err)
	stream, err := source.Subscribe(context.Background(), entityID, filewatch.BodyField)
	require.NoError(t, err)

	require.NoError(t, source.Close())
	_, ok := <-stream.Events()
	assert.False(t, ok)
	assert.True(t, errors.Is(stream.Err(), interfaces.ErrSubscriptionLost))

	_, err = source.Track(path)
	assert.ErrorIs(t, err, filewatch.ErrSourceClosed)
}
