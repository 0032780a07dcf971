package natsbus_test

import (
	"context"
	"errors"
	"html/template"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-gfm/internal/live"
	"github.com/goliatone/go-gfm/internal/markdown"
	"github.com/goliatone/go-gfm/internal/transport/natsbus"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

const waitTimeout = 2 * time.Second

func runServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(5*time.Second), "nats server not ready")
	t.Cleanup(ns.Shutdown)
	return ns
}

func newBus(t *testing.T, ns *server.Server, opts ...natsbus.Option) *natsbus.Bus {
	t.Helper()
	bus, err := natsbus.Connect(ns.ClientURL(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func receive(t *testing.T, stream interfaces.ChangeStream) interfaces.EntityChangeEvent {
	t.Helper()
	select {
	case event, ok := <-stream.Events():
		require.True(t, ok, "stream closed")
		return event
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for event")
	}
	return interfaces.EntityChangeEvent{}
}

func TestBusDeliversFieldEvents(t *testing.T) {
	ns := runServer(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	publisher := newBus(t, ns, natsbus.WithClock(func() time.Time { return now }))
	subscriber := newBus(t, ns)
	ctx := context.Background()

	stream, err := subscriber.Subscribe(ctx, "issue:1", "description")
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, publisher.Publish(ctx, interfaces.EntityChangeEvent{EntityID: "issue:1", Field: "title", Text: "other field"}))
	require.NoError(t, publisher.Publish(ctx, interfaces.EntityChangeEvent{EntityID: "issue:1", Field: "description", Text: "fix #42"}))
	require.NoError(t, publisher.Publish(ctx, interfaces.EntityChangeEvent{EntityID: "issue:1", Field: "description", Text: "fix #42 and update"}))

	first := receive(t, stream)
	assert.Equal(t, "fix #42", first.Text)
	assert.Equal(t, uint64(1), first.Sequence)
	assert.True(t, first.OccurredAt.Equal(now))

	second := receive(t, stream)
	assert.Equal(t, "fix #42 and update", second.Text)
	assert.Equal(t, uint64(2), second.Sequence)
}

func TestBusSubjectEscapesTokens(t *testing.T) {
	ns := runServer(t)
	bus := newBus(t, ns, natsbus.WithSubjectPrefix("app.changes."))
	assert.Equal(t, "app.changes.issue:a_b.title", bus.Subject("issue:a.b", "title"))
}

func TestBusValidatesRequests(t *testing.T) {
	ns := runServer(t)
	bus := newBus(t, ns)
	ctx := context.Background()

	_, err := bus.Subscribe(ctx, "", "title")
	assert.ErrorIs(t, err, natsbus.ErrInvalidRequest)
	assert.Error(t, bus.Publish(ctx, interfaces.EntityChangeEvent{Field: "title"}))

	_, err = natsbus.New(nil)
	assert.ErrorIs(t, err, natsbus.ErrConnectionRequired)
}

func TestBusEndsStreamsWhenConnectionCloses(t *testing.T) {
	ns := runServer(t)
	conn, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	bus, err := natsbus.New(conn)
	require.NoError(t, err)

	stream, err := bus.Subscribe(context.Background(), "issue:1", "title")
	require.NoError(t, err)

	conn.Close()

	select {
	case _, ok := <-stream.Events():
		require.False(t, ok, "expected closed stream")
	case <-time.After(waitTimeout):
		t.Fatalf("stream was not closed")
	}
	assert.True(t, errors.Is(stream.Err(), interfaces.ErrSubscriptionLost), "got %v", stream.Err())
}

func TestBusStreamClosesWithContext(t *testing.T) {
	ns := runServer(t)
	bus := newBus(t, ns)
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := bus.Subscribe(ctx, "issue:1", "title")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-stream.Events():
		require.False(t, ok)
	case <-time.After(waitTimeout):
		t.Fatalf("stream was not closed")
	}
	assert.NoError(t, stream.Err())
}

func TestBusCloseRejectsPublish(t *testing.T) {
	ns := runServer(t)
	bus := newBus(t, ns)
	require.NoError(t, bus.Close())
	err := bus.Publish(context.Background(), interfaces.EntityChangeEvent{EntityID: "issue:1", Field: "title"})
	assert.ErrorIs(t, err, natsbus.ErrBusClosed)
}

type paragraphRenderer struct{}

func (paragraphRenderer) Render(_ context.Context, raw string, _ interfaces.ProjectScope) (markdown.Result, error) {
	return markdown.Result{Markup: template.HTML("<p>" + raw + "</p>\n"), Stage: markdown.StageFinal}, nil
}

func TestWatcherAppliesEventsFromSeveralPublishers(t *testing.T) {
	ns := runServer(t)
	first := newBus(t, ns)
	second := newBus(t, ns)
	subscriber := newBus(t, ns)
	require.NotEqual(t, first.Origin(), second.Origin())
	ctx := context.Background()

	watcher, err := live.NewWatcher(paragraphRenderer{}, subscriber)
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })
	sub, err := watcher.WatchField(ctx, live.WatchRequest{EntityID: "issue:1", Field: "title"})
	require.NoError(t, err)

	for _, text := range []string{"v1", "v2", "v3"} {
		require.NoError(t, first.Publish(ctx, interfaces.EntityChangeEvent{EntityID: "issue:1", Field: "title", Text: text}))
	}
	require.Eventually(t, func() bool { return sub.Current().Markup == "<p>v3</p>\n" }, waitTimeout, 5*time.Millisecond)

	require.NoError(t, second.Publish(ctx, interfaces.EntityChangeEvent{EntityID: "issue:1", Field: "title", Text: "v4 newest"}))
	require.Eventually(t, func() bool { return sub.Current().Markup == "<p>v4 newest</p>\n" }, waitTimeout, 5*time.Millisecond)
}

func TestBusStampsOrigin(t *testing.T) {
	ns := runServer(t)
	publisher := newBus(t, ns)
	subscriber := newBus(t, ns)
	ctx := context.Background()

	stream, err := subscriber.Subscribe(ctx, "issue:1", "title")
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, publisher.Publish(ctx, interfaces.EntityChangeEvent{EntityID: "issue:1", Field: "title", Text: "mine"}))
	require.NoError(t, publisher.Publish(ctx, interfaces.EntityChangeEvent{EntityID: "issue:1", Field: "title", Text: "relayed", Origin: "elsewhere", Sequence: 9}))

	mine := receive(t, stream)
	assert.Equal(t, publisher.Origin(), mine.Origin)
	assert.Equal(t, uint64(1), mine.Sequence)

	relayed := receive(t, stream)
	assert.Equal(t, "elsewhere", relayed.Origin)
	assert.Equal(t, uint64(9), relayed.Sequence)
}
