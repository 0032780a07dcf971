package console_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/internal/logging/console"
)

func TestConsoleLoggerWritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2024, 3, 14, 15, 9, 26, 535897000, time.UTC)

	minLevel := console.LevelDebug
	provider := console.NewProvider(console.Options{
		Writer:   &buf,
		TimeFunc: func() time.Time { return now },
		MinLevel: &minLevel,
	})

	logger := provider.GetLogger("gfm.live")
	logger = logging.WithFields(logger, map[string]any{"module": "gfm.live"})
	ctx := logging.ContextWithFields(context.Background(), map[string]any{"request_id": "req-1"})
	logger = logger.WithContext(ctx)

	logger.Warn("live.watch.render_failed", "field", "issue:42:title", "error", errors.New("lookup down"), "sequence", 3)

	got := strings.TrimSpace(buf.String())
	want := `2024-03-14T15:09:26.535897Z WARN live.watch.render_failed error="lookup down" field=issue:42:title logger=gfm.live module=gfm.live request_id=req-1 sequence=3`
	if got != want {
		t.Fatalf("unexpected log entry\nwant: %s\ngot:  %s", want, got)
	}
}

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	minLevel := console.ParseLevel("info")
	provider := console.NewProvider(console.Options{Writer: &buf, MinLevel: &minLevel})

	logger := provider.GetLogger("gfm.test")
	logger.Debug("ignored.debug")
	logger.Info("included.info", "orphan")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected single log line, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "included.info") || !strings.Contains(lines[0], "field_0=orphan") {
		t.Fatalf("unexpected line %s", lines[0])
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]console.Level{
		"trace":   console.LevelTrace,
		"DEBUG":   console.LevelDebug,
		"warning": console.LevelWarn,
		"":        console.LevelInfo,
		"fatal":   console.LevelFatal,
	}
	for input, want := range cases {
		if got := console.ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q): expected %s, got %s", input, want, got)
		}
	}
}
