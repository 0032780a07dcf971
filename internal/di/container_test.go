package di_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	entitiescmd "github.com/goliatone/go-gfm/internal/commands/entities"
	"github.com/goliatone/go-gfm/internal/commands/fixtures"
	"github.com/goliatone/go-gfm/internal/di"
	"github.com/goliatone/go-gfm/internal/entities"
	"github.com/goliatone/go-gfm/internal/live"
	"github.com/goliatone/go-gfm/internal/runtimeconfig"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

var acmeWeb = interfaces.ProjectScope{Namespace: "acme", Project: "web"}

func newContainer(t *testing.T, cfg runtimeconfig.Config, opts ...di.Option) *di.Container {
	t.Helper()
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	t.Cleanup(func() { _ = container.Close() })
	return container
}

func seedIssue(t *testing.T, svc entities.Service) *entities.Issue {
	t.Helper()
	ctx := context.Background()
	if _, err := svc.CreateProject(ctx, entities.CreateProjectInput{Namespace: "acme", Path: "web"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	issue, err := svc.CreateIssue(ctx, entities.CreateItemInput{Project: "acme/web", IID: 42, Title: "Crash on save", Description: "fix #42"})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	return issue
}

func TestNewContainerRejectsInvalidConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Storage.Provider = "bolt"
	if _, err := di.NewContainer(cfg); !errors.Is(err, runtimeconfig.ErrStorageProviderUnknown) {
		t.Fatalf("expected ErrStorageProviderUnknown, got %v", err)
	}
}

func TestContainerDefaultsRenderReferences(t *testing.T) {
	container := newContainer(t, runtimeconfig.DefaultConfig())
	if container.BunDB() != nil {
		t.Fatalf("expected memory storage by default")
	}
	if container.Broker() == nil || container.Bus() != nil {
		t.Fatalf("expected in-process broker by default")
	}
	seedIssue(t, container.EntityService())

	result, err := container.Pipeline().Render(context.Background(), "fix #42 and #43", acmeWeb)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	markup := string(result.Markup)
	if !strings.Contains(markup, `href="/acme/web/-/issues/42"`) || !strings.Contains(markup, `class="gfm gfm-issue"`) {
		t.Fatalf("expected issue link, got %s", markup)
	}
	if strings.Contains(markup, `/-/issues/43`) {
		t.Fatalf("unknown issue must stay plain text, got %s", markup)
	}
}

func TestContainerHonoursReferenceConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.References.BaseURL = "https://git.example.com/"
	cfg.References.CSSClass = "ref"
	cfg.References.Kinds = []string{"merge_request"}
	container := newContainer(t, cfg)
	seedIssue(t, container.EntityService())

	result, err := container.Pipeline().Render(context.Background(), "see #42", acmeWeb)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(string(result.Markup), "<a ") {
		t.Fatalf("disabled kind must not link, got %s", result.Markup)
	}

	cfg.References.Kinds = nil
	container = newContainer(t, cfg)
	seedIssue(t, container.EntityService())
	result, err = container.Pipeline().Render(context.Background(), "see #42", acmeWeb)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(string(result.Markup), `href="https://git.example.com/acme/web/-/issues/42"`) ||
		!strings.Contains(string(result.Markup), `class="ref ref-issue"`) {
		t.Fatalf("unexpected markup %s", result.Markup)
	}
}

func TestContainerCommandsDriveLiveUpdates(t *testing.T) {
	container := newContainer(t, runtimeconfig.DefaultConfig())
	issue := seedIssue(t, container.EntityService())
	entityID := entities.EntityID(interfaces.ReferenceIssue, issue.ID)

	sub, err := container.Watcher().WatchField(context.Background(), live.WatchRequest{
		EntityID: entityID,
		Field:    entities.FieldDescription,
		Scope:    acmeWeb,
	})
	if err != nil {
		t.Fatalf("WatchField: %v", err)
	}
	defer sub.Cancel()

	err = container.UpdateFieldHandler().Execute(context.Background(), entitiescmd.UpdateFieldCommand{
		EntityID: entityID,
		Field:    entities.FieldDescription,
		Text:     "fix #42 and update",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	select {
	case fragment := <-sub.Updates():
		if !strings.Contains(string(fragment.Markup), "and update") || !strings.Contains(string(fragment.Markup), `/-/issues/42"`) {
			t.Fatalf("unexpected fragment %s", fragment.Markup)
		}
		if fragment.Sequence == 0 {
			t.Fatalf("expected a sequenced fragment")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for live update")
	}
}

func TestContainerBunStorageWithCache(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Storage.Provider = "bun"
	cfg.Storage.Dialect = "sqlite"
	cfg.Storage.DSN = "file:di-container-bun?mode=memory&cache=shared"
	cfg.Cache.Enabled = true
	container := newContainer(t, cfg)
	if container.BunDB() == nil {
		t.Fatalf("expected bun handle")
	}
	if _, ok := container.Repository().(*entities.BunRepository); !ok {
		t.Fatalf("expected bun repository, got %T", container.Repository())
	}
	seedIssue(t, container.EntityService())

	for range 2 {
		result, err := container.Pipeline().Render(context.Background(), "fix #42", acmeWeb)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if !strings.Contains(string(result.Markup), `title="Crash on save"`) {
			t.Fatalf("unexpected markup %s", result.Markup)
		}
	}
}

func TestContainerMetricsUsePrivateRegistry(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Features.Metrics = true
	first := newContainer(t, cfg)
	second := newContainer(t, cfg)
	if first.MetricsRegistry() == nil || first.MetricsRegistry() == second.MetricsRegistry() {
		t.Fatalf("expected a private registry per container")
	}
	seedIssue(t, first.EntityService())

	if _, err := first.Pipeline().Render(context.Background(), "fix #42", acmeWeb); err != nil {
		t.Fatalf("Render: %v", err)
	}
	count, err := testutil.GatherAndCount(first.MetricsRegistry(), "gfm_references_resolved_total")
	if err != nil {
		t.Fatalf("GatherAndCount: %v", err)
	}
	if count == 0 {
		t.Fatalf("expected resolution metrics to be recorded")
	}
}

type stubLookup struct {
	err error
}

func (s stubLookup) Find(context.Context, interfaces.ProjectScope, interfaces.ReferenceKind, string) (*interfaces.Entity, error) {
	return nil, s.err
}

func TestContainerLookupOverride(t *testing.T) {
	container := newContainer(t, runtimeconfig.DefaultConfig(), di.WithLookup(stubLookup{err: errors.New("offline")}))
	if _, err := container.Pipeline().Render(context.Background(), "fix #42", acmeWeb); !errors.Is(err, interfaces.ErrLookupUnavailable) {
		t.Fatalf("expected ErrLookupUnavailable, got %v", err)
	}
}

func TestContainerCloseStopsWatcher(t *testing.T) {
	container, err := di.NewContainer(runtimeconfig.DefaultConfig())
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	sub, err := container.Watcher().WatchField(context.Background(), live.WatchRequest{EntityID: "issue:1", Field: "title"})
	if err != nil {
		t.Fatalf("WatchField: %v", err)
	}
	if err := container.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("subscription was not stopped")
	}
	if err := container.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestContainerRegistersEntityCommands(t *testing.T) {
	reg := fixtures.NewRecordingRegistry()
	container := newContainer(t, runtimeconfig.DefaultConfig(), di.WithCommandRegistry(reg))

	if len(reg.Handlers) != 3 {
		t.Fatalf("expected three registered handlers, got %d", len(reg.Handlers))
	}
	if reg.Handlers[0] != container.UpdateFieldHandler() {
		t.Fatalf("expected update field handler registered first")
	}
}
