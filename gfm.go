package gfm

import (
	"context"

	entitiescmd "github.com/goliatone/go-gfm/internal/commands/entities"
	"github.com/goliatone/go-gfm/internal/di"
	"github.com/goliatone/go-gfm/internal/entities"
	"github.com/goliatone/go-gfm/internal/live"
	"github.com/goliatone/go-gfm/internal/markdown"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// EntityService exports the entity store contract.
type EntityService = entities.Service

// ProjectScope exports the project boundary references resolve in.
type ProjectScope = interfaces.ProjectScope

// RenderResult exports the pipeline output.
type RenderResult = markdown.Result

// RenderedFragment exports one rendered version of a watched field.
type RenderedFragment = interfaces.RenderedFragment

// Subscription exports a live field subscription.
type Subscription = live.Subscription

// Module represents the top level reference engine façade.
type Module struct {
	container *di.Container
}

// New constructs a module using the provided configuration and optional DI overrides.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Entities returns the entity store service.
func (m *Module) Entities() EntityService {
	return m.container.EntityService()
}

// RenderText renders raw markdown with references resolved within scope.
func (m *Module) RenderText(ctx context.Context, raw string, scope ProjectScope) (RenderResult, error) {
	return m.container.Pipeline().Render(ctx, raw, scope)
}

// RenderInline renders a single line such as a title without the paragraph
// wrapper.
func (m *Module) RenderInline(ctx context.Context, raw string, scope ProjectScope) (RenderResult, error) {
	return m.container.Pipeline().RenderInline(ctx, raw, scope)
}

// RenderField renders the stored text of an entity field within the
// entity's project.
func (m *Module) RenderField(ctx context.Context, entityID, field string) (RenderResult, error) {
	text, scope, err := m.fieldSource(ctx, entityID, field)
	if err != nil {
		return RenderResult{}, err
	}
	return m.RenderText(ctx, text, scope)
}

// UpdateField stores new text for an entity field through the command
// handler. Watchers of the field receive the re-rendered markup.
func (m *Module) UpdateField(ctx context.Context, entityID, field, text string) error {
	return m.container.UpdateFieldHandler().Execute(ctx, entitiescmd.UpdateFieldCommand{
		EntityID: entityID,
		Field:    field,
		Text:     text,
	})
}

// WatchField renders the current text of an entity field and keeps the
// returned subscription updated as the field changes. A lookup outage
// during the first render still starts the watch with unlinked markup.
func (m *Module) WatchField(ctx context.Context, entityID, field string) (*Subscription, error) {
	scope, err := m.container.EntityService().EntityScope(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return m.container.Watcher().WatchField(ctx, live.WatchRequest{
		EntityID: entityID,
		Field:    field,
		Scope:    scope,
		Load:     true,
	})
}

func (m *Module) fieldSource(ctx context.Context, entityID, field string) (string, ProjectScope, error) {
	svc := m.container.EntityService()
	text, err := svc.FieldText(ctx, entityID, field)
	if err != nil {
		return "", ProjectScope{}, err
	}
	scope, err := svc.EntityScope(ctx, entityID)
	if err != nil {
		return "", ProjectScope{}, err
	}
	return text, scope, nil
}

// Close stops watchers and releases the resources the module opened.
func (m *Module) Close() error {
	if m == nil || m.container == nil {
		return nil
	}
	return m.container.Close()
}
