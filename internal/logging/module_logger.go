package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

const (
	rootModule       = "gfm"
	referencesModule = "gfm.references"
	markdownModule   = "gfm.markdown"
	liveModule       = "gfm.live"
	entitiesModule   = "gfm.entities"
)

const (
	fieldProject  = "project"
	fieldEntityID = "entity_id"
	fieldField    = "field"
)

// ModuleLogger returns a logger scoped to module, falling back to a no-op
// logger when provider is nil. The module name is attached as a field.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// ReferencesLogger returns the logger reserved for reference resolution.
func ReferencesLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, referencesModule)
}

// MarkdownLogger returns the logger reserved for the render pipeline.
func MarkdownLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, markdownModule)
}

// LiveLogger returns the logger reserved for live update watchers.
func LiveLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, liveModule)
}

// EntitiesLogger returns the logger reserved for the entity store.
func EntitiesLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, entitiesModule)
}

// WithFieldContext annotates logger with the project scope and watched
// field. Empty values are skipped.
func WithFieldContext(logger interfaces.Logger, project, entityID, field string) interfaces.Logger {
	fields := map[string]any{}
	if trimmed := strings.TrimSpace(project); trimmed != "" {
		fields[fieldProject] = trimmed
	}
	if trimmed := strings.TrimSpace(entityID); trimmed != "" {
		fields[fieldEntityID] = trimmed
	}
	if trimmed := strings.TrimSpace(field); trimmed != "" {
		fields[fieldField] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
