package references

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// Resolver turns scanned tokens into ResolvedReferences. It is read-only:
// lookups never create or mutate entities, so one Resolver may be shared by
// concurrent renders.
type Resolver struct {
	lookup       interfaces.LookupService
	linker       Linker
	sanitizer    *Sanitizer
	logger       interfaces.Logger
	metrics      interfaces.ReferenceMetrics
	kinds        map[interfaces.ReferenceKind]bool
	crossProject bool
	now          func() time.Time
}

// ResolverOption customises resolver behaviour.
type ResolverOption func(*Resolver)

// WithLinker overrides the default PathLinker.
func WithLinker(linker Linker) ResolverOption {
	return func(r *Resolver) {
		if linker != nil {
			r.linker = linker
		}
	}
}

// WithResolverLogger attaches a logger for lookup diagnostics.
func WithResolverLogger(logger interfaces.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics wires the metrics recorder used for telemetry.
func WithMetrics(metrics interfaces.ReferenceMetrics) ResolverOption {
	return func(r *Resolver) {
		if metrics != nil {
			r.metrics = metrics
		}
	}
}

// WithKinds limits resolution to the listed kinds. Other kinds resolve as
// plain text.
func WithKinds(kinds ...interfaces.ReferenceKind) ResolverOption {
	return func(r *Resolver) {
		if len(kinds) == 0 {
			return
		}
		r.kinds = make(map[interfaces.ReferenceKind]bool, len(kinds))
		for _, kind := range kinds {
			r.kinds[kind] = true
		}
	}
}

// WithCrossProject toggles resolution of qualified references.
func WithCrossProject(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.crossProject = enabled
	}
}

// WithClock overrides the clock used for duration metrics.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResolver constructs a resolver backed by the lookup service.
func NewResolver(lookup interfaces.LookupService, opts ...ResolverOption) (*Resolver, error) {
	if lookup == nil {
		return nil, ErrLookupRequired
	}
	r := &Resolver{
		lookup:       lookup,
		linker:       PathLinker{},
		sanitizer:    NewSanitizer(),
		logger:       logging.NoOp(),
		metrics:      NoOpMetrics(),
		crossProject: true,
		now:          time.Now,
	}
	WithKinds(interfaces.ReferenceKinds()...)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve performs a single lookup for token. Unknown entities yield an
// unresolvable reference and a nil error; lookup failures return an error
// matching interfaces.ErrLookupUnavailable.
func (r *Resolver) Resolve(ctx context.Context, token interfaces.ReferenceToken, scope interfaces.ProjectScope) (interfaces.ResolvedReference, error) {
	if err := ctx.Err(); err != nil {
		return interfaces.Unresolved(token), err
	}
	target, key, ok := r.plan(token, scope)
	if !ok {
		r.metrics.IncrementResolved(token.Kind, false)
		return interfaces.Unresolved(token), nil
	}

	started := r.now()
	entity, err := r.lookup.Find(ctx, target, token.Kind, key)
	r.metrics.ObserveResolveDuration(token.Kind, r.now().Sub(started))

	logger := logging.WithFields(r.logger, map[string]any{
		"kind":    string(token.Kind),
		"project": target.FullPath(),
	})

	switch {
	case errors.Is(err, interfaces.ErrEntityNotFound):
		logger.Debug("references.resolve.not_found", "reference", token.Raw)
		r.metrics.IncrementResolved(token.Kind, false)
		return interfaces.Unresolved(token), nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return interfaces.Unresolved(token), err
	case err != nil:
		logger.Warn("references.resolve.lookup_failed", "reference", token.Raw, "error", err)
		r.metrics.IncrementLookupError(token.Kind)
		return interfaces.Unresolved(token), lookupUnavailable(token, err)
	case entity == nil || !r.withinScope(entity, token.Kind, target):
		r.metrics.IncrementResolved(token.Kind, false)
		return interfaces.Unresolved(token), nil
	}

	link, err := r.linker.Link(entity)
	if err == nil {
		err = r.sanitizer.ValidateURL(link)
	}
	if err != nil {
		logger.Warn("references.resolve.link_rejected", "reference", token.Raw, "error", err)
		r.metrics.IncrementResolved(token.Kind, false)
		return interfaces.Unresolved(token), nil
	}

	r.metrics.IncrementResolved(token.Kind, true)
	return interfaces.ResolvedReference{
		Token:          token,
		TargetEntityID: entity.ID,
		DisplayText:    token.Raw,
		LinkTarget:     link,
		Title:          entity.Title,
		ProjectPath:    entity.ProjectPath,
		Resolvable:     true,
	}, nil
}

// ResolveAll resolves tokens in order, performing one lookup per distinct
// (project, kind, key) triple. The first lookup failure aborts the batch.
func (r *Resolver) ResolveAll(ctx context.Context, tokens []interfaces.ReferenceToken, scope interfaces.ProjectScope) ([]interfaces.ResolvedReference, error) {
	out := make([]interfaces.ResolvedReference, len(tokens))
	seen := make(map[string]interfaces.ResolvedReference, len(tokens))

	for _, kind := range interfaces.ReferenceKinds() {
		for i, token := range tokens {
			if token.Kind != kind {
				continue
			}
			cacheKey := r.dedupeKey(token, scope)
			if cached, ok := seen[cacheKey]; ok {
				cached.Token = token
				cached.DisplayText = token.Raw
				out[i] = cached
				continue
			}
			resolved, err := r.Resolve(ctx, token, scope)
			if err != nil {
				return nil, err
			}
			seen[cacheKey] = resolved
			out[i] = resolved
		}
	}
	for i, token := range tokens {
		if !token.Kind.Valid() {
			out[i] = interfaces.Unresolved(token)
		}
	}
	return out, nil
}

// plan decides the scope and key used for the lookup. It reports false when
// the token must stay plain text without a lookup.
func (r *Resolver) plan(token interfaces.ReferenceToken, scope interfaces.ProjectScope) (interfaces.ProjectScope, string, bool) {
	if !r.kinds[token.Kind] || strings.TrimSpace(token.Key) == "" {
		return scope, "", false
	}
	if token.Qualified() && !r.crossProject {
		return scope, "", false
	}

	target := scope
	if token.Qualified() {
		qualifier := interfaces.ParseProjectScope(token.Project)
		if qualifier.Namespace == "" {
			qualifier.Namespace = scope.Namespace
		}
		target = qualifier
	}

	switch token.Kind {
	case interfaces.ReferenceIssue, interfaces.ReferenceMergeRequest, interfaces.ReferenceMilestone:
		if target.Project == "" {
			return target, "", false
		}
		key := strings.TrimLeft(token.Key, "0")
		return target, key, key != ""
	case interfaces.ReferenceCommit:
		if target.Project == "" {
			return target, "", false
		}
		return target, strings.ToLower(token.Key), true
	case interfaces.ReferenceUser:
		return interfaces.ProjectScope{}, token.Key, true
	default:
		return target, "", false
	}
}

// withinScope rejects entities a lookup returned from outside the target
// project. Users are instance-wide.
func (r *Resolver) withinScope(entity *interfaces.Entity, kind interfaces.ReferenceKind, target interfaces.ProjectScope) bool {
	if entity.Kind != kind {
		return false
	}
	if kind == interfaces.ReferenceUser {
		return true
	}
	return strings.EqualFold(entity.ProjectPath, target.FullPath())
}

func (r *Resolver) dedupeKey(token interfaces.ReferenceToken, scope interfaces.ProjectScope) string {
	target, key, _ := r.plan(token, scope)
	return string(token.Kind) + "|" + strings.ToLower(target.FullPath()) + "|" + strings.ToLower(key)
}
