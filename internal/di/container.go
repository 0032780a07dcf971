package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	entitiescmd "github.com/goliatone/go-gfm/internal/commands/entities"
	"github.com/goliatone/go-gfm/internal/entities"
	"github.com/goliatone/go-gfm/internal/live"
	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/internal/logging/console"
	"github.com/goliatone/go-gfm/internal/logging/gologger"
	"github.com/goliatone/go-gfm/internal/markdown"
	"github.com/goliatone/go-gfm/internal/metrics/prom"
	"github.com/goliatone/go-gfm/internal/references"
	"github.com/goliatone/go-gfm/internal/references/scanner"
	"github.com/goliatone/go-gfm/internal/runtimeconfig"
	"github.com/goliatone/go-gfm/internal/transport/natsbus"
	"github.com/goliatone/go-gfm/pkg/interfaces"
	repocache "github.com/goliatone/go-repository-cache/cache"
	urlkit "github.com/goliatone/go-urlkit"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
)

// Container wires configuration into the reference engine services.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider

	bunDB         *bun.DB
	cacheTTL      time.Duration
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer

	repo      entities.Repository
	lookup    interfaces.LookupService
	entitySvc entities.Service

	natsConn  *nats.Conn
	broker    *live.Broker
	bus       *natsbus.Bus
	source    interfaces.ChangeSource
	publisher interfaces.ChangePublisher

	registerer prometheus.Registerer
	registry   *prometheus.Registry
	metrics    interfaces.ReferenceMetrics

	routeManager *urlkit.RouteManager
	linker       references.Linker
	resolver     *references.Resolver
	renderer     *references.Renderer
	pipeline     *markdown.Pipeline
	watcher      *live.Watcher

	commandRegistry entitiescmd.CommandRegistry
	entityCommands  *entitiescmd.HandlerSet

	closers []func() error
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithLoggerProvider overrides the provider built from Config.Logging.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithBunDB switches the entity store to bun using an existing handle. The
// container does not close it.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithCache overrides the repository cache used around bun repositories.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithRepository overrides the entity repository.
func WithRepository(repo entities.Repository) Option {
	return func(c *Container) {
		c.repo = repo
	}
}

// WithLookup overrides the lookup service used by the resolver.
func WithLookup(lookup interfaces.LookupService) Option {
	return func(c *Container) {
		c.lookup = lookup
	}
}

// WithChangeSource overrides the notification channel. publisher may be nil
// when entity mutations are published elsewhere.
func WithChangeSource(source interfaces.ChangeSource, publisher interfaces.ChangePublisher) Option {
	return func(c *Container) {
		c.source = source
		c.publisher = publisher
	}
}

// WithNATSConn reuses an existing NATS connection for the nats provider.
func WithNATSConn(conn *nats.Conn) Option {
	return func(c *Container) {
		c.natsConn = conn
	}
}

// WithRegisterer registers reference metrics on reg instead of a private
// registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Container) {
		c.registerer = reg
	}
}

// WithCommandRegistry registers the entity command handlers with reg, e.g.
// a go-command dispatcher.
func WithCommandRegistry(reg entitiescmd.CommandRegistry) Option {
	return func(c *Container) {
		c.commandRegistry = reg
	}
}

// WithRouteManager overrides the go-urlkit manager built from
// References.RouteConfig.
func WithRouteManager(manager *urlkit.RouteManager) Option {
	return func(c *Container) {
		c.routeManager = manager
	}
}

// NewContainer creates a container from cfg.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		Config:   cfg,
		cacheTTL: cfg.Cache.DefaultTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	steps := []func() error{
		c.configureLoggerProvider,
		c.configureStorage,
		c.configureNotifications,
		c.configureMetrics,
		c.configureReferences,
		c.configurePipeline,
		c.configureEntities,
		c.configureWatcher,
		c.configureCommands,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			_ = c.Close()
			return nil, err
		}
	}

	logging.ModuleLogger(c.loggerProvider, "gfm").Debug("container.configured",
		"storage", c.storageBackend(),
		"notifications", strings.ToLower(cfg.Notifications.Provider),
		"metrics", c.registry != nil || c.registerer != nil,
	)
	return c, nil
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil || !c.Config.Features.Logger {
		return nil
	}

	logCfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(logCfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     logCfg.Level,
			Format:    logCfg.Format,
			AddSource: logCfg.AddSource,
			Focus:     logCfg.Focus,
		})
		if err != nil {
			return err
		}
		c.loggerProvider = provider
	default:
		opts := console.Options{}
		if level := strings.TrimSpace(logCfg.Level); level != "" {
			parsed := console.ParseLevel(level)
			opts.MinLevel = &parsed
		}
		c.loggerProvider = console.NewProvider(opts)
	}
	return nil
}

func (c *Container) configureCacheDefaults() {
	if !c.Config.Cache.Enabled {
		return
	}

	if c.cacheService == nil {
		cfg := repocache.DefaultConfig()
		if c.cacheTTL > 0 {
			cfg.TTL = c.cacheTTL
		}
		service, err := repocache.NewCacheService(cfg)
		if err == nil {
			c.cacheService = service
		}
	}

	if c.cacheService != nil && c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
}

func (c *Container) configureStorage() error {
	if c.repo != nil {
		return nil
	}

	if c.bunDB == nil && strings.EqualFold(c.Config.Storage.Provider, "bun") {
		db, err := openBunDB(c.Config.Storage)
		if err != nil {
			return err
		}
		c.bunDB = db
		c.closers = append(c.closers, db.Close)
	}

	if c.bunDB == nil {
		c.repo = entities.NewMemoryRepository()
		return nil
	}

	if err := entities.CreateSchema(context.Background(), c.bunDB); err != nil {
		return fmt.Errorf("di: create entity schema: %w", err)
	}
	c.configureCacheDefaults()
	c.repo = entities.NewBunRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
	return nil
}

func (c *Container) storageBackend() string {
	if c.bunDB != nil {
		return "bun"
	}
	return "memory"
}

func (c *Container) configureNotifications() error {
	if c.source != nil {
		return nil
	}

	notifyCfg := c.Config.Notifications
	if !strings.EqualFold(notifyCfg.Provider, "nats") {
		c.broker = live.NewBroker()
		c.source = c.broker
		c.publisher = c.broker
		c.closers = append(c.closers, c.broker.Close)
		return nil
	}

	busOpts := []natsbus.Option{
		natsbus.WithSubjectPrefix(notifyCfg.SubjectPrefix),
		natsbus.WithLogger(logging.ModuleLogger(c.loggerProvider, "gfm.transport.nats")),
	}
	var (
		bus *natsbus.Bus
		err error
	)
	if c.natsConn != nil {
		bus, err = natsbus.New(c.natsConn, busOpts...)
	} else {
		bus, err = natsbus.Connect(notifyCfg.NATSURL, busOpts...)
	}
	if err != nil {
		return err
	}
	c.bus = bus
	c.source = bus
	c.publisher = bus
	c.closers = append(c.closers, bus.Close)
	return nil
}

func (c *Container) configureMetrics() error {
	if !c.Config.Features.Metrics {
		c.metrics = references.NoOpMetrics()
		return nil
	}

	reg := c.registerer
	if reg == nil {
		c.registry = prometheus.NewRegistry()
		reg = c.registry
	}
	metrics, err := prom.New(reg)
	if err != nil {
		return err
	}
	c.metrics = metrics
	return nil
}

func (c *Container) configureReferences() error {
	refCfg := c.Config.References

	if c.routeManager == nil && refCfg.RouteConfig != nil {
		c.routeManager = urlkit.NewRouteManager(refCfg.RouteConfig)
	}
	if c.routeManager != nil {
		c.linker = references.NewURLKitLinker(c.routeManager, strings.TrimSpace(refCfg.RouteGroup))
	} else {
		c.linker = references.PathLinker{BaseURL: refCfg.BaseURL}
	}

	if c.lookup == nil {
		c.lookup = entities.NewLookup(c.repo)
	}

	resolver, err := references.NewResolver(c.lookup,
		references.WithLinker(c.linker),
		references.WithResolverLogger(logging.ReferencesLogger(c.loggerProvider)),
		references.WithMetrics(c.metrics),
		references.WithKinds(c.Config.ReferenceKinds()...),
		references.WithCrossProject(refCfg.CrossProject),
	)
	if err != nil {
		return err
	}
	c.resolver = resolver
	c.renderer = references.NewRenderer(references.WithCSSClass(refCfg.CSSClass))
	return nil
}

func (c *Container) configurePipeline() error {
	pipeline, err := markdown.NewPipeline(c.resolver, c.renderer,
		markdown.WithParseOptions(interfaces.ParseOptions{
			Extensions: c.Config.Markdown.Extensions,
			HardWraps:  c.Config.Markdown.HardWraps,
		}),
		markdown.WithScanner(scanner.New(scanner.Options{
			Kinds:        c.Config.ReferenceKinds(),
			CrossProject: c.Config.References.CrossProject,
		})),
		markdown.WithLogger(logging.MarkdownLogger(c.loggerProvider)),
	)
	if err != nil {
		return err
	}
	c.pipeline = pipeline
	return nil
}

func (c *Container) configureEntities() error {
	opts := []entities.ServiceOption{
		entities.WithServiceLogger(logging.EntitiesLogger(c.loggerProvider)),
	}
	if c.publisher != nil {
		opts = append(opts, entities.WithPublisher(c.publisher))
	}
	c.entitySvc = entities.NewService(c.repo, opts...)
	return nil
}

func (c *Container) configureWatcher() error {
	liveCfg := c.Config.Live
	watcher, err := live.NewWatcher(c.pipeline, c.source,
		live.WithLogger(logging.LiveLogger(c.loggerProvider)),
		live.WithFieldTextSource(c.entitySvc),
		live.WithResubscribeBackoff(liveCfg.ResubscribeInitial, liveCfg.ResubscribeMax, liveCfg.ResubscribeMaxElapsed),
	)
	if err != nil {
		return err
	}
	c.watcher = watcher
	// The watcher stops before the transports it reads from.
	c.closers = append([]func() error{watcher.Close}, c.closers...)
	return nil
}

func (c *Container) configureCommands() error {
	set, err := entitiescmd.RegisterEntityCommands(c.commandRegistry, c.entitySvc, c.loggerProvider)
	if err != nil {
		return fmt.Errorf("di: register entity commands: %w", err)
	}
	c.entityCommands = set
	return nil
}

// LoggerProvider returns the configured provider, nil when logging is off.
func (c *Container) LoggerProvider() interfaces.LoggerProvider {
	return c.loggerProvider
}

// BunDB returns the bun handle backing the entity store, if any.
func (c *Container) BunDB() *bun.DB {
	return c.bunDB
}

// Repository returns the entity repository.
func (c *Container) Repository() entities.Repository {
	return c.repo
}

// EntityService returns the entity mutation service.
func (c *Container) EntityService() entities.Service {
	return c.entitySvc
}

// Lookup returns the lookup service used by the resolver.
func (c *Container) Lookup() interfaces.LookupService {
	return c.lookup
}

// ChangeSource returns the notification channel watchers subscribe to.
func (c *Container) ChangeSource() interfaces.ChangeSource {
	return c.source
}

// Publisher returns the change publisher, nil when none is configured.
func (c *Container) Publisher() interfaces.ChangePublisher {
	return c.publisher
}

// Broker returns the in-process broker when the memory provider is active.
func (c *Container) Broker() *live.Broker {
	return c.broker
}

// Bus returns the NATS bus when the nats provider is active.
func (c *Container) Bus() *natsbus.Bus {
	return c.bus
}

// MetricsRegistry returns the private registry created for reference
// metrics. It is nil when metrics are disabled or WithRegisterer was used.
func (c *Container) MetricsRegistry() *prometheus.Registry {
	return c.registry
}

// Resolver returns the reference resolver.
func (c *Container) Resolver() *references.Resolver {
	return c.resolver
}

// LinkRenderer returns the reference link renderer.
func (c *Container) LinkRenderer() *references.Renderer {
	return c.renderer
}

// Pipeline returns the markdown pipeline.
func (c *Container) Pipeline() *markdown.Pipeline {
	return c.pipeline
}

// Watcher returns the live update watcher.
func (c *Container) Watcher() *live.Watcher {
	return c.watcher
}

// UpdateFieldHandler returns the command handler for field updates.
func (c *Container) UpdateFieldHandler() *entitiescmd.UpdateFieldHandler {
	return c.entityCommands.UpdateField
}

// SetStateHandler returns the command handler for state changes.
func (c *Container) SetStateHandler() *entitiescmd.SetStateHandler {
	return c.entityCommands.SetState
}

// DeleteItemHandler returns the command handler for item deletion.
func (c *Container) DeleteItemHandler() *entitiescmd.DeleteItemHandler {
	return c.entityCommands.DeleteItem
}

// Close stops watchers and releases transports and storage the container
// opened itself.
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	closers := c.closers
	c.closers = nil

	var errs []error
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
