package runtimeconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	urlkit "github.com/goliatone/go-urlkit"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-gfm/internal/markdown"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

var (
	ErrReferenceKindUnknown       = errors.New("gfm config: unknown reference kind")
	ErrRouteGroupRequired         = errors.New("gfm config: route group is required when route config is set")
	ErrMarkdownExtensionUnknown   = errors.New("gfm config: unknown markdown extension")
	ErrLiveBackoffInvalid         = errors.New("gfm config: live resubscribe intervals must be positive and ordered")
	ErrStorageProviderUnknown     = errors.New("gfm config: storage provider is invalid")
	ErrStorageDialectUnknown      = errors.New("gfm config: storage dialect is invalid")
	ErrStorageDSNRequired         = errors.New("gfm config: storage dsn is required for the bun provider")
	ErrCacheRequiresBunStorage    = errors.New("gfm config: repository cache requires the bun storage provider")
	ErrNotificationsProviderInvalid = errors.New("gfm config: notifications provider is invalid")
	ErrNATSURLRequired            = errors.New("gfm config: nats url is required for the nats provider")
	ErrLoggingProviderRequired    = errors.New("gfm config: logging provider is required when logging feature is enabled")
	ErrLoggingProviderUnknown     = errors.New("gfm config: logging provider is invalid")
	ErrLoggingLevelInvalid        = errors.New("gfm config: logging level is invalid")
	ErrLoggingFormatInvalid       = errors.New("gfm config: logging format is invalid")
)

// Config aggregates the engine settings. It decodes from YAML with LoadFile.
type Config struct {
	References    ReferencesConfig    `yaml:"references"`
	Markdown      MarkdownConfig      `yaml:"markdown"`
	Live          LiveConfig          `yaml:"live"`
	Storage       StorageConfig       `yaml:"storage"`
	Cache         CacheConfig         `yaml:"cache"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
	Features      Features            `yaml:"features"`
}

// ReferencesConfig controls scanning, resolution and link output.
type ReferencesConfig struct {
	// Kinds lists enabled reference kinds. Empty enables all.
	Kinds        []string `yaml:"kinds"`
	CrossProject bool     `yaml:"cross_project"`
	BaseURL      string   `yaml:"base_url"`
	CSSClass     string   `yaml:"css_class"`
	// RouteConfig switches link targets to a go-urlkit route group.
	RouteConfig *urlkit.Config `yaml:"route_config,omitempty"`
	RouteGroup  string         `yaml:"route_group"`
}

// MarkdownConfig selects goldmark extensions.
type MarkdownConfig struct {
	Extensions []string `yaml:"extensions"`
	HardWraps  bool     `yaml:"hard_wraps"`
}

// LiveConfig tunes resubscription after a lost change stream.
type LiveConfig struct {
	ResubscribeInitial    time.Duration `yaml:"resubscribe_initial"`
	ResubscribeMax        time.Duration `yaml:"resubscribe_max"`
	ResubscribeMaxElapsed time.Duration `yaml:"resubscribe_max_elapsed"`
}

// StorageConfig picks the entity store.
type StorageConfig struct {
	Provider string `yaml:"provider"`
	Dialect  string `yaml:"dialect"`
	DSN      string `yaml:"dsn"`
}

// CacheConfig captures cache behaviour toggles.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// NotificationsConfig picks the change event transport.
type NotificationsConfig struct {
	Provider      string `yaml:"provider"`
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LoggingConfig captures provider-specific options for runtime logging.
type LoggingConfig struct {
	Provider  string   `yaml:"provider"`
	Level     string   `yaml:"level"`
	Format    string   `yaml:"format"`
	AddSource bool     `yaml:"add_source"`
	Focus     []string `yaml:"focus"`
}

// Features toggles optional subsystems.
type Features struct {
	Logger  bool `yaml:"logger"`
	Metrics bool `yaml:"metrics"`
}

// DefaultConfig returns an in-memory setup with every reference kind
// enabled.
func DefaultConfig() Config {
	return Config{
		References: ReferencesConfig{
			CrossProject: true,
			CSSClass:     "gfm",
		},
		Markdown: MarkdownConfig{
			Extensions: []string{"gfm"},
		},
		Live: LiveConfig{
			ResubscribeInitial: 250 * time.Millisecond,
			ResubscribeMax:     30 * time.Second,
		},
		Storage: StorageConfig{
			Provider: "memory",
			Dialect:  "sqlite",
		},
		Cache: CacheConfig{
			DefaultTTL: time.Minute,
		},
		Notifications: NotificationsConfig{
			Provider:      "memory",
			SubjectPrefix: "gfm.entities",
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
	}
}

// LoadFile reads a YAML document over DefaultConfig and validates it.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("gfm config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over DefaultConfig and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("gfm config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReferenceKinds converts References.Kinds. Empty means every kind.
func (cfg Config) ReferenceKinds() []interfaces.ReferenceKind {
	if len(cfg.References.Kinds) == 0 {
		return interfaces.ReferenceKinds()
	}
	kinds := make([]interfaces.ReferenceKind, 0, len(cfg.References.Kinds))
	for _, name := range cfg.References.Kinds {
		kinds = append(kinds, interfaces.ReferenceKind(normalize(name)))
	}
	return kinds
}

// Validate reports the first inconsistent setting.
func (cfg Config) Validate() error {
	for _, kind := range cfg.ReferenceKinds() {
		if !kind.Valid() {
			return fmt.Errorf("%w: %s", ErrReferenceKindUnknown, kind)
		}
	}
	if cfg.References.RouteConfig != nil && strings.TrimSpace(cfg.References.RouteGroup) == "" {
		return ErrRouteGroupRequired
	}
	if name := markdown.UnknownExtension(cfg.Markdown.Extensions); name != "" {
		return fmt.Errorf("%w: %s", ErrMarkdownExtensionUnknown, name)
	}
	live := cfg.Live
	if live.ResubscribeInitial <= 0 || live.ResubscribeMax < live.ResubscribeInitial || live.ResubscribeMaxElapsed < 0 {
		return ErrLiveBackoffInvalid
	}

	switch normalize(cfg.Storage.Provider) {
	case "memory":
		if cfg.Cache.Enabled {
			return ErrCacheRequiresBunStorage
		}
	case "bun":
		switch normalize(cfg.Storage.Dialect) {
		case "sqlite", "postgres":
		default:
			return fmt.Errorf("%w: %s", ErrStorageDialectUnknown, cfg.Storage.Dialect)
		}
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return ErrStorageDSNRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrStorageProviderUnknown, cfg.Storage.Provider)
	}

	switch normalize(cfg.Notifications.Provider) {
	case "memory":
	case "nats":
		if strings.TrimSpace(cfg.Notifications.NATSURL) == "" {
			return ErrNATSURLRequired
		}
	default:
		return fmt.Errorf("%w: %s", ErrNotificationsProviderInvalid, cfg.Notifications.Provider)
	}

	if cfg.Features.Logger {
		provider := normalize(cfg.Logging.Provider)
		if provider == "" {
			return ErrLoggingProviderRequired
		}
		if !isSupportedProvider(provider) {
			return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, provider)
		}
		if level := strings.TrimSpace(cfg.Logging.Level); level != "" && !isSupportedLevel(level) {
			return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, level)
		}
		if provider == "gologger" {
			if format := strings.TrimSpace(cfg.Logging.Format); format != "" && !isSupportedFormat(format) {
				return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, format)
			}
		}
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func isSupportedProvider(provider string) bool {
	switch provider {
	case "console", "gologger":
		return true
	default:
		return false
	}
}

func isSupportedLevel(level string) bool {
	switch normalize(level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
		return true
	default:
		return false
	}
}

func isSupportedFormat(format string) bool {
	switch normalize(format) {
	case "json", "console", "pretty":
		return true
	default:
		return false
	}
}
