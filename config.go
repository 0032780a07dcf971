package gfm

import "github.com/goliatone/go-gfm/internal/runtimeconfig"

var (
	ErrReferenceKindUnknown         = runtimeconfig.ErrReferenceKindUnknown
	ErrRouteGroupRequired           = runtimeconfig.ErrRouteGroupRequired
	ErrMarkdownExtensionUnknown     = runtimeconfig.ErrMarkdownExtensionUnknown
	ErrLiveBackoffInvalid           = runtimeconfig.ErrLiveBackoffInvalid
	ErrStorageProviderUnknown       = runtimeconfig.ErrStorageProviderUnknown
	ErrStorageDialectUnknown        = runtimeconfig.ErrStorageDialectUnknown
	ErrStorageDSNRequired           = runtimeconfig.ErrStorageDSNRequired
	ErrCacheRequiresBunStorage      = runtimeconfig.ErrCacheRequiresBunStorage
	ErrNotificationsProviderInvalid = runtimeconfig.ErrNotificationsProviderInvalid
	ErrNATSURLRequired              = runtimeconfig.ErrNATSURLRequired
	ErrLoggingProviderRequired      = runtimeconfig.ErrLoggingProviderRequired
	ErrLoggingProviderUnknown       = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid          = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid         = runtimeconfig.ErrLoggingFormatInvalid
)

type (
	Config              = runtimeconfig.Config
	ReferencesConfig    = runtimeconfig.ReferencesConfig
	MarkdownConfig      = runtimeconfig.MarkdownConfig
	LiveConfig          = runtimeconfig.LiveConfig
	StorageConfig       = runtimeconfig.StorageConfig
	CacheConfig         = runtimeconfig.CacheConfig
	NotificationsConfig = runtimeconfig.NotificationsConfig
	LoggingConfig       = runtimeconfig.LoggingConfig
	Features            = runtimeconfig.Features
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	return runtimeconfig.LoadFile(path)
}
