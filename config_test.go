package gfm_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	gfm "github.com/goliatone/go-gfm"
)

func TestConfigValidateCacheRequiresBunStorage(t *testing.T) {
	cfg := gfm.DefaultConfig()
	cfg.Cache.Enabled = true

	if err := cfg.Validate(); !errors.Is(err, gfm.ErrCacheRequiresBunStorage) {
		t.Fatalf("expected ErrCacheRequiresBunStorage, got %v", err)
	}
}

func TestConfigValidateMarkdownExtensionUnknown(t *testing.T) {
	cfg := gfm.DefaultConfig()
	cfg.Markdown.Extensions = []string{"emoji"}

	if err := cfg.Validate(); !errors.Is(err, gfm.ErrMarkdownExtensionUnknown) {
		t.Fatalf("expected ErrMarkdownExtensionUnknown, got %v", err)
	}
}

func TestLoadConfigReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gfm.yaml")
	if err := os.WriteFile(path, []byte("references:\n  cross_project: false\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := gfm.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.References.CrossProject {
		t.Fatalf("expected cross project references disabled")
	}
}
