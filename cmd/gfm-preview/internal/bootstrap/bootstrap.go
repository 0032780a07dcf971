package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"

	gfm "github.com/goliatone/go-gfm"
	"github.com/goliatone/go-gfm/internal/di"
	"github.com/goliatone/go-gfm/internal/entities"
	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// Options captures configuration for preview CLI bootstraps.
type Options struct {
	ConfigPath     string
	FixturesPath   string
	LoggerProvider interfaces.LoggerProvider
}

// Module wraps the gfm module and the CLI logger.
type Module struct {
	Module *gfm.Module
	Logger interfaces.Logger
}

// BuildModule constructs a module from an optional config file and seeds
// the entity store with fixtures.
func BuildModule(ctx context.Context, opts Options) (*Module, error) {
	cfg := gfm.DefaultConfig()
	if path := strings.TrimSpace(opts.ConfigPath); path != "" {
		loaded, err := gfm.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	diOpts := []di.Option{}
	if opts.LoggerProvider != nil {
		diOpts = append(diOpts, di.WithLoggerProvider(opts.LoggerProvider))
	}

	module, err := gfm.New(cfg, diOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise gfm module: %w", err)
	}

	logger := logging.ModuleLogger(module.Container().LoggerProvider(), "gfm.preview")

	if path := strings.TrimSpace(opts.FixturesPath); path != "" {
		if err := applyFixtures(ctx, module.Entities(), path); err != nil {
			_ = module.Close()
			return nil, err
		}
		logger.Debug("preview.fixtures.applied", "path", path)
	}

	return &Module{Module: module, Logger: logger}, nil
}

func applyFixtures(ctx context.Context, svc entities.Service, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixtures: %w", err)
	}
	fixtures, err := entities.ParseFixtures(data)
	if err != nil {
		return err
	}
	if err := fixtures.Apply(ctx, svc); err != nil {
		return fmt.Errorf("apply fixtures: %w", err)
	}
	return nil
}
