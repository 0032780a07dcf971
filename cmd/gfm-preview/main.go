package main

import (
	"context"
	"flag"
	"fmt"
	"html/template"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goliatone/go-gfm/cmd/gfm-preview/internal/bootstrap"
	"github.com/goliatone/go-gfm/internal/live"
	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/internal/markdown"
	"github.com/goliatone/go-gfm/internal/transport/filewatch"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

var moduleBuilder = bootstrap.BuildModule

type options struct {
	config   string
	fixtures string
	project  string
	file     string
	inline   bool
	watch    bool
	debounce time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "Optional YAML config file")
	flag.StringVar(&opts.fixtures, "fixtures", "", "YAML fixtures seeding projects, users and referenceable records")
	flag.StringVar(&opts.project, "project", "", "Project scope as namespace/project (front matter 'project' wins)")
	flag.StringVar(&opts.file, "file", "", "Markdown file to render")
	flag.BoolVar(&opts.inline, "inline", false, "Render as a single line without the paragraph wrapper")
	flag.BoolVar(&opts.watch, "watch", false, "Re-render whenever the file changes")
	flag.DurationVar(&opts.debounce, "debounce", 100*time.Millisecond, "Quiet period before a file change is rendered")
	flag.Parse()

	if opts.file == "" {
		log.Fatalf("--file is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("gfm-preview: %v", err)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	built, err := moduleBuilder(ctx, bootstrap.Options{
		ConfigPath:   opts.config,
		FixturesPath: opts.fixtures,
	})
	if err != nil {
		return fmt.Errorf("bootstrap module: %w", err)
	}
	defer built.Module.Close()

	renderer := documentRenderer{
		pipeline: built.Module.Container().Pipeline(),
		inline:   opts.inline,
	}
	scope := interfaces.ParseProjectScope(opts.project)

	source, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.file, err)
	}
	result, err := renderer.Render(ctx, string(source), scope)
	if err != nil {
		return fmt.Errorf("render %s: %w", opts.file, err)
	}
	fmt.Fprintln(out, strings.TrimRight(string(result.Markup), "\n"))

	if !opts.watch {
		return nil
	}
	return watch(ctx, opts, built, renderer, scope, result.Markup, out)
}

func watch(ctx context.Context, opts options, built *bootstrap.Module, renderer documentRenderer, scope interfaces.ProjectScope, initial template.HTML, out io.Writer) error {
	provider := built.Module.Container().LoggerProvider()

	files, err := filewatch.New(
		filewatch.WithDebounce(opts.debounce),
		filewatch.WithLogger(logging.ModuleLogger(provider, "gfm.preview.files")),
	)
	if err != nil {
		return err
	}
	defer files.Close()

	entityID, err := files.Track(opts.file)
	if err != nil {
		return err
	}

	watcher, err := live.NewWatcher(renderer, files, live.WithLogger(logging.LiveLogger(provider)))
	if err != nil {
		return err
	}
	defer watcher.Close()

	sub, err := watcher.WatchField(ctx, live.WatchRequest{
		EntityID: entityID,
		Field:    filewatch.BodyField,
		Scope:    scope,
		Initial:  initial,
	})
	if err != nil {
		return err
	}
	files.Start(ctx)
	built.Logger.Info("preview.watch.started", "file", opts.file)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case fragment, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "<!-- %s #%d -->\n%s\n", fragment.SourceFieldID, fragment.Sequence, strings.TrimRight(string(fragment.Markup), "\n"))
		}
	}
}

// documentRenderer strips front matter before rendering and lets the front
// matter 'project' key override the scope.
type documentRenderer struct {
	pipeline *markdown.Pipeline
	inline   bool
}

func (r documentRenderer) Render(ctx context.Context, raw string, scope interfaces.ProjectScope) (markdown.Result, error) {
	doc, err := markdown.ParseDocument([]byte(raw))
	if err != nil {
		return markdown.Result{}, err
	}
	scope = doc.Scope(scope)
	if r.inline {
		return r.pipeline.RenderInline(ctx, string(doc.Body), scope)
	}
	return r.pipeline.Render(ctx, string(doc.Body), scope)
}
