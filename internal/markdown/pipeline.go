package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/goliatone/go-gfm/internal/logging"
	"github.com/goliatone/go-gfm/internal/references/scanner"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// Stage names the pipeline states in order.
type Stage int

const (
	StageRaw Stage = iota
	StageSanitized
	StageFormatted
	StageLinked
	StageFinal
)

func (s Stage) String() string {
	switch s {
	case StageRaw:
		return "raw"
	case StageSanitized:
		return "sanitized"
	case StageFormatted:
		return "formatted"
	case StageLinked:
		return "linked"
	case StageFinal:
		return "final"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Result is the output of one render.
type Result struct {
	Markup template.HTML
	// Stage is the last stage whose output Markup reflects.
	Stage      Stage
	References []interfaces.ResolvedReference
	// Degraded is set when a stage failed and an earlier stage's output was emitted.
	Degraded bool
}

// Pipeline renders raw text through RAW, SANITIZED, FORMATTED, LINKED and
// FINAL. It holds no per-call state and is safe for concurrent use.
type Pipeline struct {
	resolver ReferenceResolver
	scanner  TokenScanner
	parse    interfaces.ParseOptions
	logger   interfaces.Logger
	engine   goldmark.Markdown
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithParseOptions sets the goldmark extensions and wrapping behaviour.
func WithParseOptions(opts interfaces.ParseOptions) Option {
	return func(p *Pipeline) {
		p.parse = opts
	}
}

// WithScanner overrides the token scanner.
func WithScanner(s TokenScanner) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.scanner = s
		}
	}
}

// WithLogger attaches a logger used for degradation diagnostics.
func WithLogger(logger interfaces.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline wires a resolver and link renderer into a goldmark engine.
func NewPipeline(resolver ReferenceResolver, links LinkRenderer, opts ...Option) (*Pipeline, error) {
	if resolver == nil || links == nil {
		return nil, ErrPipelineDependencies
	}
	p := &Pipeline{
		resolver: resolver,
		scanner:  scanner.New(scanner.Options{CrossProject: true}),
		logger:   logging.NoOp(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.engine = newEngine(p.parse, util.Prioritized(&referenceNodeRenderer{links: links}, 100))
	return p, nil
}

// Render produces final markup for raw within scope.
//
// A failure to format degrades to escaped sanitized text. A failure while
// linking degrades to formatted output without links. When the lookup
// service is unavailable the formatted output is returned together with an
// error matching interfaces.ErrLookupUnavailable.
func (p *Pipeline) Render(ctx context.Context, raw string, scope interfaces.ProjectScope) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Stage: StageRaw}, err
	}
	logger := logging.WithFields(p.logger, map[string]any{
		"operation": "render",
		"project":   scope.FullPath(),
	})

	sanitized := Sanitize(raw)
	source := []byte(sanitized)

	doc, err := p.format(source)
	if err != nil {
		logger.Warn("markdown.pipeline.format_failed", "error", err)
		return sanitizedResult(sanitized), nil
	}

	refs, err := p.link(ctx, doc, source, scope)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{Stage: StageFormatted}, err
		}
		result := p.formattedResult(source, sanitized, logger)
		if errors.Is(err, interfaces.ErrLookupUnavailable) {
			logger.Error("markdown.pipeline.lookup_unavailable", "error", err)
			return result, err
		}
		logger.Warn("markdown.pipeline.link_failed", "error", err)
		return result, nil
	}

	markup, err := p.render(source, doc)
	if err != nil {
		logger.Warn("markdown.pipeline.render_failed", "error", err)
		return p.formattedResult(source, sanitized, logger), nil
	}
	return Result{Markup: template.HTML(markup), Stage: StageFinal, References: refs}, nil
}

// RenderInline renders single-line text such as titles, dropping the
// paragraph wrapper when the output is one paragraph. Leading heading, list,
// quote, fence and rule markers are escaped so the text stays inline.
func (p *Pipeline) RenderInline(ctx context.Context, raw string, scope interfaces.ProjectScope) (Result, error) {
	raw = escapeBlockMarker(strings.Join(strings.Fields(raw), " "))
	result, err := p.Render(ctx, raw, scope)
	result.Markup = template.HTML(unwrapParagraph(string(result.Markup)))
	return result, err
}

func (p *Pipeline) format(source []byte) (doc ast.Node, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedInput, rec)
		}
	}()
	doc = p.engine.Parser().Parse(text.NewReader(source))
	if doc == nil {
		return nil, ErrMalformedInput
	}
	return doc, nil
}

func (p *Pipeline) link(ctx context.Context, doc ast.Node, source []byte, scope interfaces.ProjectScope) (refs []interfaces.ResolvedReference, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			refs, err = nil, fmt.Errorf("%w: %v", ErrLinkingFailed, rec)
		}
	}()
	return linkDocument(ctx, doc, source, scope, p.scanner, p.resolver)
}

func (p *Pipeline) render(source []byte, doc ast.Node) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrRenderFailed, rec)
		}
	}()
	var buf bytes.Buffer
	if err := p.engine.Renderer().Render(&buf, source, doc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return buf.String(), nil
}

// formattedResult renders source without reference linking, falling back to
// sanitized text when that fails too.
func (p *Pipeline) formattedResult(source []byte, sanitized string, logger interfaces.Logger) Result {
	doc, err := p.format(source)
	if err == nil {
		var markup string
		if markup, err = p.render(source, doc); err == nil {
			return Result{Markup: template.HTML(markup), Stage: StageFormatted, Degraded: true}
		}
	}
	logger.Warn("markdown.pipeline.format_fallback_failed", "error", err)
	return sanitizedResult(sanitized)
}

func sanitizedResult(sanitized string) Result {
	escaped := util.EscapeHTML([]byte(sanitized))
	return Result{
		Markup:   template.HTML("<p>" + string(escaped) + "</p>\n"),
		Stage:    StageSanitized,
		Degraded: true,
	}
}

var (
	orderedMarker = regexp.MustCompile(`^[0-9]{1,9}[.)](?: |$)`)
	blockMarker   = regexp.MustCompile("^(?:#{1,6}(?: |$)|[-+*](?: |$)|>|```|~~~|[-*_](?: ?[-*_]){2,} ?$)")
)

// escapeBlockMarker backslash-escapes a marker that would open a block at
// the start of line.
func escapeBlockMarker(line string) string {
	if orderedMarker.MatchString(line) {
		digits := strings.IndexAny(line, ".)")
		return line[:digits] + `\` + line[digits:]
	}
	if blockMarker.MatchString(line) {
		return `\` + line
	}
	return line
}

func unwrapParagraph(markup string) string {
	inner, ok := strings.CutPrefix(markup, "<p>")
	if !ok {
		return markup
	}
	inner, ok = strings.CutSuffix(inner, "</p>\n")
	if !ok || strings.Contains(inner, "<p>") {
		return markup
	}
	return inner
}
