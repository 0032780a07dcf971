package markdown

import (
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// newEngine builds the goldmark instance for opts. Raw HTML in the source is
// never passed through; goldmark replaces it with a comment. Unknown
// extension names are ignored.
func newEngine(opts interfaces.ParseOptions, nodeRenderers ...util.PrioritizedValue) goldmark.Markdown {
	rendererOptions := []renderer.Option{}
	if opts.HardWraps {
		rendererOptions = append(rendererOptions, html.WithHardWraps())
	}
	if len(nodeRenderers) > 0 {
		rendererOptions = append(rendererOptions, renderer.WithNodeRenderers(nodeRenderers...))
	}

	engineOptions := []goldmark.Option{
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	}
	if len(rendererOptions) > 0 {
		engineOptions = append(engineOptions, goldmark.WithRendererOptions(rendererOptions...))
	}
	if exts := collectExtensions(opts.Extensions); len(exts) > 0 {
		engineOptions = append(engineOptions, goldmark.WithExtensions(exts...))
	}
	return goldmark.New(engineOptions...)
}

var extensionRegistry = map[string]func() goldmark.Extender{
	"gfm":           func() goldmark.Extender { return extension.GFM },
	"table":         func() goldmark.Extender { return extension.Table },
	"tables":        func() goldmark.Extender { return extension.Table },
	"strikethrough": func() goldmark.Extender { return extension.Strikethrough },
	"linkify":       func() goldmark.Extender { return extension.Linkify },
	"autolink":      func() goldmark.Extender { return extension.Linkify },
	"tasklist":      func() goldmark.Extender { return extension.TaskList },
	"definition":    func() goldmark.Extender { return extension.DefinitionList },
	"footnote":      func() goldmark.Extender { return extension.Footnote },
	"highlight": func() goldmark.Extender {
		return highlighting.NewHighlighting(
			highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
		)
	},
}

// UnknownExtension returns the first name that is not a registered
// extension, or "" when all are known.
func UnknownExtension(names []string) string {
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := extensionRegistry[key]; !ok {
			return name
		}
	}
	return ""
}

func collectExtensions(names []string) []goldmark.Extender {
	if len(names) == 0 {
		return []goldmark.Extender{extension.GFM}
	}

	var extenders []goldmark.Extender
	seen := map[string]struct{}{}
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := seen[key]; ok || key == "" {
			continue
		}
		factory, ok := extensionRegistry[key]
		if !ok {
			continue
		}
		extenders = append(extenders, factory())
		seen[key] = struct{}{}
	}
	return extenders
}
