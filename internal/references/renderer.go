package references

import (
	"html/template"
	"io"
	"strings"

	"github.com/yuin/goldmark/util"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

const defaultCSSClass = "gfm"

// Renderer converts resolved references into inline anchor markup.
type Renderer struct {
	cssClass  string
	sanitizer *Sanitizer
}

// RendererOption customises renderer behaviour.
type RendererOption func(*Renderer)

// WithCSSClass overrides the base class applied to anchors. The kind class
// is derived from it, e.g. "gfm gfm-issue".
func WithCSSClass(class string) RendererOption {
	return func(r *Renderer) {
		if trimmed := strings.TrimSpace(class); trimmed != "" {
			r.cssClass = trimmed
		}
	}
}

// NewRenderer constructs a link renderer.
func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		cssClass:  defaultCSSClass,
		sanitizer: NewSanitizer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render emits an anchor for resolvable references and escaped plain text
// otherwise. Every value written is HTML escaped.
func (r *Renderer) Render(ref interfaces.ResolvedReference) template.HTML {
	var b strings.Builder
	r.WriteTo(&b, ref)
	return template.HTML(b.String())
}

// WriteTo writes the fragment for ref to w.
func (r *Renderer) WriteTo(w io.StringWriter, ref interfaces.ResolvedReference) {
	text := ref.DisplayText
	if text == "" {
		text = ref.Token.Raw
	}
	if !ref.Resolvable || r.sanitizer.ValidateURL(ref.LinkTarget) != nil {
		writeEscaped(w, text)
		return
	}

	_, _ = w.WriteString(`<a href="`)
	_, _ = w.WriteString(string(util.EscapeHTML(util.URLEscape([]byte(ref.LinkTarget), false))))
	_, _ = w.WriteString(`"`)
	r.writeAttr(w, "data-reference-type", string(ref.Token.Kind))
	r.writeAttr(w, "data-original", ref.Token.Raw)
	r.writeAttr(w, "data-project", ref.ProjectPath)
	r.writeAttr(w, "data-entity", ref.TargetEntityID)
	r.writeAttr(w, "title", ref.Title)
	r.writeAttr(w, "class", r.cssClass+" "+r.cssClass+"-"+strings.ReplaceAll(string(ref.Token.Kind), "_", "-"))
	_, _ = w.WriteString(">")
	writeEscaped(w, text)
	_, _ = w.WriteString("</a>")
}

func (r *Renderer) writeAttr(w io.StringWriter, name, value string) {
	if value == "" || r.sanitizer.ValidateAttribute(name) != nil {
		return
	}
	_, _ = w.WriteString(" " + name + `="`)
	writeEscaped(w, value)
	_, _ = w.WriteString(`"`)
}

func writeEscaped(w io.StringWriter, value string) {
	_, _ = w.WriteString(string(util.EscapeHTML([]byte(value))))
}
