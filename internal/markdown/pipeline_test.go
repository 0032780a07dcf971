package markdown_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-gfm/internal/markdown"
	"github.com/goliatone/go-gfm/internal/references"
	"github.com/goliatone/go-gfm/pkg/interfaces"
)

var acmeWeb = interfaces.ProjectScope{Namespace: "acme", Project: "web"}

type fixtureLookup struct {
	entities map[string]*interfaces.Entity
	err      error
}

func newFixtureLookup() *fixtureLookup {
	l := &fixtureLookup{entities: map[string]*interfaces.Entity{}}
	for _, entity := range []*interfaces.Entity{
		{ID: "issue-42", Kind: interfaces.ReferenceIssue, ProjectPath: "acme/web", Key: "42", Title: "Crash on save"},
		{ID: "mr-7", Kind: interfaces.ReferenceMergeRequest, ProjectPath: "acme/web", Key: "7", Title: "Fix crash"},
		{ID: "user-fred", Kind: interfaces.ReferenceUser, Key: "fred", Title: "Fred Flintstone"},
	} {
		l.entities[l.key(entity.ProjectPath, entity.Kind, entity.Key)] = entity
	}
	return l
}

func (l *fixtureLookup) key(project string, kind interfaces.ReferenceKind, key string) string {
	if kind == interfaces.ReferenceUser {
		project = ""
	}
	return project + "|" + string(kind) + "|" + key
}

func (l *fixtureLookup) Find(_ context.Context, scope interfaces.ProjectScope, kind interfaces.ReferenceKind, key string) (*interfaces.Entity, error) {
	if l.err != nil {
		return nil, l.err
	}
	if entity, ok := l.entities[l.key(scope.FullPath(), kind, key)]; ok {
		copied := *entity
		return &copied, nil
	}
	return nil, interfaces.ErrEntityNotFound
}

func newPipeline(t *testing.T, lookup interfaces.LookupService, opts ...markdown.Option) *markdown.Pipeline {
	t.Helper()
	resolver, err := references.NewResolver(lookup)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	pipeline, err := markdown.NewPipeline(resolver, references.NewRenderer(), opts...)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return pipeline
}

func render(t *testing.T, p *markdown.Pipeline, raw string, scope interfaces.ProjectScope) markdown.Result {
	t.Helper()
	result, err := p.Render(context.Background(), raw, scope)
	if err != nil {
		t.Fatalf("Render(%q): %v", raw, err)
	}
	return result
}

func TestNewPipelineRequiresDependencies(t *testing.T) {
	if _, err := markdown.NewPipeline(nil, references.NewRenderer()); !errors.Is(err, markdown.ErrPipelineDependencies) {
		t.Fatalf("expected ErrPipelineDependencies, got %v", err)
	}
}

func TestRenderLinksReferences(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	result := render(t, p, "fix #42\n\nask @fred for details", acmeWeb)

	out := string(result.Markup)
	issue := `<a href="/acme/web/-/issues/42" data-reference-type="issue" data-original="#42" data-project="acme/web" data-entity="issue-42" title="Crash on save" class="gfm gfm-issue">#42</a>`
	if !strings.Contains(out, "<p>fix "+issue+"</p>") {
		t.Fatalf("expected issue anchor, got %s", out)
	}
	if !strings.Contains(out, `<a href="/fred"`) || !strings.Contains(out, `title="Fred Flintstone"`) || !strings.Contains(out, ">@fred</a> for details</p>") {
		t.Fatalf("expected user anchor, got %s", out)
	}
	if result.Stage != markdown.StageFinal || result.Degraded {
		t.Fatalf("expected final undegraded result, got %s degraded=%v", result.Stage, result.Degraded)
	}
	if len(result.References) != 2 {
		t.Fatalf("expected 2 references, got %d", len(result.References))
	}
}

func TestRenderLeavesUnresolvedReferencesLiteral(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	result := render(t, p, "see #404 and !8", acmeWeb)
	if got := string(result.Markup); got != "<p>see #404 and !8</p>\n" {
		t.Fatalf("unexpected markup: %q", got)
	}
	if len(result.References) != 2 || result.References[0].Resolvable {
		t.Fatalf("expected unresolved references to be reported, got %+v", result.References)
	}
}

func TestRenderKeepsSoftLineBreaks(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	out := string(render(t, p, "fix #42\nnext line", acmeWeb).Markup)
	if !strings.Contains(out, "#42</a>\nnext line</p>") {
		t.Fatalf("expected line break after anchor, got %q", out)
	}
}

func TestRenderSkipsCodeAndLinks(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	cases := []string{
		"`#42` in code",
		"```\n#42\n```",
		"    #42 indented",
		"[#42](https://example.com/x)",
		`\#42 escaped`,
	}
	for _, raw := range cases {
		out := string(render(t, p, raw, acmeWeb).Markup)
		if strings.Contains(out, "/acme/web/-/issues/42") {
			t.Fatalf("expected %q not to be linked, got %s", raw, out)
		}
	}
}

func TestRenderIsScopedToProject(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	other := interfaces.ProjectScope{Namespace: "acme", Project: "api"}

	out := string(render(t, p, "fix #42", other).Markup)
	if strings.Contains(out, "<a ") {
		t.Fatalf("expected no link outside acme/web, got %s", out)
	}
	out = string(render(t, p, "fix acme/web#42", other).Markup)
	if !strings.Contains(out, `data-original="acme/web#42"`) {
		t.Fatalf("expected qualified link, got %s", out)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	raw := "# Crash #42\n\n- [ ] review !7 with @fred\n- done"
	first := render(t, p, raw, acmeWeb)
	second := render(t, p, raw, acmeWeb)
	if first.Markup != second.Markup {
		t.Fatalf("expected identical output\n%s\n%s", first.Markup, second.Markup)
	}
	if strings.Count(string(first.Markup), "<a ") != 3 {
		t.Fatalf("expected three anchors, got %s", first.Markup)
	}
}

func TestRenderNeverDuplicatesLinks(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	first := render(t, p, "fix #42", acmeWeb)

	second := render(t, p, string(first.Markup), acmeWeb)
	if strings.Contains(string(second.Markup), "<a ") {
		t.Fatalf("expected rendered markup to be neutralised, got %s", second.Markup)
	}

	inline := render(t, p, `see <a href="/elsewhere">#42</a>`, acmeWeb)
	if strings.Contains(string(inline.Markup), "<a ") {
		t.Fatalf("expected text inside an anchor to stay plain, got %s", inline.Markup)
	}
}

func TestRenderEscapesRawHTML(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	out := string(render(t, p, "<script>alert(1)</script>\n\nhi <b onclick=\"x()\">#42</b>", acmeWeb).Markup)
	if strings.Contains(out, "<script>") || strings.Contains(out, "onclick") {
		t.Fatalf("expected raw HTML to be dropped, got %s", out)
	}
}

func TestRenderLookupUnavailableDegrades(t *testing.T) {
	lookup := newFixtureLookup()
	lookup.err = errors.New("database is down")
	p := newPipeline(t, lookup)

	result, err := p.Render(context.Background(), "fix #42", acmeWeb)
	if !errors.Is(err, interfaces.ErrLookupUnavailable) {
		t.Fatalf("expected ErrLookupUnavailable, got %v", err)
	}
	if result.Stage != markdown.StageFormatted || !result.Degraded {
		t.Fatalf("expected degraded formatted result, got %s degraded=%v", result.Stage, result.Degraded)
	}
	if got := string(result.Markup); got != "<p>fix #42</p>\n" {
		t.Fatalf("unexpected degraded markup: %q", got)
	}
}

type panicResolver struct{}

func (panicResolver) ResolveAll(context.Context, []interfaces.ReferenceToken, interfaces.ProjectScope) ([]interfaces.ResolvedReference, error) {
	panic("boom")
}

func TestRenderLinkFailureFallsBackToFormatted(t *testing.T) {
	p, err := markdown.NewPipeline(panicResolver{}, references.NewRenderer())
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	result, err := p.Render(context.Background(), "**fix** #42", acmeWeb)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Stage != markdown.StageFormatted || !result.Degraded {
		t.Fatalf("expected formatted fallback, got %s", result.Stage)
	}
	if got := string(result.Markup); got != "<p><strong>fix</strong> #42</p>\n" {
		t.Fatalf("unexpected markup: %q", got)
	}
}

func TestRenderHonoursCancellation(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Render(ctx, "fix #42", acmeWeb); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRenderInlineDropsParagraph(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	result, err := p.RenderInline(context.Background(), "Fix   #42\n", acmeWeb)
	if err != nil {
		t.Fatalf("RenderInline: %v", err)
	}
	out := string(result.Markup)
	if strings.HasPrefix(out, "<p>") || !strings.HasPrefix(out, "Fix <a ") {
		t.Fatalf("expected inline markup, got %q", out)
	}
}

func TestRenderInlineKeepsBlockMarkersAsText(t *testing.T) {
	p := newPipeline(t, newFixtureLookup())
	cases := []struct {
		raw    string
		prefix string
	}{
		{"1. fix #42", "1. fix <a "},
		{"2) fix #42", "2) fix <a "},
		{"# fix #42", "# fix <a "},
		{"- fix #42", "- fix <a "},
		{"> fix #42", "&gt; fix <a "},
	}
	for _, tc := range cases {
		result, err := p.RenderInline(context.Background(), tc.raw, acmeWeb)
		if err != nil {
			t.Fatalf("RenderInline(%q): %v", tc.raw, err)
		}
		out := string(result.Markup)
		if !strings.HasPrefix(out, tc.prefix) {
			t.Fatalf("RenderInline(%q): expected prefix %q, got %q", tc.raw, tc.prefix, out)
		}
		for _, tag := range []string{"<ol", "<ul", "<h1", "<blockquote"} {
			if strings.Contains(out, tag) {
				t.Fatalf("RenderInline(%q): unexpected block %s in %q", tc.raw, tag, out)
			}
		}
	}

	result, err := p.RenderInline(context.Background(), "---", acmeWeb)
	if err != nil || string(result.Markup) != "---" {
		t.Fatalf("expected rule marker as text, got %q (%v)", result.Markup, err)
	}
}

func TestRenderHardWraps(t *testing.T) {
	p := newPipeline(t, newFixtureLookup(), markdown.WithParseOptions(interfaces.ParseOptions{HardWraps: true}))
	out := string(render(t, p, "one\ntwo", acmeWeb).Markup)
	if !strings.Contains(out, "one<br>\ntwo") {
		t.Fatalf("expected hard wrap, got %q", out)
	}
}

func TestStageString(t *testing.T) {
	if markdown.StageLinked.String() != "linked" || markdown.Stage(42).String() != "stage(42)" {
		t.Fatalf("unexpected stage names")
	}
}
