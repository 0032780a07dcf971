package markdown

import (
	"context"
	"iter"
	"regexp"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

var (
	openAnchorPattern  = regexp.MustCompile(`(?i)^<a[\s>]`)
	closeAnchorPattern = regexp.MustCompile(`(?i)^</a\s*>`)
)

// TokenScanner finds reference candidates in plain text.
type TokenScanner interface {
	Scan(raw string) iter.Seq[interfaces.ReferenceToken]
}

// ReferenceResolver resolves a batch of tokens within a scope.
type ReferenceResolver interface {
	ResolveAll(ctx context.Context, tokens []interfaces.ReferenceToken, scope interfaces.ProjectScope) ([]interfaces.ResolvedReference, error)
}

// textRun is a maximal sequence of sibling text nodes covering one
// contiguous byte range of the source on a single line.
type textRun struct {
	parent ast.Node
	nodes  []*ast.Text
	start  int
	stop   int
}

func (r *textRun) last() *ast.Text {
	return r.nodes[len(r.nodes)-1]
}

func (r *textRun) extends(t *ast.Text) bool {
	last := r.last()
	return r.stop == t.Segment.Start && !last.SoftLineBreak() && !last.HardLineBreak()
}

// collectRuns returns the linkable text of doc. Code spans, links, images,
// autolinks, raw HTML and text inside raw <a> elements are skipped.
func collectRuns(doc ast.Node, source []byte) []textRun {
	var runs []textRun
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindCodeSpan, ast.KindLink, ast.KindImage, ast.KindAutoLink, ast.KindRawHTML, KindReference:
			return ast.WalkSkipChildren, nil
		}
		if n.HasChildren() {
			runs = append(runs, runsOf(n, source)...)
		}
		return ast.WalkContinue, nil
	})
	return runs
}

func runsOf(parent ast.Node, source []byte) []textRun {
	var (
		runs     []textRun
		current  *textRun
		inAnchor bool
	)
	flush := func() {
		if current != nil {
			runs = append(runs, *current)
			current = nil
		}
	}

	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		if raw, ok := child.(*ast.RawHTML); ok {
			flush()
			tag := rawHTMLValue(raw, source)
			switch {
			case openAnchorPattern.Match(tag):
				inAnchor = true
			case closeAnchorPattern.Match(tag):
				inAnchor = false
			}
			continue
		}

		t, ok := child.(*ast.Text)
		if !ok || t.IsRaw() || inAnchor || t.Segment.Padding != 0 || t.Segment.IsEmpty() {
			flush()
			continue
		}
		if current != nil && current.extends(t) {
			current.nodes = append(current.nodes, t)
			current.stop = t.Segment.Stop
			continue
		}
		flush()
		current = &textRun{parent: parent, nodes: []*ast.Text{t}, start: t.Segment.Start, stop: t.Segment.Stop}
	}
	flush()
	return runs
}

func rawHTMLValue(raw *ast.RawHTML, source []byte) []byte {
	if raw.Segments == nil {
		return nil
	}
	var value []byte
	for i := 0; i < raw.Segments.Len(); i++ {
		segment := raw.Segments.At(i)
		value = append(value, segment.Value(source)...)
	}
	return value
}

// linkDocument scans every text run of doc, resolves the tokens in one batch
// and splices reference nodes in place of resolvable tokens.
func linkDocument(ctx context.Context, doc ast.Node, source []byte, scope interfaces.ProjectScope, scan TokenScanner, resolver ReferenceResolver) ([]interfaces.ResolvedReference, error) {
	runs := collectRuns(doc, source)

	var (
		tokens []interfaces.ReferenceToken
		owners []int
	)
	for i, run := range runs {
		for token := range scan.Scan(string(source[run.start:run.stop])) {
			token.Start += run.start
			token.End += run.start
			tokens = append(tokens, token)
			owners = append(owners, i)
		}
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	resolved, err := resolver.ResolveAll(ctx, tokens, scope)
	if err != nil {
		return nil, err
	}

	perRun := make([][]interfaces.ResolvedReference, len(runs))
	for i, ref := range resolved {
		perRun[owners[i]] = append(perRun[owners[i]], ref)
	}
	for i := range runs {
		splice(&runs[i], perRun[i])
	}
	return resolved, nil
}

// splice replaces the nodes of run with text and reference nodes. Token
// offsets are absolute source offsets. Unresolvable tokens stay text.
func splice(run *textRun, refs []interfaces.ResolvedReference) {
	var (
		created []ast.Node
		pos     = run.start
	)
	for _, ref := range refs {
		if !ref.Resolvable {
			continue
		}
		if ref.Token.Start > pos {
			created = append(created, ast.NewTextSegment(text.NewSegment(pos, ref.Token.Start)))
		}
		created = append(created, NewReferenceNode(ref))
		pos = ref.Token.End
	}
	if len(created) == 0 {
		return
	}

	last := run.last()
	tail := ast.NewTextSegment(text.NewSegment(pos, run.stop))
	tail.SetSoftLineBreak(last.SoftLineBreak())
	tail.SetHardLineBreak(last.HardLineBreak())
	if pos < run.stop || tail.SoftLineBreak() || tail.HardLineBreak() {
		created = append(created, tail)
	}

	anchor := run.nodes[0]
	for _, node := range created {
		run.parent.InsertBefore(run.parent, anchor, node)
	}
	for _, node := range run.nodes {
		run.parent.RemoveChild(run.parent, node)
	}
}
