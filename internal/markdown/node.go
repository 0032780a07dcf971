package markdown

import (
	"io"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// KindReference is the node kind of a resolved reference.
var KindReference = ast.NewNodeKind("GFMReference")

// ReferenceNode replaces the text of a resolved reference in the document.
type ReferenceNode struct {
	ast.BaseInline
	Reference interfaces.ResolvedReference
}

// NewReferenceNode wraps ref in an inline node.
func NewReferenceNode(ref interfaces.ResolvedReference) *ReferenceNode {
	return &ReferenceNode{Reference: ref}
}

// Kind implements ast.Node.
func (n *ReferenceNode) Kind() ast.NodeKind {
	return KindReference
}

// Dump implements ast.Node.
func (n *ReferenceNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"Kind":   string(n.Reference.Token.Kind),
		"Raw":    n.Reference.Token.Raw,
		"Target": n.Reference.LinkTarget,
	}, nil)
}

// LinkRenderer writes the markup of one resolved reference.
type LinkRenderer interface {
	WriteTo(w io.StringWriter, ref interfaces.ResolvedReference)
}

type referenceNodeRenderer struct {
	links LinkRenderer
}

func (r *referenceNodeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindReference, r.renderReference)
}

func (r *referenceNodeRenderer) renderReference(w util.BufWriter, _ []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	if n, ok := node.(*ReferenceNode); ok {
		r.links.WriteTo(w, n.Reference)
	}
	return ast.WalkSkipChildren, nil
}
