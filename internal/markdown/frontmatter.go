package markdown

import (
	"bytes"
	"fmt"

	"github.com/adrg/frontmatter"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// DocumentMeta is the optional front matter of a Markdown document.
type DocumentMeta struct {
	Title string `yaml:"title"`
	// Project is the "namespace/project" scope the body is rendered in.
	Project string         `yaml:"project"`
	Entity  string         `yaml:"entity"`
	Field   string         `yaml:"field"`
	Custom  map[string]any `yaml:",inline"`
}

// Document is a Markdown body with its front matter removed.
type Document struct {
	Meta DocumentMeta
	Body []byte
}

// Scope parses Meta.Project, falling back to fallback when it is empty.
func (d Document) Scope(fallback interfaces.ProjectScope) interfaces.ProjectScope {
	if d.Meta.Project == "" {
		return fallback
	}
	return interfaces.ParseProjectScope(d.Meta.Project)
}

// ParseDocument splits source into front matter and body. Sources without
// front matter return the whole input as body.
func ParseDocument(source []byte) (Document, error) {
	var meta DocumentMeta
	body, err := frontmatter.Parse(bytes.NewReader(source), &meta)
	if err != nil {
		return Document{}, fmt.Errorf("parse frontmatter: %w", err)
	}
	if meta.Custom == nil {
		meta.Custom = map[string]any{}
	}
	return Document{Meta: meta, Body: body}, nil
}
