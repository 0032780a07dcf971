// Package markdown renders GitLab flavored Markdown. Input is normalised,
// parsed with goldmark, linked against the reference resolver and rendered to
// HTML. A stage that fails degrades the output to the previous stage instead
// of failing the render.
package markdown
