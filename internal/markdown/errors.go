package markdown

import "errors"

var (
	// ErrPipelineDependencies is returned when a pipeline is built without a resolver or link renderer.
	ErrPipelineDependencies = errors.New("markdown: resolver and link renderer are required")
	// ErrMalformedInput indicates the formatter could not parse the input.
	ErrMalformedInput = errors.New("markdown: malformed input")
	// ErrLinkingFailed indicates reference linking aborted.
	ErrLinkingFailed = errors.New("markdown: linking failed")
	// ErrRenderFailed indicates the HTML renderer failed.
	ErrRenderFailed = errors.New("markdown: render failed")
)
