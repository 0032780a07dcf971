package scanner

import (
	"regexp"
	"strings"
)

var (
	inlineLinkPattern = regexp.MustCompile(`!?\[[^\]\n]*\]\([^)\n]*\)`)
	anchorPattern     = regexp.MustCompile(`(?is)<a\b[^>]*>.*?</a\s*>`)
	autolinkPattern   = regexp.MustCompile(`<[A-Za-z][A-Za-z0-9+.-]*:[^\s<>]*>`)
	htmlTagPattern    = regexp.MustCompile(`</?[A-Za-z][A-Za-z0-9-]*(?:\s[^<>]*)?/?>`)
	bareURLPattern    = regexp.MustCompile(`(?i)(?:\b[a-z][a-z0-9+.-]*://|\bwww\.)[^\s<>]*`)
)

// buildMask marks the bytes of raw that can never hold a reference: code
// fences, code spans, link markup, HTML tags and URLs.
func buildMask(raw string) []bool {
	mask := make([]bool, len(raw))
	maskFences(raw, mask)
	maskCodeSpans(raw, mask)
	for _, pattern := range []*regexp.Regexp{inlineLinkPattern, anchorPattern, autolinkPattern, htmlTagPattern, bareURLPattern} {
		for _, loc := range pattern.FindAllStringIndex(raw, -1) {
			fill(mask, loc[0], loc[1])
		}
	}
	return mask
}

// maskFences masks fenced code blocks including their fence lines. An
// unterminated fence runs to the end of the text.
func maskFences(raw string, mask []bool) {
	var (
		open      bool
		fenceChar byte
		fenceLen  int
		start     int
	)
	for offset := 0; offset < len(raw); {
		end := strings.IndexByte(raw[offset:], '\n')
		if end < 0 {
			end = len(raw)
		} else {
			end += offset + 1
		}
		line := raw[offset:end]
		char, length := fenceMarker(line)
		switch {
		case !open && length > 0:
			open, fenceChar, fenceLen, start = true, char, length, offset
		case open && length >= fenceLen && char == fenceChar && strings.TrimSpace(strings.TrimLeft(line, " ")[length:]) == "":
			fill(mask, start, end)
			open = false
		}
		offset = end
	}
	if open {
		fill(mask, start, len(raw))
	}
}

func fenceMarker(line string) (byte, int) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
		return 0, 0
	}
	char := trimmed[0]
	if char != '`' && char != '~' {
		return 0, 0
	}
	n := 0
	for n < len(trimmed) && trimmed[n] == char {
		n++
	}
	if n < 3 {
		return 0, 0
	}
	return char, n
}

// maskCodeSpans masks inline code delimited by backtick runs of equal length.
// Unmatched runs stay literal.
func maskCodeSpans(raw string, mask []bool) {
	for i := 0; i < len(raw); {
		if raw[i] != '`' || mask[i] {
			i++
			continue
		}
		run := backtickRun(raw, i)
		closing := -1
		for j := i + run; j < len(raw); {
			if raw[j] != '`' {
				j++
				continue
			}
			n := backtickRun(raw, j)
			if n == run {
				closing = j
				break
			}
			j += n
		}
		if closing < 0 {
			i += run
			continue
		}
		fill(mask, i, closing+run)
		i = closing + run
	}
}

func backtickRun(raw string, i int) int {
	n := 0
	for i+n < len(raw) && raw[i+n] == '`' {
		n++
	}
	return n
}

func fill(mask []bool, start, end int) {
	for i := start; i < end && i < len(mask); i++ {
		mask[i] = true
	}
}

func masked(mask []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if mask[i] {
			return true
		}
	}
	return false
}
