package scanner

import (
	"iter"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

var (
	qualifiedPattern = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_.-]*(?:/[A-Za-z0-9_][A-Za-z0-9_.-]*)*)(?:([#!%])([0-9]+)|@([0-9a-f]{7,40}))`)
	numericPattern   = regexp.MustCompile(`^[0-9]+`)
	userPattern      = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*`)
	commitPattern    = regexp.MustCompile(`^[0-9a-f]{7,40}`)
)

// Options configures which references a Scanner emits.
type Options struct {
	// Kinds restricts the emitted kinds. Empty enables every kind.
	Kinds []interfaces.ReferenceKind
	// CrossProject enables "namespace/project#N" style qualifiers.
	CrossProject bool
}

// Scanner finds shorthand references in raw text.
//
// Matching is leftmost-first and tokens never overlap. When candidates start
// at the same offset the qualified form wins over the bare commit form. The
// sigil alone decides the kind, so "@123" is always a user.
type Scanner struct {
	kinds        map[interfaces.ReferenceKind]bool
	crossProject bool
}

var defaultScanner = New(Options{CrossProject: true})

// New builds a Scanner from options.
func New(opts Options) *Scanner {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = interfaces.ReferenceKinds()
	}
	enabled := make(map[interfaces.ReferenceKind]bool, len(kinds))
	for _, kind := range kinds {
		if kind.Valid() {
			enabled[kind] = true
		}
	}
	return &Scanner{kinds: enabled, crossProject: opts.CrossProject}
}

// Scan scans raw with every kind and cross-project references enabled.
func Scan(raw string) iter.Seq[interfaces.ReferenceToken] {
	return defaultScanner.Scan(raw)
}

// Scan returns a lazy sequence of tokens found in raw. Each iteration starts
// over from the beginning of the text.
func (s *Scanner) Scan(raw string) iter.Seq[interfaces.ReferenceToken] {
	return func(yield func(interfaces.ReferenceToken) bool) {
		if raw == "" {
			return
		}
		mask := buildMask(raw)
		for i := 0; i < len(raw); {
			if mask[i] {
				i++
				continue
			}
			token, ok := s.match(raw, i)
			if !ok || masked(mask, token.Start, token.End) {
				i++
				continue
			}
			if !yield(token) {
				return
			}
			i = token.End
		}
	}
}

// Collect drains Scan into a slice.
func (s *Scanner) Collect(raw string) []interfaces.ReferenceToken {
	return slices.Collect(s.Scan(raw))
}

func (s *Scanner) match(raw string, i int) (interfaces.ReferenceToken, bool) {
	c := raw[i]
	prev := prevRune(raw, i)
	if s.crossProject && c < utf8.RuneSelf && isWordRune(rune(c)) && !isQualifierBoundary(prev) {
		if token, ok := s.matchQualified(raw, i); ok {
			return token, true
		}
	}
	if isSigil(rune(c)) && !isSigilBoundary(prev) {
		if token, ok := s.matchSigil(raw, i); ok {
			return token, true
		}
	}
	if isHex(c) && s.kinds[interfaces.ReferenceCommit] && !isQualifierBoundary(prev) {
		if token, ok := matchCommit(raw, i); ok {
			return token, true
		}
	}
	return interfaces.ReferenceToken{}, false
}

func (s *Scanner) matchQualified(raw string, i int) (interfaces.ReferenceToken, bool) {
	loc := qualifiedPattern.FindStringSubmatchIndex(raw[i:])
	if loc == nil {
		return interfaces.ReferenceToken{}, false
	}
	end := i + loc[1]
	if isWordRune(nextRune(raw, end)) {
		return interfaces.ReferenceToken{}, false
	}
	project := raw[i+loc[2] : i+loc[3]]
	if strings.HasSuffix(project, ".") || strings.HasSuffix(project, "-") || !hasLetter(project) {
		return interfaces.ReferenceToken{}, false
	}

	token := interfaces.ReferenceToken{
		Raw:     raw[i:end],
		Project: project,
		Start:   i,
		End:     end,
	}
	if loc[4] >= 0 {
		token.Kind = kindForSigil(raw[i+loc[4]])
		token.Key = raw[i+loc[6] : i+loc[7]]
	} else {
		token.Kind = interfaces.ReferenceCommit
		token.Key = raw[i+loc[8] : i+loc[9]]
		if !looksLikeSHA(token.Key) || continuesHostname(raw, end) {
			return interfaces.ReferenceToken{}, false
		}
	}
	if !s.kinds[token.Kind] {
		return interfaces.ReferenceToken{}, false
	}
	return token, true
}

func (s *Scanner) matchSigil(raw string, i int) (interfaces.ReferenceToken, bool) {
	kind := kindForSigil(raw[i])
	if !s.kinds[kind] {
		return interfaces.ReferenceToken{}, false
	}
	rest := raw[i+1:]

	var key string
	switch kind {
	case interfaces.ReferenceUser:
		key = strings.TrimRight(userPattern.FindString(rest), ".-")
	default:
		key = numericPattern.FindString(rest)
	}
	if key == "" || isWordRune(nextRune(rest, len(key))) {
		return interfaces.ReferenceToken{}, false
	}

	end := i + 1 + len(key)
	return interfaces.ReferenceToken{
		Raw:   raw[i:end],
		Kind:  kind,
		Key:   key,
		Start: i,
		End:   end,
	}, true
}

func matchCommit(raw string, i int) (interfaces.ReferenceToken, bool) {
	sha := commitPattern.FindString(raw[i:])
	if sha == "" || !looksLikeSHA(sha) {
		return interfaces.ReferenceToken{}, false
	}
	end := i + len(sha)
	if isWordRune(nextRune(raw, end)) || continuesHostname(raw, end) {
		return interfaces.ReferenceToken{}, false
	}
	return interfaces.ReferenceToken{
		Raw:   sha,
		Kind:  interfaces.ReferenceCommit,
		Key:   sha,
		Start: i,
		End:   end,
	}, true
}

// looksLikeSHA rejects plain numbers and plain words.
func looksLikeSHA(value string) bool {
	return strings.ContainsAny(value, "abcdef") && strings.ContainsAny(value, "0123456789")
}

func kindForSigil(c byte) interfaces.ReferenceKind {
	switch c {
	case '#':
		return interfaces.ReferenceIssue
	case '!':
		return interfaces.ReferenceMergeRequest
	case '%':
		return interfaces.ReferenceMilestone
	case '@':
		return interfaces.ReferenceUser
	default:
		return ""
	}
}

// continuesHostname reports a ".word" suffix, as in "cafe123.com".
func continuesHostname(raw string, end int) bool {
	return nextRune(raw, end) == '.' && isWordRune(nextRune(raw, end+1))
}

func hasLetter(value string) bool {
	return strings.IndexFunc(value, func(r rune) bool {
		return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
	}) >= 0
}

func isSigil(r rune) bool {
	return r == '#' || r == '!' || r == '%' || r == '@'
}

func isSigilBoundary(prev rune) bool {
	return isWordRune(prev) || isSigil(prev) || prev == '&' || prev == '/' || prev == '\\'
}

func isQualifierBoundary(prev rune) bool {
	return isWordRune(prev) || isSigil(prev) || strings.ContainsRune("&/.-:\\", prev)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f')
}

func prevRune(raw string, i int) rune {
	if i <= 0 {
		return 0
	}
	r, _ := utf8.DecodeLastRuneInString(raw[:i])
	return r
}

func nextRune(raw string, i int) rune {
	if i >= len(raw) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(raw[i:])
	return r
}
