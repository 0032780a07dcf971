package markdown

import (
	"strings"
	"unicode"
)

var newlineReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Sanitize normalises raw input before formatting. Invalid UTF-8 is replaced
// with U+FFFD, line endings become "\n" and control characters other than
// newline and tab are dropped. Markup is left alone; raw HTML is neutralised
// by the formatter.
func Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	value := strings.ToValidUTF8(raw, "�")
	value = newlineReplacer.Replace(value)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}
