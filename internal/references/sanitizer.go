package references

import (
	"fmt"
	"net/url"
	"strings"
)

// Sanitizer guards link targets and attribute names before they reach markup.
type Sanitizer struct {
	allowedSchemes map[string]struct{}
}

// NewSanitizer returns a sanitizer allowing http, https and relative targets.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		allowedSchemes: map[string]struct{}{
			"http":  {},
			"https": {},
			"":      {},
		},
	}
}

// ValidateURL ensures the target has an allowed scheme. Empty targets are rejected.
func (s *Sanitizer) ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty target", ErrUnsafeTarget)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeTarget, err)
	}

	if _, ok := s.allowedSchemes[strings.ToLower(parsed.Scheme)]; !ok {
		return fmt.Errorf("%w: scheme %q not permitted", ErrUnsafeTarget, parsed.Scheme)
	}
	return nil
}

// ValidateAttribute rejects inline event handlers like onclick.
func (s *Sanitizer) ValidateAttribute(name string) error {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(name)), "on") {
		return fmt.Errorf("references: attribute %q not permitted", name)
	}
	return nil
}
