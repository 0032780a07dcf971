package references

import (
	"time"

	"github.com/goliatone/go-gfm/pkg/interfaces"
)

// NoOpMetrics returns a metrics recorder that drops every observation.
func NoOpMetrics() interfaces.ReferenceMetrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) ObserveResolveDuration(interfaces.ReferenceKind, time.Duration) {}

func (noopMetrics) IncrementResolved(interfaces.ReferenceKind, bool) {}

func (noopMetrics) IncrementLookupError(interfaces.ReferenceKind) {}
