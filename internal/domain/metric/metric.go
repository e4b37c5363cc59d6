package metric

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/bureaucratese/internal/domain"
)

// Kind is the density metric selector.
type Kind string

// Metric kinds.
const (
	Basic    Kind = "basic"
	Weighted Kind = "weighted"
	Semantic Kind = "semantic"
)

// aliasBert is the historical name of the semantic metric.
const aliasBert = "bert"

// All lists every kind in reporting order.
func All() []Kind { return []Kind{Basic, Weighted, Semantic} }

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == Basic || k == Weighted || k == Semantic
}

// Parse converts a raw metric name. Empty selects Basic.
func Parse(raw string) (Kind, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return Basic, nil
	case aliasBert:
		return Semantic, nil
	}
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownMetric, raw)
	}
	return k, nil
}

// OutputMode selects the response shape of an ad-hoc analysis.
type OutputMode string

// Output modes.
const (
	OutputSimple OutputMode = "simple"
	OutputFull   OutputMode = "full"
)

// ParseOutput converts a raw output mode. Empty selects OutputSimple.
func ParseOutput(raw string) (OutputMode, error) {
	switch m := OutputMode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return OutputSimple, nil
	case OutputSimple, OutputFull:
		return m, nil
	default:
		return "", fmt.Errorf("%w: output type must be simple or full, got %q", domain.ErrInvalidInput, raw)
	}
}
