package scape

import "context"

type Fitness float64

type Trace map[string]any

// Scape scores a rule-weight vector. Implementations must be safe for
// concurrent Evaluate calls.
type Scape interface {
	Name() string
	Evaluate(ctx context.Context, weights []float64) (Fitness, Trace, error)
}

// DescribedScape optionally exposes a human readable summary.
type DescribedScape interface {
	Scape
	Description() string
}
