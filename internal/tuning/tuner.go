package tuning

import "context"

// FitnessFn scores a weight vector. Higher is better; callers minimizing a
// distance negate it.
type FitnessFn func(ctx context.Context, weights []float64) (float64, error)

type TuneReport struct {
	AttemptsPlanned      int `json:"attempts_planned"`
	AttemptsExecuted     int `json:"attempts_executed"`
	CandidateEvaluations int `json:"candidate_evaluations"`
	AcceptedCandidates   int `json:"accepted_candidates"`
	RejectedCandidates   int `json:"rejected_candidates"`
}

// Tuner refines a single weight vector in place of the evolutionary loop.
type Tuner interface {
	Name() string
	Tune(ctx context.Context, weights []float64, attempts int, fitness FitnessFn) ([]float64, error)
}

type ReportingTuner interface {
	Tuner
	TuneWithReport(ctx context.Context, weights []float64, attempts int, fitness FitnessFn) ([]float64, TuneReport, error)
}
