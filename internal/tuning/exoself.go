package tuning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"strings"
	"sync"
)

// Exoself is a stochastic hill climber over rule weights. Each attempt
// perturbs one or more candidate bases Steps times and keeps the best
// candidate if it improves by more than MinImprovement.
type Exoself struct {
	Rand               *rand.Rand
	Steps              int
	StepSize           float64
	PerturbationRange  float64
	AnnealingFactor    float64
	MinImprovement     float64
	CandidateSelection string
	mu                 sync.Mutex
}

const (
	CandidateSelectBestSoFar     = "best_so_far"
	CandidateSelectOriginal      = "original"
	CandidateSelectDynamic       = "dynamic"
	CandidateSelectDynamicRandom = "dynamic_random"
	CandidateSelectRecent        = "recent"
	CandidateSelectRecentRandom  = "recent_random"
	CandidateSelectAll           = "all"
	CandidateSelectAllRandom     = "all_random"
)

var ErrUnknownCandidateSelection = errors.New("unknown candidate selection")

var candidateSelections = []string{
	CandidateSelectBestSoFar,
	CandidateSelectOriginal,
	CandidateSelectDynamic,
	CandidateSelectDynamicRandom,
	CandidateSelectRecent,
	CandidateSelectRecentRandom,
	CandidateSelectAll,
	CandidateSelectAllRandom,
}

// CandidateSelections lists the accepted mode names.
func CandidateSelections() []string {
	return append([]string(nil), candidateSelections...)
}

func (e *Exoself) Name() string {
	return "exoself_hillclimb"
}

func (e *Exoself) Tune(ctx context.Context, weights []float64, attempts int, fitness FitnessFn) ([]float64, error) {
	tuned, _, err := e.TuneWithReport(ctx, weights, attempts, fitness)
	return tuned, err
}

func (e *Exoself) TuneWithReport(ctx context.Context, weights []float64, attempts int, fitness FitnessFn) ([]float64, TuneReport, error) {
	report := TuneReport{AttemptsPlanned: attempts}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}
	if e == nil || e.Rand == nil {
		return nil, report, errors.New("random source is required")
	}
	if attempts <= 0 {
		return cloneWeights(weights), report, nil
	}
	if e.Steps <= 0 {
		return nil, report, errors.New("steps must be > 0")
	}
	if e.StepSize <= 0 {
		return nil, report, errors.New("step size must be > 0")
	}
	if e.PerturbationRange < 0 {
		return nil, report, errors.New("perturbation range must be >= 0")
	}
	if e.AnnealingFactor < 0 {
		return nil, report, errors.New("annealing factor must be >= 0")
	}
	if e.MinImprovement < 0 {
		return nil, report, errors.New("min improvement must be >= 0")
	}
	if fitness == nil {
		return nil, report, errors.New("fitness function is required")
	}
	if len(weights) == 0 {
		return cloneWeights(weights), report, nil
	}
	perturbationRange := e.PerturbationRange
	if perturbationRange == 0 {
		perturbationRange = 1.0
	}
	annealingFactor := e.AnnealingFactor
	if annealingFactor == 0 {
		annealingFactor = 1.0
	}

	best := cloneWeights(weights)
	bestFitness, err := fitness(ctx, best)
	if err != nil {
		return nil, report, err
	}
	report.CandidateEvaluations++
	recent := cloneWeights(best)

	for a := 0; a < attempts; a++ {
		bases, err := e.candidateBases(best, weights, recent)
		if err != nil {
			return nil, report, err
		}
		localBest := cloneWeights(best)
		localBestFitness := bestFitness
		for _, base := range bases {
			candidate, err := e.perturbCandidate(ctx, base, perturbationRange, annealingFactor)
			if err != nil {
				return nil, report, err
			}
			candidateFitness, err := fitness(ctx, candidate)
			if err != nil {
				return nil, report, err
			}
			report.CandidateEvaluations++
			if candidateFitness > localBestFitness+e.MinImprovement {
				localBest = candidate
				localBestFitness = candidateFitness
			}
		}
		report.AttemptsExecuted++
		recent = cloneWeights(localBest)
		if localBestFitness > bestFitness+e.MinImprovement {
			best = localBest
			bestFitness = localBestFitness
			report.AcceptedCandidates++
		} else {
			report.RejectedCandidates++
		}
	}
	return best, report, nil
}

func (e *Exoself) randIntn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Rand.Intn(n)
}

func (e *Exoself) randFloat64() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Rand.Float64()
}

func cloneWeights(w []float64) []float64 {
	return append([]float64(nil), w...)
}

func NormalizeCandidateSelectionName(name string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if normalized == "" {
		return CandidateSelectBestSoFar
	}
	return normalized
}

// ParseCandidateSelection normalizes name and rejects modes the climber does
// not implement.
func ParseCandidateSelection(name string) (string, error) {
	mode := NormalizeCandidateSelectionName(name)
	if !slices.Contains(candidateSelections, mode) {
		return "", fmt.Errorf("%w: %s (want one of %s)", ErrUnknownCandidateSelection, name, strings.Join(candidateSelections, ", "))
	}
	return mode, nil
}

func (e *Exoself) candidateBases(best, original, recent []float64) ([][]float64, error) {
	mode := NormalizeCandidateSelectionName(e.CandidateSelection)
	switch mode {
	case CandidateSelectDynamicRandom, CandidateSelectRecentRandom, CandidateSelectAllRandom:
		pool, err := candidateBasesForMode(nonRandomModeFor(mode), best, original, recent)
		if err != nil {
			return nil, err
		}
		return e.randomSubset(pool), nil
	default:
		return candidateBasesForMode(mode, best, original, recent)
	}
}

func candidateBasesForMode(mode string, best, original, recent []float64) ([][]float64, error) {
	switch mode {
	case CandidateSelectBestSoFar:
		return [][]float64{cloneWeights(best)}, nil
	case CandidateSelectOriginal:
		return [][]float64{cloneWeights(original)}, nil
	case CandidateSelectDynamic:
		return [][]float64{cloneWeights(best), cloneWeights(original)}, nil
	case CandidateSelectRecent:
		return [][]float64{cloneWeights(recent)}, nil
	case CandidateSelectAll:
		return [][]float64{cloneWeights(best), cloneWeights(original), cloneWeights(recent)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCandidateSelection, mode)
	}
}

func nonRandomModeFor(mode string) string {
	switch mode {
	case CandidateSelectDynamicRandom:
		return CandidateSelectDynamic
	case CandidateSelectRecentRandom:
		return CandidateSelectRecent
	case CandidateSelectAllRandom:
		return CandidateSelectAll
	default:
		return mode
	}
}

func (e *Exoself) randomSubset(pool [][]float64) [][]float64 {
	if len(pool) <= 1 {
		return pool
	}
	p := 1 / math.Sqrt(float64(len(pool)))
	chosen := make([][]float64, 0, len(pool))
	for i := range pool {
		if e.randFloat64() < p {
			chosen = append(chosen, pool[i])
		}
	}
	if len(chosen) > 0 {
		return chosen
	}
	return [][]float64{pool[e.randIntn(len(pool))]}
}

func (e *Exoself) perturbCandidate(ctx context.Context, base []float64, perturbationRange, annealingFactor float64) ([]float64, error) {
	candidate := cloneWeights(base)
	for s := 0; s < e.Steps; s++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		idx := e.randIntn(len(candidate))
		spread := e.StepSize * perturbationRange * math.Pow(annealingFactor, float64(s))
		candidate[idx] += (e.randFloat64()*2 - 1) * spread
	}
	return candidate, nil
}
