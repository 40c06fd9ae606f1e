package evo

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"healthfuzz/internal/model"
	"healthfuzz/internal/scape"
)

// Sense is the optimization direction. Every fitness comparison in this
// package goes through Sense.Better.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

func ParseSense(name string) (Sense, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "min", "minimize":
		return Minimize, nil
	case "max", "maximize":
		return Maximize, nil
	default:
		return 0, fmt.Errorf("unsupported optimization sense: %s", name)
	}
}

func (s Sense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Better reports whether a is strictly better than b. NaN is never better
// than anything and everything finite is better than NaN.
func (s Sense) Better(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	if s == Maximize {
		return a > b
	}
	return a < b
}

// Worst returns the penalty-sized fitness on the losing side of the sense.
func (s Sense) Worst(penalty float64) float64 {
	if s == Maximize {
		return -penalty
	}
	return penalty
}

type ScoredIndividual struct {
	Individual model.Individual
	Fitness    float64
	Output     float64
	Trace      scape.Trace
	// Fallback is set when the fitness is a penalty standing in for a run
	// where no rule fired.
	Fallback  bool
	evaluated bool
}

// Rank stable-sorts best first under the sense.
func Rank(scored []ScoredIndividual, sense Sense) {
	sort.SliceStable(scored, func(i, j int) bool {
		return sense.Better(scored[i].Fitness, scored[j].Fitness)
	})
}

func cloneScored(scored []ScoredIndividual) []ScoredIndividual {
	out := make([]ScoredIndividual, len(scored))
	for i, item := range scored {
		out[i] = item
		out[i].Individual = item.Individual.Clone()
	}
	return out
}
