package evo

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// GaussianMutation adds N(Mean, Sigma) noise to each gene with
// GeneProbability. Genes are not clamped.
type GaussianMutation struct {
	Mean            float64
	Sigma           float64
	GeneProbability float64
}

func (GaussianMutation) Name() string {
	return "gaussian"
}

func (m GaussianMutation) Mutate(rng *rand.Rand, weights []float64) ([]float64, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if m.Sigma < 0 {
		return nil, fmt.Errorf("mutation sigma must be >= 0")
	}
	if m.GeneProbability < 0 || m.GeneProbability > 1 {
		return nil, fmt.Errorf("gene mutation probability must be in [0, 1]")
	}
	noise := distuv.Normal{Mu: m.Mean, Sigma: m.Sigma}
	out := append([]float64(nil), weights...)
	for i := range out {
		if rng.Float64() < m.GeneProbability {
			out[i] += noise.Quantile(openUnit(rng))
		}
	}
	return out, nil
}

// UniformMutation replaces each gene with GeneProbability by a draw from
// [Low, High).
type UniformMutation struct {
	Low             float64
	High            float64
	GeneProbability float64
}

func (UniformMutation) Name() string {
	return "uniform"
}

func (m UniformMutation) Mutate(rng *rand.Rand, weights []float64) ([]float64, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if !(m.High > m.Low) {
		return nil, fmt.Errorf("uniform mutation requires high > low")
	}
	if m.GeneProbability < 0 || m.GeneProbability > 1 {
		return nil, fmt.Errorf("gene mutation probability must be in [0, 1]")
	}
	out := append([]float64(nil), weights...)
	for i := range out {
		if rng.Float64() < m.GeneProbability {
			out[i] = m.Low + rng.Float64()*(m.High-m.Low)
		}
	}
	return out, nil
}

// openUnit draws from (0, 1) so that quantile lookups stay finite.
func openUnit(rng *rand.Rand) float64 {
	for {
		u := rng.Float64()
		if u > 0 {
			return u
		}
	}
}
