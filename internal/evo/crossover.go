package evo

import (
	"fmt"
	"math/rand"
)

// TwoPointCrossover swaps the segment between two distinct cut points.
type TwoPointCrossover struct{}

func (TwoPointCrossover) Name() string {
	return "two_point"
}

func (TwoPointCrossover) Cross(rng *rand.Rand, a, b []float64) ([]float64, []float64, error) {
	if rng == nil {
		return nil, nil, fmt.Errorf("random source is required")
	}
	if len(a) != len(b) {
		return nil, nil, fmt.Errorf("crossover parents differ in length: %d vs %d", len(a), len(b))
	}
	childA := append([]float64(nil), a...)
	childB := append([]float64(nil), b...)
	size := len(a)
	if size < 2 {
		return childA, childB, nil
	}

	cx1 := 1 + rng.Intn(size)
	cx2 := 1 + rng.Intn(size-1)
	if cx2 >= cx1 {
		cx2++
	} else {
		cx1, cx2 = cx2, cx1
	}
	for i := cx1; i < cx2; i++ {
		childA[i], childB[i] = childB[i], childA[i]
	}
	return childA, childB, nil
}

// UniformCrossover swaps each gene independently with SwapProbability.
type UniformCrossover struct {
	SwapProbability float64
}

func (UniformCrossover) Name() string {
	return "uniform"
}

func (c UniformCrossover) Cross(rng *rand.Rand, a, b []float64) ([]float64, []float64, error) {
	if rng == nil {
		return nil, nil, fmt.Errorf("random source is required")
	}
	if len(a) != len(b) {
		return nil, nil, fmt.Errorf("crossover parents differ in length: %d vs %d", len(a), len(b))
	}
	p := c.SwapProbability
	if p <= 0 {
		p = 0.5
	}
	childA := append([]float64(nil), a...)
	childB := append([]float64(nil), b...)
	for i := range childA {
		if rng.Float64() < p {
			childA[i], childB[i] = childB[i], childA[i]
		}
	}
	return childA, childB, nil
}
