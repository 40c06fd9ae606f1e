package fuzzy

import (
	"fmt"
	"math"
)

// MembershipFunction maps a crisp value to a degree of truth in [0,1].
type MembershipFunction interface {
	Evaluate(x float64) float64
}

// Triangle is a triangular membership function with feet A, C and peak B.
type Triangle struct {
	A float64
	B float64
	C float64
}

// NewTriangle builds a triangle from three breakpoints ordered a <= b <= c.
func NewTriangle(points []float64) (Triangle, error) {
	if len(points) != 3 {
		return Triangle{}, fmt.Errorf("triangle requires 3 breakpoints, got %d", len(points))
	}
	for _, p := range points {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return Triangle{}, fmt.Errorf("triangle breakpoint is not finite: %v", points)
		}
	}
	if points[0] > points[1] || points[1] > points[2] {
		return Triangle{}, fmt.Errorf("triangle breakpoints must satisfy a <= b <= c: %v", points)
	}
	return Triangle{A: points[0], B: points[1], C: points[2]}, nil
}

func (t Triangle) Evaluate(x float64) float64 {
	if x < t.A || x > t.C {
		return 0
	}
	left := 1.0
	if t.B != t.A {
		left = (x - t.A) / (t.B - t.A)
	}
	right := 1.0
	if t.C != t.B {
		right = (t.C - x) / (t.C - t.B)
	}
	return math.Max(math.Min(left, right), 0)
}

func (t Triangle) String() string {
	return fmt.Sprintf("trimf[%g %g %g]", t.A, t.B, t.C)
}
