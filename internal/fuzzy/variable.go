package fuzzy

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrInvalidUniverse = errors.New("invalid universe")
	ErrDuplicateLabel  = errors.New("duplicate label")
	ErrUnknownLabel    = errors.New("unknown label")
)

// Role tells whether a variable is read by rules or produced by them.
type Role int

const (
	Antecedent Role = iota
	Consequent
)

func (r Role) String() string {
	switch r {
	case Antecedent:
		return "antecedent"
	case Consequent:
		return "consequent"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Universe is the ordered set of sample points a variable is defined over.
type Universe []float64

// NewUniverse validates that points are finite, non-empty and strictly increasing.
func NewUniverse(points []float64) (Universe, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no sample points", ErrInvalidUniverse)
	}
	for i, p := range points {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("%w: sample %d is not finite", ErrInvalidUniverse, i)
		}
		if i > 0 && p <= points[i-1] {
			return nil, fmt.Errorf("%w: sample %d (%g) does not increase", ErrInvalidUniverse, i, p)
		}
	}
	return append(Universe(nil), points...), nil
}

// Arange samples start, start+step, ... while strictly below stop.
func Arange(start, stop, step float64) (Universe, error) {
	if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, fmt.Errorf("%w: step must be positive, got %g", ErrInvalidUniverse, step)
	}
	if !(stop > start) {
		return nil, fmt.Errorf("%w: stop %g must exceed start %g", ErrInvalidUniverse, stop, start)
	}
	n := int(math.Ceil((stop - start) / step))
	if n == 1 {
		return NewUniverse([]float64{start})
	}
	points := make([]float64, n)
	floats.Span(points, start, start+float64(n-1)*step)
	return NewUniverse(points)
}

func (u Universe) Min() float64 { return u[0] }

func (u Universe) Max() float64 { return u[len(u)-1] }

// Clamp saturates x at the nearest universe bound.
func (u Universe) Clamp(x float64) float64 {
	if x < u.Min() {
		return u.Min()
	}
	if x > u.Max() {
		return u.Max()
	}
	return x
}

// Term binds a label to its membership function.
type Term struct {
	Label string
	MF    MembershipFunction
}

// EvenPartition covers the universe with len(labels) overlapping triangles whose
// peaks are evenly spaced from the lowest to the highest sample.
func EvenPartition(universe Universe, labels []string) ([]Term, error) {
	if len(labels) < 2 {
		return nil, fmt.Errorf("even partition requires at least 2 labels, got %d", len(labels))
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("%w: no sample points", ErrInvalidUniverse)
	}
	lo, hi := universe.Min(), universe.Max()
	if !(hi > lo) {
		return nil, fmt.Errorf("%w: even partition needs a non-degenerate range", ErrInvalidUniverse)
	}
	peaks := make([]float64, len(labels))
	floats.Span(peaks, lo, hi)
	half := (hi - lo) / float64(len(labels)-1)

	terms := make([]Term, 0, len(labels))
	for i, label := range labels {
		terms = append(terms, Term{
			Label: label,
			MF:    Triangle{A: peaks[i] - half, B: peaks[i], C: peaks[i] + half},
		})
	}
	return terms, nil
}

// VariableSpec declares a linguistic variable.
type VariableSpec struct {
	Name        string
	Description string
	Role        Role
	Universe    Universe
	Terms       []Term
}

// Variable is an immutable linguistic variable. It is safe for concurrent use.
type Variable struct {
	name        string
	description string
	role        Role
	universe    Universe
	labels      []string
	terms       map[string]MembershipFunction
}

func NewVariable(spec VariableSpec) (*Variable, error) {
	if spec.Name == "" {
		return nil, errors.New("variable name is required")
	}
	if spec.Role != Antecedent && spec.Role != Consequent {
		return nil, fmt.Errorf("variable %s: unsupported role %s", spec.Name, spec.Role)
	}
	universe, err := NewUniverse(spec.Universe)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", spec.Name, err)
	}
	if len(spec.Terms) == 0 {
		return nil, fmt.Errorf("variable %s: at least one term is required", spec.Name)
	}

	v := &Variable{
		name:        spec.Name,
		description: spec.Description,
		role:        spec.Role,
		universe:    universe,
		labels:      make([]string, 0, len(spec.Terms)),
		terms:       make(map[string]MembershipFunction, len(spec.Terms)),
	}
	for _, term := range spec.Terms {
		if term.Label == "" {
			return nil, fmt.Errorf("variable %s: term label is required", spec.Name)
		}
		if term.MF == nil {
			return nil, fmt.Errorf("variable %s: term %q has no membership function", spec.Name, term.Label)
		}
		if _, exists := v.terms[term.Label]; exists {
			return nil, fmt.Errorf("variable %s: %w: %q", spec.Name, ErrDuplicateLabel, term.Label)
		}
		v.labels = append(v.labels, term.Label)
		v.terms[term.Label] = term.MF
	}
	return v, nil
}

func (v *Variable) Name() string { return v.name }

func (v *Variable) Description() string { return v.description }

func (v *Variable) Role() Role { return v.role }

// Universe returns a copy of the sample points.
func (v *Variable) Universe() Universe {
	return append(Universe(nil), v.universe...)
}

// Labels returns term labels in declaration order.
func (v *Variable) Labels() []string {
	return append([]string(nil), v.labels...)
}

func (v *Variable) HasLabel(label string) bool {
	_, ok := v.terms[label]
	return ok
}

func (v *Variable) Membership(label string) (MembershipFunction, error) {
	mf, ok := v.terms[label]
	if !ok {
		return nil, fmt.Errorf("variable %s: %w: %q", v.name, ErrUnknownLabel, label)
	}
	return mf, nil
}

// Fuzzify returns the degree of every label for x. Values outside the
// universe read as the nearest bound.
func (v *Variable) Fuzzify(x float64) map[string]float64 {
	x = v.universe.Clamp(x)
	out := make(map[string]float64, len(v.labels))
	for _, label := range v.labels {
		out[label] = v.terms[label].Evaluate(x)
	}
	return out
}

// Aggregate clips each activated label at its activation and unions the
// results over the universe samples. Labels with non-positive activation
// contribute nothing.
func (v *Variable) Aggregate(activations map[string]float64) []float64 {
	out := make([]float64, len(v.universe))
	for _, label := range v.labels {
		level := activations[label]
		if !(level > 0) {
			continue
		}
		mf := v.terms[label]
		for i, x := range v.universe {
			out[i] = math.Max(out[i], math.Min(level, mf.Evaluate(x)))
		}
	}
	return out
}
