package fuzzy

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrNoRuleFired  = errors.New("no rule fired")
	ErrMissingInput = errors.New("missing input")
)

// Inference is the full trace of one Mamdani evaluation.
type Inference struct {
	// Degrees holds the fuzzified inputs: variable -> label -> degree.
	Degrees map[string]map[string]float64
	// Strengths holds the weighted firing strength of each rule, by position.
	Strengths []float64
	// Activations holds the max strength per consequent label.
	Activations map[string]map[string]float64
	// Aggregated holds the clipped union per consequent, sampled on its universe.
	Aggregated map[string][]float64
	Outputs    map[string]float64
}

// Engine evaluates a RuleBase. It holds no mutable state.
type Engine struct {
	base *RuleBase
}

func NewEngine(base *RuleBase) (*Engine, error) {
	if base == nil {
		return nil, errors.New("rule base is required")
	}
	return &Engine{base: base}, nil
}

func (e *Engine) RuleBase() *RuleBase {
	return e.base
}

// Compute returns one crisp value per consequent variable.
func (e *Engine) Compute(weights []float64, inputs map[string]float64) (map[string]float64, error) {
	inference, err := e.Infer(weights, inputs)
	if err != nil {
		return nil, err
	}
	return inference.Outputs, nil
}

// Infer runs fuzzification, rule firing, aggregation and centroid
// defuzzification. When no rule fires for a consequent, the partial trace is
// returned together with an error wrapping ErrNoRuleFired.
func (e *Engine) Infer(weights []float64, inputs map[string]float64) (Inference, error) {
	if err := e.base.CheckWeights(weights); err != nil {
		return Inference{}, err
	}
	for name := range inputs {
		v, ok := e.base.Variable(name)
		if !ok || v.Role() != Antecedent {
			return Inference{}, fmt.Errorf("%w: input %s", ErrUnknownVariable, name)
		}
	}

	inference := Inference{
		Degrees:     make(map[string]map[string]float64, len(e.base.antecedents)),
		Strengths:   make([]float64, len(e.base.rules)),
		Activations: make(map[string]map[string]float64, len(e.base.consequents)),
		Aggregated:  make(map[string][]float64, len(e.base.consequents)),
		Outputs:     make(map[string]float64, len(e.base.consequents)),
	}
	for _, v := range e.base.antecedents {
		x, ok := inputs[v.Name()]
		if !ok {
			return Inference{}, fmt.Errorf("%w: %s", ErrMissingInput, v.Name())
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Inference{}, fmt.Errorf("input %s is not finite: %v", v.Name(), x)
		}
		inference.Degrees[v.Name()] = v.Fuzzify(x)
	}
	for _, v := range e.base.consequents {
		activation := make(map[string]float64, len(v.labels))
		for _, label := range v.labels {
			activation[label] = 0
		}
		inference.Activations[v.Name()] = activation
	}

	for i, rule := range e.base.rules {
		degree := math.Inf(1)
		for _, clause := range rule.Antecedent {
			degree = math.Min(degree, inference.Degrees[clause.Variable][clause.Label])
		}
		strength := weights[i] * degree
		inference.Strengths[i] = strength

		activation := inference.Activations[rule.Consequent.Variable]
		if strength > activation[rule.Consequent.Label] {
			activation[rule.Consequent.Label] = strength
		}
	}

	var firstErr error
	for _, v := range e.base.consequents {
		aggregated := v.Aggregate(inference.Activations[v.Name()])
		inference.Aggregated[v.Name()] = aggregated
		crisp, err := Centroid(v.universe, aggregated)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("consequent %s: %w", v.Name(), err)
			}
			continue
		}
		inference.Outputs[v.Name()] = crisp
	}
	return inference, firstErr
}

// Centroid returns sum(x*mu(x)) / sum(mu(x)) over the sampled universe.
func Centroid(universe Universe, membership []float64) (float64, error) {
	if len(universe) != len(membership) {
		return 0, fmt.Errorf("centroid: %d samples but %d membership values", len(universe), len(membership))
	}
	area := floats.Sum(membership)
	if !(area > 0) {
		return 0, ErrNoRuleFired
	}
	return floats.Dot(universe, membership) / area, nil
}
