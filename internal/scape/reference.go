package scape

import (
	"context"
	"errors"
	"fmt"
	"math"

	"healthfuzz/internal/fuzzy"
)

// Case is a crisp input vector and the output value it should produce.
type Case struct {
	Inputs map[string]float64
	Target float64
}

// ReferenceScape scores a weight vector by the mean absolute distance between
// the engine output and the target over its cases. With a single case the
// fitness is |target - output|.
type ReferenceScape struct {
	engine *fuzzy.Engine
	output string
	cases  []Case
}

func NewReferenceScape(engine *fuzzy.Engine, output string, cases []Case) (*ReferenceScape, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if len(cases) == 0 {
		return nil, errors.New("at least one reference case is required")
	}
	base := engine.RuleBase()
	if output == "" {
		consequents := base.Consequents()
		output = consequents[0].Name()
	}
	v, ok := base.Variable(output)
	if !ok || v.Role() != fuzzy.Consequent {
		return nil, fmt.Errorf("%w: output %s", fuzzy.ErrUnknownVariable, output)
	}

	copied := make([]Case, 0, len(cases))
	for i, c := range cases {
		for _, in := range base.Antecedents() {
			if _, ok := c.Inputs[in.Name()]; !ok {
				return nil, fmt.Errorf("case %d: %w: %s", i, fuzzy.ErrMissingInput, in.Name())
			}
		}
		if math.IsNaN(c.Target) || math.IsInf(c.Target, 0) {
			return nil, fmt.Errorf("case %d: target is not finite", i)
		}
		inputs := make(map[string]float64, len(c.Inputs))
		for k, x := range c.Inputs {
			inputs[k] = x
		}
		copied = append(copied, Case{Inputs: inputs, Target: c.Target})
	}
	return &ReferenceScape{engine: engine, output: output, cases: copied}, nil
}

func (*ReferenceScape) Name() string {
	return "reference"
}

// Output names the consequent variable being scored.
func (s *ReferenceScape) Output() string {
	return s.output
}

func (s *ReferenceScape) Description() string {
	if len(s.cases) == 1 {
		return fmt.Sprintf("distance of %s to %g on a fixed scenario", s.output, s.cases[0].Target)
	}
	return fmt.Sprintf("mean distance of %s to target over %d scenarios", s.output, len(s.cases))
}

// Evaluate returns an error wrapping fuzzy.ErrNoRuleFired when the weights
// leave every consequent label inactive for some case.
func (s *ReferenceScape) Evaluate(ctx context.Context, weights []float64) (Fitness, Trace, error) {
	total := 0.0
	outputs := make([]float64, 0, len(s.cases))
	for i, c := range s.cases {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		out, err := s.engine.Compute(weights, c.Inputs)
		if err != nil {
			return 0, nil, fmt.Errorf("case %d: %w", i, err)
		}
		value := out[s.output]
		outputs = append(outputs, value)
		total += math.Abs(c.Target - value)
	}
	mean := total / float64(len(s.cases))
	return Fitness(mean), Trace{
		"output":  outputs[0],
		"outputs": outputs,
		"error":   mean,
		"cases":   len(s.cases),
	}, nil
}
