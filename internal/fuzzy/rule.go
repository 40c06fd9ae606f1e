package fuzzy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownVariable         = errors.New("unknown variable")
	ErrInvalidIndividualLength = errors.New("invalid individual length")
)

// Clause is a single "variable is label" proposition.
type Clause struct {
	Variable string
	Label    string
}

func (c Clause) String() string {
	return fmt.Sprintf("%s[%s]", c.Variable, c.Label)
}

// Rule is a conjunction of antecedent clauses implying one consequent clause.
// Weights are kept outside the rule, indexed by rule position in a RuleBase.
type Rule struct {
	Antecedent []Clause
	Consequent Clause
}

func (r Rule) String() string {
	parts := make([]string, 0, len(r.Antecedent))
	for _, clause := range r.Antecedent {
		parts = append(parts, clause.String())
	}
	return "IF " + strings.Join(parts, " AND ") + " THEN " + r.Consequent.String()
}

func (r Rule) clone() Rule {
	return Rule{
		Antecedent: append([]Clause(nil), r.Antecedent...),
		Consequent: r.Consequent,
	}
}

// RuleBase is the validated, ordered rule table together with the variables it
// references. It is immutable after construction.
type RuleBase struct {
	variables   map[string]*Variable
	antecedents []*Variable
	consequents []*Variable
	rules       []Rule
}

func NewRuleBase(variables []*Variable, rules []Rule) (*RuleBase, error) {
	if len(rules) == 0 {
		return nil, errors.New("rule base requires at least one rule")
	}
	rb := &RuleBase{
		variables: make(map[string]*Variable, len(variables)),
		rules:     make([]Rule, 0, len(rules)),
	}
	for _, v := range variables {
		if v == nil {
			return nil, errors.New("nil variable")
		}
		if _, exists := rb.variables[v.Name()]; exists {
			return nil, fmt.Errorf("duplicate variable: %s", v.Name())
		}
		rb.variables[v.Name()] = v
		switch v.Role() {
		case Antecedent:
			rb.antecedents = append(rb.antecedents, v)
		case Consequent:
			rb.consequents = append(rb.consequents, v)
		}
	}
	if len(rb.antecedents) == 0 || len(rb.consequents) == 0 {
		return nil, errors.New("rule base requires antecedent and consequent variables")
	}

	for i, rule := range rules {
		if len(rule.Antecedent) == 0 {
			return nil, fmt.Errorf("rule %d: empty antecedent", i)
		}
		for _, clause := range rule.Antecedent {
			if err := rb.checkClause(clause, Antecedent); err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
		}
		if err := rb.checkClause(rule.Consequent, Consequent); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rb.rules = append(rb.rules, rule.clone())
	}
	return rb, nil
}

func (rb *RuleBase) checkClause(clause Clause, role Role) error {
	v, ok := rb.variables[clause.Variable]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVariable, clause.Variable)
	}
	if v.Role() != role {
		return fmt.Errorf("variable %s is a %s, not a %s", clause.Variable, v.Role(), role)
	}
	if !v.HasLabel(clause.Label) {
		return fmt.Errorf("variable %s: %w: %q", clause.Variable, ErrUnknownLabel, clause.Label)
	}
	return nil
}

func (rb *RuleBase) Len() int {
	return len(rb.rules)
}

func (rb *RuleBase) Rule(i int) Rule {
	return rb.rules[i].clone()
}

func (rb *RuleBase) Rules() []Rule {
	out := make([]Rule, 0, len(rb.rules))
	for _, rule := range rb.rules {
		out = append(out, rule.clone())
	}
	return out
}

func (rb *RuleBase) Variable(name string) (*Variable, bool) {
	v, ok := rb.variables[name]
	return v, ok
}

// Antecedents returns the input variables in declaration order.
func (rb *RuleBase) Antecedents() []*Variable {
	return append([]*Variable(nil), rb.antecedents...)
}

// Consequents returns the output variables in declaration order.
func (rb *RuleBase) Consequents() []*Variable {
	return append([]*Variable(nil), rb.consequents...)
}

// UniformWeights returns a weight vector with every rule set to w.
func (rb *RuleBase) UniformWeights(w float64) []float64 {
	weights := make([]float64, len(rb.rules))
	for i := range weights {
		weights[i] = w
	}
	return weights
}

func (rb *RuleBase) CheckWeights(weights []float64) error {
	if len(weights) != len(rb.rules) {
		return fmt.Errorf("%w: got %d weights for %d rules", ErrInvalidIndividualLength, len(weights), len(rb.rules))
	}
	return nil
}
