package config

import (
	"fmt"

	"healthfuzz/internal/fuzzy"
)

// BuildRuleBase materializes the declared variables and rule table.
func (c Config) BuildRuleBase() (*fuzzy.RuleBase, error) {
	variables := make([]*fuzzy.Variable, 0, len(c.Antecedents)+1)
	for _, vc := range c.Antecedents {
		v, err := buildVariable(vc, fuzzy.Antecedent)
		if err != nil {
			return nil, err
		}
		variables = append(variables, v)
	}
	consequent, err := buildVariable(c.Consequent, fuzzy.Consequent)
	if err != nil {
		return nil, err
	}
	variables = append(variables, consequent)

	rules := make([]fuzzy.Rule, 0, len(c.RuleBase.Rules))
	for i, rc := range c.RuleBase.Rules {
		rule, err := buildRule(rc)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return fuzzy.NewRuleBase(variables, rules)
}

// BuildEngine is BuildRuleBase followed by fuzzy.NewEngine.
func (c Config) BuildEngine() (*fuzzy.Engine, error) {
	base, err := c.BuildRuleBase()
	if err != nil {
		return nil, err
	}
	return fuzzy.NewEngine(base)
}

func buildVariable(vc VariableConfig, role fuzzy.Role) (*fuzzy.Variable, error) {
	universe, err := fuzzy.Arange(vc.Universe.Start, vc.Universe.Stop, vc.Universe.Step)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", vc.Name, err)
	}

	var terms []fuzzy.Term
	switch {
	case len(vc.Terms) > 0:
		terms = make([]fuzzy.Term, 0, len(vc.Terms))
		for _, tc := range vc.Terms {
			tri, err := fuzzy.NewTriangle(tc.Points)
			if err != nil {
				return nil, fmt.Errorf("variable %s term %q: %w", vc.Name, tc.Label, err)
			}
			terms = append(terms, fuzzy.Term{Label: tc.Label, MF: tri})
		}
	case len(vc.Partition) > 0:
		terms, err = fuzzy.EvenPartition(universe, vc.Partition)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", vc.Name, err)
		}
	default:
		return nil, fmt.Errorf("variable %s: terms or partition is required", vc.Name)
	}

	return fuzzy.NewVariable(fuzzy.VariableSpec{
		Name:        vc.Name,
		Description: vc.Description,
		Role:        role,
		Universe:    universe,
		Terms:       terms,
	})
}

func buildRule(rc RuleConfig) (fuzzy.Rule, error) {
	clauses := make([]fuzzy.Clause, 0, len(rc.When))
	for _, pair := range rc.When {
		clause, err := buildClause(pair)
		if err != nil {
			return fuzzy.Rule{}, err
		}
		clauses = append(clauses, clause)
	}
	then, err := buildClause(rc.Then)
	if err != nil {
		return fuzzy.Rule{}, err
	}
	return fuzzy.Rule{Antecedent: clauses, Consequent: then}, nil
}

func buildClause(pair []string) (fuzzy.Clause, error) {
	if len(pair) != 2 {
		return fuzzy.Clause{}, fmt.Errorf("clause must be [variable, label], got %q", pair)
	}
	return fuzzy.Clause{Variable: pair[0], Label: pair[1]}, nil
}
