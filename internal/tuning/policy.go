package tuning

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var ErrUnknownAttemptPolicy = errors.New("unknown tune attempt policy")

// AttemptPolicy decides how many hill-climb attempts an offspring receives in
// a given generation.
type AttemptPolicy interface {
	Name() string
	Attempts(baseAttempts, generation, totalGenerations, genes int) int
}

// FixedAttemptPolicy always grants the configured attempts.
type FixedAttemptPolicy struct{}

func (FixedAttemptPolicy) Name() string { return "fixed" }

func (FixedAttemptPolicy) Attempts(baseAttempts, _, _, _ int) int {
	return max(baseAttempts, 0)
}

// LinearDecayAttemptPolicy scales attempts by the share of generations left,
// never dropping below MinAttempts.
type LinearDecayAttemptPolicy struct {
	MinAttempts int
}

func (LinearDecayAttemptPolicy) Name() string { return "linear_decay" }

func (p LinearDecayAttemptPolicy) Attempts(baseAttempts, generation, totalGenerations, _ int) int {
	if baseAttempts <= 0 {
		return 0
	}
	if totalGenerations <= 0 {
		return baseAttempts
	}
	remaining := max(totalGenerations-generation, 1)
	return max(baseAttempts*remaining/totalGenerations, p.MinAttempts, 0)
}

// SizeProportionalAttemptPolicy adds genes^Power attempts on top of the base,
// capped at MaxAttempts when set. Power defaults to 0.5.
type SizeProportionalAttemptPolicy struct {
	Power       float64
	MaxAttempts int
}

func (SizeProportionalAttemptPolicy) Name() string { return "size_proportional" }

func (p SizeProportionalAttemptPolicy) Attempts(baseAttempts, _, _, genes int) int {
	if baseAttempts <= 0 {
		return 0
	}
	power := p.Power
	if power <= 0 {
		power = 0.5
	}
	attempts := baseAttempts + int(math.Round(math.Pow(float64(genes), power)))
	if p.MaxAttempts > 0 {
		attempts = min(attempts, p.MaxAttempts)
	}
	return attempts
}

var attemptPolicies = map[string]func(param float64) AttemptPolicy{
	"fixed": func(float64) AttemptPolicy {
		return FixedAttemptPolicy{}
	},
	"linear_decay": func(param float64) AttemptPolicy {
		return LinearDecayAttemptPolicy{MinAttempts: max(int(param), 1)}
	},
	"size_proportional": func(param float64) AttemptPolicy {
		return SizeProportionalAttemptPolicy{Power: param}
	},
}

// AttemptPolicies lists the accepted canonical policy names.
func AttemptPolicies() []string {
	names := make([]string, 0, len(attemptPolicies))
	for name := range attemptPolicies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AttemptPolicyFromConfig resolves a policy by name. param is the minimum for
// linear_decay and the exponent for size_proportional; fixed ignores it.
func AttemptPolicyFromConfig(name string, param float64) (AttemptPolicy, error) {
	build, ok := attemptPolicies[NormalizeAttemptPolicyName(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s (want one of %s)", ErrUnknownAttemptPolicy, name, strings.Join(AttemptPolicies(), ", "))
	}
	return build(param), nil
}

func NormalizeAttemptPolicyName(name string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	switch normalized {
	case "", "const", "constant":
		return "fixed"
	case "decay":
		return "linear_decay"
	case "size", "proportional":
		return "size_proportional"
	default:
		return normalized
	}
}
