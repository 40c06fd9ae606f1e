package evo

import (
	"errors"

	"healthfuzz/internal/fuzzy"
)

const DefaultNoRuleFiredPenalty = 1e6

// FallbackPolicy turns an evaluation where no rule fired into the worst
// finite fitness for the sense. Any other error is returned unchanged.
type FallbackPolicy struct {
	Penalty float64
}

func (p FallbackPolicy) penalty() float64 {
	if p.Penalty <= 0 {
		return DefaultNoRuleFiredPenalty
	}
	return p.Penalty
}

// Recover reports the substitute fitness and true when err wraps
// fuzzy.ErrNoRuleFired.
func (p FallbackPolicy) Recover(sense Sense, err error) (float64, bool, error) {
	if !errors.Is(err, fuzzy.ErrNoRuleFired) {
		return 0, false, err
	}
	return sense.Worst(p.penalty()), true, nil
}
