package tuning

import (
	"context"
	"errors"
	"math/rand"
	"testing"
)

func quadraticFitness(target []float64) FitnessFn {
	return func(_ context.Context, w []float64) (float64, error) {
		total := 0.0
		for i := range w {
			d := w[i] - target[i]
			total += d * d
		}
		return -total, nil
	}
}

func TestExoselfImprovesFitness(t *testing.T) {
	start := []float64{-2, 0.5, 3}
	fitnessFn := quadraticFitness([]float64{1, 1, 1})
	tuner := &Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 3, StepSize: 0.4}

	before, _ := fitnessFn(context.Background(), start)
	tuned, report, err := tuner.TuneWithReport(context.Background(), start, 60, fitnessFn)
	if err != nil {
		t.Fatalf("tune: %v", err)
	}
	after, _ := fitnessFn(context.Background(), tuned)
	if after <= before {
		t.Fatalf("expected tuned fitness > baseline: before=%f after=%f", before, after)
	}
	if report.AttemptsExecuted != 60 {
		t.Fatalf("expected 60 attempts, got %+v", report)
	}
	if report.AcceptedCandidates+report.RejectedCandidates != 60 {
		t.Fatalf("accepted+rejected must equal attempts: %+v", report)
	}
	if start[0] != -2 {
		t.Fatal("input weights were modified")
	}
}

func TestExoselfCandidateSelectionModes(t *testing.T) {
	fitnessFn := quadraticFitness([]float64{0, 0})
	for _, mode := range append([]string{""}, CandidateSelections()...) {
		tuner := &Exoself{Rand: rand.New(rand.NewSource(7)), Steps: 2, StepSize: 0.2, CandidateSelection: mode}
		if _, err := tuner.Tune(context.Background(), []float64{1, 1}, 5, fitnessFn); err != nil {
			t.Fatalf("mode %q: %v", mode, err)
		}
	}
	tuner := &Exoself{Rand: rand.New(rand.NewSource(7)), Steps: 2, StepSize: 0.2, CandidateSelection: "bogus"}
	if _, err := tuner.Tune(context.Background(), []float64{1, 1}, 5, fitnessFn); !errors.Is(err, ErrUnknownCandidateSelection) {
		t.Fatalf("expected unknown candidate selection error, got %v", err)
	}
}

func TestParseCandidateSelection(t *testing.T) {
	cases := map[string]string{
		"":               CandidateSelectBestSoFar,
		"Best-So-Far":    CandidateSelectBestSoFar,
		" all_random ":   CandidateSelectAllRandom,
		"dynamic-random": CandidateSelectDynamicRandom,
		"RECENT":         CandidateSelectRecent,
	}
	for in, want := range cases {
		got, err := ParseCandidateSelection(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %q want %q", in, got, want)
		}
	}
	if _, err := ParseCandidateSelection("newest"); !errors.Is(err, ErrUnknownCandidateSelection) {
		t.Fatalf("expected unknown candidate selection error, got %v", err)
	}
}

func TestExoselfZeroAttemptsReturnsCopy(t *testing.T) {
	tuner := &Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 4, StepSize: 0.2}
	in := []float64{0.3, 0.7}
	out, err := tuner.Tune(context.Background(), in, 0, func(context.Context, []float64) (float64, error) {
		t.Fatal("fitness must not be called")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("tune: %v", err)
	}
	out[0] = 9
	if in[0] != 0.3 {
		t.Fatal("expected a copy")
	}
}

func TestExoselfPropagatesFitnessError(t *testing.T) {
	boom := errors.New("boom")
	tuner := &Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 0.2}
	_, err := tuner.Tune(context.Background(), []float64{1}, 3, func(context.Context, []float64) (float64, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fitness error, got %v", err)
	}
}

func TestExoselfInputValidation(t *testing.T) {
	w := []float64{0}
	fitnessFn := func(context.Context, []float64) (float64, error) { return 0, nil }

	if _, err := (&Exoself{}).Tune(context.Background(), w, 1, fitnessFn); err == nil {
		t.Fatal("expected rand validation error")
	}
	if _, err := (&Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 0, StepSize: 1}).Tune(context.Background(), w, 1, fitnessFn); err == nil {
		t.Fatal("expected steps validation error")
	}
	if _, err := (&Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 0}).Tune(context.Background(), w, 1, fitnessFn); err == nil {
		t.Fatal("expected step size validation error")
	}
	if _, err := (&Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 1, PerturbationRange: -1}).Tune(context.Background(), w, 1, fitnessFn); err == nil {
		t.Fatal("expected perturbation range validation error")
	}
	if _, err := (&Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 1, AnnealingFactor: -1}).Tune(context.Background(), w, 1, fitnessFn); err == nil {
		t.Fatal("expected annealing factor validation error")
	}
	if _, err := (&Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 1}).Tune(context.Background(), w, 1, nil); err == nil {
		t.Fatal("expected fitness validation error")
	}
	if _, err := (&Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 1, MinImprovement: -0.1}).Tune(context.Background(), w, 1, fitnessFn); err == nil {
		t.Fatal("expected min improvement validation error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&Exoself{Rand: rand.New(rand.NewSource(1)), Steps: 1, StepSize: 1}).Tune(ctx, w, 1, fitnessFn); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}
