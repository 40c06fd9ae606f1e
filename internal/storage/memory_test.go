package storage

import (
	"context"
	"testing"

	"healthfuzz/internal/model"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	run := model.RunRecord{VersionedRecord: CurrentVersion(), ID: "run-1", Scape: "reference", RuleCount: 152, BestFitness: 38.5}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil || !ok || loaded.BestFitness != 38.5 || loaded.RuleCount != 152 {
		t.Fatalf("unexpected run: %+v ok=%v err=%v", loaded, ok, err)
	}
	if _, ok, _ := store.GetRun(ctx, "missing"); ok {
		t.Fatal("expected missing run")
	}

	history := []float64{40, 39, 38.5}
	if err := store.SaveFitnessHistory(ctx, "run-1", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history[0] = 0
	gotHistory, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok || gotHistory[0] != 40 {
		t.Fatalf("history was not copied on save: %v", gotHistory)
	}

	top := []model.TopIndividualRecord{{
		VersionedRecord: CurrentVersion(),
		Rank:            1,
		Fitness:         38.5,
		Individual:      model.Individual{ID: "g3-1", Weights: []float64{0.1, 0.2}},
	}}
	if err := store.SaveTopIndividuals(ctx, "run-1", top); err != nil {
		t.Fatalf("save top: %v", err)
	}
	top[0].Individual.Weights[0] = 9
	gotTop, ok, err := store.GetTopIndividuals(ctx, "run-1")
	if err != nil || !ok || gotTop[0].Individual.Weights[0] != 0.1 {
		t.Fatalf("top individuals were not deep-copied: %+v", gotTop)
	}

	lineage := []model.LineageRecord{{VersionedRecord: CurrentVersion(), IndividualID: "g1-0", ParentIDs: []string{"g0-1", "g0-2"}, Generation: 1, Operation: "crossover+mutation"}}
	if err := store.SaveLineage(ctx, "run-1", lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	lineage[0].ParentIDs[0] = "changed"
	gotLineage, ok, err := store.GetLineage(ctx, "run-1")
	if err != nil || !ok || gotLineage[0].ParentIDs[0] != "g0-1" {
		t.Fatalf("lineage was not deep-copied: %+v", gotLineage)
	}

	diagnostics := []model.GenerationDiagnostics{{Generation: 1, BestFitness: 38.5, Diversity: 10}}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	gotDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil || !ok || len(gotDiagnostics) != 1 || gotDiagnostics[0].Diversity != 10 {
		t.Fatalf("unexpected diagnostics: %+v", gotDiagnostics)
	}

	summary := model.ScapeSummary{VersionedRecord: CurrentVersion(), Name: "reference", BestFitness: 38.5}
	if err := store.SaveScapeSummary(ctx, summary); err != nil {
		t.Fatalf("save scape summary: %v", err)
	}
	gotSummary, ok, err := store.GetScapeSummary(ctx, "reference")
	if err != nil || !ok || gotSummary.BestFitness != 38.5 {
		t.Fatalf("unexpected summary: %+v", gotSummary)
	}
}
