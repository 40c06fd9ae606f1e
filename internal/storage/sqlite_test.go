//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"healthfuzz/internal/model"
)

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "healthfuzz.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	run := model.RunRecord{VersionedRecord: CurrentVersion(), ID: "run-1", Scape: "reference", Sense: "minimize", RuleCount: 152, BestFitness: 38.5}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}
	run.BestFitness = 37.5
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	if loaded.BestFitness != 37.5 {
		t.Fatalf("expected upserted run, got %+v", loaded)
	}

	if err := store.SaveFitnessHistory(ctx, "run-1", []float64{39, 38, 37.5}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil || !ok || len(history) != 3 || history[2] != 37.5 {
		t.Fatalf("unexpected history: %v ok=%v err=%v", history, ok, err)
	}

	lineage := []model.LineageRecord{{VersionedRecord: CurrentVersion(), IndividualID: "g0-0", Operation: "seed"}}
	if err := store.SaveLineage(ctx, "run-1", lineage); err != nil {
		t.Fatalf("save lineage: %v", err)
	}
	gotLineage, ok, err := store.GetLineage(ctx, "run-1")
	if err != nil || !ok || len(gotLineage) != 1 || gotLineage[0].Operation != "seed" {
		t.Fatalf("unexpected lineage: %+v ok=%v err=%v", gotLineage, ok, err)
	}

	if _, ok, err := store.GetTopIndividuals(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing top individuals, ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "x.db"))
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "r"}); err == nil {
		t.Fatal("expected uninitialized store error")
	}
}
