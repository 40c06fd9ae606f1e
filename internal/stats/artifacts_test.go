package stats

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"healthfuzz/internal/model"
)

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:       runID,
			Scape:       "reference",
			Sense:       "minimize",
			RuleCount:   2,
			Target:      50,
			Population:  4,
			Offspring:   4,
			Generations: 3,
			Seed:        1,
			Workers:     2,
		},
		BestByGeneration: []float64{39.8, 39.1, 38.5},
		FinalBestFitness: 38.5,
		FinalBestOutput:  88.5,
		BestWeights:      []float64{0.4, 0.9},
		TopIndividuals: []model.TopIndividualRecord{{
			Rank:       1,
			Fitness:    38.5,
			Output:     88.5,
			Individual: model.Individual{ID: "g2-1", Weights: []float64{0.4, 0.9}},
		}},
		Lineage: []model.LineageRecord{{
			IndividualID: "g2-1",
			ParentIDs:    []string{"g1-0"},
			Generation:   2,
			Operation:    "crossover+mutation",
		}},
		GenerationDiagnostics: []model.GenerationDiagnostics{{Generation: 1, BestFitness: 39.8}},
	}

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range artifactFiles {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.Scape != "reference" || cfg.RuleCount != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	series, ok, err := ReadFitnessSeries(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read series: ok=%t err=%v", ok, err)
	}
	if len(series) != 3 || series[2] != 38.5 {
		t.Fatalf("unexpected series: %v", series)
	}

	convergence, ok, err := ReadConvergence(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read convergence: ok=%t err=%v", ok, err)
	}
	if math.Abs(convergence.Improvement-1.3) > 1e-9 {
		t.Fatalf("unexpected improvement: %+v", convergence)
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range artifactFiles {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	if _, err := ExportRunArtifacts(baseDir, "missing", outDir); err == nil {
		t.Fatal("expected export of unknown run to fail")
	}
}

func TestWriteRunArtifactsValidation(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, RunArtifacts{BestByGeneration: []float64{1}}); err == nil {
		t.Fatal("expected missing run id error")
	}
	if _, err := WriteRunArtifacts(baseDir, RunArtifacts{Config: RunConfig{RunID: "run-x"}}); err == nil {
		t.Fatal("expected empty series error")
	}
	if _, err := WriteRunArtifacts(baseDir, RunArtifacts{
		Config:           RunConfig{RunID: "run-x", Sense: "sideways"},
		BestByGeneration: []float64{1},
	}); err == nil {
		t.Fatal("expected sense error")
	}
}

func TestReadMissingArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, ok, err := ReadRunConfig(baseDir, "none"); ok || err != nil {
		t.Fatalf("expected missing config, ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadFitnessSeries(baseDir, "none"); ok || err != nil {
		t.Fatalf("expected missing series, ok=%t err=%v", ok, err)
	}
}

func TestSummarize(t *testing.T) {
	c, err := Summarize("run-min", "minimize", []float64{40, 38, 37})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if c.InitialBest != 40 || c.FinalBest != 37 || c.BestMin != 37 || c.BestMax != 40 || c.Improvement != 3 {
		t.Fatalf("unexpected minimize summary: %+v", c)
	}
	if math.Abs(c.BestMean-115.0/3.0) > 1e-12 || c.BestStd <= 0 {
		t.Fatalf("unexpected moments: %+v", c)
	}

	c, err = Summarize("run-max", "maximize", []float64{1, 4})
	if err != nil {
		t.Fatalf("summarize maximize: %v", err)
	}
	if c.Improvement != 3 || c.Sense != "maximize" {
		t.Fatalf("unexpected maximize summary: %+v", c)
	}

	c, err = Summarize("run-one", "", []float64{5})
	if err != nil {
		t.Fatalf("summarize single: %v", err)
	}
	if c.BestStd != 0 || c.Improvement != 0 || c.Sense != "minimize" {
		t.Fatalf("unexpected single-point summary: %+v", c)
	}

	if _, err := Summarize("run-empty", "minimize", nil); err == nil {
		t.Fatal("expected empty series error")
	}
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	err := AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-1",
		Scape:            "reference",
		Population:       8,
		Generations:      3,
		Seed:             1,
		Workers:          2,
		FinalBestFitness: 39.0,
		CreatedAtUTC:     "2026-02-10T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-1: %v", err)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-2",
		Scape:            "reference",
		Population:       8,
		Generations:      3,
		Seed:             2,
		Workers:          2,
		FinalBestFitness: 38.2,
		CreatedAtUTC:     "2026-02-10T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-2: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-2" || entries[1].RunID != "run-1" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:            "run-1",
		Scape:            "reference",
		FinalBestFitness: 37.5,
		CreatedAtUTC:     "2026-02-10T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("upsert run-1: %v", err)
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after upsert, got %d", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].FinalBestFitness != 37.5 {
		t.Fatalf("unexpected upsert result: %+v", entries[0])
	}

	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestRunIndexEqualTimestampPrefersLaterAppend(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-02-10T12:00:00Z"

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-a", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-a: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-b", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-b: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].RunID != "run-b" {
		t.Fatalf("expected latest appended run-b first, got %+v", entries)
	}
}
