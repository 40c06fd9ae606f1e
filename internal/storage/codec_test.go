package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"healthfuzz/internal/model"
)

func TestDecodeRunFixture(t *testing.T) {
	data, err := os.ReadFile(fixturePath("run_v1.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	run, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	if run.ID != "run-fixture-1" || run.Scape != "reference" || run.RuleCount != 152 || run.Sense != "minimize" {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestDecodeRunVersionMismatch(t *testing.T) {
	data := []byte(`{"schema_version":2,"codec_version":1,"id":"r"}`)
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
	if _, err := DecodeRun([]byte(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTopIndividualsRoundTrip(t *testing.T) {
	in := []model.TopIndividualRecord{{
		VersionedRecord: CurrentVersion(),
		Rank:            1,
		Fitness:         37.25,
		Output:          87.25,
		Individual:      model.Individual{ID: "g9-3", Weights: []float64{0.5, -0.25, 1}},
	}}
	data, err := EncodeTopIndividuals(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeTopIndividuals(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\nin=%+v\nout=%+v", in, out)
	}
}

func TestDecodeLineageRejectsUnversionedRecords(t *testing.T) {
	data, err := EncodeLineage([]model.LineageRecord{{IndividualID: "g0-0", Operation: "seed"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeLineage(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}
