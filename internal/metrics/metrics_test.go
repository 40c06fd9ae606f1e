package metrics

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsAreIsolated(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.Evaluations.Add(3)
	a.Fallbacks.Inc()
	a.BestFitness.Set(12.5)

	if got := testutil.ToFloat64(a.Evaluations); got != 3 {
		t.Fatalf("expected 3 evaluations, got %f", got)
	}
	if got := testutil.ToFloat64(b.Evaluations); got != 0 {
		t.Fatalf("expected isolated registry, got %f", got)
	}
	if got := testutil.ToFloat64(a.BestFitness); got != 12.5 {
		t.Fatalf("expected best fitness gauge 12.5, got %f", got)
	}
}

func TestWriteText(t *testing.T) {
	c := NewCollector()
	c.Generations.Add(10)

	var buf bytes.Buffer
	if err := c.WriteText(&buf); err != nil {
		t.Fatalf("write text: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, OptimizerGenerationsN+" 10") {
		t.Fatalf("missing generations sample:\n%s", out)
	}
	if !strings.Contains(out, "# HELP "+OptimizerFallbacksN) {
		t.Fatalf("missing fallbacks help:\n%s", out)
	}
}
