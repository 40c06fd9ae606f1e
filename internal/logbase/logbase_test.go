package logbase

import (
	"testing"

	"go.uber.org/zap"
)

func TestInitInstallsGlobalLogger(t *testing.T) {
	restore := zap.ReplaceGlobals(zap.NewNop())
	t.Cleanup(restore)

	log, err := Init(true)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if L() != log {
		t.Fatal("L must return the logger installed by Init")
	}
	if !log.Core().Enabled(zap.DebugLevel) {
		t.Fatal("verbose logger must enable debug")
	}
}

func TestNewQuietLevel(t *testing.T) {
	log, err := New(false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if log.Core().Enabled(zap.DebugLevel) {
		t.Fatal("quiet logger must not enable debug")
	}
	if !log.Core().Enabled(zap.InfoLevel) {
		t.Fatal("quiet logger must enable info")
	}
}
