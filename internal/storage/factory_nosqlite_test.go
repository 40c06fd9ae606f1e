//go:build !sqlite

package storage

import (
	"errors"
	"testing"
)

func TestNewStoreSQLiteUnavailable(t *testing.T) {
	_, err := NewStore("sqlite", "")
	if !errors.Is(err, ErrSQLiteUnavailable) {
		t.Fatalf("expected ErrSQLiteUnavailable, got %v", err)
	}
}
