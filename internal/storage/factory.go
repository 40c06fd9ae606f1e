package storage

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedBackend = errors.New("unsupported store backend")
	ErrSQLiteUnavailable  = errors.New("sqlite backend unavailable in this build")
)

// DefaultSQLiteDSN keeps the run ledger in a shared in-memory database for
// the lifetime of the process.
const DefaultSQLiteDSN = "file:healthfuzz?mode=memory&cache=shared"

// Backends lists the store kinds NewStore understands. A kind may still fail
// at construction when the binary was built without it.
func Backends() []string {
	return []string{"memory", "sqlite"}
}

// NewStore builds the run ledger named by kind. An empty kind selects the
// memory store; an empty DSN for sqlite selects DefaultSQLiteDSN.
func NewStore(kind, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "memory", "mem":
		return NewMemoryStore(), nil
	case "sqlite", "sqlite3":
		if strings.TrimSpace(dsn) == "" {
			dsn = DefaultSQLiteDSN
		}
		return newSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedBackend, kind, strings.Join(Backends(), ", "))
	}
}

// CloseIfSupported releases backends that hold resources. The memory store
// has nothing to release.
func CloseIfSupported(store Store) error {
	if store == nil {
		return nil
	}
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
