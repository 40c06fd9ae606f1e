//go:build !sqlite

package storage

import "fmt"

func newSQLiteStore(dsn string) (Store, error) {
	return nil, fmt.Errorf("%w (dsn %s): rebuild with -tags sqlite", ErrSQLiteUnavailable, dsn)
}
