package store

import (
	"log/slog"
	"strings"
)

// NewFromDSN selects a store backend from the DSN shape: postgres:// URLs
// and key=value connection strings go to PostgreSQL, anything else is
// treated as a SQLite file path. An empty DSN yields the in-memory store.
func NewFromDSN(dsn string) (Store, error) {
	switch {
	case dsn == "":
		slog.Warn("store.NewFromDSN: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return NewPostgresStore(WithDSN(dsn))
	default:
		return NewSQLiteStore(WithDSN(dsn))
	}
}
