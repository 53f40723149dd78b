// Package storetest builds stores on in-memory SQLite for tests.
package storetest

import (
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/store"
)

// New returns a store over a fresh in-memory database with the schema
// created. The database is closed when the test ends.
func New(t testing.TB) *store.Store {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// every connection to :memory: is its own database
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	if err := store.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return store.New(bunDB, logger.NewWithWriter(io.Discard))
}
