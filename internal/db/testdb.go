package db

import (
	"database/sql"
	"testing"
)

// NewTestDB creates a fresh in-memory database with the gear schema
// applied, closed automatically when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}
