// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/config"
	"github.com/01moynul/projecthub-golang/internal/database"
)

// NewTestDB opens a fresh in-memory SQLite database with the schema applied.
// The database is closed when the test finishes.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.OpenDB(config.DatabaseConfig{
		Driver: database.DriverSQLite,
		DSN:    ":memory:",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
