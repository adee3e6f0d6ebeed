package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/config"
)

func TestOpenDBSQLiteAppliesSchemaOnce(t *testing.T) {
	db, err := OpenDB(config.DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	// Running the bootstrap again must be a no-op.
	require.NoError(t, ApplySchema(db, DriverSQLite))

	var versions int
	require.NoError(t, db.Get(&versions, `SELECT COUNT(*) FROM schema_version`))
	assert.Equal(t, len(schema), versions)

	for _, table := range []string{"projects", "project_members", "tasks", "notifications"} {
		var n int
		require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table))
		assert.Equal(t, 1, n, table)
	}
}

func TestApplySchemaRejectsUnknownDriver(t *testing.T) {
	db, err := OpenDB(config.DatabaseConfig{Driver: DriverSQLite, DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`DELETE FROM schema_version`)
	require.NoError(t, err)
	assert.Error(t, ApplySchema(db, "postgres"))
}
