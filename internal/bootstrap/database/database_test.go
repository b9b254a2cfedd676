package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threatcache/internal/bootstrap/config"
)

func TestOpenCreatesDirectoryAndEnablesWAL(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "store.sqlite")

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, statErr := os.Stat(filepath.Dir(dsn))
	require.NoError(t, statErr)

	var mode string
	require.NoError(t, db.Raw("PRAGMA journal_mode").Scan(&mode).Error)
	assert.Equal(t, "wal", mode)

	var busy int
	require.NoError(t, db.Raw("PRAGMA busy_timeout").Scan(&busy).Error)
	assert.Equal(t, defaultBusyTimeoutMS, busy)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "postgres", DSN: "x"})
	require.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		":memory:?_pragma=busy_timeout(250)",
		sqliteDSN(config.DatabaseConfig{DSN: ":memory:", BusyTimeoutMS: 250}),
	)
	assert.Equal(t,
		"file:a.db?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		sqliteDSN(config.DatabaseConfig{DSN: "file:a.db?cache=shared"}),
	)
}
