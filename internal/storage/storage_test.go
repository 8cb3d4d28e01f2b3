package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-gateway/internal/config"
	"github.com/yourorg/payment-gateway/internal/content"
	"github.com/yourorg/payment-gateway/internal/transaction"
)

func TestOpenAndMigrate_SQLite(t *testing.T) {
	db, err := Open(config.DatabaseConfig{Driver: config.DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = Close(db) }()

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&transaction.Transaction{}))
	assert.True(t, db.Migrator().HasTable(&content.Order{}))
	assert.True(t, db.Migrator().HasTable(&content.DigitalContentURL{}))

	// Migrating twice is a no-op.
	require.NoError(t, Migrate(db))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}
