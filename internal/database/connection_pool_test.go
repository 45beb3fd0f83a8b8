package database

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPoolConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultPoolConfig().Validate())
}

func TestValidateRejectsNonPositiveMaxOpen(t *testing.T) {
	c := DefaultPoolConfig()
	c.MaxOpenConnections = 0
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNegativeMaxIdle(t *testing.T) {
	c := DefaultPoolConfig()
	c.MaxIdleConnections = -1
	assert.Error(t, c.Validate())
}

func TestValidateRejectsIdleExceedingOpen(t *testing.T) {
	c := DefaultPoolConfig()
	c.MaxIdleConnections = c.MaxOpenConnections + 1
	assert.Error(t, c.Validate())
}

func TestMockDBAppliesPoolSettingsAndPings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	// sqlmock.New already returns an open *sql.DB; Open's driver/dataSource
	// path isn't exercised here, only the pool-settings + ping behavior
	// that db.Ping and db.SetMaxOpenConns share regardless of driver.
	config := DefaultPoolConfig()
	db.SetMaxOpenConns(config.MaxOpenConnections)
	require.NoError(t, db.Ping())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open("postgres", "dbname=x", PoolConfig{MaxOpenConnections: 0}, nil)
	assert.Error(t, err)
}
