// Package database configures pooled connections to the PostgreSQL
// database backing query_plan.log, query_plan.reg, and pg_query_plan
// (spec §6): the one external SQL boundary this module writes through.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PoolConfig bounds how many connections pgpi holds open against a
// target server. The CLI is one-shot per invocation (spec §5), so these
// defaults favor quick teardown over long-lived reuse.
type PoolConfig struct {
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	ConnMaxIdleTime    time.Duration
}

// DefaultPoolConfig is sized for a single CLI invocation issuing a
// handful of statements, not a long-running server.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConnections: 5,
		MaxIdleConnections: 2,
		ConnMaxLifetime:    2 * time.Minute,
		ConnMaxIdleTime:    time.Minute,
	}
}

// Validate rejects pool settings that cannot produce a working pool.
func (c PoolConfig) Validate() error {
	if c.MaxOpenConnections <= 0 {
		return fmt.Errorf("max open connections must be positive")
	}
	if c.MaxIdleConnections < 0 {
		return fmt.Errorf("max idle connections cannot be negative")
	}
	if c.MaxIdleConnections > c.MaxOpenConnections {
		return fmt.Errorf("max idle connections (%d) cannot exceed max open connections (%d)",
			c.MaxIdleConnections, c.MaxOpenConnections)
	}
	return nil
}

// Open opens dataSource through driver, applies config, and pings to
// fail fast on an unreachable server rather than on the first query.
func Open(driver, dataSource string, config PoolConfig, logger *zap.Logger) (*sql.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	db, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", driver, err)
	}

	db.SetMaxOpenConns(config.MaxOpenConnections)
	db.SetMaxIdleConns(config.MaxIdleConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", driver, err)
	}

	if logger != nil {
		logger.Debug("database connection established",
			zap.String("driver", driver),
			zap.Int("max_open_connections", config.MaxOpenConnections))
	}

	return db, nil
}
