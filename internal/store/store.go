// Package store provides typed access to the pipeline's four tables:
// editor (candidate pool), to_publish (delivery queue), published
// (delivery ledger) and state (distribution snapshots). All control flow
// between workers goes through the status flags kept here.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Store wraps the shared connection pool. Components hold one Store and
// acquire a connection per statement; no in-memory state is shared.
type Store struct {
	db *sql.DB
}

// New wraps an existing pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying pool for health checks and advisory locks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Open connects to Postgres and configures the pool. The caller is
// expected to treat a ping failure as fatal at startup.
func Open(url string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if maxOpen <= 0 {
		maxOpen = 8
	}
	if maxIdle <= 0 {
		maxIdle = 2
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
