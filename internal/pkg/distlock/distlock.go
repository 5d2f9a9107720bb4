// Package distlock guards the planner round across replicas. Exactly one
// instance may plan at a time; the others skip their tick when the lock is
// held. The lock is lease-based so a crashed holder cannot wedge planning.
package distlock

import (
	"context"
	"database/sql"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistLock is a single-holder lease. A round acquires it once, renews it
// with Extend while it waits on slow steps, and releases it at the end.
// Instances are single-goroutine; each worker builds its own.
type DistLock interface {
	// Acquire tries to take the lease without blocking. False means
	// another holder has it.
	Acquire(ctx context.Context) (bool, error)
	// Extend renews the lease so it survives a long round.
	Extend(ctx context.Context) error
	// Release gives the lease up if this instance still owns it.
	Release(ctx context.Context) error
}

// NewLock picks the backend: Redis when a client is configured (works
// across hosts), otherwise a Postgres advisory lock on the shared pool.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// PGAdvisoryLock is the fallback backend. Advisory locks are session
// scoped: the database frees them when the holder's connection drops, so
// there is no lease to renew.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
}

// NewPGAdvisoryLock derives a 64-bit advisory lock ID from the key.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire takes the advisory lock non-blockingly.
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

// Extend is a no-op: advisory locks have no TTL to renew.
func (l *PGAdvisoryLock) Extend(ctx context.Context) error {
	return nil
}

// Release unlocks the advisory lock.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
