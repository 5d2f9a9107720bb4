package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisLockMutualExclusion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	a := NewRedisLock(client, "planner:round", time.Minute)
	b := NewRedisLock(client, "planner:round", time.Minute)

	ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire failed: ok=%v err=%v", ok, err)
	}

	ok, err = b.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if ok {
		t.Error("second holder acquired a held lock")
	}

	if err := a.Release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	ok, err = b.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release failed: ok=%v err=%v", ok, err)
	}
}

func TestRedisLockReleaseOnlyOwn(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	a := NewRedisLock(client, "planner:round", time.Minute)
	b := NewRedisLock(client, "planner:round", time.Minute)

	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}

	// A non-owner release must not free the lock.
	if err := b.Release(ctx); err != nil {
		t.Fatalf("foreign release errored: %v", err)
	}
	if ok, _ := b.Acquire(ctx); ok {
		t.Error("lock was freed by a non-owner")
	}
}

func TestRedisLockExtendRenewsLease(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	a := NewRedisLock(client, "planner:round", 100*time.Millisecond)
	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}

	// Renew past the original expiry; the lease must survive.
	mr.FastForward(60 * time.Millisecond)
	if err := a.Extend(ctx); err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	mr.FastForward(60 * time.Millisecond)

	b := NewRedisLock(client, "planner:round", time.Minute)
	if ok, _ := b.Acquire(ctx); ok {
		t.Error("extended lease was lost at the original TTL")
	}

	// A non-owner must not be able to renew someone else's lease.
	mr.FastForward(60 * time.Millisecond)
	if err := b.Extend(ctx); err != nil {
		t.Fatalf("foreign extend errored: %v", err)
	}
	if ok, _ := b.Acquire(ctx); !ok {
		t.Error("lease still held after expiry; foreign extend renewed it")
	}
}

func TestPGAdvisoryLockExtendNoop(t *testing.T) {
	// Advisory locks are session scoped and carry no TTL.
	l := NewPGAdvisoryLock(nil, "planner:round")
	if err := l.Extend(context.Background()); err != nil {
		t.Errorf("Extend = %v, want nil", err)
	}
}

func TestRedisLockTTLExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	a := NewRedisLock(client, "planner:round", 50*time.Millisecond)
	if ok, _ := a.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}

	// A crashed holder's lock frees itself when the TTL lapses.
	mr.FastForward(100 * time.Millisecond)

	b := NewRedisLock(client, "planner:round", time.Minute)
	if ok, _ := b.Acquire(ctx); !ok {
		t.Error("lock did not expire after TTL")
	}
}
