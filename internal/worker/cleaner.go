package worker

import (
	"context"
	"log"
	"time"

	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// CLEANER — Periodic Garbage Collection
// =============================================================================
// Three retention rules keep the working tables small:
//   - editor rows past their lifetime (post_time + expire days) are stale
//     editorial material nobody will ever publish
//   - to_publish rows already delivered have served their purpose; the
//     ledger keeps the history
//   - to_publish rows flagged prepared without a usable caption can never
//     pass the delivery guards; after removing them the chain flag is
//     reopened so the planner can schedule a replacement

// DefaultCleanerInterval is how often the cleanup cycle runs.
const DefaultCleanerInterval = 1 * time.Hour

// Cleaner removes expired candidates and delivered queue rows.
type Cleaner struct {
	store    *store.Store
	interval time.Duration
}

// NewCleaner creates a cleaner with the default cadence.
func NewCleaner(st *store.Store) *Cleaner {
	return &Cleaner{store: st, interval: DefaultCleanerInterval}
}

// Start begins the cleanup loop. It blocks until ctx is cancelled.
func (c *Cleaner) Start(ctx context.Context) {
	log.Printf("[Cleaner] Starting (interval=%s)", c.interval)

	// Run once immediately on start
	c.runOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Cleaner] Stopping")
			return
		case <-ticker.C:
			c.runOnce(ctx)
		}
	}
}

func (c *Cleaner) runOnce(ctx context.Context) {
	expired, err := c.store.DeleteExpired(ctx)
	if err != nil {
		log.Printf("[Cleaner] Failed to delete expired candidates: %v", err)
	} else if expired > 0 {
		log.Printf("[Cleaner] Removed %d expired candidates", expired)
	}

	delivered, err := c.store.DeletePublished(ctx)
	if err != nil {
		log.Printf("[Cleaner] Failed to delete delivered queue rows: %v", err)
	} else if delivered > 0 {
		log.Printf("[Cleaner] Removed %d delivered queue rows", delivered)
	}

	dead, err := c.store.DeleteUnpublishable(ctx)
	if err != nil {
		log.Printf("[Cleaner] Failed to delete unpublishable queue rows: %v", err)
		return
	}
	if dead > 0 {
		log.Printf("[Cleaner] Removed %d unpublishable queue rows", dead)
	}

	reopened, err := c.store.ReopenChain(ctx)
	if err != nil {
		log.Printf("[Cleaner] Failed to reopen the chain: %v", err)
	} else if reopened > 0 {
		log.Println("[Cleaner] Reopened the publication chain: queued successor was lost")
	}
}
