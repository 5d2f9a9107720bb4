package worker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/anthology/autoposter/internal/config"
	"github.com/anthology/autoposter/internal/pkg/distlock"
	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// PLANNER — Round Orchestrator
// =============================================================================
// The planner owns the publication schedule. When the newest ledger row has
// next=false (no successor queued) it runs one round:
//
//   1. compute the next publication moment from the last delivery's length
//      and the channel throughput, snapped into the UTC window
//   2. reset the per-round flags on every editor row
//   3. run the medium-term balancer to completion
//   4. run the time scorer against the slot's hour
//   5. wait for the aggregator to fold the dimensional scores
//   6. pick the best row, move it to the delivery queue in one transaction
//   7. set next=true on the anchoring ledger row
//
// Step 7 is last and idempotent, so a crash anywhere leaves a state the next
// tick can resume from. A distributed lock keeps concurrent deployments from
// double-planning; the lock failing closed just skips the tick.

// aggregatorPollSlice is how often the planner re-checks for a winner while
// waiting out the aggregation window.
const aggregatorPollSlice = 5 * time.Second

// Planner decides when the next post goes out and which candidate wins.
type Planner struct {
	store    *store.Store
	balancer *MTBalancer
	scorer   *TimeScorer
	schedule config.ScheduleConfig
	lock     distlock.DistLock
	now      func() time.Time
}

// NewPlanner creates the round orchestrator. lock may be nil when the
// deployment runs a single instance.
func NewPlanner(st *store.Store, balancer *MTBalancer, scorer *TimeScorer, schedule config.ScheduleConfig, lock distlock.DistLock) *Planner {
	return &Planner{
		store:    st,
		balancer: balancer,
		scorer:   scorer,
		schedule: schedule,
		lock:     lock,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the planning loop. It blocks until ctx is cancelled.
func (p *Planner) Start(ctx context.Context) {
	log.Printf("[Planner] Starting (tick=%s, window=%02d:00-%02d:00 UTC, per_hour=%d)",
		p.schedule.PlannerTick(), p.schedule.MinHour, p.schedule.MaxHour, p.schedule.PerHour)

	ticker := time.NewTicker(p.schedule.PlannerTick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Planner] Stopping")
			return
		case <-ticker.C:
			if err := p.runRound(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[Planner] Round failed: %v", err)
			}
		}
	}
}

// runRound executes one planning round, or returns immediately when no
// round is due.
func (p *Planner) runRound(ctx context.Context) error {
	if p.lock != nil {
		acquired, err := p.lock.Acquire(ctx)
		if err != nil {
			return err
		}
		if !acquired {
			return nil
		}
		defer p.lock.Release(context.Background())
	}

	open, err := p.store.ChainOpen(ctx)
	if err != nil {
		return err
	}
	if !open {
		return nil
	}

	last, err := p.store.LastPublication(ctx)
	if err != nil {
		return err
	}

	roundID := uuid.New().String()[:8]
	nextUnix, targetHour := nextPublication(last, p.now(), p.schedule)
	log.Printf("[Planner] Round %s started: slot=%s hour=%d",
		roundID, time.Unix(nextUnix, 0).UTC().Format(time.RFC3339), targetHour)

	if err := p.store.ResetRoundFlags(ctx); err != nil {
		return err
	}

	if err := p.balancer.RunRound(ctx); err != nil {
		return err
	}

	targetDate := time.Unix(nextUnix, 0).UTC()
	if err := p.scorer.ScoreAll(ctx, targetHour, targetDate); err != nil {
		return err
	}

	winner, err := p.awaitWinner(ctx)
	if err != nil {
		return err
	}
	if winner == nil {
		log.Printf("[Planner] Round %s: no analyzed candidate, aborted", roundID)
		return nil
	}

	if err := p.store.MoveToQueue(ctx, winner.ID, nextUnix); err != nil {
		return err
	}
	log.Printf("[Planner] Round %s: winner %d (score=%.2f) queued for %s",
		roundID, winner.ID, winner.FinalScore, time.Unix(nextUnix, 0).UTC().Format(time.RFC3339))

	return p.store.CloseChain(ctx)
}

// awaitWinner gives the aggregator a bounded window to produce final
// scores, polling in short slices so a fully-scored pool does not wait the
// whole interval. Selection happens only once no enriched row is left
// unaggregated, or the window runs out. Each slice renews the round lease
// so the wait cannot outlive the lock TTL.
func (p *Planner) awaitWinner(ctx context.Context) (*store.Winner, error) {
	deadline := time.Now().Add(p.schedule.AggregatorWait())
	for {
		if !sleepCtx(ctx, aggregatorPollSlice) {
			return nil, ctx.Err()
		}
		if p.lock != nil {
			if err := p.lock.Extend(ctx); err != nil {
				log.Printf("[Planner] Failed to extend round lock: %v", err)
			}
		}
		pending, err := p.store.ReadyForAggregation(ctx)
		if err != nil {
			return nil, err
		}
		if len(pending) == 0 || time.Now().After(deadline) {
			return p.store.SelectWinner(ctx)
		}
	}
}

// nextPublication computes the next slot's UNIX time and UTC hour. With no
// prior delivery the slot is now, pushed forward into the window. Otherwise
// the previous post earns air time proportional to its length, and the
// resulting moment is snapped into the window: before the window opens it
// moves to opening time, after it closes it moves to tomorrow's opening.
func nextPublication(last *store.LastPublication, now time.Time, s config.ScheduleConfig) (int64, int) {
	if last == nil {
		var t time.Time
		switch {
		case now.Hour() > s.MaxHour:
			tomorrow := now.AddDate(0, 0, 1)
			t = time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), s.MinHour, 0, 0, 0, time.UTC)
		case now.Hour() < s.MinHour:
			t = time.Date(now.Year(), now.Month(), now.Day(), s.MinHour, 0, 0, 0, time.UTC)
		default:
			t = now
		}
		return t.Unix(), t.Hour()
	}

	airSeconds := int64(float64(last.Length) / float64(s.PerHour) * 3600)
	next := time.Unix(last.Unix+airSeconds, 0).UTC()

	switch h := next.Hour(); {
	case h < s.MinHour:
		next = time.Date(next.Year(), next.Month(), next.Day(), s.MinHour, 0, 0, 0, time.UTC)
	case h > s.MaxHour:
		tomorrow := next.AddDate(0, 0, 1)
		next = time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), s.MinHour, 0, 0, 0, time.UTC)
	}
	return next.Unix(), next.Hour()
}
