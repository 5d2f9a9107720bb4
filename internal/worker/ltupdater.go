package worker

import (
	"context"
	"log"
	"time"

	"github.com/anthology/autoposter/internal/classifier"
	"github.com/anthology/autoposter/internal/config"
	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// LONG-TERM UPDATER — Channel-Wide Distribution Refresh
// =============================================================================
// Rebuilds the long-term topic and mood distributions from the publication
// ledger. The refresh cadence is derived from the channel throughput so a
// faster channel refreshes more often; the gate lives in the database
// ("lt-updated-at"), so restarts and multiple instances never double the
// cadence. After a refresh every scored editor row has its lt flag cleared
// so the monitor re-scores against the new snapshot.

// DefaultLTUpdaterTick is how often the updater checks whether a refresh
// is due. The actual refresh interval is usually much longer.
const DefaultLTUpdaterTick = 1 * time.Hour

// LTUpdater refreshes the long-term distributions in state.
type LTUpdater struct {
	store      *store.Store
	classifier Classifier
	schedule   config.ScheduleConfig
	tick       time.Duration
	now        func() time.Time
}

// NewLTUpdater creates a long-term updater.
func NewLTUpdater(st *store.Store, cl Classifier, schedule config.ScheduleConfig) *LTUpdater {
	return &LTUpdater{
		store:      st,
		classifier: cl,
		schedule:   schedule,
		tick:       DefaultLTUpdaterTick,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the refresh loop. It blocks until ctx is cancelled.
func (u *LTUpdater) Start(ctx context.Context) {
	log.Printf("[LTUpdater] Starting (tick=%s, refresh_interval=%s)",
		u.tick, u.schedule.LTUpdateInterval())

	// Check once immediately so a long-idle deployment does not wait a
	// full tick to notice an overdue refresh.
	u.runOnce(ctx)

	ticker := time.NewTicker(u.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LTUpdater] Stopping")
			return
		case <-ticker.C:
			u.runOnce(ctx)
		}
	}
}

// runOnce refreshes the distributions when the persisted gate says the
// interval has elapsed.
func (u *LTUpdater) runOnce(ctx context.Context) {
	snap, err := u.store.LTSnapshot(ctx)
	if err != nil {
		log.Printf("[LTUpdater] Failed to read state: %v", err)
		return
	}

	now := u.now()
	if snap != nil && snap.UpdatedAt > 0 {
		elapsed := time.Duration(now.Unix()-snap.UpdatedAt) * time.Second
		if elapsed < u.schedule.LTUpdateInterval() {
			return
		}
	}

	if err := u.refresh(ctx, now); err != nil {
		log.Printf("[LTUpdater] Refresh failed: %v", err)
	}
}

func (u *LTUpdater) refresh(ctx context.Context, now time.Time) error {
	topics, err := u.store.RecentTopics(ctx, u.schedule.LTPosts)
	if err != nil {
		return err
	}
	moods, err := u.store.RecentMoods(ctx, u.schedule.LTPosts)
	if err != nil {
		return err
	}

	var topicDist, moodDist []store.Category
	if len(topics) > 0 {
		if topicDist, err = u.classifier.Categorize(ctx, classifier.KindTopic, topics); err != nil {
			log.Printf("[LTUpdater] Topic categorization failed: %v", err)
			topicDist = nil
		}
	}
	if len(moods) > 0 {
		if moodDist, err = u.classifier.Categorize(ctx, classifier.KindMood, moods); err != nil {
			log.Printf("[LTUpdater] Mood categorization failed: %v", err)
			moodDist = nil
		}
	}

	if err := u.store.UpsertLT(ctx, topicDist, moodDist, now.Unix()); err != nil {
		return err
	}

	reset, err := u.store.ResetLTFlags(ctx)
	if err != nil {
		return err
	}

	log.Printf("[LTUpdater] Refreshed distributions (%d topics, %d moods), reset %d rows for re-scoring",
		len(topicDist), len(moodDist), reset)
	return nil
}
