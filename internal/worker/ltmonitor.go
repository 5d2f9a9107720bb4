package worker

import (
	"context"
	"log"
	"time"

	"github.com/anthology/autoposter/internal/classifier"
	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// LONG-TERM MONITOR — Per-Candidate Novelty Scoring
// =============================================================================
// Walks new editor rows in small batches and scores the novelty of their
// topic and mood against the long-term distributions. Runs on its own
// cadence, independent of planning rounds; the planner never resets the lt
// flag, only the updater does after a distribution refresh.

const (
	// DefaultLTMonitorInterval is the scan cadence.
	DefaultLTMonitorInterval = 60 * time.Second

	// ltMonitorBatchSize bounds LLM calls per scan.
	ltMonitorBatchSize = 5
)

// LTMonitor scores editor rows against the long-term distributions.
type LTMonitor struct {
	store      *store.Store
	classifier Classifier
	interval   time.Duration
}

// NewLTMonitor creates a long-term monitor.
func NewLTMonitor(st *store.Store, cl Classifier) *LTMonitor {
	return &LTMonitor{
		store:      st,
		classifier: cl,
		interval:   DefaultLTMonitorInterval,
	}
}

// Start begins the scoring loop. It blocks until ctx is cancelled.
func (m *LTMonitor) Start(ctx context.Context) {
	log.Printf("[LTMonitor] Starting (interval=%s, batch_size=%d)", m.interval, ltMonitorBatchSize)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[LTMonitor] Stopping")
			return
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *LTMonitor) runOnce(ctx context.Context) {
	rows, err := m.store.UnscoredLT(ctx, ltMonitorBatchSize)
	if err != nil {
		log.Printf("[LTMonitor] Failed to query rows: %v", err)
		return
	}
	if len(rows) == 0 {
		return
	}

	snap, err := m.store.LTSnapshot(ctx)
	if err != nil {
		log.Printf("[LTMonitor] Failed to read state: %v", err)
		return
	}

	var topicDist, moodDist []store.Category
	if snap != nil {
		topicDist = snap.Topics
		moodDist = snap.Moods
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return
		}

		topicScore := m.score(ctx, classifier.KindTopic, topicDist, row.Topic)
		moodScore := m.score(ctx, classifier.KindMood, moodDist, row.Mood)

		if err := m.store.SetLTScores(ctx, row.ID, topicScore, moodScore); err != nil {
			log.Printf("[LTMonitor] Failed to score row %d: %v", row.ID, err)
			continue
		}

		if !sleepCtx(ctx, classifierPause) {
			return
		}
	}

	log.Printf("[LTMonitor] Scored %d rows", len(rows))
}

// score degrades to the neutral default on an empty distribution or a
// failed classifier call. The row still gets marked so it does not starve
// the batch forever.
func (m *LTMonitor) score(ctx context.Context, kind classifier.Kind, dist []store.Category, value string) int {
	if len(dist) == 0 {
		return defaultScore
	}
	score, err := m.classifier.Diversify(ctx, kind, dist, value)
	if err != nil {
		log.Printf("[LTMonitor] Diversification of %s %q failed: %v", kind, value, err)
		return defaultScore
	}
	return score
}
