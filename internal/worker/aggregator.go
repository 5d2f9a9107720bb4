package worker

import (
	"context"
	"database/sql"
	"log"
	"math"
	"time"

	"github.com/anthology/autoposter/internal/config"
	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// AGGREGATOR — Final Score From Seven Dimensions
// =============================================================================
// Continuously folds the seven dimensional scores of fully-enriched editor
// rows (lt, mt and time flags all true) into one weighted final_score.
// A dimension counts only when its score is present and strictly positive;
// the weight of absent dimensions is redistributed equally among the rest,
// so a row missing mt-author is not punished for lacking an author.

// DefaultAggregatorInterval is how often the aggregation scan runs.
const DefaultAggregatorInterval = 5 * time.Second

// Aggregator computes final scores for rows ready for aggregation.
type Aggregator struct {
	store    *store.Store
	weights  config.ScoringConfig
	interval time.Duration
}

// NewAggregator creates an aggregator with the configured weights.
func NewAggregator(st *store.Store, weights config.ScoringConfig) *Aggregator {
	return &Aggregator{
		store:    st,
		weights:  weights,
		interval: DefaultAggregatorInterval,
	}
}

// Start begins the aggregation loop. It blocks until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) {
	log.Printf("[Aggregator] Starting (interval=%s)", a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Aggregator] Stopping")
			return
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

// runOnce scores every row whose prerequisite flags are set.
func (a *Aggregator) runOnce(ctx context.Context) {
	rows, err := a.store.ReadyForAggregation(ctx)
	if err != nil {
		log.Printf("[Aggregator] Failed to query rows: %v", err)
		return
	}

	for _, row := range rows {
		score := FinalScore(row, a.weights)
		if err := a.store.SetFinalScore(ctx, row.ID, score); err != nil {
			log.Printf("[Aggregator] Failed to write score for row %d: %v", row.ID, err)
			continue
		}
	}

	if len(rows) > 0 {
		log.Printf("[Aggregator] Scored %d rows", len(rows))
	}
}

// FinalScore folds the dimensional scores into one value in [1, 10] with
// two decimal places. Dimensions with a missing or non-positive score are
// dropped and their weight is split equally among the remaining ones. With
// no valid dimension at all the row gets a neutral 5.
func FinalScore(row store.ScoreRow, w config.ScoringConfig) float64 {
	type dim struct {
		score  sql.NullInt64
		weight float64
	}
	dims := []dim{
		{row.LTTopic, w.LTTopic},
		{row.LTMood, w.LTMood},
		{row.MTTopic, w.MTTopic},
		{row.MTMood, w.MTMood},
		{row.MTAuthor, w.MTAuthor},
		{row.TimeBest, w.TimeBest},
		{row.TimeExpire, w.TimeExpire},
	}

	var valid []dim
	var invalidWeight float64
	for _, d := range dims {
		if d.score.Valid && d.score.Int64 > 0 {
			valid = append(valid, d)
		} else {
			invalidWeight += d.weight
		}
	}

	if len(valid) == 0 {
		return 5.0
	}

	bonus := invalidWeight / float64(len(valid))
	var weightedSum, weightSum float64
	for _, d := range valid {
		adjusted := d.weight + bonus
		weightedSum += float64(d.score.Int64) * adjusted
		weightSum += adjusted
	}

	result := weightedSum / weightSum
	if result < 1 {
		result = 1
	}
	if result > 10 {
		result = 10
	}
	return math.Round(result*100) / 100
}
