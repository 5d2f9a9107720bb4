package worker

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// TIME SCORER — Best-Hour Fitness & Expiration Urgency
// =============================================================================
// Invoked synchronously by the planner once per round with the round's target
// hour. Every editor row with time=false gets two integer scores in 1..10:
//
//   time-best   — how well the row's preferred hours match the target hour,
//                 boosted for hours rare across the candidate pool and
//                 penalized for rows that add little to the pool's 24-hour
//                 coverage entropy.
//   time-expire — how close the row is to its expiration date.

// TimeScorer scores editor rows against a publication slot.
type TimeScorer struct {
	store *store.Store
}

// NewTimeScorer creates a time scorer over the shared store.
func NewTimeScorer(st *store.Store) *TimeScorer {
	return &TimeScorer{store: st}
}

// ScoreAll scores every editor row with time=false against targetHour and
// targetDate, writing both scores and flipping the flag row by row.
func (ts *TimeScorer) ScoreAll(ctx context.Context, targetHour int, targetDate time.Time) error {
	rows, err := ts.store.TimePending(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	allBestTimes, err := ts.store.AllBestTimes(ctx)
	if err != nil {
		return err
	}
	rarity := rarityMap(allBestTimes)
	penalties := entropyPenalties(rows)

	for i, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		best := bestHourScore(targetHour, row.BestTimes, rarity) - penalties[i]
		if best < 1 {
			best = 1
		}

		expireDays := 0
		if row.Expire.Valid {
			expireDays = int(row.Expire.Int64)
		}
		expire := expireScore(row.PostTime, expireDays, targetDate)

		if err := ts.store.SetTimeScores(ctx, row.ID, best, expire); err != nil {
			log.Printf("[TimeScorer] Failed to score row %d: %v", row.ID, err)
			continue
		}
	}

	log.Printf("[TimeScorer] Scored %d rows against hour %d", len(rows), targetHour)
	return nil
}

// circularDist is the distance between two hours on the 24-hour clock.
func circularDist(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if 24-d < d {
		d = 24 - d
	}
	return d
}

// rarityMap computes, for each hour, one minus the fraction of rows whose
// best_times contain it. With no rows every hour is maximally rare.
func rarityMap(bestTimes [][]int64) [24]float64 {
	var rarity [24]float64
	n := len(bestTimes)
	if n == 0 {
		for h := range rarity {
			rarity[h] = 1
		}
		return rarity
	}

	var counts [24]int
	for _, set := range bestTimes {
		for _, b := range set {
			if b >= 0 && b < 24 {
				counts[b]++
			}
		}
	}
	for h := range rarity {
		rarity[h] = 1 - float64(counts[h])/float64(n)
	}
	return rarity
}

// bestHourScore computes the pre-penalty score: proximity of the closest
// preferred hour to the target plus a rarity bonus for that hour, clamped
// and rounded to 1..10. Rows with no preferred hours score a neutral 5.
func bestHourScore(targetHour int, bestTimes []int64, rarity [24]float64) int {
	if len(bestTimes) == 0 {
		return defaultScore
	}

	dmin := 24
	bmin := 0
	for _, b := range bestTimes {
		h := int(b)
		if h < 0 || h > 23 {
			continue
		}
		if d := circularDist(targetHour, h); d < dmin {
			dmin = d
			bmin = h
		}
	}
	if dmin == 24 {
		return defaultScore
	}

	base := float64(10 - dmin)
	if base < 1 {
		base = 1
	}
	base += rarity[bmin] * 3

	score := int(math.Round(base))
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

// shannonEntropy computes the entropy of a coverage vector in bits.
func shannonEntropy(cov [24]float64) float64 {
	var sum float64
	for _, v := range cov {
		sum += v
	}
	if sum == 0 {
		return 0
	}
	var h float64
	for _, v := range cov {
		if v > 0 {
			p := v / sum
			h -= p * math.Log2(p)
		}
	}
	return h
}

// contribution is a row's additive effect on the pool coverage vector:
// for each hour, the linear proximity of the row's closest preferred hour.
func contribution(bestTimes []int64) [24]float64 {
	var c [24]float64
	if len(bestTimes) == 0 {
		return c
	}
	for h := 0; h < 24; h++ {
		dmin := 24
		for _, b := range bestTimes {
			bh := int(b)
			if bh < 0 || bh > 23 {
				continue
			}
			if d := circularDist(h, bh); d < dmin {
				dmin = d
			}
		}
		if v := 10 - dmin; v > 0 {
			c[h] = float64(v)
		}
	}
	return c
}

// entropyPenalties ranks the rows by how much re-adding their own coverage
// contribution would raise the pool's entropy and maps the rank to a
// penalty. Rows with rare hours flatten the distribution, gain entropy and
// pay nothing; rows piling onto crowded hours pay up to 3. Rows without
// preferred hours sort last and take the default penalty. The returned
// slice is aligned with rows.
func entropyPenalties(rows []store.TimeCandidate) []int {
	contribs := make([][24]float64, len(rows))
	var cov [24]float64
	for i, row := range rows {
		contribs[i] = contribution(row.BestTimes)
		for h := 0; h < 24; h++ {
			cov[h] += contribs[i][h]
		}
	}
	baseH := shannonEntropy(cov)

	type ranked struct {
		idx    int
		delta  float64
		hasSet bool
	}
	order := make([]ranked, len(rows))
	for i, row := range rows {
		r := ranked{idx: i, hasSet: len(row.BestTimes) > 0}
		if r.hasSet {
			augmented := cov
			for h := 0; h < 24; h++ {
				augmented[h] += contribs[i][h]
			}
			r.delta = shannonEntropy(augmented) - baseH
		}
		order[i] = r
	}

	sort.SliceStable(order, func(a, b int) bool {
		if order[a].hasSet != order[b].hasSet {
			return order[a].hasSet
		}
		if order[a].delta != order[b].delta {
			return order[a].delta > order[b].delta
		}
		return rows[order[a].idx].ID < rows[order[b].idx].ID
	})

	penalties := make([]int, len(rows))
	for rank, r := range order {
		if !r.hasSet {
			penalties[r.idx] = rankPenalty(-1)
			continue
		}
		penalties[r.idx] = rankPenalty(rank)
	}
	return penalties
}

// rankPenalty maps an entropy rank to a score penalty. A negative rank
// means "unranked" and takes the default.
func rankPenalty(rank int) int {
	switch rank {
	case 0, 1:
		return 0
	case 2, 3:
		return 1
	case 4, 5:
		return 2
	default:
		return 3
	}
}

// expireScore maps the consumed fraction of a row's lifetime to 1..10.
// An expired row (or one with no lifetime) is maximally urgent.
func expireScore(postTime time.Time, expireDays int, today time.Time) int {
	if expireDays <= 0 {
		return 10
	}

	p := postTime.UTC().Truncate(24 * time.Hour)
	d := today.UTC().Truncate(24 * time.Hour)
	elapsed := int(d.Sub(p).Hours() / 24)

	if elapsed >= expireDays {
		return 10
	}
	if elapsed < 0 {
		return 1
	}

	pct := float64(elapsed) / float64(expireDays) * 100
	score := int(pct/10) + 1
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}
