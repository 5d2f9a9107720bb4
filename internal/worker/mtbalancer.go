package worker

import (
	"context"
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/anthology/autoposter/internal/classifier"
	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// MEDIUM-TERM BALANCER — Short-Horizon Diversity Scoring
// =============================================================================
// Invoked synchronously by the planner once per round. First it rebuilds the
// medium-term topic/mood/author distributions from the most recent
// publications; then it scores every unscored editor row against them.
// A row with no author gets the -1 sentinel so the aggregator drops the
// dimension instead of punishing authorless posts.

// classifierPause spaces out LLM calls so a large candidate pool does not
// hammer the model endpoint.
const classifierPause = 1 * time.Second

// MTBalancer scores editor rows against the recent-publication mix.
type MTBalancer struct {
	store      *store.Store
	classifier Classifier
	mtPosts    int
}

// NewMTBalancer creates a balancer looking back mtPosts publications.
func NewMTBalancer(st *store.Store, cl Classifier, mtPosts int) *MTBalancer {
	return &MTBalancer{store: st, classifier: cl, mtPosts: mtPosts}
}

// RunRound rebuilds the medium-term distributions and scores every editor
// row with mt=false against them.
func (m *MTBalancer) RunRound(ctx context.Context) error {
	topics, moods, authors, err := m.recentValues(ctx)
	if err != nil {
		return err
	}

	topicDist := m.categorize(ctx, classifier.KindTopic, topics)
	moodDist := m.categorize(ctx, classifier.KindMood, moods)
	authorDist := m.categorize(ctx, classifier.KindAuthor, authors)

	if err := m.store.UpsertMT(ctx, topicDist, moodDist, authorDist); err != nil {
		return err
	}

	rows, err := m.store.UnscoredMT(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		topicScore := m.diversify(ctx, classifier.KindTopic, topicDist, row.Topic)
		moodScore := m.diversify(ctx, classifier.KindMood, moodDist, row.Mood)

		authorScore := -1
		if row.Author.Valid && strings.TrimSpace(row.Author.String) != "" {
			authorScore = m.diversify(ctx, classifier.KindAuthor, authorDist, row.Author)
		}

		if err := m.store.SetMTScores(ctx, row.ID, topicScore, moodScore, authorScore); err != nil {
			log.Printf("[MTBalancer] Failed to score row %d: %v", row.ID, err)
			continue
		}

		if !sleepCtx(ctx, classifierPause) {
			return ctx.Err()
		}
	}

	log.Printf("[MTBalancer] Scored %d rows against %d recent publications", len(rows), m.mtPosts)
	return nil
}

// recentValues collects the deduplicated comma-split topic, mood and author
// values of the last mtPosts publications.
func (m *MTBalancer) recentValues(ctx context.Context) (topics, moods, authors []string, err error) {
	posts, err := m.store.RecentPosts(ctx, m.mtPosts)
	if err != nil {
		return nil, nil, nil, err
	}

	seenTopic := make(map[string]bool)
	seenMood := make(map[string]bool)
	seenAuthor := make(map[string]bool)
	for _, p := range posts {
		appendSplit(&topics, seenTopic, p.Topic)
		appendSplit(&moods, seenMood, p.Mood)
		appendSplit(&authors, seenAuthor, p.Author)
	}
	return topics, moods, authors, nil
}

func appendSplit(dst *[]string, seen map[string]bool, raw string) {
	for _, part := range strings.Split(raw, ",") {
		v := strings.TrimSpace(part)
		if v != "" && !seen[v] {
			seen[v] = true
			*dst = append(*dst, v)
		}
	}
}

// categorize calls the classifier, returning nil on failure so the state
// upsert leaves the previous snapshot in place.
func (m *MTBalancer) categorize(ctx context.Context, kind classifier.Kind, values []string) []store.Category {
	if len(values) == 0 {
		return nil
	}
	dist, err := m.classifier.Categorize(ctx, kind, values)
	if err != nil {
		log.Printf("[MTBalancer] Categorization of %s values failed: %v", kind, err)
		return nil
	}
	return dist
}

// diversify scores one candidate value against a distribution, degrading to
// the neutral default on empty input, empty distribution or classifier
// failure.
func (m *MTBalancer) diversify(ctx context.Context, kind classifier.Kind, dist []store.Category, value sql.NullString) int {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return defaultScore
	}
	if len(dist) == 0 {
		return defaultScore
	}
	score, err := m.classifier.Diversify(ctx, kind, dist, value.String)
	if err != nil {
		log.Printf("[MTBalancer] Diversification of %s %q failed: %v", kind, value.String, err)
		return defaultScore
	}
	return score
}
