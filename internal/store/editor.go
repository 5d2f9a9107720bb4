package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// LTCandidate is an editor row awaiting long-term novelty scoring.
type LTCandidate struct {
	ID    int64
	Topic string
	Mood  string
}

// MTCandidate is an editor row awaiting medium-term diversification scoring.
type MTCandidate struct {
	ID     int64
	Topic  sql.NullString
	Mood   sql.NullString
	Author sql.NullString
}

// TimeCandidate is an editor row awaiting time-fitness scoring.
type TimeCandidate struct {
	ID        int64
	PostTime  time.Time
	Expire    sql.NullInt64
	BestTimes []int64
}

// ScoreRow carries the seven dimensional scores of a fully-enriched row.
// Dimensions are nullable: the aggregator treats NULL and <=0 as absent.
type ScoreRow struct {
	ID         int64
	LTTopic    sql.NullInt64
	LTMood     sql.NullInt64
	MTTopic    sql.NullInt64
	MTMood     sql.NullInt64
	MTAuthor   sql.NullInt64
	TimeBest   sql.NullInt64
	TimeExpire sql.NullInt64
}

// Winner identifies the round's selected row together with the fields the
// planner logs about it.
type Winner struct {
	ID         int64
	FinalScore float64
	TimeBest   sql.NullInt64
	TimeExpire sql.NullInt64
}

// UnscoredLT returns up to limit editor rows with lt=false and usable
// topic and mood, oldest first.
func (s *Store) UnscoredLT(ctx context.Context, limit int) ([]LTCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, mood
		FROM editor
		WHERE lt = false
		  AND topic IS NOT NULL
		  AND mood IS NOT NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query unscored lt rows: %w", err)
	}
	defer rows.Close()

	var out []LTCandidate
	for rows.Next() {
		var c LTCandidate
		if err := rows.Scan(&c.ID, &c.Topic, &c.Mood); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetLTScores writes both long-term scores and flips lt=true in a single
// statement so cancellation cannot leave a flagged row without scores.
func (s *Store) SetLTScores(ctx context.Context, id int64, topic, mood int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE editor
		SET "lt-topic" = $1, "lt-mood" = $2, lt = true
		WHERE id = $3`, topic, mood, id)
	return err
}

// ResetLTFlags clears lt on every scored row so the monitor re-scores them
// against a freshly-updated long-term distribution.
func (s *Store) ResetLTFlags(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE editor SET lt = false WHERE lt = true`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnscoredMT returns editor rows with mt=false, oldest first.
func (s *Store) UnscoredMT(ctx context.Context) ([]MTCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, mood, author
		FROM editor
		WHERE mt = false
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query unscored mt rows: %w", err)
	}
	defer rows.Close()

	var out []MTCandidate
	for rows.Next() {
		var c MTCandidate
		if err := rows.Scan(&c.ID, &c.Topic, &c.Mood, &c.Author); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetMTScores writes the three medium-term scores and flips mt=true.
// author may be -1 (sentinel: no author on the row).
func (s *Store) SetMTScores(ctx context.Context, id int64, topic, mood, author int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE editor
		SET "mt-topic" = $1, "mt-mood" = $2, "mt-author" = $3, mt = true
		WHERE id = $4`, topic, mood, author, id)
	return err
}

// TimePending returns editor rows with time=false, oldest first.
func (s *Store) TimePending(ctx context.Context) ([]TimeCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_time, expire, best_times
		FROM editor
		WHERE "time" = false
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query time-pending rows: %w", err)
	}
	defer rows.Close()

	var out []TimeCandidate
	for rows.Next() {
		var c TimeCandidate
		var bt pq.Int64Array
		if err := rows.Scan(&c.ID, &c.PostTime, &c.Expire, &bt); err != nil {
			return nil, err
		}
		c.BestTimes = []int64(bt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// AllBestTimes returns the best_times sets of every editor row that has a
// non-empty set. Used to build the hour-rarity map.
func (s *Store) AllBestTimes(ctx context.Context) ([][]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT best_times
		FROM editor
		WHERE best_times IS NOT NULL AND best_times <> '{}'`)
	if err != nil {
		return nil, fmt.Errorf("query best_times: %w", err)
	}
	defer rows.Close()

	var out [][]int64
	for rows.Next() {
		var bt pq.Int64Array
		if err := rows.Scan(&bt); err != nil {
			return nil, err
		}
		out = append(out, []int64(bt))
	}
	return out, rows.Err()
}

// SetTimeScores writes both time scores and flips time=true.
func (s *Store) SetTimeScores(ctx context.Context, id int64, best, expire int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE editor
		SET "time-best" = $1, "time-expire" = $2, "time" = true
		WHERE id = $3`, best, expire, id)
	return err
}

// ReadyForAggregation returns rows whose three prerequisite flags are set
// but which have no final score yet.
func (s *Store) ReadyForAggregation(ctx context.Context) ([]ScoreRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id,
		       "lt-topic", "lt-mood",
		       "mt-topic", "mt-mood", "mt-author",
		       "time-best", "time-expire"
		FROM editor
		WHERE lt = true AND mt = true AND "time" = true
		  AND analyzed = false
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query aggregation-ready rows: %w", err)
	}
	defer rows.Close()

	var out []ScoreRow
	for rows.Next() {
		var r ScoreRow
		if err := rows.Scan(&r.ID,
			&r.LTTopic, &r.LTMood,
			&r.MTTopic, &r.MTMood, &r.MTAuthor,
			&r.TimeBest, &r.TimeExpire); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetFinalScore writes the aggregate and flips analyzed=true in one
// statement, preserving the analyzed ⇒ final_score invariant.
func (s *Store) SetFinalScore(ctx context.Context, id int64, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE editor
		SET final_score = $1, analyzed = true
		WHERE id = $2`, score, id)
	return err
}

// ResetRoundFlags clears mt, time and analyzed on every editor row at the
// start of a planning round. lt is deliberately untouched: long-term
// scoring runs on its own cadence.
func (s *Store) ResetRoundFlags(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE editor
		SET mt = false, "time" = false, analyzed = false`)
	return err
}

// SelectWinner returns the best fully-analyzed row, or nil when no row
// qualifies. Ties break toward time fitness, then urgency, then age.
func (s *Store) SelectWinner(ctx context.Context) (*Winner, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, final_score, "time-best", "time-expire"
		FROM editor
		WHERE analyzed = true AND final_score IS NOT NULL
		ORDER BY final_score DESC, "time-best" DESC, "time-expire" DESC, id ASC
		LIMIT 1`)

	var w Winner
	if err := row.Scan(&w.ID, &w.FinalScore, &w.TimeBest, &w.TimeExpire); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("select winner: %w", err)
	}
	return &w, nil
}

// MoveToQueue copies the winner's payload into to_publish with the
// computed publication time and deletes it from editor, in one
// transaction. A crash between the two statements leaves editor intact.
func (s *Store) MoveToQueue(ctx context.Context, id int64, publishUnix int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin move transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO to_publish (text, mood, topic, names, author, length, final_score, "time")
		SELECT text, mood, topic, names, author, length, final_score, $1
		FROM editor
		WHERE id = $2`, publishUnix, id)
	if err != nil {
		return fmt.Errorf("copy winner to queue: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("winner %d no longer in editor", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM editor WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete winner from editor: %w", err)
	}

	return tx.Commit()
}

// DeleteExpired removes editor rows whose lifetime has passed:
// current date beyond post_time + expire days.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM editor
		WHERE CURRENT_DATE > post_time + expire`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
