package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// LastPublication carries the fields the planner needs from the most
// recent ledger row.
type LastPublication struct {
	Unix   int64
	Length int64
}

// PostMeta is a published row reduced to its classification fields.
type PostMeta struct {
	Topic  string
	Mood   string
	Author string
}

// PublishedInsert is the payload recorded in the ledger after a delivery.
type PublishedInsert struct {
	Text   sql.NullString
	Author sql.NullString
	Topic  sql.NullString
	Mood   sql.NullString
	Names  sql.NullString
	Length sql.NullInt64
	Unix   int64
	Next   bool
}

// ChainOpen reports whether the planner may begin a round: the max-id
// ledger row has next=false, or the ledger is empty (first run).
func (s *Store) ChainOpen(ctx context.Context) (bool, error) {
	var next bool
	err := s.db.QueryRowContext(ctx, `
		SELECT next
		FROM published
		WHERE id = (SELECT MAX(id) FROM published)`).Scan(&next)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read chain flag: %w", err)
	}
	return !next, nil
}

// LastPublication returns the timestamp and length of the most recent
// ledger row, or nil when the ledger is empty.
func (s *Store) LastPublication(ctx context.Context) (*LastPublication, error) {
	var lp LastPublication
	var length sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT published, length
		FROM published
		WHERE id = (SELECT MAX(id) FROM published)`).Scan(&lp.Unix, &length)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read last publication: %w", err)
	}
	if length.Valid {
		lp.Length = length.Int64
	}
	return &lp, nil
}

// CloseChain sets next=true on the max-id ledger row. The EXISTS guard
// makes re-execution after a crash harmless: once the queued successor is
// delivered (or the queue is empty) the statement is a no-op.
func (s *Store) CloseChain(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE published
		SET next = true
		WHERE id = (SELECT MAX(id) FROM published)
		  AND EXISTS (SELECT 1 FROM to_publish WHERE published = false)`)
	return err
}

// ReopenChain clears next on the max-id ledger row when no queued row is
// awaiting delivery. Inverse of CloseChain: if the announced successor
// vanished (garbage-collected as unpublishable), planning must resume.
func (s *Store) ReopenChain(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE published
		SET next = false
		WHERE id = (SELECT MAX(id) FROM published)
		  AND next = true
		  AND NOT EXISTS (SELECT 1 FROM to_publish WHERE published = false)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InsertPublished appends a delivery to the ledger.
func (s *Store) InsertPublished(ctx context.Context, rec PublishedInsert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO published (text, author, topic, mood, names, length, published, next)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.Text, rec.Author, rec.Topic, rec.Mood, rec.Names, rec.Length, rec.Unix, rec.Next)
	return err
}

// RecentPosts returns the newest rows that have all three classification
// fields populated, most recent first.
func (s *Store) RecentPosts(ctx context.Context, limit int) ([]PostMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT topic, mood, author
		FROM published
		WHERE topic IS NOT NULL AND topic <> ''
		  AND mood IS NOT NULL AND mood <> ''
		  AND author IS NOT NULL AND author <> ''
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer rows.Close()

	var out []PostMeta
	for rows.Next() {
		var p PostMeta
		if err := rows.Scan(&p.Topic, &p.Mood, &p.Author); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecentTopics returns the deduplicated comma-split topics of the newest
// limit rows.
func (s *Store) RecentTopics(ctx context.Context, limit int) ([]string, error) {
	return s.recentValues(ctx, `
		SELECT topic
		FROM published
		WHERE topic IS NOT NULL AND topic <> ''
		ORDER BY id DESC
		LIMIT $1`, limit)
}

// RecentMoods returns the deduplicated comma-split moods of the newest
// limit rows.
func (s *Store) RecentMoods(ctx context.Context, limit int) ([]string, error) {
	return s.recentValues(ctx, `
		SELECT mood
		FROM published
		WHERE mood IS NOT NULL AND mood <> ''
		ORDER BY id DESC
		LIMIT $1`, limit)
}

func (s *Store) recentValues(ctx context.Context, query string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent values: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var out []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		for _, part := range strings.Split(raw, ",") {
			v := strings.TrimSpace(part)
			if v != "" && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out, rows.Err()
}
