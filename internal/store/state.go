package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// Category is one entry of a weighted distribution snapshot. Snapshots are
// persisted as text[] columns holding one serialized Category per element.
type Category struct {
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// LTSnapshot is the long-term state read by the monitor.
type LTSnapshot struct {
	Topics    []Category
	Moods     []Category
	UpdatedAt int64 // UNIX seconds of the last refresh, 0 if never
}

// LTSnapshot returns the current long-term distributions, or nil when the
// state table is empty.
func (s *Store) LTSnapshot(ctx context.Context) (*LTSnapshot, error) {
	var topicsRaw, moodsRaw pq.StringArray
	var updatedAt sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT "lt-topic", "lt-mood", "lt-updated-at"
		FROM state
		ORDER BY id DESC
		LIMIT 1`).Scan(&topicsRaw, &moodsRaw, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lt snapshot: %w", err)
	}

	snap := &LTSnapshot{
		Topics: decodeCategories(topicsRaw),
		Moods:  decodeCategories(moodsRaw),
	}
	if updatedAt.Valid {
		snap.UpdatedAt = updatedAt.Int64
	}
	return snap, nil
}

// UpsertLT writes the long-term distributions and refresh timestamp into
// the singleton state row, creating it on first run. Nil slices leave the
// corresponding column untouched.
func (s *Store) UpsertLT(ctx context.Context, topics, moods []Category, updatedAt int64) error {
	return s.upsertState(ctx, map[string]interface{}{
		`"lt-topic"`:      encodeCategories(topics),
		`"lt-mood"`:       encodeCategories(moods),
		`"lt-updated-at"`: updatedAt,
	})
}

// UpsertMT writes the medium-term distributions into the singleton state
// row. Nil slices leave the corresponding column untouched.
func (s *Store) UpsertMT(ctx context.Context, topics, moods, authors []Category) error {
	return s.upsertState(ctx, map[string]interface{}{
		`"mt-topic"`:  encodeCategories(topics),
		`"mt-mood"`:   encodeCategories(moods),
		`"mt-author"`: encodeCategories(authors),
	})
}

// upsertState updates the most recent state row, inserting one when the
// table is empty. Nil values are skipped so partial classifier results do
// not clobber previous snapshots.
func (s *Store) upsertState(ctx context.Context, fields map[string]interface{}) error {
	var cols []string
	var vals []interface{}
	for _, col := range []string{`"lt-topic"`, `"lt-mood"`, `"lt-updated-at"`, `"mt-topic"`, `"mt-mood"`, `"mt-author"`} {
		v, ok := fields[col]
		if !ok || v == nil {
			continue
		}
		if arr, isArr := v.(pq.StringArray); isArr && arr == nil {
			continue
		}
		cols = append(cols, col)
		vals = append(vals, v)
	}
	if len(cols) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin state upsert: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		return fmt.Errorf("count state rows: %w", err)
	}

	if count == 0 {
		placeholders := ""
		colList := ""
		for i, col := range cols {
			if i > 0 {
				placeholders += ", "
				colList += ", "
			}
			colList += col
			placeholders += fmt.Sprintf("$%d", i+1)
		}
		query := fmt.Sprintf("INSERT INTO state (%s) VALUES (%s)", colList, placeholders)
		if _, err := tx.ExecContext(ctx, query, vals...); err != nil {
			return fmt.Errorf("insert state row: %w", err)
		}
	} else {
		setList := ""
		for i, col := range cols {
			if i > 0 {
				setList += ", "
			}
			setList += fmt.Sprintf("%s = $%d", col, i+1)
		}
		query := fmt.Sprintf(`UPDATE state SET %s
			WHERE id = (SELECT id FROM state ORDER BY id DESC LIMIT 1)`, setList)
		if _, err := tx.ExecContext(ctx, query, vals...); err != nil {
			return fmt.Errorf("update state row: %w", err)
		}
	}

	return tx.Commit()
}

// encodeCategories serializes a distribution into the text[] storage form.
// Returns a nil array for a nil slice so callers can skip the column.
func encodeCategories(cats []Category) pq.StringArray {
	if cats == nil {
		return nil
	}
	out := make(pq.StringArray, 0, len(cats))
	for _, c := range cats {
		b, err := json.Marshal(c)
		if err != nil {
			continue
		}
		out = append(out, string(b))
	}
	return out
}

// decodeCategories parses the text[] storage form, skipping malformed
// elements rather than failing the whole snapshot.
func decodeCategories(raw pq.StringArray) []Category {
	var out []Category
	for _, item := range raw {
		var c Category
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}
