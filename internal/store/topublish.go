package store

import (
	"context"
	"database/sql"
	"fmt"
)

// QueueText is a to_publish row reduced to what Painter and Preparator need.
type QueueText struct {
	ID   int64
	Text sql.NullString
}

// QueueItem is a fully-rendered to_publish row ready for delivery.
type QueueItem struct {
	ID           int64
	Text         sql.NullString
	Author       sql.NullString
	Topic        sql.NullString
	Mood         sql.NullString
	Names        sql.NullString
	Length       sql.NullInt64
	TextPrepared string
	PicBase64    string
}

// PreviewItem is a rendered row awaiting a preview-group post.
type PreviewItem struct {
	ID           int64
	TextPrepared string
	PicBase64    string
	Time         int64
}

// PendingPictures returns queued rows that still need an image.
func (s *Store) PendingPictures(ctx context.Context, limit int) ([]QueueText, error) {
	return s.queueTexts(ctx, `
		SELECT id, text
		FROM to_publish
		WHERE pic = false
		ORDER BY id ASC
		LIMIT $1`, limit)
}

// PendingPrepare returns queued rows that still need text preparation.
func (s *Store) PendingPrepare(ctx context.Context, limit int) ([]QueueText, error) {
	return s.queueTexts(ctx, `
		SELECT id, text
		FROM to_publish
		WHERE prepare = false
		ORDER BY id ASC
		LIMIT $1`, limit)
}

func (s *Store) queueTexts(ctx context.Context, query string, limit int) ([]QueueText, error) {
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query to_publish texts: %w", err)
	}
	defer rows.Close()

	var out []QueueText
	for rows.Next() {
		var q QueueText
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// SetPicture stores the base64 image and flips pic=true in one statement.
func (s *Store) SetPicture(ctx context.Context, id int64, base64Image string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE to_publish
		SET "pic-base64" = $1, pic = true
		WHERE id = $2`, base64Image, id)
	return err
}

// SetPrepared stores the rendered caption and flips prepare=true.
func (s *Store) SetPrepared(ctx context.Context, id int64, prepared string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE to_publish
		SET text_prepared = $1, prepare = true
		WHERE id = $2`, prepared, id)
	return err
}

// MarkPrepared flips prepare=true without a caption. Used for rows whose
// text cannot be parsed so they stop clogging the preparation scan.
func (s *Store) MarkPrepared(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE to_publish
		SET prepare = true
		WHERE id = $1`, id)
	return err
}

// ReadyToPublish returns fully-rendered rows whose scheduled time has
// arrived, oldest first. The length guards keep half-rendered rows from
// shipping: an image under ~100 base64 chars or a caption under 10 chars
// is not a usable artifact.
func (s *Store) ReadyToPublish(ctx context.Context, nowUnix int64, limit int) ([]QueueItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, author, topic, mood, names, length,
		       text_prepared, "pic-base64"
		FROM to_publish
		WHERE published = false
		  AND pic = true
		  AND "pic-base64" IS NOT NULL
		  AND LENGTH("pic-base64") > 100
		  AND prepare = true
		  AND text_prepared IS NOT NULL
		  AND LENGTH(text_prepared) > 10
		  AND "time" <= $1
		ORDER BY id ASC
		LIMIT $2`, nowUnix, limit)
	if err != nil {
		return nil, fmt.Errorf("query publishable rows: %w", err)
	}
	defer rows.Close()

	var out []QueueItem
	for rows.Next() {
		var q QueueItem
		if err := rows.Scan(&q.ID, &q.Text, &q.Author, &q.Topic, &q.Mood,
			&q.Names, &q.Length, &q.TextPrepared, &q.PicBase64); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// MarkPublished flips published=true on a delivered row.
func (s *Store) MarkPublished(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE to_publish
		SET published = true
		WHERE id = $1`, id)
	return err
}

// PendingPreview returns rendered rows not yet posted to the preview group.
func (s *Store) PendingPreview(ctx context.Context, limit int) ([]PreviewItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text_prepared, "pic-base64", "time"
		FROM to_publish
		WHERE preview = false
		  AND prepare = true
		  AND "pic-base64" IS NOT NULL
		  AND LENGTH("pic-base64") > 100
		  AND text_prepared IS NOT NULL
		  AND LENGTH(text_prepared) > 10
		ORDER BY id ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query preview rows: %w", err)
	}
	defer rows.Close()

	var out []PreviewItem
	for rows.Next() {
		var p PreviewItem
		if err := rows.Scan(&p.ID, &p.TextPrepared, &p.PicBase64, &p.Time); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkPreviewed flips preview=true on a row posted to the preview group.
func (s *Store) MarkPreviewed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE to_publish
		SET preview = true
		WHERE id = $1`, id)
	return err
}

// DeletePublished removes delivered rows from the queue.
func (s *Store) DeletePublished(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM to_publish
		WHERE published = true`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteUnpublishable removes queue rows flagged prepared without a usable
// caption (malformed or empty source text). Such rows can never pass the
// delivery guards, so they would otherwise sit in the queue forever.
func (s *Store) DeleteUnpublishable(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM to_publish
		WHERE published = false
		  AND prepare = true
		  AND (text_prepared IS NULL OR LENGTH(text_prepared) <= 10)`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
