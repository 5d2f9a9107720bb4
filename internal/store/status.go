package store

import (
	"context"
	"fmt"
)

// PipelineStatus is the snapshot served by the ops endpoint.
type PipelineStatus struct {
	EditorTotal    int   `json:"editor_total"`
	EditorAnalyzed int   `json:"editor_analyzed"`
	QueuePending   int   `json:"queue_pending"`
	PublishedTotal int   `json:"published_total"`
	ChainOpen      bool  `json:"chain_open"`
	LTUpdatedAt    int64 `json:"lt_updated_at"`
}

// Status gathers queue depths and chain state in one round trip per table.
func (s *Store) Status(ctx context.Context) (*PipelineStatus, error) {
	var st PipelineStatus

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE analyzed = true)
		FROM editor`).Scan(&st.EditorTotal, &st.EditorAnalyzed)
	if err != nil {
		return nil, fmt.Errorf("count editor rows: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM to_publish WHERE published = false`).Scan(&st.QueuePending)
	if err != nil {
		return nil, fmt.Errorf("count queue rows: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM published`).Scan(&st.PublishedTotal)
	if err != nil {
		return nil, fmt.Errorf("count published rows: %w", err)
	}

	open, err := s.ChainOpen(ctx)
	if err != nil {
		return nil, err
	}
	st.ChainOpen = open

	if snap, err := s.LTSnapshot(ctx); err == nil && snap != nil {
		st.LTUpdatedAt = snap.UpdatedAt
	}

	return &st, nil
}
