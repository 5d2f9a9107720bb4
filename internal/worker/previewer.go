package worker

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"time"

	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// PREVIEWER — Moderator Preview Channel
// =============================================================================
// Posts every rendered row to a private preview group as soon as its
// artifacts are ready, prefixed with the scheduled publication time, so a
// moderator can see upcoming posts before they go public. Purely advisory:
// delivery to the public channel does not depend on the preview flag.

const (
	// DefaultPreviewerInterval is the scan cadence.
	DefaultPreviewerInterval = 30 * time.Second

	// previewerBatchSize bounds posts per scan.
	previewerBatchSize = 5
)

// Previewer mirrors upcoming posts into the preview group.
type Previewer struct {
	store    *store.Store
	sender   PhotoSender
	chatID   string
	interval time.Duration
}

// NewPreviewer creates a previewer posting to chatID. An empty chatID
// disables the worker; Start returns immediately.
func NewPreviewer(st *store.Store, sender PhotoSender, chatID string) *Previewer {
	return &Previewer{
		store:    st,
		sender:   sender,
		chatID:   chatID,
		interval: DefaultPreviewerInterval,
	}
}

// Start begins the preview loop. It blocks until ctx is cancelled.
func (p *Previewer) Start(ctx context.Context) {
	if p.chatID == "" {
		log.Println("[Previewer] No preview group configured, disabled")
		return
	}
	log.Printf("[Previewer] Starting (interval=%s, chat=%s)", p.interval, p.chatID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Previewer] Stopping")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Previewer) runOnce(ctx context.Context) {
	rows, err := p.store.PendingPreview(ctx, previewerBatchSize)
	if err != nil {
		log.Printf("[Previewer] Failed to query rows: %v", err)
		return
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return
		}

		photo, err := base64.StdEncoding.DecodeString(row.PicBase64)
		if err != nil {
			log.Printf("[Previewer] Row %d has undecodable image: %v", row.ID, err)
			continue
		}

		when := time.Unix(row.Time, 0).UTC().Format("02\\.01 15:04")
		caption := fmt.Sprintf("*%s UTC*\n\n%s", when, row.TextPrepared)

		if err := p.sender.SendPhoto(ctx, p.chatID, caption, photo); err != nil {
			log.Printf("[Previewer] Preview of row %d failed: %v", row.ID, err)
			continue
		}

		if err := p.store.MarkPreviewed(ctx, row.ID); err != nil {
			log.Printf("[Previewer] Failed to mark row %d: %v", row.ID, err)
		}
	}
}
