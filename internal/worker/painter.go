package worker

import (
	"context"
	"encoding/base64"
	"log"
	"strings"
	"time"

	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// PAINTER — Image Side-Channel
// =============================================================================
// Walks the delivery queue and requests an illustration for every row that
// does not have one yet. The image comes back as raw bytes and is stored
// base64-encoded next to the row; the publisher's readiness query treats
// anything under ~100 base64 chars as unusable, so a short or empty reply
// never ships.

const (
	// DefaultPainterInterval is the scan cadence.
	DefaultPainterInterval = 10 * time.Second

	// painterBatchSize bounds webhook calls per scan.
	painterBatchSize = 10
)

// Painter fills in the pic-base64 artifact of queued rows.
type Painter struct {
	store    *store.Store
	imagegen ImageGenerator
	interval time.Duration
}

// NewPainter creates a painter over the image-generation client.
func NewPainter(st *store.Store, gen ImageGenerator) *Painter {
	return &Painter{
		store:    st,
		imagegen: gen,
		interval: DefaultPainterInterval,
	}
}

// Start begins the painting loop. It blocks until ctx is cancelled.
func (p *Painter) Start(ctx context.Context) {
	log.Printf("[Painter] Starting (interval=%s, batch_size=%d)", p.interval, painterBatchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Painter] Stopping")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Painter) runOnce(ctx context.Context) {
	rows, err := p.store.PendingPictures(ctx, painterBatchSize)
	if err != nil {
		log.Printf("[Painter] Failed to query rows: %v", err)
		return
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return
		}

		if !row.Text.Valid || strings.TrimSpace(row.Text.String) == "" {
			log.Printf("[Painter] Row %d has no text, skipping", row.ID)
			continue
		}

		image, err := p.imagegen.Generate(ctx, row.Text.String)
		if err != nil {
			log.Printf("[Painter] Generation failed for row %d: %v", row.ID, err)
			continue
		}

		encoded := base64.StdEncoding.EncodeToString(image)
		if err := p.store.SetPicture(ctx, row.ID, encoded); err != nil {
			log.Printf("[Painter] Failed to store picture for row %d: %v", row.ID, err)
			continue
		}
		log.Printf("[Painter] Row %d illustrated (%d bytes)", row.ID, len(image))
	}
}
