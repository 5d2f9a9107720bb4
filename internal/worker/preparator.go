package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// PREPARATOR — Caption Rendering
// =============================================================================
// Turns the raw queued text into a MarkdownV2 caption. The upstream
// editorial flow packs the text as fields joined by the literal delimiter
// "1111": either (body, link) or (body, link, title, commentary). The body
// is escaped, the optional title+commentary block becomes a block quote,
// and source/subscribe links are appended.

const (
	// DefaultPreparatorInterval is the scan cadence.
	DefaultPreparatorInterval = 10 * time.Second

	// preparatorBatchSize bounds work per scan.
	preparatorBatchSize = 10

	// fieldDelimiter separates the packed fields of a raw queued text.
	fieldDelimiter = "1111"
)

// Preparator renders queued rows into MarkdownV2 captions.
type Preparator struct {
	store      *store.Store
	channelURL string
	interval   time.Duration
}

// NewPreparator creates a preparator. channelURL is the public channel link
// appended to every caption.
func NewPreparator(st *store.Store, channelURL string) *Preparator {
	return &Preparator{
		store:      st,
		channelURL: channelURL,
		interval:   DefaultPreparatorInterval,
	}
}

// Start begins the rendering loop. It blocks until ctx is cancelled.
func (p *Preparator) Start(ctx context.Context) {
	log.Printf("[Preparator] Starting (interval=%s, batch_size=%d)", p.interval, preparatorBatchSize)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Preparator] Stopping")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Preparator) runOnce(ctx context.Context) {
	rows, err := p.store.PendingPrepare(ctx, preparatorBatchSize)
	if err != nil {
		log.Printf("[Preparator] Failed to query rows: %v", err)
		return
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return
		}

		if !row.Text.Valid {
			log.Printf("[Preparator] Row %d has no text, marking prepared", row.ID)
			if err := p.store.MarkPrepared(ctx, row.ID); err != nil {
				log.Printf("[Preparator] Failed to mark row %d: %v", row.ID, err)
			}
			continue
		}

		caption, err := p.buildCaption(row.Text.String)
		if err != nil {
			log.Printf("[Preparator] Row %d is malformed (%v), marking prepared", row.ID, err)
			if err := p.store.MarkPrepared(ctx, row.ID); err != nil {
				log.Printf("[Preparator] Failed to mark row %d: %v", row.ID, err)
			}
			continue
		}

		if err := p.store.SetPrepared(ctx, row.ID, caption); err != nil {
			log.Printf("[Preparator] Failed to store caption for row %d: %v", row.ID, err)
			continue
		}
		log.Printf("[Preparator] Row %d rendered (%d chars)", row.ID, len(caption))
	}
}

// buildCaption renders one packed text into a MarkdownV2 caption.
func (p *Preparator) buildCaption(raw string) (string, error) {
	parts := strings.Split(raw, fieldDelimiter)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var body, link, quote string
	switch len(parts) {
	case 2:
		body, link = parts[0], parts[1]
	case 4:
		body, link = parts[0], parts[1]
		quote = parts[2] + "\n\n" + parts[3]
	default:
		return "", fmt.Errorf("expected 2 or 4 fields, got %d", len(parts))
	}

	var b strings.Builder
	b.WriteString(escapeMarkdownV2(body))
	if quote != "" {
		b.WriteString("\n\n")
		b.WriteString(blockQuote(escapeMarkdownV2(quote)))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "[Оригинал](%s)\n[Подписаться](%s)", link, p.channelURL)
	return b.String(), nil
}
