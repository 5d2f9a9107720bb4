package worker

import (
	"context"
	"encoding/base64"
	"log"
	"time"

	"github.com/anthology/autoposter/internal/config"
	"github.com/anthology/autoposter/internal/store"
)

// =============================================================================
// PUBLISHER — Scheduled Delivery & Chain Control
// =============================================================================
// Delivers fully-rendered queue rows whose scheduled moment has arrived.
// Each delivery is recorded in the published ledger with the chain flag:
// every row but the last in a batch gets next=true, the last gets
// next=false, which is what re-arms the planner for the following round.
// A failed delivery stops the batch so ordering is preserved; the row stays
// unpublished and is retried on the next tick.

const (
	// DefaultPublisherInterval is the scan cadence.
	DefaultPublisherInterval = 60 * time.Second

	// publisherBatchSize bounds deliveries per scan.
	publisherBatchSize = 10
)

// Publisher ships rendered rows to the channel.
type Publisher struct {
	store    *store.Store
	sender   PhotoSender
	schedule config.ScheduleConfig
	chatID   string
	interval time.Duration
	now      func() time.Time
}

// NewPublisher creates a publisher delivering to chatID.
func NewPublisher(st *store.Store, sender PhotoSender, schedule config.ScheduleConfig, chatID string) *Publisher {
	return &Publisher{
		store:    st,
		sender:   sender,
		schedule: schedule,
		chatID:   chatID,
		interval: DefaultPublisherInterval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the delivery loop. It blocks until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	log.Printf("[Publisher] Starting (interval=%s, publish_interval=%s, chat=%s)",
		p.interval, p.schedule.PublishInterval(), p.chatID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Publisher] Stopping")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Publisher) runOnce(ctx context.Context) {
	items, err := p.store.ReadyToPublish(ctx, p.now().Unix(), publisherBatchSize)
	if err != nil {
		log.Printf("[Publisher] Failed to query rows: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}

	log.Printf("[Publisher] Delivering batch of %d", len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			return
		}

		isLast := i == len(items)-1
		if err := p.deliver(ctx, item, !isLast); err != nil {
			log.Printf("[Publisher] Delivery of row %d failed, batch stopped: %v", item.ID, err)
			return
		}

		if !isLast && !sleepCtx(ctx, p.schedule.PublishInterval()) {
			return
		}
	}
}

// deliver ships one row and records it in the ledger. The ledger insert
// happens before the queue flag flips so a crash in between leaves a row
// that is retried rather than lost; the duplicate ledger entry is the
// lesser failure mode.
func (p *Publisher) deliver(ctx context.Context, item store.QueueItem, next bool) error {
	photo, err := base64.StdEncoding.DecodeString(item.PicBase64)
	if err != nil {
		return err
	}

	if err := p.sender.SendPhoto(ctx, p.chatID, item.TextPrepared, photo); err != nil {
		return err
	}

	rec := store.PublishedInsert{
		Text:   item.Text,
		Author: item.Author,
		Topic:  item.Topic,
		Mood:   item.Mood,
		Names:  item.Names,
		Length: item.Length,
		Unix:   p.now().Unix(),
		Next:   next,
	}
	if err := p.store.InsertPublished(ctx, rec); err != nil {
		return err
	}

	if err := p.store.MarkPublished(ctx, item.ID); err != nil {
		return err
	}

	log.Printf("[Publisher] Row %d delivered (next=%v)", item.ID, next)
	return nil
}
