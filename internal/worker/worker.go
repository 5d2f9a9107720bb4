// Package worker contains the background tasks of the publishing pipeline.
// Each worker is an infinite periodic loop over the shared Postgres store;
// all cross-worker coordination happens through status flags in the
// database, never through in-process state.
package worker

import (
	"context"
	"time"

	"github.com/anthology/autoposter/internal/classifier"
	"github.com/anthology/autoposter/internal/store"
)

// Classifier is the slice of the LLM client the scoring workers need.
type Classifier interface {
	Categorize(ctx context.Context, kind classifier.Kind, values []string) ([]store.Category, error)
	Diversify(ctx context.Context, kind classifier.Kind, current []store.Category, candidate string) (int, error)
}

// PhotoSender posts a photo with caption to a chat.
type PhotoSender interface {
	SendPhoto(ctx context.Context, chatID, caption string, photo []byte) error
}

// ImageGenerator turns post text into raw image bytes.
type ImageGenerator interface {
	Generate(ctx context.Context, text string) ([]byte, error)
}

// defaultScore is written when a classifier call fails or a distribution
// is empty. The row is still marked processed so the pipeline keeps moving.
const defaultScore = 5

// sleepCtx pauses for d or until ctx is cancelled, whichever comes first.
// Returns false when the context ended the sleep.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
