package contract

import (
	"context"
	"time"

	"live-insights-be/internal/entity"

	"github.com/google/uuid"
)

// BufferStats describes one session's rolling buffer.
type BufferStats struct {
	Count       int64
	Span        time.Duration
	TTL         time.Duration
	StoreHealth bool
}

// ContextBufferRepository is the buffer backing store boundary: an ordered
// per-session store with insert-by-score, range-read-by-score, trim by
// score range and by rank, cardinality, and per-key TTL refresh.
// Implementations return errors for store failures; degradation policy is
// applied by the buffer service, not here.
type ContextBufferRepository interface {
	// Append inserts one sentence and synchronously evicts anything
	// outside the window/count bounds. Re-inserting an identical sentence
	// must not create a duplicate entry.
	Append(ctx context.Context, sentence *entity.TranscriptSentence) error

	// Read returns kept sentences in chronological order. A zero window
	// reads the whole buffer.
	Read(ctx context.Context, sessionID uuid.UUID, window time.Duration) ([]*entity.TranscriptSentence, error)

	Stats(ctx context.Context, sessionID uuid.UUID) (*BufferStats, error)

	Clear(ctx context.Context, sessionID uuid.UUID) error
}
