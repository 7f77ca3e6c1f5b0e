package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"live-insights-be/internal/entity"
	"live-insights-be/internal/repository/contract"

	"github.com/google/uuid"
)

// ContextBufferRepository is a process-local implementation of the buffer
// backing store, used for development without Redis and by tests. It
// enforces the same window/count eviction and TTL semantics.
type ContextBufferRepository struct {
	mu           sync.RWMutex
	buffers      map[uuid.UUID]*sessionBuffer
	window       time.Duration
	maxSentences int
	ttl          time.Duration
}

type sessionBuffer struct {
	mu        sync.Mutex
	sentences []*entity.TranscriptSentence
	expiresAt time.Time
}

func NewContextBufferRepository(window time.Duration, maxSentences int, ttl time.Duration) *ContextBufferRepository {
	return &ContextBufferRepository{
		buffers:      make(map[uuid.UUID]*sessionBuffer),
		window:       window,
		maxSentences: maxSentences,
		ttl:          ttl,
	}
}

func (r *ContextBufferRepository) bufferFor(sessionID uuid.UUID, create bool) *sessionBuffer {
	r.mu.RLock()
	buf, ok := r.buffers[sessionID]
	r.mu.RUnlock()
	if ok || !create {
		return buf
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if buf, ok = r.buffers[sessionID]; ok {
		return buf
	}
	buf = &sessionBuffer{}
	r.buffers[sessionID] = buf
	return buf
}

func (r *ContextBufferRepository) Append(ctx context.Context, sentence *entity.TranscriptSentence) error {
	buf := r.bufferFor(sentence.SessionId, true)

	buf.mu.Lock()
	defer buf.mu.Unlock()

	if !buf.expiresAt.IsZero() && time.Now().After(buf.expiresAt) {
		buf.sentences = nil
	}

	// Idempotent under retries: identical (timestamp, speaker, text) is a
	// no-op beyond the TTL refresh.
	duplicate := false
	for _, s := range buf.sentences {
		if s.Timestamp.Equal(sentence.Timestamp) && s.Speaker == sentence.Speaker && s.Text == sentence.Text {
			duplicate = true
			break
		}
	}

	if !duplicate {
		buf.sentences = append(buf.sentences, sentence)
		sort.SliceStable(buf.sentences, func(i, j int) bool {
			return buf.sentences[i].Timestamp.Before(buf.sentences[j].Timestamp)
		})
		r.evictLocked(buf)
	}

	buf.expiresAt = time.Now().Add(r.ttl)
	return nil
}

// evictLocked applies the window rule then the count rule, oldest first.
// Both bounds hold after every append; the stricter one wins.
func (r *ContextBufferRepository) evictLocked(buf *sessionBuffer) {
	cutoff := time.Now().Add(-r.window)
	kept := buf.sentences[:0]
	for _, s := range buf.sentences {
		if !s.Timestamp.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	buf.sentences = kept

	if excess := len(buf.sentences) - r.maxSentences; excess > 0 {
		buf.sentences = buf.sentences[excess:]
	}
}

func (r *ContextBufferRepository) Read(ctx context.Context, sessionID uuid.UUID, window time.Duration) ([]*entity.TranscriptSentence, error) {
	buf := r.bufferFor(sessionID, false)
	if buf == nil {
		return nil, nil
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()

	if !buf.expiresAt.IsZero() && time.Now().After(buf.expiresAt) {
		return nil, nil
	}

	var cutoff time.Time
	if window > 0 {
		cutoff = time.Now().Add(-window)
	}

	out := make([]*entity.TranscriptSentence, 0, len(buf.sentences))
	for _, s := range buf.sentences {
		if window > 0 && s.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *ContextBufferRepository) Stats(ctx context.Context, sessionID uuid.UUID) (*contract.BufferStats, error) {
	stats := &contract.BufferStats{StoreHealth: true}

	buf := r.bufferFor(sessionID, false)
	if buf == nil {
		return stats, nil
	}

	buf.mu.Lock()
	defer buf.mu.Unlock()

	if !buf.expiresAt.IsZero() && time.Now().After(buf.expiresAt) {
		return stats, nil
	}

	stats.Count = int64(len(buf.sentences))
	if n := len(buf.sentences); n > 0 {
		stats.Span = buf.sentences[n-1].Timestamp.Sub(buf.sentences[0].Timestamp)
		stats.TTL = time.Until(buf.expiresAt)
	}
	return stats, nil
}

func (r *ContextBufferRepository) Clear(ctx context.Context, sessionID uuid.UUID) error {
	r.mu.Lock()
	delete(r.buffers, sessionID)
	r.mu.Unlock()
	return nil
}
