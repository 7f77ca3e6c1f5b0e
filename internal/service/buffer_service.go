package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"live-insights-be/internal/dto"
	"live-insights-be/internal/entity"
	"live-insights-be/internal/pkg/logger"
	"live-insights-be/internal/repository/contract"

	"github.com/google/uuid"
)

// ErrMalformedSentence rejects input at the buffer boundary (unparsable
// timestamp, empty text). This is the only error Append surfaces; store
// failures degrade silently per the buffer's degradation policy.
var ErrMalformedSentence = fmt.Errorf("malformed transcript sentence")

// FormatOptions controls the rendered context blob.
type FormatOptions struct {
	IncludeTimestamps bool
	IncludeSpeakers   bool
}

type IBufferService interface {
	// Append validates and stores one sentence. A store failure is
	// absorbed (no-op, degraded health); only malformed input errors.
	Append(ctx context.Context, sentence *entity.TranscriptSentence) error

	// Read returns kept sentences chronologically; empty on store failure.
	Read(ctx context.Context, sessionID uuid.UUID, window time.Duration) ([]*entity.TranscriptSentence, error)

	// FormatContext renders the buffer into a prompt-ready blob. Pure
	// function of buffer contents and options; empty string on store
	// failure ("no context available", not an error).
	FormatContext(ctx context.Context, sessionID uuid.UUID, opts FormatOptions) string

	Stats(ctx context.Context, sessionID uuid.UUID) *dto.BufferStatsResponse

	Clear(ctx context.Context, sessionID uuid.UUID)

	Healthy() bool
}

type bufferService struct {
	repo     contract.ContextBufferRepository
	logger   logger.ILogger
	degraded atomic.Bool
}

func NewBufferService(repo contract.ContextBufferRepository, log logger.ILogger) IBufferService {
	return &bufferService{
		repo:   repo,
		logger: log,
	}
}

func (s *bufferService) Append(ctx context.Context, sentence *entity.TranscriptSentence) error {
	if sentence == nil || strings.TrimSpace(sentence.Text) == "" || sentence.Timestamp.IsZero() {
		return ErrMalformedSentence
	}

	if err := s.repo.Append(ctx, sentence); err != nil {
		s.markDegraded(err, "Append")
		return nil
	}
	s.degraded.Store(false)
	return nil
}

func (s *bufferService) Read(ctx context.Context, sessionID uuid.UUID, window time.Duration) ([]*entity.TranscriptSentence, error) {
	sentences, err := s.repo.Read(ctx, sessionID, window)
	if err != nil {
		s.markDegraded(err, "Read")
		return nil, nil
	}
	s.degraded.Store(false)
	return sentences, nil
}

func (s *bufferService) FormatContext(ctx context.Context, sessionID uuid.UUID, opts FormatOptions) string {
	sentences, _ := s.Read(ctx, sessionID, 0)
	return FormatTranscript(sentences, opts)
}

// FormatTranscript is the pure rendering step: identical sentences and
// options always produce byte-identical output.
func FormatTranscript(sentences []*entity.TranscriptSentence, opts FormatOptions) string {
	if len(sentences) == 0 {
		return ""
	}

	var b strings.Builder
	for _, s := range sentences {
		if opts.IncludeTimestamps {
			b.WriteString("[")
			b.WriteString(s.Timestamp.UTC().Format("15:04:05"))
			b.WriteString("] ")
		}
		if opts.IncludeSpeakers && s.Speaker != "" {
			b.WriteString(s.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func (s *bufferService) Stats(ctx context.Context, sessionID uuid.UUID) *dto.BufferStatsResponse {
	resp := &dto.BufferStatsResponse{
		SessionId:         sessionID,
		BackingStoreState: "healthy",
	}

	stats, err := s.repo.Stats(ctx, sessionID)
	if err != nil {
		s.markDegraded(err, "Stats")
		resp.BackingStoreState = "degraded"
		return resp
	}

	resp.Count = stats.Count
	resp.SpanSeconds = stats.Span.Seconds()
	resp.TTLSeconds = stats.TTL.Seconds()
	if s.degraded.Load() {
		resp.BackingStoreState = "degraded"
	}
	return resp
}

func (s *bufferService) Clear(ctx context.Context, sessionID uuid.UUID) {
	if err := s.repo.Clear(ctx, sessionID); err != nil {
		s.markDegraded(err, "Clear")
	}
}

func (s *bufferService) Healthy() bool {
	return !s.degraded.Load()
}

func (s *bufferService) markDegraded(err error, op string) {
	if !s.degraded.Swap(true) {
		s.logger.Warn("Buffer", "Backing store degraded", map[string]interface{}{
			"op":    op,
			"error": err.Error(),
		})
	}
}
