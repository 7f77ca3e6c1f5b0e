package dto

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptSentenceDTO is one utterance as delivered by the
// speech-to-text boundary.
type TranscriptSentenceDTO struct {
	Timestamp  time.Time              `json:"timestamp" validate:"required"`
	Speaker    string                 `json:"speaker"`
	Text       string                 `json:"text" validate:"required"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type ProcessChunkRequest struct {
	SessionId uuid.UUID               `json:"session_id" validate:"required"`
	Sentences []TranscriptSentenceDTO `json:"sentences" validate:"required,min=1,dive"`
}

// ChunkInsightsResponse is the per-chunk message handed to the publish
// boundary and returned to the HTTP caller.
type ChunkInsightsResponse struct {
	SessionId           uuid.UUID     `json:"session_id"`
	ChunkIndex          int64         `json:"chunk_index"`
	Insights            []*InsightDTO `json:"insights"`
	ProactiveAssistance []*InsightDTO `json:"proactive_assistance"`
	TotalInsightsCount  int64         `json:"total_insights_count"`
	ProcessingTimeMs    int64         `json:"processing_time_ms"`
	RejectedSentences   int           `json:"rejected_sentences,omitempty"`
}

type BufferStatsResponse struct {
	SessionId         uuid.UUID `json:"session_id"`
	Count             int64     `json:"count"`
	SpanSeconds       float64   `json:"span_seconds"`
	TTLSeconds        float64   `json:"ttl_seconds"`
	BackingStoreState string    `json:"backing_store_state"` // "healthy" | "degraded"
}
