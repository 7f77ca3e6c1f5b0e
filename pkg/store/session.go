package store

import "time"

// Document represents a generic evidence snippet handed to the synthesizer:
// a knowledge-base chunk, a meeting note, or a slice of live conversation.
type Document struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

// SessionState is the in-memory pipeline state for one live session.
// It serializes chunk processing for the session and tracks what has been
// resolved since the last published chunk.
type SessionState struct {
	ID             string `json:"id"` // MeetingSessionID
	OrganizationID string `json:"organization_id"`
	Title          string `json:"title"`

	ChunkIndex    int64     `json:"chunk_index"`
	TotalInsights int64     `json:"total_insights"`
	LastChunkAt   time.Time `json:"last_chunk_at"`

	// THE OUTBOX (insights resolved since the last chunk was published)
	RecentlyResolved []string `json:"recently_resolved"`
}
