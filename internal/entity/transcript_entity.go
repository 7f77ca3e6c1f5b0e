package entity

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptSentence is one finalized utterance from the speech-to-text
// boundary. It is immutable once appended to a session's context buffer.
// Ordering key is Timestamp (monotonic per session, ties broken by arrival).
type TranscriptSentence struct {
	SessionId  uuid.UUID              `json:"session_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Speaker    string                 `json:"speaker"`
	Text       string                 `json:"text"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
