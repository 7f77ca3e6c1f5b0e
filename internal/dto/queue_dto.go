package dto

import "github.com/google/uuid"

// ResolveInsightMessage is the payload enqueued for the resolution worker
// when a question insight is detected.
type ResolveInsightMessage struct {
	InsightId      uuid.UUID `json:"insight_id"`
	SessionId      uuid.UUID `json:"session_id"`
	OrganizationId uuid.UUID `json:"organization_id"`
}
