package entity

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeDocument is one indexed chunk of organizational or meeting
// material. Documents with a SessionId belong to a single meeting's own
// record (agenda, pre-shared notes); documents without one are shared
// organization knowledge.
type KnowledgeDocument struct {
	Id             uuid.UUID
	OrganizationId uuid.UUID
	SessionId      *uuid.UUID
	Title          string
	Content        string
	EmbeddingValue []float32
	CreatedAt      time.Time
}
