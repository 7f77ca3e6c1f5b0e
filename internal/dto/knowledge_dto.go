package dto

import (
	"time"

	"github.com/google/uuid"
)

// IngestDocumentRequest indexes one document into the knowledge base.
// Omitting session_id files it under shared organization knowledge.
type IngestDocumentRequest struct {
	OrganizationId uuid.UUID  `json:"organization_id" validate:"required"`
	SessionId      *uuid.UUID `json:"session_id,omitempty"`
	Title          string     `json:"title" validate:"required"`
	Content        string     `json:"content" validate:"required"`
}

type KnowledgeDocumentDTO struct {
	Id             uuid.UUID  `json:"id"`
	OrganizationId uuid.UUID  `json:"organization_id"`
	SessionId      *uuid.UUID `json:"session_id,omitempty"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	CreatedAt      time.Time  `json:"created_at"`
}
