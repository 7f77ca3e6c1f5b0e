package contract

import (
	"context"

	"live-insights-be/internal/entity"

	"github.com/google/uuid"
)

// ScoredKnowledgeDocument wraps a document with its similarity score
type ScoredKnowledgeDocument struct {
	Document   *entity.KnowledgeDocument
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type KnowledgeRepository interface {
	Create(ctx context.Context, doc *entity.KnowledgeDocument) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, id uuid.UUID) (*entity.KnowledgeDocument, error)

	// SearchSimilarWithScore returns documents ordered by similarity.
	// A nil sessionID searches shared organization knowledge; a non-nil
	// one restricts to that session's own documents.
	SearchSimilarWithScore(
		ctx context.Context,
		embedding []float32,
		limit int,
		organizationID uuid.UUID,
		sessionID *uuid.UUID,
		threshold float64,
	) ([]*ScoredKnowledgeDocument, error)
}
