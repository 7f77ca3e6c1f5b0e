package implementation

import (
	"context"
	"errors"

	"live-insights-be/internal/entity"
	"live-insights-be/internal/mapper"
	"live-insights-be/internal/model"
	"live-insights-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type KnowledgeRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeMapper
}

func NewKnowledgeRepository(db *gorm.DB) contract.KnowledgeRepository {
	return &KnowledgeRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeMapper(),
	}
}

func (r *KnowledgeRepositoryImpl) Create(ctx context.Context, doc *entity.KnowledgeDocument) error {
	m := r.mapper.ToModel(doc)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*doc = *r.mapper.ToEntity(m)
	return nil
}

func (r *KnowledgeRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.KnowledgeDocument{}, "id = ?", id).Error
}

func (r *KnowledgeRepositoryImpl) FindOne(ctx context.Context, id uuid.UUID) (*entity.KnowledgeDocument, error) {
	var m model.KnowledgeDocument
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

// SearchSimilarWithScore returns documents with similarity scores, filtered by threshold.
// Cosine distance in pgvector is 1 - cosine_similarity, so we compute
// 1 - (embedding_value <=> query_vector) as the similarity.
func (r *KnowledgeRepositoryImpl) SearchSimilarWithScore(
	ctx context.Context,
	embedding []float32,
	limit int,
	organizationID uuid.UUID,
	sessionID *uuid.UUID,
	threshold float64,
) ([]*contract.ScoredKnowledgeDocument, error) {
	if limit <= 0 {
		limit = 5
	}

	type result struct {
		model.KnowledgeDocument
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("knowledge_documents").
		Select("knowledge_documents.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Where("organization_id = ?", organizationID).
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold)

	if sessionID != nil {
		query = query.Where("session_id = ?", *sessionID)
	} else {
		query = query.Where("session_id IS NULL")
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredKnowledgeDocument, len(results))
	for i, res := range results {
		doc := res.KnowledgeDocument
		scored[i] = &contract.ScoredKnowledgeDocument{
			Document:   r.mapper.ToEntity(&doc),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
