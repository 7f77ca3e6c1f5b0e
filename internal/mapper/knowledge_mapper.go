package mapper

import (
	"live-insights-be/internal/entity"
	"live-insights-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type KnowledgeMapper struct{}

func NewKnowledgeMapper() *KnowledgeMapper {
	return &KnowledgeMapper{}
}

func (m *KnowledgeMapper) ToEntity(e *model.KnowledgeDocument) *entity.KnowledgeDocument {
	if e == nil {
		return nil
	}
	return &entity.KnowledgeDocument{
		Id:             e.Id,
		OrganizationId: e.OrganizationId,
		SessionId:      e.SessionId,
		Title:          e.Title,
		Content:        e.Content,
		EmbeddingValue: e.EmbeddingValue.Slice(),
		CreatedAt:      e.CreatedAt,
	}
}

func (m *KnowledgeMapper) ToModel(e *entity.KnowledgeDocument) *model.KnowledgeDocument {
	if e == nil {
		return nil
	}
	return &model.KnowledgeDocument{
		Id:             e.Id,
		OrganizationId: e.OrganizationId,
		SessionId:      e.SessionId,
		Title:          e.Title,
		Content:        e.Content,
		EmbeddingValue: pgvector.NewVector(e.EmbeddingValue),
		CreatedAt:      e.CreatedAt,
	}
}
