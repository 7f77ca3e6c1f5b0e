package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live-insights-be/internal/dto"
	"live-insights-be/internal/entity"
	"live-insights-be/internal/pkg/logger"
	"live-insights-be/internal/repository/contract"
	"live-insights-be/pkg/embedding"

	"github.com/google/uuid"
)

var ErrDocumentNotFound = errors.New("knowledge document not found")

type IKnowledgeService interface {
	Ingest(ctx context.Context, req *dto.IngestDocumentRequest) (*dto.KnowledgeDocumentDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, id uuid.UUID) (*dto.KnowledgeDocumentDTO, error)
}

// knowledgeService writes documents into the vector index the first two
// resolution tiers search. Unlike retrieval, ingest does NOT degrade: a
// failed write must surface so the caller can retry.
type knowledgeService struct {
	knowledgeRepo     contract.KnowledgeRepository
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

func NewKnowledgeService(
	knowledgeRepo contract.KnowledgeRepository,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) IKnowledgeService {
	return &knowledgeService{
		knowledgeRepo:     knowledgeRepo,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

func (s *knowledgeService) Ingest(ctx context.Context, req *dto.IngestDocumentRequest) (*dto.KnowledgeDocumentDTO, error) {
	content := fmt.Sprintf("Title: %s\n\n%s", req.Title, req.Content)

	res, err := s.embeddingProvider.Generate(content, "RETRIEVAL_DOCUMENT")
	if err != nil {
		return nil, fmt.Errorf("failed to embed document: %w", err)
	}

	doc := &entity.KnowledgeDocument{
		Id:             uuid.New(),
		OrganizationId: req.OrganizationId,
		SessionId:      req.SessionId,
		Title:          req.Title,
		Content:        req.Content,
		EmbeddingValue: res.Embedding.Values,
		CreatedAt:      time.Now(),
	}

	if err := s.knowledgeRepo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	s.logger.Info("Ingest", "Document indexed", map[string]interface{}{
		"document_id":     doc.Id.String(),
		"organization_id": doc.OrganizationId.String(),
		"session_scoped":  doc.SessionId != nil,
	})

	return toKnowledgeDTO(doc), nil
}

func (s *knowledgeService) Delete(ctx context.Context, id uuid.UUID) error {
	doc, err := s.knowledgeRepo.FindOne(ctx, id)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	return s.knowledgeRepo.Delete(ctx, id)
}

func (s *knowledgeService) FindOne(ctx context.Context, id uuid.UUID) (*dto.KnowledgeDocumentDTO, error) {
	doc, err := s.knowledgeRepo.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return toKnowledgeDTO(doc), nil
}

func toKnowledgeDTO(doc *entity.KnowledgeDocument) *dto.KnowledgeDocumentDTO {
	return &dto.KnowledgeDocumentDTO{
		Id:             doc.Id,
		OrganizationId: doc.OrganizationId,
		SessionId:      doc.SessionId,
		Title:          doc.Title,
		Content:        doc.Content,
		CreatedAt:      doc.CreatedAt,
	}
}
