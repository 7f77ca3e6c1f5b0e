package service

import (
	"context"

	"live-insights-be/internal/pkg/logger"
	"live-insights-be/internal/repository/contract"
	"live-insights-be/pkg/embedding"
	"live-insights-be/pkg/resolver"
	"live-insights-be/pkg/store"
)

// searchService implements the knowledge retrieval boundary over the
// pgvector-backed document index. An unavailable index or embedding
// provider degrades to empty results: the resolver treats that as "tier
// found nothing" and moves on.
type searchService struct {
	knowledgeRepo     contract.KnowledgeRepository
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

func NewSearchService(
	knowledgeRepo contract.KnowledgeRepository,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) resolver.KnowledgeSearcher {
	return &searchService{
		knowledgeRepo:     knowledgeRepo,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

func (s *searchService) Search(ctx context.Context, query string, scope resolver.SearchScope, topK int) ([]store.Document, error) {
	embeddingRes, err := s.embeddingProvider.Generate(query, "RETRIEVAL_QUERY")
	if err != nil {
		s.logger.Warn("Search", "Embedding generation failed, degrading to empty results", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, nil
	}

	scored, err := s.knowledgeRepo.SearchSimilarWithScore(
		ctx,
		embeddingRes.Embedding.Values,
		topK,
		scope.OrganizationId,
		scope.SessionId,
		0.0, // relevance floor applied by the resolver, not the store
	)
	if err != nil {
		s.logger.Warn("Search", "Vector search failed, degrading to empty results", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, nil
	}

	docs := make([]store.Document, 0, len(scored))
	for _, res := range scored {
		docs = append(docs, store.Document{
			ID:      res.Document.Id.String(),
			Title:   res.Document.Title,
			Content: res.Document.Content,
			Score:   float32(res.Similarity),
		})
	}
	return docs, nil
}
