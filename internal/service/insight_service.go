package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"live-insights-be/internal/entity"
	"live-insights-be/internal/pkg/logger"
	"live-insights-be/internal/repository/contract"
	"live-insights-be/pkg/detector"
	"live-insights-be/pkg/events"
	"live-insights-be/pkg/resolver"

	"github.com/google/uuid"
)

var (
	ErrInsightNotFound   = errors.New("insight not found")
	ErrInvalidTransition = errors.New("invalid insight status transition")
)

// EventPublisher is the outbound lifecycle event bus (NATS in production).
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IInsightService interface {
	CreateDetectedQuestion(ctx context.Context, sessionID uuid.UUID, speaker string, q *detector.DetectedQuestion) (*entity.Insight, error)
	CreateDetectedAction(ctx context.Context, sessionID uuid.UUID, speaker string, a *detector.DetectedAction) (*entity.Insight, error)
	ResolveQuestion(ctx context.Context, insightID uuid.UUID, organizationID uuid.UUID) (*entity.Insight, error)
	MarkUnresolved(ctx context.Context, insightID uuid.UUID) (*entity.Insight, error)
	Accept(ctx context.Context, insightID uuid.UUID) (*entity.Insight, error)
	Dismiss(ctx context.Context, insightID uuid.UUID) (*entity.Insight, error)
	FindOne(ctx context.Context, insightID uuid.UUID) (*entity.Insight, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.Insight, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

// InsightService owns the insight lifecycle state machine. All status
// changes go through here so transitions stay legal and every change is
// persisted before its event is published.
type InsightService struct {
	insightRepo       contract.InsightRepository
	resolver          *resolver.Resolver
	eventPublisher    EventPublisher
	logger            logger.ILogger
	resolutionTimeout time.Duration

	// inflight single-flights resolution per insight: a question already
	// being resolved is never resolved twice concurrently.
	inflightMu sync.Mutex
	inflight   map[uuid.UUID]struct{}
}

func NewInsightService(
	insightRepo contract.InsightRepository,
	res *resolver.Resolver,
	eventPublisher EventPublisher,
	log logger.ILogger,
	resolutionTimeout time.Duration,
) IInsightService {
	return &InsightService{
		insightRepo:       insightRepo,
		resolver:          res,
		eventPublisher:    eventPublisher,
		logger:            log,
		resolutionTimeout: resolutionTimeout,
		inflight:          make(map[uuid.UUID]struct{}),
	}
}

func (s *InsightService) CreateDetectedQuestion(ctx context.Context, sessionID uuid.UUID, speaker string, q *detector.DetectedQuestion) (*entity.Insight, error) {
	insight := &entity.Insight{
		Id:           uuid.New(),
		SessionId:    sessionID,
		Type:         entity.InsightTypeQuestion,
		Status:       entity.StatusDetected,
		Speaker:      speaker,
		Content:      q.Text,
		QuestionType: q.Type,
		Confidence:   q.Confidence,
		DetectedAt:   time.Now(),
	}

	if err := s.insightRepo.Create(ctx, insight); err != nil {
		return nil, fmt.Errorf("failed to create question insight: %w", err)
	}

	s.publishEvent(ctx, events.TypeInsightDetected, insight)
	return insight, nil
}

// CreateDetectedAction stores an action item. Actions skip the resolution
// chain entirely: they are born resolved, carrying their completeness
// score instead of an answer.
func (s *InsightService) CreateDetectedAction(ctx context.Context, sessionID uuid.UUID, speaker string, a *detector.DetectedAction) (*entity.Insight, error) {
	now := time.Now()
	insight := &entity.Insight{
		Id:                uuid.New(),
		SessionId:         sessionID,
		Type:              entity.InsightTypeAction,
		Status:            entity.StatusResolved,
		Speaker:           speaker,
		Content:           a.Description,
		CompletenessScore: a.Completeness,
		DetectedAt:        now,
		ResolvedAt:        &now,
		Metadata: map[string]interface{}{
			"owner":    a.Owner,
			"deadline": a.Deadline,
		},
	}

	if err := s.insightRepo.Create(ctx, insight); err != nil {
		return nil, fmt.Errorf("failed to create action insight: %w", err)
	}

	s.publishEvent(ctx, events.TypeInsightDetected, insight)
	return insight, nil
}

// ResolveQuestion runs the full tier chain for a detected question and
// lands the insight in resolved or unresolved. Concurrent calls for the
// same insight collapse to one: the loser returns the current record
// untouched.
func (s *InsightService) ResolveQuestion(ctx context.Context, insightID uuid.UUID, organizationID uuid.UUID) (*entity.Insight, error) {
	s.inflightMu.Lock()
	if _, busy := s.inflight[insightID]; busy {
		s.inflightMu.Unlock()
		return s.FindOne(ctx, insightID)
	}
	s.inflight[insightID] = struct{}{}
	s.inflightMu.Unlock()

	defer func() {
		s.inflightMu.Lock()
		delete(s.inflight, insightID)
		s.inflightMu.Unlock()
	}()

	insight, err := s.insightRepo.FindOne(ctx, insightID)
	if err != nil {
		return nil, fmt.Errorf("failed to load insight: %w", err)
	}
	if insight == nil {
		return nil, ErrInsightNotFound
	}

	// Already past detection: someone else resolved it, or feedback landed
	// first. Return the record as it stands.
	if insight.Status != entity.StatusDetected {
		return insight, nil
	}

	if !insight.CanTransition(entity.StatusResolving) {
		return nil, ErrInvalidTransition
	}
	insight.Status = entity.StatusResolving
	if err := s.insightRepo.Update(ctx, insight); err != nil {
		return nil, fmt.Errorf("failed to mark insight resolving: %w", err)
	}

	resolveCtx, cancel := context.WithTimeout(ctx, s.resolutionTimeout)
	defer cancel()

	outcome, err := s.resolver.Resolve(resolveCtx, resolver.Request{
		SessionId:      insight.SessionId,
		OrganizationId: organizationID,
		Question:       insight.Content,
		QuestionType:   insight.QuestionType,
	})
	if err != nil {
		// Resolution infrastructure failure still lands the insight in a
		// terminal state rather than leaving it stuck in resolving.
		s.logger.Error("ResolveQuestion", "Resolution failed", map[string]interface{}{
			"insight_id": insightID.String(),
			"error":      err.Error(),
		})
		outcome = &resolver.Outcome{}
	}

	insight.TierResults = outcome.TierResults
	now := time.Now()

	if outcome.Answer != nil {
		insight.Status = entity.StatusResolved
		insight.Answer = outcome.Answer
		insight.AnswerSource = outcome.Answer.Source
		insight.ResolvedAt = &now
	} else {
		insight.Status = entity.StatusUnresolved
	}

	// The terminal write must land even when the session context was
	// cancelled mid-resolution: cancellation aborts tiers, never the
	// outcome persist. A resolving insight stuck forever is worse than a
	// write on behalf of an ended session.
	persistCtx := context.WithoutCancel(ctx)
	if err := s.insightRepo.Update(persistCtx, insight); err != nil {
		return nil, fmt.Errorf("failed to persist resolution outcome: %w", err)
	}

	if insight.Status == entity.StatusResolved {
		s.publishEvent(persistCtx, events.TypeInsightResolved, insight)
	} else {
		s.publishEvent(persistCtx, events.TypeInsightUnresolved, insight)
	}

	return insight, nil
}

// MarkUnresolved force-lands a still-pending question in unresolved. Used
// when a session ends with the question detected or resolving: an ended
// session can never answer it, and pending is not a state an insight may
// outlive its session in. Insights already past resolution are returned
// untouched.
func (s *InsightService) MarkUnresolved(ctx context.Context, insightID uuid.UUID) (*entity.Insight, error) {
	insight, err := s.insightRepo.FindOne(ctx, insightID)
	if err != nil {
		return nil, fmt.Errorf("failed to load insight: %w", err)
	}
	if insight == nil {
		return nil, ErrInsightNotFound
	}

	if insight.Status != entity.StatusDetected && insight.Status != entity.StatusResolving {
		return insight, nil
	}

	insight.Status = entity.StatusUnresolved
	if err := s.insightRepo.Update(ctx, insight); err != nil {
		return nil, fmt.Errorf("failed to persist forced unresolution: %w", err)
	}

	s.publishEvent(ctx, events.TypeInsightUnresolved, insight)
	return insight, nil
}

func (s *InsightService) Accept(ctx context.Context, insightID uuid.UUID) (*entity.Insight, error) {
	return s.applyFeedback(ctx, insightID, entity.StatusAccepted, events.TypeInsightAccepted)
}

func (s *InsightService) Dismiss(ctx context.Context, insightID uuid.UUID) (*entity.Insight, error) {
	return s.applyFeedback(ctx, insightID, entity.StatusDismissed, events.TypeInsightDismissed)
}

func (s *InsightService) applyFeedback(ctx context.Context, insightID uuid.UUID, next entity.InsightStatus, eventType string) (*entity.Insight, error) {
	insight, err := s.insightRepo.FindOne(ctx, insightID)
	if err != nil {
		return nil, fmt.Errorf("failed to load insight: %w", err)
	}
	if insight == nil {
		return nil, ErrInsightNotFound
	}

	if !insight.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, insight.Status, next)
	}

	insight.Status = next
	if err := s.insightRepo.Update(ctx, insight); err != nil {
		return nil, fmt.Errorf("failed to persist feedback: %w", err)
	}

	s.publishEvent(ctx, eventType, insight)
	return insight, nil
}

func (s *InsightService) FindOne(ctx context.Context, insightID uuid.UUID) (*entity.Insight, error) {
	insight, err := s.insightRepo.FindOne(ctx, insightID)
	if err != nil {
		return nil, err
	}
	if insight == nil {
		return nil, ErrInsightNotFound
	}
	return insight, nil
}

func (s *InsightService) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.Insight, error) {
	return s.insightRepo.FindAllBySession(ctx, sessionID)
}

func (s *InsightService) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	return s.insightRepo.CountBySession(ctx, sessionID)
}

// publishEvent is fire-and-forget: a dead bus never blocks the lifecycle.
func (s *InsightService) publishEvent(ctx context.Context, eventType string, insight *entity.Insight) {
	if s.eventPublisher == nil {
		return
	}

	event := events.BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"insight_id": insight.Id.String(),
			"session_id": insight.SessionId.String(),
			"type":       string(insight.Type),
			"status":     string(insight.Status),
		},
		OccurredAt: time.Now(),
	}

	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publishEvent", "Failed to publish lifecycle event", map[string]interface{}{
			"event_type": eventType,
			"error":      err.Error(),
		})
	}
}
