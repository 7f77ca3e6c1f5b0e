package service

import (
	"context"
	"time"

	"live-insights-be/internal/dto"
	"live-insights-be/internal/pkg/logger"
	"live-insights-be/internal/repository/memory"
	"live-insights-be/pkg/events"

	"github.com/google/uuid"
)

type ISessionService interface {
	Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)

	// End cancels in-flight resolutions immediately and schedules the
	// session's buffer for teardown after a grace period, so late feedback
	// calls and the final chunk poll still find state.
	End(ctx context.Context, sessionID uuid.UUID) (*dto.EndSessionResponse, error)

	Exists(sessionID uuid.UUID) bool
}

type sessionService struct {
	sessions       *memory.SessionStateRepository
	bufferService  IBufferService
	eventPublisher EventPublisher
	notifier       InsightNotifier
	gracePeriod    time.Duration
	logger         logger.ILogger
}

func NewSessionService(
	sessions *memory.SessionStateRepository,
	bufferService IBufferService,
	eventPublisher EventPublisher,
	notifier InsightNotifier,
	gracePeriod time.Duration,
	log logger.ILogger,
) ISessionService {
	return &sessionService{
		sessions:       sessions,
		bufferService:  bufferService,
		eventPublisher: eventPublisher,
		notifier:       notifier,
		gracePeriod:    gracePeriod,
		logger:         log,
	}
}

func (s *sessionService) Create(ctx context.Context, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	sessionID := uuid.New()

	rt := s.sessions.GetOrCreate(sessionID.String(), req.OrganizationId.String())
	rt.StateMu.Lock()
	rt.State.Title = req.Title
	rt.StateMu.Unlock()

	s.logger.Info("Create", "Session started", map[string]interface{}{
		"session_id":      sessionID.String(),
		"organization_id": req.OrganizationId.String(),
	})

	return &dto.CreateSessionResponse{
		Id:        sessionID,
		StartedAt: time.Now(),
	}, nil
}

func (s *sessionService) End(ctx context.Context, sessionID uuid.UUID) (*dto.EndSessionResponse, error) {
	rt, found := s.sessions.Get(sessionID.String())
	if !found {
		return nil, ErrSessionNotFound
	}

	// Abort in-flight resolutions now. The runtime entry itself survives
	// the grace period so stragglers see an ended session, not a new one.
	rt.Cancel()

	endedAt := time.Now()

	if s.eventPublisher != nil {
		event := events.BaseEvent{
			Type: events.TypeSessionEnded,
			Data: map[string]interface{}{
				"session_id": sessionID.String(),
				"ended_at":   endedAt.Format(time.RFC3339),
			},
			OccurredAt: endedAt,
		}
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("End", "Failed to publish session end event", map[string]interface{}{
				"session_id": sessionID.String(),
				"error":      err.Error(),
			})
		}
	}

	if s.notifier != nil {
		s.notifier.Send(sessionID, "session_ended", map[string]interface{}{
			"session_id": sessionID.String(),
			"ended_at":   endedAt,
		})
	}

	time.AfterFunc(s.gracePeriod, func() {
		s.bufferService.Clear(context.Background(), sessionID)
		s.sessions.Delete(sessionID.String())
		s.logger.Info("End", "Session state torn down", map[string]interface{}{
			"session_id": sessionID.String(),
		})
	})

	return &dto.EndSessionResponse{
		Id:      sessionID,
		EndedAt: endedAt,
	}, nil
}

func (s *sessionService) Exists(sessionID uuid.UUID) bool {
	_, found := s.sessions.Get(sessionID.String())
	return found
}
