package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"live-insights-be/internal/dto"
	"live-insights-be/internal/entity"
	"live-insights-be/internal/pkg/logger"
	"live-insights-be/internal/repository/memory"
	"live-insights-be/pkg/detector"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// InsightNotifier pushes realtime updates to everyone watching a session.
// The websocket hub implements it.
type InsightNotifier interface {
	Send(sessionID uuid.UUID, messageType string, payload interface{})
}

type ITranscriptService interface {
	// ProcessChunk runs one transcript chunk through the full pipeline:
	// buffer append, detection, resolution enqueue, and publication of the
	// chunk's insight set.
	ProcessChunk(ctx context.Context, req *dto.ProcessChunkRequest) (*dto.ChunkInsightsResponse, error)

	BufferStats(ctx context.Context, sessionID uuid.UUID) (*dto.BufferStatsResponse, error)
}

type transcriptService struct {
	bufferService  IBufferService
	insightService IInsightService
	detector       *detector.Detector
	sessions       *memory.SessionStateRepository
	publisher      message.Publisher
	resolveTopic   string
	notifier       InsightNotifier
	logger         logger.ILogger
}

func NewTranscriptService(
	bufferService IBufferService,
	insightService IInsightService,
	det *detector.Detector,
	sessions *memory.SessionStateRepository,
	publisher message.Publisher,
	resolveTopic string,
	notifier InsightNotifier,
	log logger.ILogger,
) ITranscriptService {
	return &transcriptService{
		bufferService:  bufferService,
		insightService: insightService,
		detector:       det,
		sessions:       sessions,
		publisher:      publisher,
		resolveTopic:   resolveTopic,
		notifier:       notifier,
		logger:         log,
	}
}

func (s *transcriptService) ProcessChunk(ctx context.Context, req *dto.ProcessChunkRequest) (*dto.ChunkInsightsResponse, error) {
	rt, found := s.sessions.Get(req.SessionId.String())
	if !found {
		return nil, ErrSessionNotFound
	}

	// One chunk at a time per session: chunk N's buffer writes must be
	// visible to its own detection pass before chunk N+1 starts. Distinct
	// sessions proceed in parallel.
	rt.Mu.Lock()
	defer rt.Mu.Unlock()

	start := time.Now()

	accepted, rejected := s.appendSentences(ctx, req)

	// One context render per chunk, shared by every detection call.
	recentContext := s.bufferService.FormatContext(ctx, req.SessionId, FormatOptions{
		IncludeTimestamps: true,
		IncludeSpeakers:   true,
	})

	organizationID := s.organizationID(rt)
	detected := s.detect(ctx, req.SessionId, organizationID, accepted, recentContext)

	proactive := s.drainOutbox(ctx, rt)

	rt.StateMu.Lock()
	rt.State.ChunkIndex++
	rt.State.LastChunkAt = time.Now()
	chunkIndex := rt.State.ChunkIndex
	rt.StateMu.Unlock()

	total, err := s.insightService.CountBySession(ctx, req.SessionId)
	if err != nil {
		s.logger.Warn("ProcessChunk", "Failed to count session insights", map[string]interface{}{
			"session_id": req.SessionId.String(),
			"error":      err.Error(),
		})
	}
	rt.StateMu.Lock()
	rt.State.TotalInsights = total
	rt.StateMu.Unlock()

	response := &dto.ChunkInsightsResponse{
		SessionId:           req.SessionId,
		ChunkIndex:          chunkIndex,
		Insights:            detected,
		ProactiveAssistance: proactive,
		TotalInsightsCount:  total,
		ProcessingTimeMs:    time.Since(start).Milliseconds(),
		RejectedSentences:   rejected,
	}

	if s.notifier != nil {
		s.notifier.Send(req.SessionId, "chunk_insights", response)
	}

	return response, nil
}

// appendSentences pushes the chunk into the rolling buffer. Malformed
// sentences are counted and dropped; the rest of the chunk proceeds.
func (s *transcriptService) appendSentences(ctx context.Context, req *dto.ProcessChunkRequest) ([]*entity.TranscriptSentence, int) {
	accepted := make([]*entity.TranscriptSentence, 0, len(req.Sentences))
	rejected := 0

	for _, sd := range req.Sentences {
		sentence := &entity.TranscriptSentence{
			SessionId:  req.SessionId,
			Timestamp:  sd.Timestamp,
			Speaker:    sd.Speaker,
			Text:       sd.Text,
			Confidence: sd.Confidence,
			Metadata:   sd.Metadata,
		}

		if err := s.bufferService.Append(ctx, sentence); err != nil {
			if errors.Is(err, ErrMalformedSentence) {
				rejected++
				continue
			}
			s.logger.Warn("ProcessChunk", "Buffer append failed", map[string]interface{}{
				"session_id": req.SessionId.String(),
				"error":      err.Error(),
			})
			continue
		}
		accepted = append(accepted, sentence)
	}

	return accepted, rejected
}

// detect runs each sentence through question detection first, then action
// detection. A sentence that is both reports only the question.
func (s *transcriptService) detect(ctx context.Context, sessionID uuid.UUID, organizationID uuid.UUID, sentences []*entity.TranscriptSentence, recentContext string) []*dto.InsightDTO {
	var out []*dto.InsightDTO

	for _, sentence := range sentences {
		if q, err := s.detector.DetectAndClassify(ctx, sentence.Text, recentContext); err == nil && q != nil {
			insight, err := s.insightService.CreateDetectedQuestion(ctx, sessionID, sentence.Speaker, q)
			if err != nil {
				s.logger.Error("ProcessChunk", "Failed to store question insight", map[string]interface{}{
					"session_id": sessionID.String(),
					"error":      err.Error(),
				})
				continue
			}

			s.enqueueResolution(insight.Id, sessionID, organizationID)
			out = append(out, dto.ToInsightDTO(insight))
			s.notifyInsight(sessionID, insight)
			continue
		}

		if a := detector.DetectAction(sentence.Text, sentence.Speaker); a != nil {
			insight, err := s.insightService.CreateDetectedAction(ctx, sessionID, sentence.Speaker, a)
			if err != nil {
				s.logger.Error("ProcessChunk", "Failed to store action insight", map[string]interface{}{
					"session_id": sessionID.String(),
					"error":      err.Error(),
				})
				continue
			}
			out = append(out, dto.ToInsightDTO(insight))
			s.notifyInsight(sessionID, insight)
		}
	}

	return out
}

func (s *transcriptService) enqueueResolution(insightID, sessionID, organizationID uuid.UUID) {
	payload, err := json.Marshal(dto.ResolveInsightMessage{
		InsightId:      insightID,
		SessionId:      sessionID,
		OrganizationId: organizationID,
	})
	if err != nil {
		s.logger.Error("ProcessChunk", "Failed to marshal resolve message", map[string]interface{}{
			"insight_id": insightID.String(),
			"error":      err.Error(),
		})
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.publisher.Publish(s.resolveTopic, msg); err != nil {
		s.logger.Error("ProcessChunk", "Failed to enqueue resolution", map[string]interface{}{
			"insight_id": insightID.String(),
			"error":      err.Error(),
		})
	}
}

// drainOutbox collects insights the worker resolved since the previous
// chunk so the next published chunk surfaces them as proactive assistance.
func (s *transcriptService) drainOutbox(ctx context.Context, rt *memory.SessionRuntime) []*dto.InsightDTO {
	rt.StateMu.Lock()
	ids := rt.State.RecentlyResolved
	rt.State.RecentlyResolved = nil
	rt.StateMu.Unlock()

	var out []*dto.InsightDTO
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		insight, err := s.insightService.FindOne(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, dto.ToInsightDTO(insight))
	}
	return out
}

func (s *transcriptService) organizationID(rt *memory.SessionRuntime) uuid.UUID {
	rt.StateMu.Lock()
	defer rt.StateMu.Unlock()
	id, err := uuid.Parse(rt.State.OrganizationID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (s *transcriptService) notifyInsight(sessionID uuid.UUID, insight *entity.Insight) {
	if s.notifier != nil {
		s.notifier.Send(sessionID, "insight", dto.ToInsightDTO(insight))
	}
}

func (s *transcriptService) BufferStats(ctx context.Context, sessionID uuid.UUID) (*dto.BufferStatsResponse, error) {
	if _, found := s.sessions.Get(sessionID.String()); !found {
		return nil, ErrSessionNotFound
	}
	stats := s.bufferService.Stats(ctx, sessionID)
	if stats == nil {
		return nil, fmt.Errorf("buffer stats unavailable")
	}
	return stats, nil
}
