package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"live-insights-be/internal/dto"
	"live-insights-be/internal/entity"
	"live-insights-be/internal/repository/memory"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IResolutionWorker interface {
	Consume(ctx context.Context) error
}

// resolutionWorker drains the resolve queue. Each message moves one
// detected question through the tier chain off the chunk request path, so
// chunk latency never includes resolution latency.
type resolutionWorker struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	insightService IInsightService
	sessions       *memory.SessionStateRepository
	notifier       InsightNotifier
}

func NewResolutionWorker(
	pubSub *gochannel.GoChannel,
	topicName string,
	insightService IInsightService,
	sessions *memory.SessionStateRepository,
	notifier InsightNotifier,
) IResolutionWorker {
	return &resolutionWorker{
		pubSub:         pubSub,
		topicName:      topicName,
		insightService: insightService,
		sessions:       sessions,
		notifier:       notifier,
	}
}

func (w *resolutionWorker) Consume(ctx context.Context) error {
	messages, err := w.pubSub.Subscribe(ctx, w.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			w.processMessage(msg)
		}
	}()

	return nil
}

func (w *resolutionWorker) processMessage(msg *message.Message) {
	var payload dto.ResolveInsightMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal resolve message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	rt, found := w.sessions.Get(payload.SessionId.String())
	if !found {
		// Session already ended. The question will never get an answer,
		// but it must not stay pending either: land it in unresolved.
		log.Printf("[INFO] Session %s ended, marking insight %s unresolved", payload.SessionId, payload.InsightId)
		w.finalizeAbandoned(payload.InsightId)
		msg.Ack()
		return
	}

	// Resolution runs under the session's context so ending the session
	// aborts whatever tier is in flight.
	insight, err := w.insightService.ResolveQuestion(rt.Ctx, payload.InsightId, payload.OrganizationId)
	if err != nil {
		if errors.Is(err, ErrInsightNotFound) || errors.Is(err, ErrInvalidTransition) {
			msg.Ack() // Nothing left to resolve.
			return
		}
		if rt.Ctx.Err() != nil {
			log.Printf("[INFO] Resolution aborted, session %s ended", payload.SessionId)
			w.finalizeAbandoned(payload.InsightId)
			msg.Ack()
			return
		}
		log.Printf("[ERROR] Failed to resolve insight %s: %v", payload.InsightId, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	log.Printf("[INFO] Insight %s landed in %s via %s", insight.Id, insight.Status, insight.AnswerSource)

	if insight.Status == entity.StatusResolved {
		// Queue it for the next published chunk's proactive assistance.
		rt.StateMu.Lock()
		rt.State.RecentlyResolved = append(rt.State.RecentlyResolved, insight.Id.String())
		rt.StateMu.Unlock()
	}

	if w.notifier != nil {
		w.notifier.Send(payload.SessionId, "insight", dto.ToInsightDTO(insight))
	}

	msg.Ack()
}

// finalizeAbandoned moves a question whose session is gone out of its
// pending state. Runs on a fresh context: the session's own is dead.
func (w *resolutionWorker) finalizeAbandoned(insightID uuid.UUID) {
	if _, err := w.insightService.MarkUnresolved(context.Background(), insightID); err != nil {
		if errors.Is(err, ErrInsightNotFound) {
			return
		}
		log.Printf("[ERROR] Failed to mark insight %s unresolved: %v", insightID, err)
	}
}
