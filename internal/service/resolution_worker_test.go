package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"live-insights-be/internal/dto"
	"live-insights-be/internal/entity"
	"live-insights-be/internal/repository/memory"
	"live-insights-be/pkg/detector"
	"live-insights-be/pkg/events"
	"live-insights-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testResolveTopic = "insight_resolve_test"

func enqueue(t *testing.T, pubSub *gochannel.GoChannel, payload dto.ResolveInsightMessage) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, pubSub.Publish(testResolveTopic, message.NewMessage(watermill.NewUUID(), raw)))
}

func TestResolutionWorkerResolvesAndFillsOutbox(t *testing.T) {
	repo := newFakeInsightRepo()
	insightSvc := NewInsightService(
		repo,
		newTestResolver(&fixedConfidenceLLM{confidence: 0.9}, []store.Document{kbDoc(0.92)}),
		&recordingEventPublisher{},
		nopLogger{},
		25*time.Second,
	)

	sessions := memory.NewSessionStateRepository()
	sessionID := uuid.New()
	rt := sessions.GetOrCreate(sessionID.String(), uuid.NewString())

	notifier := &capturingNotifier{}
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	worker := NewResolutionWorker(pubSub, testResolveTopic, insightSvc, sessions, notifier)
	require.NoError(t, worker.Consume(context.Background()))

	insight, err := insightSvc.CreateDetectedQuestion(context.Background(), sessionID, "Sarah", &detector.DetectedQuestion{
		Text: "What was the budget?", Type: entity.QuestionFactual, Confidence: 0.9,
	})
	require.NoError(t, err)

	enqueue(t, pubSub, dto.ResolveInsightMessage{
		InsightId:      insight.Id,
		SessionId:      sessionID,
		OrganizationId: uuid.New(),
	})

	assert.Eventually(t, func() bool {
		stored, _ := repo.FindOne(context.Background(), insight.Id)
		return stored != nil && stored.Status == entity.StatusResolved
	}, 2*time.Second, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		rt.StateMu.Lock()
		defer rt.StateMu.Unlock()
		return len(rt.State.RecentlyResolved) == 1
	}, 2*time.Second, 20*time.Millisecond)

	assert.Contains(t, notifier.typesSent(), "insight")
}

func TestResolutionWorkerMarksEndedSessionsUnresolved(t *testing.T) {
	repo := newFakeInsightRepo()
	pub := &recordingEventPublisher{}
	insightSvc := NewInsightService(
		repo,
		newTestResolver(&fixedConfidenceLLM{confidence: 0.9}, []store.Document{kbDoc(0.92)}),
		pub,
		nopLogger{},
		25*time.Second,
	)

	// No runtime registered for this session: it already ended.
	sessions := memory.NewSessionStateRepository()
	sessionID := uuid.New()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	worker := NewResolutionWorker(pubSub, testResolveTopic, insightSvc, sessions, &capturingNotifier{})
	require.NoError(t, worker.Consume(context.Background()))

	insight, err := insightSvc.CreateDetectedQuestion(context.Background(), sessionID, "Sarah", &detector.DetectedQuestion{
		Text: "What was the budget?", Type: entity.QuestionFactual, Confidence: 0.9,
	})
	require.NoError(t, err)

	enqueue(t, pubSub, dto.ResolveInsightMessage{
		InsightId:      insight.Id,
		SessionId:      sessionID,
		OrganizationId: uuid.New(),
	})

	// The session can never answer the question, but the question must not
	// stay pending either: it lands in unresolved, never resolved.
	assert.Eventually(t, func() bool {
		stored, _ := repo.FindOne(context.Background(), insight.Id)
		return stored != nil && stored.Status == entity.StatusUnresolved
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, pub.types(), events.TypeInsightUnresolved)
}
