package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"live-insights-be/internal/dto"
	"live-insights-be/internal/entity"
	"live-insights-be/internal/repository/memory"
	"live-insights-be/pkg/detector"
	"live-insights-be/pkg/llm"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingPublisher records enqueued resolve messages.
type capturingPublisher struct {
	mu       sync.Mutex
	messages map[string][]*message.Message
}

func newCapturingPublisher() *capturingPublisher {
	return &capturingPublisher{messages: map[string][]*message.Message{}}
}

func (p *capturingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[topic] = append(p.messages[topic], messages...)
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[topic])
}

// capturingNotifier records websocket pushes.
type capturingNotifier struct {
	mu    sync.Mutex
	sends []string
}

func (n *capturingNotifier) Send(sessionID uuid.UUID, messageType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, messageType)
}

func (n *capturingNotifier) typesSent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sends...)
}

// silentLLM refuses the implicit detection path so tests stay rule-based.
type silentLLM struct{}

func (silentLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", errors.New("llm disabled in test")
}

func (silentLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", errors.New("llm disabled in test")
}

type pipelineFixture struct {
	svc       ITranscriptService
	insights  IInsightService
	sessions  *memory.SessionStateRepository
	publisher *capturingPublisher
	notifier  *capturingNotifier
	repo      *fakeInsightRepo
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	bufferRepo := memory.NewContextBufferRepository(5*time.Minute, 200, 30*time.Minute)
	bufferSvc := NewBufferService(bufferRepo, nopLogger{})

	insightRepo := newFakeInsightRepo()
	insightSvc := NewInsightService(insightRepo, newTestResolver(&fixedConfidenceLLM{confidence: 0.9}, nil), &recordingEventPublisher{}, nopLogger{}, 25*time.Second)

	sessions := memory.NewSessionStateRepository()
	publisher := newCapturingPublisher()
	notifier := &capturingNotifier{}

	det := detector.NewDetector(silentLLM{}, log.New(os.Stderr, "", 0))

	svc := NewTranscriptService(
		bufferSvc,
		insightSvc,
		det,
		sessions,
		publisher,
		"insight_resolve",
		notifier,
		nopLogger{},
	)

	return &pipelineFixture{
		svc:       svc,
		insights:  insightSvc,
		sessions:  sessions,
		publisher: publisher,
		notifier:  notifier,
		repo:      insightRepo,
	}
}

func chunk(sessionID uuid.UUID, texts ...string) *dto.ProcessChunkRequest {
	now := time.Now()
	req := &dto.ProcessChunkRequest{SessionId: sessionID}
	for i, text := range texts {
		req.Sentences = append(req.Sentences, dto.TranscriptSentenceDTO{
			Timestamp:  now.Add(time.Duration(i) * time.Second),
			Speaker:    "Sarah",
			Text:       text,
			Confidence: 0.95,
		})
	}
	return req
}

func TestProcessChunkUnknownSession(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.svc.ProcessChunk(context.Background(), chunk(uuid.New(), "hello"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestProcessChunkDetectsAndEnqueues(t *testing.T) {
	f := newPipelineFixture(t)
	sessionID := uuid.New()
	f.sessions.GetOrCreate(sessionID.String(), uuid.NewString())

	req := chunk(sessionID,
		"What was our contractor budget last quarter?",
		"I'll pull the numbers by Friday",
		"The weather is nice",
	)
	// One malformed sentence rides along.
	req.Sentences = append(req.Sentences, dto.TranscriptSentenceDTO{
		Timestamp: time.Now(),
		Text:      "   ",
	})

	res, err := f.svc.ProcessChunk(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.ChunkIndex)
	assert.Equal(t, 1, res.RejectedSentences)
	require.Len(t, res.Insights, 2)

	var question, action *dto.InsightDTO
	for _, in := range res.Insights {
		switch in.Type {
		case string(entity.InsightTypeQuestion):
			question = in
		case string(entity.InsightTypeAction):
			action = in
		}
	}
	require.NotNil(t, question)
	require.NotNil(t, action)

	assert.Equal(t, string(entity.StatusDetected), question.Status)
	assert.Equal(t, string(entity.StatusResolved), action.Status)
	assert.Equal(t, 1.0, action.CompletenessScore)

	// Exactly the question goes to the resolution queue.
	require.Equal(t, 1, f.publisher.count("insight_resolve"))
	var msg dto.ResolveInsightMessage
	require.NoError(t, json.Unmarshal(f.publisher.messages["insight_resolve"][0].Payload, &msg))
	assert.Equal(t, question.Id, msg.InsightId)
	assert.Equal(t, sessionID, msg.SessionId)

	assert.Equal(t, int64(2), res.TotalInsightsCount)
	assert.Contains(t, f.notifier.typesSent(), "chunk_insights")
	assert.Contains(t, f.notifier.typesSent(), "insight")
}

func TestProcessChunkQuestionTakesPrecedenceOverAction(t *testing.T) {
	f := newPipelineFixture(t)
	sessionID := uuid.New()
	f.sessions.GetOrCreate(sessionID.String(), uuid.NewString())

	// Both a question and a commitment in one utterance.
	res, err := f.svc.ProcessChunk(context.Background(), chunk(sessionID, "Should we say I'll handle the rollout?"))
	require.NoError(t, err)

	require.Len(t, res.Insights, 1)
	assert.Equal(t, string(entity.InsightTypeQuestion), res.Insights[0].Type)
}

func TestProcessChunkDrainsOutbox(t *testing.T) {
	f := newPipelineFixture(t)
	sessionID := uuid.New()
	rt := f.sessions.GetOrCreate(sessionID.String(), uuid.NewString())

	// Simulate the worker having resolved a question between chunks.
	resolvedAt := time.Now()
	resolved := &entity.Insight{
		Id:         uuid.New(),
		SessionId:  sessionID,
		Type:       entity.InsightTypeQuestion,
		Status:     entity.StatusResolved,
		Content:    "What was the budget?",
		ResolvedAt: &resolvedAt,
		Answer:     &entity.Answer{Text: "Forty thousand.", Confidence: 0.9, Source: entity.SourceKnowledgeBase},
	}
	require.NoError(t, f.repo.Create(context.Background(), resolved))
	rt.StateMu.Lock()
	rt.State.RecentlyResolved = append(rt.State.RecentlyResolved, resolved.Id.String())
	rt.StateMu.Unlock()

	res, err := f.svc.ProcessChunk(context.Background(), chunk(sessionID, "Moving on to the roadmap"))
	require.NoError(t, err)

	require.Len(t, res.ProactiveAssistance, 1)
	assert.Equal(t, resolved.Id, res.ProactiveAssistance[0].Id)

	// The outbox drains exactly once.
	res2, err := f.svc.ProcessChunk(context.Background(), chunk(sessionID, "Any other topics to cover"))
	require.NoError(t, err)
	assert.Empty(t, res2.ProactiveAssistance)
	assert.Equal(t, int64(2), res2.ChunkIndex)
}

func TestProcessChunkConcurrentSessions(t *testing.T) {
	f := newPipelineFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		sessionID := uuid.New()
		f.sessions.GetOrCreate(sessionID.String(), uuid.NewString())

		wg.Add(1)
		go func(sid uuid.UUID) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, err := f.svc.ProcessChunk(context.Background(), chunk(sid, "What is the launch date?"))
				assert.NoError(t, err)
			}
		}(sessionID)
	}
	wg.Wait()
}

func TestBufferStatsUnknownSession(t *testing.T) {
	f := newPipelineFixture(t)
	_, err := f.svc.BufferStats(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestBufferStatsReportsBufferState(t *testing.T) {
	f := newPipelineFixture(t)
	sessionID := uuid.New()
	f.sessions.GetOrCreate(sessionID.String(), uuid.NewString())

	_, err := f.svc.ProcessChunk(context.Background(), chunk(sessionID, "first sentence", "second sentence"))
	require.NoError(t, err)

	stats, err := f.svc.BufferStats(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, "healthy", stats.BackingStoreState)
}
