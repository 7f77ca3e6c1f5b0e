package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"live-insights-be/internal/entity"
	"live-insights-be/pkg/detector"
	"live-insights-be/pkg/events"
	"live-insights-be/pkg/llm"
	"live-insights-be/pkg/resolver"
	"live-insights-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInsightRepo is an in-memory stand-in for the persistence sink.
type fakeInsightRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*entity.Insight
}

func newFakeInsightRepo() *fakeInsightRepo {
	return &fakeInsightRepo{items: map[uuid.UUID]*entity.Insight{}}
}

func (r *fakeInsightRepo) Create(ctx context.Context, insight *entity.Insight) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *insight
	r.items[insight.Id] = &cp
	return nil
}

func (r *fakeInsightRepo) Update(ctx context.Context, insight *entity.Insight) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *insight
	r.items[insight.Id] = &cp
	return nil
}

func (r *fakeInsightRepo) FindOne(ctx context.Context, id uuid.UUID) (*entity.Insight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.items[id]; ok {
		cp := *stored
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeInsightRepo) FindAllBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.Insight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Insight
	for _, stored := range r.items {
		if stored.SessionId == sessionID {
			cp := *stored
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeInsightRepo) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, stored := range r.items {
		if stored.SessionId == sessionID {
			n++
		}
	}
	return n, nil
}

// recordingEventPublisher captures lifecycle events.
type recordingEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingEventPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingEventPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// fixedConfidenceLLM answers every synthesis prompt at one confidence.
type fixedConfidenceLLM struct {
	confidence float64
}

func (f *fixedConfidenceLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return f.Generate(ctx, "", options...)
}

func (f *fixedConfidenceLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return fmt.Sprintf(`{"answer": "Forty thousand.", "confidence": %.2f}`, f.confidence), nil
}

// stubSearcher feeds the knowledge base tier only.
type stubSearcher struct {
	docs []store.Document
}

func (s *stubSearcher) Search(ctx context.Context, query string, scope resolver.SearchScope, topK int) ([]store.Document, error) {
	if scope.SessionId != nil {
		return nil, nil
	}
	return s.docs, nil
}

// ctxAwareInsightRepo refuses writes once the caller's context is done,
// the way a real database driver would.
type ctxAwareInsightRepo struct {
	*fakeInsightRepo
}

func (r *ctxAwareInsightRepo) Update(ctx context.Context, insight *entity.Insight) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.fakeInsightRepo.Update(ctx, insight)
}

// gateSearcher blocks inside the knowledge base tier until released,
// counting every call.
type gateSearcher struct {
	entered chan struct{}
	release chan struct{}
	calls   atomic.Int32
	docs    []store.Document
}

func newGateSearcher(docs []store.Document) *gateSearcher {
	return &gateSearcher{
		entered: make(chan struct{}, 4),
		release: make(chan struct{}),
		docs:    docs,
	}
}

func (s *gateSearcher) Search(ctx context.Context, query string, scope resolver.SearchScope, topK int) ([]store.Document, error) {
	s.calls.Add(1)
	s.entered <- struct{}{}
	select {
	case <-s.release:
		return s.docs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type emptyLiveReader struct{}

func (emptyLiveReader) Read(ctx context.Context, sessionID uuid.UUID, window time.Duration) ([]*entity.TranscriptSentence, error) {
	return nil, nil
}

func newTestResolver(provider llm.LLMProvider, docs []store.Document) *resolver.Resolver {
	return newTestResolverWith(&stubSearcher{docs: docs}, provider)
}

func newTestResolverWith(searcher resolver.KnowledgeSearcher, provider llm.LLMProvider) *resolver.Resolver {
	lg := log.New(os.Stderr, "", 0)
	return resolver.NewResolver(
		searcher,
		emptyLiveReader{},
		resolver.NewSynthesizer(provider, lg),
		resolver.Config{
			RelevanceFloor:      0.7,
			AcceptanceThreshold: 0.7,
			TopK:                5,
			TierTimeout:         time.Second,
		},
		lg,
	)
}

func kbDoc(score float32) store.Document {
	return store.Document{ID: uuid.NewString(), Title: "Finance Handbook", Content: "budget was 40k", Score: score}
}

func TestCreateDetectedQuestion(t *testing.T) {
	repo := newFakeInsightRepo()
	pub := &recordingEventPublisher{}
	svc := NewInsightService(repo, newTestResolver(&fixedConfidenceLLM{confidence: 0.9}, nil), pub, nopLogger{}, 25*time.Second)

	sessionID := uuid.New()
	insight, err := svc.CreateDetectedQuestion(context.Background(), sessionID, "Sarah", &detector.DetectedQuestion{
		Text:       "What was the budget?",
		Type:       entity.QuestionFactual,
		Confidence: 0.9,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusDetected, insight.Status)
	assert.Equal(t, entity.InsightTypeQuestion, insight.Type)
	assert.Equal(t, 0.9, insight.Confidence)
	assert.Equal(t, []string{events.TypeInsightDetected}, pub.types())

	stored, _ := repo.FindOne(context.Background(), insight.Id)
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusDetected, stored.Status)
}

func TestCreateDetectedActionIsBornResolved(t *testing.T) {
	repo := newFakeInsightRepo()
	svc := NewInsightService(repo, newTestResolver(&fixedConfidenceLLM{confidence: 0.9}, nil), &recordingEventPublisher{}, nopLogger{}, 25*time.Second)

	insight, err := svc.CreateDetectedAction(context.Background(), uuid.New(), "Sarah", &detector.DetectedAction{
		Description:  "I'll send the deck by Friday",
		Owner:        "Sarah",
		Deadline:     "by Friday",
		Completeness: 1.0,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.StatusResolved, insight.Status)
	assert.Equal(t, entity.InsightTypeAction, insight.Type)
	assert.NotNil(t, insight.ResolvedAt)
	assert.Equal(t, 1.0, insight.CompletenessScore)
	assert.Nil(t, insight.Answer, "actions carry completeness, not answers")
	assert.Equal(t, "Sarah", insight.Metadata["owner"])
}

func TestResolveQuestionLandsResolved(t *testing.T) {
	repo := newFakeInsightRepo()
	pub := &recordingEventPublisher{}
	res := newTestResolver(&fixedConfidenceLLM{confidence: 0.9}, []store.Document{kbDoc(0.92)})
	svc := NewInsightService(repo, res, pub, nopLogger{}, 25*time.Second)

	sessionID := uuid.New()
	insight, err := svc.CreateDetectedQuestion(context.Background(), sessionID, "Sarah", &detector.DetectedQuestion{
		Text: "What was the budget?", Type: entity.QuestionFactual, Confidence: 0.9,
	})
	require.NoError(t, err)

	resolved, err := svc.ResolveQuestion(context.Background(), insight.Id, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, entity.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.Answer)
	assert.Equal(t, entity.SourceKnowledgeBase, resolved.AnswerSource)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.NotEmpty(t, resolved.TierResults)
	assert.Equal(t, []string{events.TypeInsightDetected, events.TypeInsightResolved}, pub.types())
}

func TestResolveQuestionLandsUnresolvedOnExhaustion(t *testing.T) {
	repo := newFakeInsightRepo()
	pub := &recordingEventPublisher{}
	res := newTestResolver(&fixedConfidenceLLM{confidence: 0.3}, []store.Document{kbDoc(0.92)})
	svc := NewInsightService(repo, res, pub, nopLogger{}, 25*time.Second)

	insight, err := svc.CreateDetectedQuestion(context.Background(), uuid.New(), "Sarah", &detector.DetectedQuestion{
		Text: "What was the budget?", Type: entity.QuestionFactual, Confidence: 0.9,
	})
	require.NoError(t, err)

	resolved, err := svc.ResolveQuestion(context.Background(), insight.Id, uuid.New())
	require.NoError(t, err)

	assert.Equal(t, entity.StatusUnresolved, resolved.Status)
	assert.Nil(t, resolved.Answer)
	assert.Len(t, resolved.TierResults, 4, "exhaustion records every tier")
	assert.Contains(t, pub.types(), events.TypeInsightUnresolved)
}

func TestResolveQuestionSessionEndLandsUnresolved(t *testing.T) {
	repo := &ctxAwareInsightRepo{newFakeInsightRepo()}
	pub := &recordingEventPublisher{}
	gate := newGateSearcher(nil)
	svc := NewInsightService(repo, newTestResolverWith(gate, &fixedConfidenceLLM{confidence: 0.9}), pub, nopLogger{}, 25*time.Second)

	insight, err := svc.CreateDetectedQuestion(context.Background(), uuid.New(), "Sarah", &detector.DetectedQuestion{
		Text: "What was the budget?", Type: entity.QuestionFactual, Confidence: 0.9,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		insight *entity.Insight
		err     error
	}
	done := make(chan result, 1)
	go func() {
		got, resolveErr := svc.ResolveQuestion(ctx, insight.Id, uuid.New())
		done <- result{got, resolveErr}
	}()

	// Tier one is mid-flight; the session ends underneath it.
	<-gate.entered
	cancel()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, entity.StatusUnresolved, res.insight.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("resolution did not return after the session ended")
	}

	stored, _ := repo.FindOne(context.Background(), insight.Id)
	require.NotNil(t, stored)
	assert.Equal(t, entity.StatusUnresolved, stored.Status, "an aborted resolution must not stay in resolving")
	assert.Contains(t, pub.types(), events.TypeInsightUnresolved)
}

func TestResolveQuestionSingleFlight(t *testing.T) {
	repo := newFakeInsightRepo()
	pub := &recordingEventPublisher{}
	gate := newGateSearcher([]store.Document{kbDoc(0.92)})
	svc := NewInsightService(repo, newTestResolverWith(gate, &fixedConfidenceLLM{confidence: 0.9}), pub, nopLogger{}, 25*time.Second)

	insight, err := svc.CreateDetectedQuestion(context.Background(), uuid.New(), "Sarah", &detector.DetectedQuestion{
		Text: "What was the budget?", Type: entity.QuestionFactual, Confidence: 0.9,
	})
	require.NoError(t, err)

	type result struct {
		insight *entity.Insight
		err     error
	}
	winner := make(chan result, 1)
	go func() {
		got, resolveErr := svc.ResolveQuestion(context.Background(), insight.Id, uuid.New())
		winner <- result{got, resolveErr}
	}()

	// First attempt holds the in-flight slot mid-tier.
	<-gate.entered

	// Second attempt for the same insight collapses onto the first: it
	// returns the record as it stands instead of starting another chain.
	loser, err := svc.ResolveQuestion(context.Background(), insight.Id, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusResolving, loser.Status)

	close(gate.release)

	res := <-winner
	require.NoError(t, res.err)
	assert.Equal(t, entity.StatusResolved, res.insight.Status)

	assert.EqualValues(t, 1, gate.calls.Load(), "exactly one tier chain may run")

	var resolvedEvents int
	for _, typ := range pub.types() {
		if typ == events.TypeInsightResolved {
			resolvedEvents++
		}
	}
	assert.Equal(t, 1, resolvedEvents)
}

func TestResolveQuestionIsIdempotentPastDetection(t *testing.T) {
	repo := newFakeInsightRepo()
	res := newTestResolver(&fixedConfidenceLLM{confidence: 0.9}, []store.Document{kbDoc(0.92)})
	svc := NewInsightService(repo, res, &recordingEventPublisher{}, nopLogger{}, 25*time.Second)

	insight, _ := svc.CreateDetectedQuestion(context.Background(), uuid.New(), "Sarah", &detector.DetectedQuestion{
		Text: "What was the budget?", Type: entity.QuestionFactual, Confidence: 0.9,
	})

	first, err := svc.ResolveQuestion(context.Background(), insight.Id, uuid.New())
	require.NoError(t, err)
	require.Equal(t, entity.StatusResolved, first.Status)

	second, err := svc.ResolveQuestion(context.Background(), insight.Id, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusResolved, second.Status)
	assert.Equal(t, first.ResolvedAt.Unix(), second.ResolvedAt.Unix(), "second call must not re-resolve")
}

func TestResolveQuestionUnknownInsight(t *testing.T) {
	svc := NewInsightService(newFakeInsightRepo(), newTestResolver(&fixedConfidenceLLM{}, nil), &recordingEventPublisher{}, nopLogger{}, 25*time.Second)

	_, err := svc.ResolveQuestion(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrInsightNotFound)
}

func TestFeedbackTransitions(t *testing.T) {
	newSvc := func() (IInsightService, *fakeInsightRepo) {
		repo := newFakeInsightRepo()
		return NewInsightService(repo, newTestResolver(&fixedConfidenceLLM{}, nil), &recordingEventPublisher{}, nopLogger{}, 25*time.Second), repo
	}

	seed := func(repo *fakeInsightRepo, status entity.InsightStatus) uuid.UUID {
		insight := &entity.Insight{
			Id:        uuid.New(),
			SessionId: uuid.New(),
			Type:      entity.InsightTypeQuestion,
			Status:    status,
		}
		repo.Create(context.Background(), insight)
		return insight.Id
	}

	t.Run("accept resolved", func(t *testing.T) {
		svc, repo := newSvc()
		id := seed(repo, entity.StatusResolved)
		got, err := svc.Accept(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusAccepted, got.Status)
	})

	t.Run("dismiss resolved", func(t *testing.T) {
		svc, repo := newSvc()
		id := seed(repo, entity.StatusResolved)
		got, err := svc.Dismiss(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusDismissed, got.Status)
	})

	t.Run("dismiss while still detected", func(t *testing.T) {
		svc, repo := newSvc()
		id := seed(repo, entity.StatusDetected)
		got, err := svc.Dismiss(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusDismissed, got.Status)
	})

	t.Run("accept requires resolved", func(t *testing.T) {
		svc, repo := newSvc()
		id := seed(repo, entity.StatusDetected)
		_, err := svc.Accept(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("feedback is terminal", func(t *testing.T) {
		svc, repo := newSvc()
		id := seed(repo, entity.StatusAccepted)
		_, err := svc.Dismiss(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unresolved takes no feedback", func(t *testing.T) {
		svc, repo := newSvc()
		id := seed(repo, entity.StatusUnresolved)
		_, err := svc.Accept(context.Background(), id)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}
