package resolver

import (
	"context"
	"errors"
	"log"
	"time"
	"unicode/utf8"

	"live-insights-be/internal/entity"
	"live-insights-be/pkg/store"

	"github.com/google/uuid"
)

// SearchScope narrows the knowledge retrieval boundary. A nil SessionId
// searches shared organization knowledge; a non-nil one restricts to the
// meeting's own record (agenda, pre-shared notes).
type SearchScope struct {
	OrganizationId uuid.UUID
	SessionId      *uuid.UUID
}

// KnowledgeSearcher is the knowledge retrieval boundary used by the first
// two tiers. Implementations must degrade to empty results when the index
// is unavailable.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, scope SearchScope, topK int) ([]store.Document, error)
}

// LiveContextReader reads the rolling context buffer for the third tier.
type LiveContextReader interface {
	Read(ctx context.Context, sessionID uuid.UUID, window time.Duration) ([]*entity.TranscriptSentence, error)
}

// Config encapsulates resolution parameters
type Config struct {
	RelevanceFloor      float64
	AcceptanceThreshold float64
	TopK                int
	TierTimeout         time.Duration
}

// DefaultConfig returns default resolution configuration
func DefaultConfig() Config {
	return Config{
		RelevanceFloor:      0.7,
		AcceptanceThreshold: 0.7,
		TopK:                5,
		TierTimeout:         8 * time.Second,
	}
}

// Request carries one question through the tier chain.
type Request struct {
	SessionId      uuid.UUID
	OrganizationId uuid.UUID
	Question       string
	QuestionType   entity.QuestionType
}

// Outcome is the result of a full resolution pass. Answer is nil when all
// tiers were exhausted without an accepted candidate; TierResults always
// records every tier attempted.
type Outcome struct {
	Answer      *entity.Answer
	TierResults []entity.TierResult
}

// tierOrder encodes trust, not relevance magnitude: a lower tier is never
// preferred over a higher one even if its raw score is numerically larger.
var tierOrder = []entity.AnswerSource{
	entity.SourceKnowledgeBase,
	entity.SourceMeetingContext,
	entity.SourceLiveConversation,
	entity.SourceGenerative,
}

// Resolver orchestrates the four knowledge tiers in strict priority order,
// stopping at the first tier whose synthesized answer clears the
// acceptance threshold.
type Resolver struct {
	searcher    KnowledgeSearcher
	liveReader  LiveContextReader
	synthesizer *Synthesizer
	config      Config
	logger      *log.Logger
}

func NewResolver(
	searcher KnowledgeSearcher,
	liveReader LiveContextReader,
	synthesizer *Synthesizer,
	config Config,
	logger *log.Logger,
) *Resolver {
	return &Resolver{
		searcher:    searcher,
		liveReader:  liveReader,
		synthesizer: synthesizer,
		config:      config,
		logger:      logger,
	}
}

// Resolve runs the tier chain sequentially. Exhaustion without an accepted
// answer returns an Outcome with a nil Answer and no error: "no answer
// found" is an ordinary terminal value here. The overall resolution budget
// is the deadline on ctx; a single slow tier burns only its own timeout.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Outcome, error) {
	outcome := &Outcome{}

	for _, tier := range tierOrder {
		if err := ctx.Err(); err != nil {
			// Overall budget gone: remaining tiers are skipped, not failed.
			r.logger.Printf("[WARN] Resolution budget exhausted before tier %s: %v", tier, err)
			break
		}

		result, answer := r.runTier(ctx, tier, req)
		outcome.TierResults = append(outcome.TierResults, result)

		if answer != nil {
			outcome.Answer = answer
			break
		}
	}

	return outcome, nil
}

// runTier attempts one tier end to end: evidence gathering, synthesis, and
// the acceptance gate. It never returns an error; failures and rejections
// are recorded in the TierResult and resolution moves on.
func (r *Resolver) runTier(ctx context.Context, tier entity.AnswerSource, req Request) (entity.TierResult, *entity.Answer) {
	tierCtx, cancel := context.WithTimeout(ctx, r.config.TierTimeout)
	defer cancel()

	result := entity.TierResult{
		Tier:    tier,
		Payload: map[string]interface{}{},
	}

	evidence, err := r.gatherEvidence(tierCtx, tier, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			result.Payload["timeout"] = true
		} else {
			result.Payload["error"] = err.Error()
		}
		r.logger.Printf("[WARN] Tier %s evidence gathering failed: %v", tier, err)
		return result, nil
	}

	// Evidence tiers with nothing surviving the relevance floor move on
	// without burning a synthesis call.
	if tier != entity.SourceGenerative && len(evidence) == 0 {
		result.Payload["no_evidence"] = true
		return result, nil
	}

	if len(evidence) > 0 {
		result.RawScore = float64(evidence[0].Score)
		result.Payload["evidence_count"] = len(evidence)
	}

	synth, err := r.synthesizer.Synthesize(tierCtx, req.Question, req.QuestionType, evidence, tier)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			result.Payload["timeout"] = true
		} else {
			result.Payload["error"] = err.Error()
		}
		r.logger.Printf("[WARN] Tier %s synthesis failed: %v", tier, err)
		return result, nil
	}

	result.Payload["confidence"] = synth.Confidence
	if tier == entity.SourceGenerative {
		result.RawScore = synth.Confidence
	}

	// Acceptance gate: at-threshold passes, strictly below is rejected but
	// still recorded for observability.
	if synth.Confidence < r.config.AcceptanceThreshold {
		r.logger.Printf("[INFO] Tier %s rejected: confidence %.2f below threshold %.2f",
			tier, synth.Confidence, r.config.AcceptanceThreshold)
		return result, nil
	}

	result.Accepted = true

	return result, &entity.Answer{
		Text:       synth.Text,
		Confidence: synth.Confidence,
		Source:     tier,
		Citations:  buildCitations(evidence),
	}
}

func (r *Resolver) gatherEvidence(ctx context.Context, tier entity.AnswerSource, req Request) ([]store.Document, error) {
	switch tier {
	case entity.SourceKnowledgeBase:
		docs, err := r.searcher.Search(ctx, req.Question, SearchScope{
			OrganizationId: req.OrganizationId,
		}, r.config.TopK)
		if err != nil {
			return nil, err
		}
		return filterByFloor(docs, r.config.RelevanceFloor), nil

	case entity.SourceMeetingContext:
		sessionId := req.SessionId
		docs, err := r.searcher.Search(ctx, req.Question, SearchScope{
			OrganizationId: req.OrganizationId,
			SessionId:      &sessionId,
		}, r.config.TopK)
		if err != nil {
			return nil, err
		}
		return filterByFloor(docs, r.config.RelevanceFloor), nil

	case entity.SourceLiveConversation:
		sentences, err := r.liveReader.Read(ctx, req.SessionId, 0)
		if err != nil {
			return nil, err
		}
		return rankLiveEvidence(req.Question, sentences), nil

	case entity.SourceGenerative:
		return nil, nil

	default:
		return nil, nil
	}
}

func filterByFloor(docs []store.Document, floor float64) []store.Document {
	var kept []store.Document
	for _, d := range docs {
		if float64(d.Score) >= floor {
			kept = append(kept, d)
		}
	}
	return kept
}

func buildCitations(evidence []store.Document) []entity.Citation {
	citations := make([]entity.Citation, 0, len(evidence))
	for _, doc := range evidence {
		citation := entity.Citation{
			Title:   doc.Title,
			Snippet: snippet(doc.Content, 200),
			Score:   float64(doc.Score),
		}
		if id, err := uuid.Parse(doc.ID); err == nil {
			citation.DocumentId = id
		}
		citations = append(citations, citation)
	}
	return citations
}

// snippet truncates to at most max bytes without splitting a rune.
func snippet(content string, max int) string {
	if len(content) <= max {
		return content
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut]
}
