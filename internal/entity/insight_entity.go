package entity

import (
	"time"

	"github.com/google/uuid"
)

type InsightType string

const (
	InsightTypeQuestion InsightType = "question"
	InsightTypeAction   InsightType = "action"
	InsightTypeAnswer   InsightType = "answer"
)

type InsightStatus string

const (
	StatusDetected   InsightStatus = "detected"
	StatusResolving  InsightStatus = "resolving"
	StatusResolved   InsightStatus = "resolved"
	StatusUnresolved InsightStatus = "unresolved"
	StatusAccepted   InsightStatus = "accepted"
	StatusDismissed  InsightStatus = "dismissed"
)

// AnswerSource tags which knowledge tier produced an accepted answer.
// The order of the constants is the resolution trust order.
type AnswerSource string

const (
	SourceKnowledgeBase    AnswerSource = "knowledge_base"
	SourceMeetingContext   AnswerSource = "meeting_context"
	SourceLiveConversation AnswerSource = "live_conversation"
	SourceGenerative       AnswerSource = "generative"
)

type QuestionType string

const (
	QuestionFactual       QuestionType = "factual"
	QuestionDecision      QuestionType = "decision"
	QuestionProcess       QuestionType = "process"
	QuestionClarification QuestionType = "clarification"
)

// TierResult records one tier attempt during resolution, accepted or not.
// Every attempted tier is kept for observability.
type TierResult struct {
	Tier     AnswerSource           `json:"tier"`
	RawScore float64                `json:"raw_score"`
	Accepted bool                   `json:"accepted"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

type Citation struct {
	DocumentId uuid.UUID `json:"document_id"`
	Title      string    `json:"title"`
	Snippet    string    `json:"snippet,omitempty"`
	Score      float64   `json:"score"`
}

// Answer is created only when synthesis confidence clears the acceptance
// threshold. An unresolved insight carries no Answer.
type Answer struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Source     AnswerSource `json:"source"`
	Citations  []Citation   `json:"citations,omitempty"`
}

type Insight struct {
	Id                uuid.UUID
	SessionId         uuid.UUID
	Type              InsightType
	Status            InsightStatus
	Speaker           string
	Content           string
	QuestionType      QuestionType
	DetectedAt        time.Time
	ResolvedAt        *time.Time
	AnswerSource      AnswerSource
	Answer            *Answer
	TierResults       []TierResult
	CompletenessScore float64
	Confidence        float64
	Metadata          map[string]interface{}
}

// validStatusTransitions encodes the lifecycle state machine. Transitions
// are monotonic: once a terminal feedback state is reached nothing moves.
var validStatusTransitions = map[InsightStatus][]InsightStatus{
	StatusDetected:   {StatusResolving, StatusResolved, StatusUnresolved, StatusDismissed},
	StatusResolving:  {StatusResolved, StatusUnresolved},
	StatusResolved:   {StatusAccepted, StatusDismissed},
	StatusUnresolved: {},
	StatusAccepted:   {},
	StatusDismissed:  {},
}

// CanTransition reports whether moving the insight from its current status
// to next is a legal lifecycle step.
func (i *Insight) CanTransition(next InsightStatus) bool {
	for _, s := range validStatusTransitions[i.Status] {
		if s == next {
			return true
		}
	}
	return false
}
