package dto

import (
	"time"

	"live-insights-be/internal/entity"

	"github.com/google/uuid"
)

type CitationDTO struct {
	DocumentId uuid.UUID `json:"document_id,omitempty"`
	Title      string    `json:"title"`
	Snippet    string    `json:"snippet,omitempty"`
	Score      float64   `json:"score"`
}

type AnswerDTO struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	Source     string        `json:"source"`
	Citations  []CitationDTO `json:"citations,omitempty"`
}

type TierResultDTO struct {
	Tier     string                 `json:"tier"`
	RawScore float64                `json:"raw_score"`
	Accepted bool                   `json:"accepted"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}

type InsightDTO struct {
	Id                uuid.UUID       `json:"id"`
	SessionId         uuid.UUID       `json:"session_id"`
	Type              string          `json:"type"`
	Status            string          `json:"status"`
	Speaker           string          `json:"speaker,omitempty"`
	Content           string          `json:"content"`
	QuestionType      string          `json:"question_type,omitempty"`
	DetectedAt        time.Time       `json:"detected_at"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty"`
	Answer            *AnswerDTO      `json:"answer,omitempty"`
	TierResults       []TierResultDTO `json:"tier_results,omitempty"`
	CompletenessScore float64         `json:"completeness_score,omitempty"`
	Confidence        float64         `json:"confidence"`
}

// ToInsightDTO maps the domain entity onto the wire shape.
func ToInsightDTO(e *entity.Insight) *InsightDTO {
	if e == nil {
		return nil
	}

	out := &InsightDTO{
		Id:                e.Id,
		SessionId:         e.SessionId,
		Type:              string(e.Type),
		Status:            string(e.Status),
		Speaker:           e.Speaker,
		Content:           e.Content,
		QuestionType:      string(e.QuestionType),
		DetectedAt:        e.DetectedAt,
		ResolvedAt:        e.ResolvedAt,
		CompletenessScore: e.CompletenessScore,
		Confidence:        e.Confidence,
	}

	if e.Answer != nil {
		answer := &AnswerDTO{
			Text:       e.Answer.Text,
			Confidence: e.Answer.Confidence,
			Source:     string(e.Answer.Source),
		}
		for _, c := range e.Answer.Citations {
			answer.Citations = append(answer.Citations, CitationDTO{
				DocumentId: c.DocumentId,
				Title:      c.Title,
				Snippet:    c.Snippet,
				Score:      c.Score,
			})
		}
		out.Answer = answer
	}

	for _, tr := range e.TierResults {
		out.TierResults = append(out.TierResults, TierResultDTO{
			Tier:     string(tr.Tier),
			RawScore: tr.RawScore,
			Accepted: tr.Accepted,
			Payload:  tr.Payload,
		})
	}

	return out
}

type FeedbackResponse struct {
	Id     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}
