package mapper

import (
	"encoding/json"

	"live-insights-be/internal/entity"
	"live-insights-be/internal/model"

	"gorm.io/datatypes"
)

type InsightMapper struct{}

func NewInsightMapper() *InsightMapper {
	return &InsightMapper{}
}

func (m *InsightMapper) ToEntity(e *model.Insight) *entity.Insight {
	if e == nil {
		return nil
	}

	insight := &entity.Insight{
		Id:                e.Id,
		SessionId:         e.SessionId,
		Type:              entity.InsightType(e.Type),
		Status:            entity.InsightStatus(e.Status),
		Speaker:           e.Speaker,
		Content:           e.Content,
		QuestionType:      entity.QuestionType(e.QuestionType),
		DetectedAt:        e.DetectedAt,
		ResolvedAt:        e.ResolvedAt,
		AnswerSource:      entity.AnswerSource(e.AnswerSource),
		CompletenessScore: e.CompletenessScore,
		Confidence:        e.Confidence,
	}

	if len(e.TierResults) > 0 {
		_ = json.Unmarshal(e.TierResults, &insight.TierResults)
	}
	if len(e.Metadata) > 0 {
		_ = json.Unmarshal(e.Metadata, &insight.Metadata)
	}

	if e.AnswerText != "" {
		answer := &entity.Answer{
			Text:       e.AnswerText,
			Confidence: e.AnswerConfidence,
			Source:     entity.AnswerSource(e.AnswerSource),
		}
		if len(e.AnswerCitations) > 0 {
			_ = json.Unmarshal(e.AnswerCitations, &answer.Citations)
		}
		insight.Answer = answer
	}

	return insight
}

func (m *InsightMapper) ToModel(e *entity.Insight) *model.Insight {
	if e == nil {
		return nil
	}

	out := &model.Insight{
		Id:                e.Id,
		SessionId:         e.SessionId,
		Type:              string(e.Type),
		Status:            string(e.Status),
		Speaker:           e.Speaker,
		Content:           e.Content,
		QuestionType:      string(e.QuestionType),
		DetectedAt:        e.DetectedAt,
		ResolvedAt:        e.ResolvedAt,
		AnswerSource:      string(e.AnswerSource),
		CompletenessScore: e.CompletenessScore,
		Confidence:        e.Confidence,
	}

	if len(e.TierResults) > 0 {
		if data, err := json.Marshal(e.TierResults); err == nil {
			out.TierResults = datatypes.JSON(data)
		}
	}
	if len(e.Metadata) > 0 {
		if data, err := json.Marshal(e.Metadata); err == nil {
			out.Metadata = datatypes.JSON(data)
		}
	}

	if e.Answer != nil {
		out.AnswerText = e.Answer.Text
		out.AnswerConfidence = e.Answer.Confidence
		out.AnswerSource = string(e.Answer.Source)
		if len(e.Answer.Citations) > 0 {
			if data, err := json.Marshal(e.Answer.Citations); err == nil {
				out.AnswerCitations = datatypes.JSON(data)
			}
		}
	}

	return out
}

func (m *InsightMapper) ToEntities(models []*model.Insight) []*entity.Insight {
	entities := make([]*entity.Insight, len(models))
	for i, e := range models {
		entities[i] = m.ToEntity(e)
	}
	return entities
}
