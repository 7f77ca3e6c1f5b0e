package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Insight struct {
	Id                uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId         uuid.UUID `gorm:"type:uuid;not null;index"`
	Type              string    `gorm:"type:varchar(16);not null"`
	Status            string    `gorm:"type:varchar(16);not null;index"`
	Speaker           string
	Content           string `gorm:"type:text"`
	QuestionType      string `gorm:"type:varchar(16)"`
	DetectedAt        time.Time
	ResolvedAt        *time.Time
	AnswerText        string `gorm:"type:text"`
	AnswerConfidence  float64
	AnswerSource      string         `gorm:"type:varchar(32)"`
	AnswerCitations   datatypes.JSON `gorm:"type:jsonb"`
	TierResults       datatypes.JSON `gorm:"type:jsonb"`
	CompletenessScore float64
	Confidence        float64
	Metadata          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time      `gorm:"autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime"`
}

func (Insight) TableName() string {
	return "insights"
}
