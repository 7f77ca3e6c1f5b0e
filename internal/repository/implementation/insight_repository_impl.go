package implementation

import (
	"context"
	"errors"

	"live-insights-be/internal/entity"
	"live-insights-be/internal/mapper"
	"live-insights-be/internal/model"
	"live-insights-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InsightRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.InsightMapper
}

func NewInsightRepository(db *gorm.DB) contract.InsightRepository {
	return &InsightRepositoryImpl{
		db:     db,
		mapper: mapper.NewInsightMapper(),
	}
}

func (r *InsightRepositoryImpl) Create(ctx context.Context, insight *entity.Insight) error {
	m := r.mapper.ToModel(insight)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*insight = *r.mapper.ToEntity(m)
	return nil
}

func (r *InsightRepositoryImpl) Update(ctx context.Context, insight *entity.Insight) error {
	m := r.mapper.ToModel(insight)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*insight = *r.mapper.ToEntity(m)
	return nil
}

func (r *InsightRepositoryImpl) FindOne(ctx context.Context, id uuid.UUID) (*entity.Insight, error) {
	var m model.Insight
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *InsightRepositoryImpl) FindAllBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.Insight, error) {
	var models []*model.Insight
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("detected_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *InsightRepositoryImpl) CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Insight{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}
