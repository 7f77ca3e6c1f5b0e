package contract

import (
	"context"

	"live-insights-be/internal/entity"

	"github.com/google/uuid"
)

// InsightRepository is the persistence sink the lifecycle manager writes
// to. Durability beyond this sink is out of scope for the core.
type InsightRepository interface {
	Create(ctx context.Context, insight *entity.Insight) error
	Update(ctx context.Context, insight *entity.Insight) error
	FindOne(ctx context.Context, id uuid.UUID) (*entity.Insight, error)
	FindAllBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.Insight, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int64, error)
}
