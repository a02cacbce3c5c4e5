package repository

import (
	"context"
	"time"

	"deal-catalog-service/internal/domain/entity"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DealRepository defines the interface for deal document operations.
// Sub-list writes are guarded by the deal version: a write made against a
// stale version fails with entity.ErrVersionConflict.
type DealRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*entity.Deal, error)
	UpdatePrices(ctx context.Context, id primitive.ObjectID, version int64, prices []entity.PriceEntry) (int64, error)
	UpdateVideos(ctx context.Context, id primitive.ObjectID, version int64, videos []entity.VideoRecord) (int64, error)
	FailStaleVideos(ctx context.Context, olderThan time.Time, reason string) (int64, error)
}
