package repository

import (
	"context"

	"deal-catalog-service/internal/domain/entity"
)

// IngestionRunRepository stores the audit trail of bulk uploads
type IngestionRunRepository interface {
	Create(ctx context.Context, run *entity.IngestionRun) error
	ListByDeal(ctx context.Context, dealID string, limit int) ([]*entity.IngestionRun, error)
}
