package repository

import (
	"context"
	"time"

	"deal-catalog-service/internal/domain/entity"

	"gorm.io/gorm"
)

// GormIngestionRunRepository implements the IngestionRunRepository interface
type GormIngestionRunRepository struct {
	db *gorm.DB
}

// NewGormIngestionRunRepository creates a new GORM ingestion run repository
func NewGormIngestionRunRepository(db *gorm.DB) *GormIngestionRunRepository {
	return &GormIngestionRunRepository{
		db: db,
	}
}

// IngestionRuns GORM model for database mapping
type IngestionRuns struct {
	ID         string    `gorm:"column:id;primaryKey"`
	DealID     string    `gorm:"column:deal_id;index"`
	FileName   string    `gorm:"column:file_name"`
	Added      int       `gorm:"column:added"`
	Skipped    int       `gorm:"column:skipped"`
	Errors     int       `gorm:"column:errors"`
	Status     string    `gorm:"column:status"`
	Detail     string    `gorm:"column:detail"`
	DurationMs int64     `gorm:"column:duration_ms"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name
func (IngestionRuns) TableName() string {
	return "price_ingestion_runs"
}

// Migrate creates or updates the table
func (r *GormIngestionRunRepository) Migrate() error {
	return r.db.AutoMigrate(&IngestionRuns{})
}

// Create inserts a new run
func (r *GormIngestionRunRepository) Create(ctx context.Context, run *entity.IngestionRun) error {
	model := IngestionRuns{
		ID:         run.ID,
		DealID:     run.DealID,
		FileName:   run.FileName,
		Added:      run.Added,
		Skipped:    run.Skipped,
		Errors:     run.Errors,
		Status:     run.Status,
		Detail:     run.Detail,
		DurationMs: run.Duration.Milliseconds(),
		CreatedAt:  run.CreatedAt,
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// ListByDeal returns the latest runs for a deal, newest first
func (r *GormIngestionRunRepository) ListByDeal(ctx context.Context, dealID string, limit int) ([]*entity.IngestionRun, error) {
	var rows []IngestionRuns
	result := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows)
	if result.Error != nil {
		return nil, result.Error
	}

	runs := make([]*entity.IngestionRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, &entity.IngestionRun{
			ID:        row.ID,
			DealID:    row.DealID,
			FileName:  row.FileName,
			Added:     row.Added,
			Skipped:   row.Skipped,
			Errors:    row.Errors,
			Status:    row.Status,
			Detail:    row.Detail,
			Duration:  time.Duration(row.DurationMs) * time.Millisecond,
			CreatedAt: row.CreatedAt,
		})
	}
	return runs, nil
}
