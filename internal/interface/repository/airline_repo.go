package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"deal-catalog-service/internal/domain/entity"

	"gorm.io/gorm"
)

// GormAirlineRepository reads the carrier reference table
type GormAirlineRepository struct {
	db *gorm.DB
}

// NewGormAirlineRepository creates a new GORM airline repository
func NewGormAirlineRepository(db *gorm.DB) *GormAirlineRepository {
	return &GormAirlineRepository{
		db: db,
	}
}

// Airlines GORM model for the carrier reference table
type Airlines struct {
	ID        uint           `gorm:"primaryKey"`
	Code      string         `gorm:"column:code;size:2;uniqueIndex"`
	ICAO      string         `gorm:"column:icao;size:3"`
	Name      string         `gorm:"column:name"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the default table name
func (Airlines) TableName() string {
	return "m_airlines"
}

// FindByCodes loads every carrier named in codes with a single query.
// Soft-deleted carriers are returned with Active false so older sheets still
// get a display name.
func (r *GormAirlineRepository) FindByCodes(ctx context.Context, codes []string) (map[string]entity.Airline, error) {
	result := make(map[string]entity.Airline, len(codes))

	wanted := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		wanted = append(wanted, code)
	}
	if len(wanted) == 0 {
		return result, nil
	}

	var rows []Airlines
	if err := r.db.WithContext(ctx).Unscoped().
		Where("code IN ?", wanted).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load airlines: %w", err)
	}

	for _, row := range rows {
		code := strings.ToUpper(row.Code)
		result[code] = entity.Airline{
			Code:   code,
			ICAO:   row.ICAO,
			Name:   row.Name,
			Active: !row.DeletedAt.Valid,
		}
	}
	return result, nil
}
