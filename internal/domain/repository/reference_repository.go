package repository

import (
	"context"

	"deal-catalog-service/internal/domain/entity"
)

// AirportRepository defines the interface for airport reference data
type AirportRepository interface {
	ListAll(ctx context.Context) ([]entity.Airport, error)
}

// HotelRepository defines the interface for hotel reference data
type HotelRepository interface {
	ListAll(ctx context.Context) ([]entity.Hotel, error)
}

// AirlineRepository looks up carriers by IATA designator. Unknown codes are
// absent from the result, not an error.
type AirlineRepository interface {
	FindByCodes(ctx context.Context, codes []string) (map[string]entity.Airline, error)
}
