package usecase

import (
	"context"
	"regexp"
	"strings"

	"deal-catalog-service/internal/domain/entity"
	"deal-catalog-service/internal/domain/repository"
	"deal-catalog-service/pkg/logger"
)

var (
	flightNumberPattern = regexp.MustCompile(`(?i)^\s*([A-Z]{2}|[A-Z][0-9]|[0-9][A-Z])\s*-?\s*(\d{1,4})\b`)
	flightTimesPattern  = regexp.MustCompile(`(?i)(\d{1,2}:\d{2})\s*(?:-|–|to)\s*(\d{1,2}:\d{2})`)
)

// ParseFlightLeg extracts airline, flight number and times from free text
// such as "AC 850 18:30-06:45". Raw text is always kept.
func ParseFlightLeg(raw string) entity.FlightLeg {
	text := strings.TrimSpace(raw)
	if text == "" {
		return entity.FlightLeg{}
	}

	leg := entity.FlightLeg{Raw: text}
	if m := flightNumberPattern.FindStringSubmatch(text); m != nil {
		leg.Airline = strings.ToUpper(m[1])
		leg.FlightNumber = leg.Airline + m[2]
	}
	if m := flightTimesPattern.FindStringSubmatch(text); m != nil {
		leg.DepartureTime = m[1]
		leg.ArrivalTime = m[2]
	}
	return leg
}

// nameAirlines fills AirlineName on every leg with a known carrier code.
// Lookup failures leave the names empty; the legs keep their raw text.
func nameAirlines(ctx context.Context, repo repository.AirlineRepository, log logger.Logger, entries []entity.PriceEntry) {
	if repo == nil || len(entries) == 0 {
		return
	}

	var codes []string
	for i := range entries {
		for _, leg := range entries[i].FlightDetails.Legs() {
			if leg.Airline != "" {
				codes = append(codes, leg.Airline)
			}
		}
	}
	if len(codes) == 0 {
		return
	}

	airlines, err := repo.FindByCodes(ctx, codes)
	if err != nil {
		log.Warn("Airline lookup failed", "error", err)
		return
	}

	for i := range entries {
		for _, leg := range entries[i].FlightDetails.Legs() {
			if airline, ok := airlines[leg.Airline]; ok {
				leg.AirlineName = airline.Name
			}
		}
	}
}
