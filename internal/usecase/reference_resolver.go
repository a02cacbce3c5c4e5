package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"deal-catalog-service/internal/domain/entity"
	"deal-catalog-service/internal/domain/repository"
	"deal-catalog-service/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type storedCode struct {
	raw string
	id  primitive.ObjectID
}

// ReferenceIndex is a read-once lookup table of airports and hotels. It is
// built at the start of an operation and never mutated afterwards.
type ReferenceIndex struct {
	airportIDs    map[primitive.ObjectID]struct{}
	airportByCode map[string]primitive.ObjectID
	airportByName map[string]primitive.ObjectID
	airportCodes  []storedCode
	hotelIDs      map[primitive.ObjectID]struct{}
	hotelByName   map[string]primitive.ObjectID
}

// NewReferenceIndex builds the lookup tables. When two records share a code
// or name the first one wins.
func NewReferenceIndex(airports []entity.Airport, hotels []entity.Hotel) ReferenceIndex {
	idx := ReferenceIndex{
		airportIDs:    make(map[primitive.ObjectID]struct{}, len(airports)),
		airportByCode: make(map[string]primitive.ObjectID, len(airports)),
		airportByName: make(map[string]primitive.ObjectID, len(airports)),
		airportCodes:  make([]storedCode, 0, len(airports)),
		hotelIDs:      make(map[primitive.ObjectID]struct{}, len(hotels)),
		hotelByName:   make(map[string]primitive.ObjectID, len(hotels)),
	}

	for _, a := range airports {
		idx.airportIDs[a.ID] = struct{}{}
		if code := normalizeCode(a.Code); code != "" {
			if _, ok := idx.airportByCode[code]; !ok {
				idx.airportByCode[code] = a.ID
			}
		}
		if name := normalizeName(a.Name); name != "" {
			if _, ok := idx.airportByName[name]; !ok {
				idx.airportByName[name] = a.ID
			}
		}
		if a.Code != "" {
			idx.airportCodes = append(idx.airportCodes, storedCode{raw: a.Code, id: a.ID})
		}
	}

	for _, h := range hotels {
		idx.hotelIDs[h.ID] = struct{}{}
		if name := normalizeName(h.Name); name != "" {
			if _, ok := idx.hotelByName[name]; !ok {
				idx.hotelByName[name] = h.ID
			}
		}
	}

	return idx
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func looksLikeAirportCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// ResolveAirport maps a token to an airport id. Strategies, in order:
// existing id, exact code, exact name, then a word match of a 3-letter token
// against stored codes.
func (x ReferenceIndex) ResolveAirport(token string) (primitive.ObjectID, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return primitive.NilObjectID, &entity.ResolutionError{Kind: "airport", Raw: token}
	}

	if id, err := primitive.ObjectIDFromHex(trimmed); err == nil {
		if _, ok := x.airportIDs[id]; ok {
			return id, nil
		}
	}

	if id, ok := x.airportByCode[normalizeCode(trimmed)]; ok {
		return id, nil
	}

	if id, ok := x.airportByName[normalizeName(trimmed)]; ok {
		return id, nil
	}

	if looksLikeAirportCode(trimmed) {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(trimmed) + `\b`)
		for _, c := range x.airportCodes {
			if re.MatchString(c.raw) {
				return c.id, nil
			}
		}
	}

	return primitive.NilObjectID, &entity.ResolutionError{Kind: "airport", Raw: token}
}

// ResolveAirportRef normalizes a tagged airport reference to a non-empty id
// list. Every id is checked against the index.
func (x ReferenceIndex) ResolveAirportRef(ref entity.AirportRef) ([]primitive.ObjectID, error) {
	tokens := ref.Tokens()
	if len(tokens) == 0 {
		return nil, &entity.ValidationError{Field: "airport", Reason: "is required"}
	}
	ids := make([]primitive.ObjectID, 0, len(tokens))
	seen := make(map[primitive.ObjectID]struct{}, len(tokens))
	for _, tok := range tokens {
		id, err := x.ResolveAirport(tok)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// ResolveHotel maps a token to a hotel id by existing id, then exact name.
func (x ReferenceIndex) ResolveHotel(token string) (primitive.ObjectID, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return primitive.NilObjectID, &entity.ResolutionError{Kind: "hotel", Raw: token}
	}

	if id, err := primitive.ObjectIDFromHex(trimmed); err == nil {
		if _, ok := x.hotelIDs[id]; ok {
			return id, nil
		}
	}

	if id, ok := x.hotelByName[normalizeName(trimmed)]; ok {
		return id, nil
	}

	return primitive.NilObjectID, &entity.ResolutionError{Kind: "hotel", Raw: token}
}

// ReferenceResolver loads reference indexes from storage
type ReferenceResolver struct {
	airportRepo repository.AirportRepository
	hotelRepo   repository.HotelRepository
	logger      logger.Logger
}

// NewReferenceResolver creates a new reference resolver
func NewReferenceResolver(
	airportRepo repository.AirportRepository,
	hotelRepo repository.HotelRepository,
	logger logger.Logger,
) *ReferenceResolver {
	return &ReferenceResolver{
		airportRepo: airportRepo,
		hotelRepo:   hotelRepo,
		logger:      logger,
	}
}

// LoadIndex reads every airport and hotel once.
func (r *ReferenceResolver) LoadIndex(ctx context.Context) (ReferenceIndex, error) {
	airports, err := r.airportRepo.ListAll(ctx)
	if err != nil {
		return ReferenceIndex{}, fmt.Errorf("failed to load airports: %w", err)
	}
	hotels, err := r.hotelRepo.ListAll(ctx)
	if err != nil {
		return ReferenceIndex{}, fmt.Errorf("failed to load hotels: %w", err)
	}

	r.logger.Debug("Reference index loaded", "airports", len(airports), "hotels", len(hotels))
	return NewReferenceIndex(airports, hotels), nil
}
