package usecase

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"deal-catalog-service/internal/domain/entity"
	"deal-catalog-service/internal/domain/repository"
	"deal-catalog-service/pkg/logger"
	"deal-catalog-service/pkg/metrics"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxWriteAttempts bounds read-modify-write retries on version conflicts.
const maxWriteAttempts = 3

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// PriceRequest is the wire shape of a direct price create or edit.
type PriceRequest struct {
	Country       string               `json:"country"`
	Airport       entity.AirportRef    `json:"airport"`
	Hotel         *string              `json:"hotel"`
	StartDate     string               `json:"startdate" validate:"required"`
	EndDate       string               `json:"enddate" validate:"required"`
	Price         float64              `json:"price" validate:"gt=0"`
	PriceSwitch   bool                 `json:"priceswitch"`
	FlightDetails entity.FlightDetails `json:"flightDetails"`
}

// parseRequestDate accepts a calendar day or an RFC 3339 timestamp.
func parseRequestDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(entity.DayLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, &entity.ValidationError{Field: field, Reason: "must be YYYY-MM-DD or RFC 3339"}
}

func validationFromValidator(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := "is invalid"
		switch fe.Tag() {
		case "required":
			reason = "is required"
		case "gt":
			reason = "must be greater than " + fe.Param()
		}
		return &entity.ValidationError{Field: fe.Field(), Reason: reason}
	}
	return &entity.ValidationError{Field: "request", Reason: err.Error()}
}

// PriceCatalog owns every write to a deal's price list.
type PriceCatalog struct {
	dealRepo repository.DealRepository
	resolver *ReferenceResolver
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// NewPriceCatalog creates a new price catalog
func NewPriceCatalog(
	dealRepo repository.DealRepository,
	resolver *ReferenceResolver,
	metrics *metrics.Metrics,
	logger logger.Logger,
) *PriceCatalog {
	return &PriceCatalog{
		dealRepo: dealRepo,
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
	}
}

// GetDeal loads a deal as stored.
func (c *PriceCatalog) GetDeal(ctx context.Context, dealID primitive.ObjectID) (*entity.Deal, error) {
	return c.dealRepo.FindByID(ctx, dealID)
}

// ListPrices returns the deal's prices ordered by start date.
func (c *PriceCatalog) ListPrices(ctx context.Context, dealID primitive.ObjectID) ([]entity.PriceEntry, error) {
	deal, err := c.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return deal.SortedPrices(), nil
}

// AddPrice appends a new entry. A start day that is already taken yields an
// *entity.DuplicateDateError describing the existing entry.
func (c *PriceCatalog) AddPrice(ctx context.Context, dealID primitive.ObjectID, req PriceRequest) (entity.PriceEntry, error) {
	var added entity.PriceEntry
	err := c.mutate(ctx, dealID, "add", func(deal *entity.Deal, idx ReferenceIndex) error {
		entry, err := c.buildEntry(deal, req, idx)
		if err != nil {
			return err
		}
		added, err = deal.AddPrice(entry)
		return err
	})
	if err != nil {
		return entity.PriceEntry{}, err
	}
	return added, nil
}

// ReplacePrice overwrites every field of an existing entry.
func (c *PriceCatalog) ReplacePrice(ctx context.Context, dealID, priceID primitive.ObjectID, req PriceRequest) (entity.PriceEntry, error) {
	var replaced entity.PriceEntry
	err := c.mutate(ctx, dealID, "replace", func(deal *entity.Deal, idx ReferenceIndex) error {
		entry, err := c.buildEntry(deal, req, idx)
		if err != nil {
			return err
		}
		replaced, err = deal.ReplacePrice(priceID, entry)
		return err
	})
	if err != nil {
		return entity.PriceEntry{}, err
	}
	return replaced, nil
}

// RemovePrice deletes an entry. Deleting an unknown entry succeeds.
func (c *PriceCatalog) RemovePrice(ctx context.Context, dealID, priceID primitive.ObjectID) error {
	return c.mutate(ctx, dealID, "remove", func(deal *entity.Deal, _ ReferenceIndex) error {
		if !deal.RemovePrice(priceID) {
			c.logger.Debug("Price already absent", "dealID", dealID.Hex(), "priceID", priceID.Hex())
		}
		return nil
	})
}

func (c *PriceCatalog) buildEntry(deal *entity.Deal, req PriceRequest, idx ReferenceIndex) (entity.PriceEntry, error) {
	if err := validate.Struct(req); err != nil {
		return entity.PriceEntry{}, validationFromValidator(err)
	}

	start, err := parseRequestDate("startdate", req.StartDate)
	if err != nil {
		return entity.PriceEntry{}, err
	}
	end, err := parseRequestDate("enddate", req.EndDate)
	if err != nil {
		return entity.PriceEntry{}, err
	}
	if end.Before(start) {
		return entity.PriceEntry{}, &entity.ValidationError{Field: "enddate", Reason: "must not be before startdate"}
	}

	airports, err := idx.ResolveAirportRef(req.Airport)
	if err != nil {
		return entity.PriceEntry{}, err
	}

	var hotel *primitive.ObjectID
	if req.Hotel != nil && strings.TrimSpace(*req.Hotel) != "" {
		id, err := idx.ResolveHotel(*req.Hotel)
		if err != nil {
			return entity.PriceEntry{}, err
		}
		hotel = &id
	}

	country := strings.TrimSpace(req.Country)
	if country == "" {
		country = deal.PriceCountry()
	}

	return entity.PriceEntry{
		Country:       country,
		Airport:       airports,
		Hotel:         hotel,
		StartDate:     start,
		EndDate:       end,
		Price:         req.Price,
		PriceSwitch:   req.PriceSwitch,
		FlightDetails: req.FlightDetails,
	}, nil
}

// mutate runs fn against a freshly loaded deal and persists the price list,
// retrying the whole read-modify-write when another writer got there first.
func (c *PriceCatalog) mutate(ctx context.Context, dealID primitive.ObjectID, op string, fn func(*entity.Deal, ReferenceIndex) error) error {
	idx, err := c.resolver.LoadIndex(ctx)
	if err != nil {
		c.metrics.ErrorsCount.WithLabelValues("price_" + op).Inc()
		return err
	}

	for attempt := 1; ; attempt++ {
		deal, err := c.loadDeal(ctx, dealID, idx)
		if err != nil {
			c.observe(op, err)
			return err
		}

		if err := fn(deal, idx); err != nil {
			c.observe(op, err)
			return err
		}

		err = c.persistPrices(ctx, deal, op)
		if errors.Is(err, entity.ErrVersionConflict) && attempt < maxWriteAttempts {
			c.logger.Warn("Deal changed during price update, retrying",
				"dealID", dealID.Hex(), "operation", op, "attempt", attempt)
			continue
		}
		c.observe(op, err)
		return err
	}
}

func (c *PriceCatalog) observe(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrDuplicateDate):
		outcome = "duplicate"
	case errors.Is(err, entity.ErrPriceNotFound), errors.Is(err, entity.ErrDealNotFound):
		outcome = "not_found"
	case errors.Is(err, entity.ErrValidation), errors.Is(err, entity.ErrUnresolved):
		outcome = "invalid"
	case errors.Is(err, entity.ErrVersionConflict):
		outcome = "conflict"
	default:
		outcome = "error"
		c.metrics.ErrorsCount.WithLabelValues("price_" + op).Inc()
	}
	c.metrics.PriceMutations.WithLabelValues(op, outcome).Inc()
}

// loadDeal reads the deal and resolves airport codes left in old documents.
func (c *PriceCatalog) loadDeal(ctx context.Context, dealID primitive.ObjectID, idx ReferenceIndex) (*entity.Deal, error) {
	deal, err := c.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	for i := range deal.Prices {
		p := &deal.Prices[i]
		if p.LegacyAirport == "" {
			continue
		}
		id, err := idx.ResolveAirport(p.LegacyAirport)
		if err != nil {
			c.logger.Warn("Legacy airport code could not be resolved",
				"dealID", dealID.Hex(), "priceID", p.ID.Hex(), "code", p.LegacyAirport)
			continue
		}
		p.Airport = []primitive.ObjectID{id}
		p.LegacyAirport = ""
	}
	return deal, nil
}

// persistPrices is the single write boundary for price lists. Duplicates
// that slipped past the per-call checks are dropped here, first one wins.
func (c *PriceCatalog) persistPrices(ctx context.Context, deal *entity.Deal, op string) error {
	prices := entity.DeduplicatePrices(deal.Prices)
	if dropped := len(deal.Prices) - len(prices); dropped > 0 {
		c.logger.Warn("Dropped duplicate price dates before save",
			"dealID", deal.ID.Hex(), "dropped", dropped, "operation", op)
	}

	version, err := c.dealRepo.UpdatePrices(ctx, deal.ID, deal.Version, prices)
	switch {
	case errors.Is(err, entity.ErrVersionConflict):
		c.metrics.VersionConflicts.WithLabelValues("prices").Inc()
		return err
	case errors.Is(err, entity.ErrDealNotFound):
		return err
	case err != nil:
		return &entity.PersistenceError{Op: op, Err: fmt.Errorf("update prices: %w", err)}
	}

	deal.Prices = prices
	deal.Version = version
	return nil
}
