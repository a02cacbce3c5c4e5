package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"deal-catalog-service/internal/domain/entity"
	"deal-catalog-service/internal/domain/repository"
	"deal-catalog-service/pkg/logger"
	"deal-catalog-service/pkg/metrics"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultIssueLimit caps the issue list returned to the caller.
const DefaultIssueLimit = 20

// maxExcelSerial is 9999-12-31, the last day a workbook can hold.
const maxExcelSerial = 2958465

const (
	defaultRunHistory = 20
	maxRunHistory     = 100
)

// PriceSheetReader turns an uploaded file into raw rows
type PriceSheetReader interface {
	ReadPriceRows(data []byte) ([]entity.PriceSheetRow, error)
}

type rowOutcome int

const (
	rowAdded rowOutcome = iota
	rowSkipped
	rowError
)

// ingestionTally accumulates row outcomes for one pass over the file.
type ingestionTally struct {
	added   int
	skipped int
	errors  int
	issues  []entity.IngestionIssue
	hidden  int
	limit   int
}

func (t *ingestionTally) record(row entity.PriceSheetRow, outcome rowOutcome, msg string) {
	var issue entity.IngestionIssue
	switch outcome {
	case rowAdded:
		t.added++
		return
	case rowSkipped:
		t.skipped++
		issue = entity.IngestionIssue{Row: row.Raw, Info: msg}
	case rowError:
		t.errors++
		issue = entity.IngestionIssue{Row: row.Raw, Error: msg}
	}
	if len(t.issues) < t.limit {
		t.issues = append(t.issues, issue)
		return
	}
	t.hidden++
}

func (t *ingestionTally) report() *entity.IngestionReport {
	issues := t.issues
	if issues == nil {
		issues = []entity.IngestionIssue{}
	}
	if t.hidden > 0 {
		issues = append(issues, entity.IngestionIssue{Info: fmt.Sprintf("... and %d more not shown", t.hidden)})
	}
	return &entity.IngestionReport{
		Success:      true,
		Message:      fmt.Sprintf("Processed %d rows: %d added, %d skipped, %d errors", t.added+t.skipped+t.errors, t.added, t.skipped, t.errors),
		AddedCount:   t.added,
		SkippedCount: t.skipped,
		ErrorCount:   t.errors,
		Issues:       issues,
	}
}

// PriceIngestion bulk-loads price entries from spreadsheets
type PriceIngestion struct {
	catalog        *PriceCatalog
	reader         PriceSheetReader
	airlineRepo    repository.AirlineRepository
	runRepo        repository.IngestionRunRepository
	metrics        *metrics.Metrics
	logger         logger.Logger
	issueLimit     int
	defaultCountry string
	nowFn          func() time.Time
}

// IngestionOptions tunes the ingestion engine
type IngestionOptions struct {
	IssueLimit     int
	DefaultCountry string
}

// NewPriceIngestion creates a new ingestion engine. airlineRepo and runRepo
// may be nil.
func NewPriceIngestion(
	catalog *PriceCatalog,
	reader PriceSheetReader,
	airlineRepo repository.AirlineRepository,
	runRepo repository.IngestionRunRepository,
	metrics *metrics.Metrics,
	logger logger.Logger,
	opts IngestionOptions,
) *PriceIngestion {
	if opts.IssueLimit <= 0 {
		opts.IssueLimit = DefaultIssueLimit
	}
	if opts.DefaultCountry == "" {
		opts.DefaultCountry = entity.DefaultCountry
	}
	return &PriceIngestion{
		catalog:        catalog,
		reader:         reader,
		airlineRepo:    airlineRepo,
		runRepo:        runRepo,
		metrics:        metrics,
		logger:         logger,
		issueLimit:     opts.IssueLimit,
		defaultCountry: opts.DefaultCountry,
		nowFn:          time.Now,
	}
}

// IngestPriceFile adds every new dated row of the file to the deal with a
// single write. Row problems are reported, never returned as errors.
func (s *PriceIngestion) IngestPriceFile(ctx context.Context, dealID primitive.ObjectID, fileName string, data []byte) (*entity.IngestionReport, error) {
	started := s.nowFn()
	log := s.logger.With("dealID", dealID.Hex(), "file", fileName)

	rows, err := s.reader.ReadPriceRows(data)
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("ingest_parse").Inc()
		return nil, &entity.ValidationError{Field: "file", Reason: err.Error()}
	}

	idx, err := s.catalog.resolver.LoadIndex(ctx)
	if err != nil {
		s.metrics.ErrorsCount.WithLabelValues("ingest").Inc()
		return nil, err
	}

	var tally *ingestionTally
	for attempt := 1; ; attempt++ {
		deal, err := s.catalog.loadDeal(ctx, dealID, idx)
		if err != nil {
			return nil, err
		}

		var staged []entity.PriceEntry
		tally, staged = s.planRows(ctx, deal, rows, idx)
		if len(staged) == 0 {
			break
		}

		prices := make([]entity.PriceEntry, 0, len(deal.Prices)+len(staged))
		prices = append(prices, deal.Prices...)
		prices = append(prices, staged...)
		deal.Prices = prices

		err = s.catalog.persistPrices(ctx, deal, "ingest")
		if err == nil {
			break
		}
		if errors.Is(err, entity.ErrVersionConflict) && attempt < maxWriteAttempts {
			log.Warn("Deal changed during ingestion, re-evaluating rows", "attempt", attempt)
			continue
		}

		log.Error("Failed to persist ingested prices", "error", err)
		s.metrics.ErrorsCount.WithLabelValues("ingest").Inc()
		s.audit(ctx, dealID, fileName, tally, entity.IngestionFailed, err.Error(), started)
		return nil, err
	}

	report := tally.report()
	if len(rows) == 0 || tally.added+tally.skipped+tally.errors == 0 {
		report.Message = "No price rows found in file"
	}

	s.metrics.IngestionRows.WithLabelValues("added").Add(float64(tally.added))
	s.metrics.IngestionRows.WithLabelValues("skipped").Add(float64(tally.skipped))
	s.metrics.IngestionRows.WithLabelValues("error").Add(float64(tally.errors))
	s.metrics.IngestionDuration.Observe(s.nowFn().Sub(started).Seconds())
	s.audit(ctx, dealID, fileName, tally, entity.IngestionCompleted, "", started)

	log.Info("Price sheet ingested",
		"added", tally.added,
		"skipped", tally.skipped,
		"errors", tally.errors)

	return report, nil
}

// planRows evaluates rows in file order against the catalog snapshot in deal.
// The first valid row for a start day wins.
func (s *PriceIngestion) planRows(ctx context.Context, deal *entity.Deal, rows []entity.PriceSheetRow, idx ReferenceIndex) (*ingestionTally, []entity.PriceEntry) {
	tally := &ingestionTally{limit: s.issueLimit}
	existing := deal.PriceDayKeys()
	inFile := make(map[string]struct{})
	country := deal.Country
	if country == "" {
		country = s.defaultCountry
	}
	hotel := deal.PrimaryHotel()

	var staged []entity.PriceEntry
	for _, row := range rows {
		if row.IsEmpty() {
			continue
		}

		entry, err := s.parseRow(row, idx)
		if err != nil {
			tally.record(row, rowError, err.Error())
			continue
		}

		key := entry.Key()
		if _, dup := inFile[key]; dup {
			tally.record(row, rowSkipped, fmt.Sprintf("Duplicate start date %s within the uploaded file", key))
			continue
		}
		inFile[key] = struct{}{}

		if _, dup := existing[key]; dup {
			tally.record(row, rowSkipped, fmt.Sprintf("Start date %s already exists in this deal", key))
			continue
		}

		entry.ID = primitive.NewObjectID()
		entry.Country = country
		entry.Hotel = hotel

		staged = append(staged, entry)
		tally.record(row, rowAdded, "")
	}
	nameAirlines(ctx, s.airlineRepo, s.logger, staged)
	return tally, staged
}

// parseRow validates and converts one row. It does not look at the catalog.
func (s *PriceIngestion) parseRow(row entity.PriceSheetRow, idx ReferenceIndex) (entity.PriceEntry, error) {
	airportCode := strings.TrimSpace(row.AirportCode)
	airportID := strings.TrimSpace(row.AirportID)

	var missing []string
	if airportCode == "" && airportID == "" {
		missing = append(missing, entity.ColumnAirportCode)
	}
	if strings.TrimSpace(row.Price) == "" {
		missing = append(missing, entity.ColumnPrice)
	}
	if strings.TrimSpace(row.StartDate) == "" {
		missing = append(missing, entity.ColumnStartDate)
	}
	if strings.TrimSpace(row.EndDate) == "" {
		missing = append(missing, entity.ColumnEndDate)
	}
	if len(missing) > 0 {
		return entity.PriceEntry{}, &entity.ValidationError{Field: strings.Join(missing, ", "), Reason: "missing required value"}
	}

	airport, err := resolveRowAirport(idx, airportID, row.AirportCode)
	if err != nil {
		return entity.PriceEntry{}, err
	}

	start, err := ParseSheetDate(row.StartDate)
	if err != nil {
		return entity.PriceEntry{}, &entity.ValidationError{Field: entity.ColumnStartDate, Reason: err.Error()}
	}
	end, err := ParseSheetDate(row.EndDate)
	if err != nil {
		return entity.PriceEntry{}, &entity.ValidationError{Field: entity.ColumnEndDate, Reason: err.Error()}
	}
	if end.Before(start) {
		return entity.PriceEntry{}, &entity.ValidationError{Field: entity.ColumnEndDate, Reason: "is before Start Date"}
	}

	price, err := parseSheetPrice(row.Price)
	if err != nil {
		return entity.PriceEntry{}, &entity.ValidationError{Field: entity.ColumnPrice, Reason: err.Error()}
	}

	return entity.PriceEntry{
		Airport:   []primitive.ObjectID{airport},
		StartDate: start,
		EndDate:   end,
		Price:     price,
		FlightDetails: entity.FlightDetails{
			Outbound:     ParseFlightLeg(row.Outbound),
			ReturnFlight: ParseFlightLeg(row.Return),
		},
	}, nil
}

// resolveRowAirport prefers the Airport ID column and falls back to the
// code column. The reported raw token is the human-entered code when present.
func resolveRowAirport(idx ReferenceIndex, airportID, airportCode string) (primitive.ObjectID, error) {
	if airportID != "" {
		if id, err := idx.ResolveAirport(airportID); err == nil {
			return id, nil
		} else if strings.TrimSpace(airportCode) == "" {
			return primitive.NilObjectID, err
		}
	}
	return idx.ResolveAirport(airportCode)
}

// ParseSheetDate converts a spreadsheet date serial (or an ISO day typed as
// text) into a UTC calendar day.
func ParseSheetDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil {
		if t, perr := time.Parse(entity.DayLayout, value); perr == nil {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	if math.IsNaN(serial) || serial < 1 || serial > maxExcelSerial {
		return time.Time{}, fmt.Errorf("invalid date serial %q", value)
	}

	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date serial %q", value)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

func parseSheetPrice(value string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(value))
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", value)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("invalid price %q", value)
	}
	if price <= 0 {
		return 0, fmt.Errorf("price must be positive, got %q", value)
	}
	return price, nil
}

// ListRuns returns the most recent uploads for a deal, newest first. Without
// an audit store the history is empty.
func (s *PriceIngestion) ListRuns(ctx context.Context, dealID primitive.ObjectID, limit int) ([]*entity.IngestionRun, error) {
	if limit <= 0 || limit > maxRunHistory {
		limit = defaultRunHistory
	}
	if s.runRepo == nil {
		return []*entity.IngestionRun{}, nil
	}
	runs, err := s.runRepo.ListByDeal(ctx, dealID.Hex(), limit)
	if err != nil {
		return nil, &entity.PersistenceError{Op: "list ingestion runs", Err: err}
	}
	if runs == nil {
		runs = []*entity.IngestionRun{}
	}
	return runs, nil
}
func (s *PriceIngestion) audit(ctx context.Context, dealID primitive.ObjectID, fileName string, tally *ingestionTally, status, detail string, started time.Time) {
	if s.runRepo == nil {
		return
	}
	run := &entity.IngestionRun{
		ID:        uuid.NewString(),
		DealID:    dealID.Hex(),
		FileName:  fileName,
		Status:    status,
		Detail:    detail,
		Duration:  s.nowFn().Sub(started),
		CreatedAt: started,
	}
	if tally != nil {
		run.Added, run.Skipped, run.Errors = tally.added, tally.skipped, tally.errors
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		s.logger.Warn("Failed to record ingestion run", "dealID", dealID.Hex(), "error", err)
	}
}
