package usecase

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"deal-catalog-service/internal/domain/entity"
	"deal-catalog-service/pkg/logger"
	"deal-catalog-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics("test", prometheus.NewRegistry())
}

func testLogger() logger.Logger {
	return logger.NewNopLogger()
}

func day(s string) time.Time {
	t, err := time.Parse(entity.DayLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// fakeDealRepo is an in-memory DealRepository with version checks.
type fakeDealRepo struct {
	mu    sync.Mutex
	deals map[primitive.ObjectID]*entity.Deal

	updateErr error
	findErr   error
	// beforeUpdate runs once before the next write, simulating a concurrent writer.
	beforeUpdate func(*entity.Deal)
	priceWrites  int
	videoWrites  int
	conflicts    int
}

func newFakeDealRepo(deals ...*entity.Deal) *fakeDealRepo {
	r := &fakeDealRepo{deals: make(map[primitive.ObjectID]*entity.Deal)}
	for _, d := range deals {
		r.deals[d.ID] = cloneDeal(d)
	}
	return r
}

func cloneDeal(d *entity.Deal) *entity.Deal {
	c := *d
	c.Prices = append([]entity.PriceEntry(nil), d.Prices...)
	c.Videos = append([]entity.VideoRecord(nil), d.Videos...)
	c.Hotels = append([]primitive.ObjectID(nil), d.Hotels...)
	return &c
}

func (r *fakeDealRepo) get(id primitive.ObjectID) *entity.Deal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneDeal(r.deals[id])
}

func (r *fakeDealRepo) FindByID(_ context.Context, id primitive.ObjectID) (*entity.Deal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	d, ok := r.deals[id]
	if !ok {
		return nil, entity.ErrDealNotFound
	}
	return cloneDeal(d), nil
}

func (r *fakeDealRepo) guard(id primitive.ObjectID, version int64) (*entity.Deal, error) {
	if r.beforeUpdate != nil {
		hook := r.beforeUpdate
		r.beforeUpdate = nil
		if d, ok := r.deals[id]; ok {
			hook(d)
			d.Version++
		}
	}
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	d, ok := r.deals[id]
	if !ok {
		return nil, entity.ErrDealNotFound
	}
	if d.Version != version {
		r.conflicts++
		return nil, entity.ErrVersionConflict
	}
	return d, nil
}

func (r *fakeDealRepo) UpdatePrices(_ context.Context, id primitive.ObjectID, version int64, prices []entity.PriceEntry) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.guard(id, version)
	if err != nil {
		return 0, err
	}
	d.Prices = append([]entity.PriceEntry(nil), prices...)
	d.Version++
	r.priceWrites++
	return d.Version, nil
}

func (r *fakeDealRepo) UpdateVideos(_ context.Context, id primitive.ObjectID, version int64, videos []entity.VideoRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.guard(id, version)
	if err != nil {
		return 0, err
	}
	d.Videos = append([]entity.VideoRecord(nil), videos...)
	d.Version++
	r.videoWrites++
	return d.Version, nil
}

func (r *fakeDealRepo) FailStaleVideos(_ context.Context, olderThan time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var touched int64
	for _, d := range r.deals {
		changed := false
		for i := range d.Videos {
			v := &d.Videos[i]
			if v.Status == entity.VideoProcessing && v.CreatedAt.Before(olderThan) {
				v.Status = entity.VideoFailed
				v.Error = reason
				changed = true
			}
		}
		if changed {
			d.Version++
			touched++
		}
	}
	return touched, nil
}

type fakeAirportRepo struct {
	airports []entity.Airport
	err      error
}

func (r *fakeAirportRepo) ListAll(context.Context) ([]entity.Airport, error) {
	return r.airports, r.err
}

type fakeHotelRepo struct {
	hotels []entity.Hotel
}

func (r *fakeHotelRepo) ListAll(context.Context) ([]entity.Hotel, error) {
	return r.hotels, nil
}

type fakeAirlineRepo struct {
	airlines map[string]string
	calls    int
	err      error
}

func (r *fakeAirlineRepo) FindByCodes(_ context.Context, codes []string) (map[string]entity.Airline, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := make(map[string]entity.Airline)
	for _, code := range codes {
		if name, ok := r.airlines[code]; ok {
			out[code] = entity.Airline{Code: code, Name: name, Active: true}
		}
	}
	return out, nil
}

type fakeRunRepo struct {
	runs []*entity.IngestionRun
}

func (r *fakeRunRepo) Create(_ context.Context, run *entity.IngestionRun) error {
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRunRepo) ListByDeal(_ context.Context, dealID string, limit int) ([]*entity.IngestionRun, error) {
	var out []*entity.IngestionRun
	for _, run := range r.runs {
		if run.DealID == dealID && len(out) < limit {
			out = append(out, run)
		}
	}
	return out, nil
}

type fakeQueue struct {
	mu         sync.Mutex
	pending    []entity.TranscodeJob
	acked      []entity.TranscodeJob
	enqueueErr error
	recovered  int
}

func (q *fakeQueue) Enqueue(_ context.Context, job entity.TranscodeJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.pending = append(q.pending, job)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, _ time.Duration) (*entity.TranscodeJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(q.pending) == 0 {
		return nil, nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return &job, nil
}

func (q *fakeQueue) Ack(_ context.Context, job entity.TranscodeJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, job)
	return nil
}

func (q *fakeQueue) Recover(context.Context) (int, error) {
	q.recovered++
	return 0, nil
}

func (q *fakeQueue) ackedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked)
}

type fakeTranscoder struct {
	err   error
	calls int
}

func (t *fakeTranscoder) Transcode(_ context.Context, src, dst string) error {
	t.calls++
	if t.err != nil {
		return t.err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (t *fakeTranscoder) Extension() string { return ".mp4" }

type fakeStorage struct {
	stored map[string]string
	err    error
}

func (s *fakeStorage) Store(_ context.Context, localPath, objectName string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	if s.stored == nil {
		s.stored = make(map[string]string)
	}
	s.stored[objectName] = localPath
	return "https://cdn.example.com/" + objectName, nil
}

// fixture is a small reference data set shared by the tests.
type fixture struct {
	lhr, yyz, cdg primitive.ObjectID
	hotel         primitive.ObjectID
	airports      *fakeAirportRepo
	hotels        *fakeHotelRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		lhr:   primitive.NewObjectID(),
		yyz:   primitive.NewObjectID(),
		cdg:   primitive.NewObjectID(),
		hotel: primitive.NewObjectID(),
	}
	f.airports = &fakeAirportRepo{airports: []entity.Airport{
		{ID: f.lhr, Code: "LHR", Name: "London Heathrow"},
		{ID: f.yyz, Code: "YYZ", Name: "Toronto Pearson International"},
		{ID: f.cdg, Code: "CDG / LFPG", Name: "Paris Charles de Gaulle"},
	}}
	f.hotels = &fakeHotelRepo{hotels: []entity.Hotel{
		{ID: f.hotel, Name: "Grand Plaza Resort"},
	}}
	return f
}

func (f *fixture) resolver() *ReferenceResolver {
	return NewReferenceResolver(f.airports, f.hotels, testLogger())
}
