package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"deal-catalog-service/internal/domain/entity"
	"deal-catalog-service/internal/domain/repository"
	"deal-catalog-service/internal/infrastructure/router"
	"deal-catalog-service/internal/interface/handler"
	"deal-catalog-service/internal/usecase"
	"deal-catalog-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockPrices struct{ mock.Mock }

func (m *mockPrices) GetDeal(ctx context.Context, dealID primitive.ObjectID) (*entity.Deal, error) {
	args := m.Called(ctx, dealID)
	deal, _ := args.Get(0).(*entity.Deal)
	return deal, args.Error(1)
}

func (m *mockPrices) ListPrices(ctx context.Context, dealID primitive.ObjectID) ([]entity.PriceEntry, error) {
	args := m.Called(ctx, dealID)
	prices, _ := args.Get(0).([]entity.PriceEntry)
	return prices, args.Error(1)
}

func (m *mockPrices) AddPrice(ctx context.Context, dealID primitive.ObjectID, req usecase.PriceRequest) (entity.PriceEntry, error) {
	args := m.Called(ctx, dealID, req)
	return args.Get(0).(entity.PriceEntry), args.Error(1)
}

func (m *mockPrices) ReplacePrice(ctx context.Context, dealID, priceID primitive.ObjectID, req usecase.PriceRequest) (entity.PriceEntry, error) {
	args := m.Called(ctx, dealID, priceID, req)
	return args.Get(0).(entity.PriceEntry), args.Error(1)
}

func (m *mockPrices) RemovePrice(ctx context.Context, dealID, priceID primitive.ObjectID) error {
	return m.Called(ctx, dealID, priceID).Error(0)
}

type mockIngestion struct{ mock.Mock }

func (m *mockIngestion) IngestPriceFile(ctx context.Context, dealID primitive.ObjectID, fileName string, data []byte) (*entity.IngestionReport, error) {
	args := m.Called(ctx, dealID, fileName, data)
	report, _ := args.Get(0).(*entity.IngestionReport)
	return report, args.Error(1)
}

func (m *mockIngestion) ListRuns(ctx context.Context, dealID primitive.ObjectID, limit int) ([]*entity.IngestionRun, error) {
	args := m.Called(ctx, dealID, limit)
	runs, _ := args.Get(0).([]*entity.IngestionRun)
	return runs, args.Error(1)
}

type mockVideos struct{ mock.Mock }

func (m *mockVideos) AttachVideos(ctx context.Context, dealID primitive.ObjectID, uploads []usecase.VideoUpload) ([]entity.VideoRecord, error) {
	args := m.Called(ctx, dealID, uploads)
	records, _ := args.Get(0).([]entity.VideoRecord)
	return records, args.Error(1)
}

type testServer struct {
	prices    *mockPrices
	ingestion *mockIngestion
	videos    *mockVideos
	handler   http.Handler
}

func newTestServer(t *testing.T, maxUpload int64) *testServer {
	t.Helper()
	s := &testServer{prices: &mockPrices{}, ingestion: &mockIngestion{}, videos: &mockVideos{}}
	log := logger.NewNopLogger()
	deals := handler.NewDealHandler(s.prices, s.ingestion, s.videos, maxUpload, log)
	health := handler.NewHealthHandler(map[string]repository.HealthCheck{
		"mongodb": func(context.Context) error { return nil },
	})
	s.handler = router.NewRouter(deals, health, http.NotFoundHandler(), []string{"*"}, log)
	t.Cleanup(func() {
		s.prices.AssertExpectations(t)
		s.ingestion.AssertExpectations(t)
		s.videos.AssertExpectations(t)
	})
	return s
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestCreatePrice(t *testing.T) {
	s := newTestServer(t, 1<<20)
	dealID := primitive.NewObjectID()
	entry := entity.PriceEntry{ID: primitive.NewObjectID(), Price: 500}

	s.prices.On("AddPrice", mock.Anything, dealID, mock.MatchedBy(func(req usecase.PriceRequest) bool {
		return req.StartDate == "2025-07-01" && req.Price == 500 && req.Airport.Kind == entity.AirportRefRawCode
	})).Return(entry, nil)

	body := `{"airport":"LHR","startdate":"2025-07-01","enddate":"2025-07-08","price":500}`
	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/deals/"+dealID.Hex()+"/prices", strings.NewReader(body)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	var got entity.PriceEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, entry.ID, got.ID)
}

func TestCreatePrice_ConflictReturnsExistingEntry(t *testing.T) {
	s := newTestServer(t, 1<<20)
	dealID := primitive.NewObjectID()
	existing := primitive.NewObjectID()

	s.prices.On("AddPrice", mock.Anything, dealID, mock.Anything).Return(entity.PriceEntry{}, &entity.DuplicateDateError{
		ExistingID: existing,
		StartDate:  time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Price:      500,
	})

	body := `{"airport":"LHR","startdate":"2025-07-01","enddate":"2025-07-08","price":600}`
	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/deals/"+dealID.Hex()+"/prices", strings.NewReader(body)))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var got handler.ErrorMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Conflict)
	assert.Equal(t, existing.Hex(), got.Conflict.ID)
	assert.Equal(t, "2025-07-01", got.Conflict.StartDate)
	assert.Equal(t, 500.0, got.Conflict.Price)
}

func TestCreatePrice_BadRequests(t *testing.T) {
	s := newTestServer(t, 1<<20)
	dealID := primitive.NewObjectID()

	rec := s.do(httptest.NewRequest(http.MethodPost, "/api/deals/not-an-id/prices", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(httptest.NewRequest(http.MethodPost, "/api/deals/"+dealID.Hex()+"/prices", strings.NewReader(`{"airport":42}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.prices.On("AddPrice", mock.Anything, dealID, mock.Anything).
		Return(entity.PriceEntry{}, &entity.ResolutionError{Kind: "airport", Raw: "Gotham"}).Once()
	rec = s.do(httptest.NewRequest(http.MethodPost, "/api/deals/"+dealID.Hex()+"/prices", strings.NewReader(`{"airport":"Gotham"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Gotham")
}

func TestUpdateAndDeletePrice(t *testing.T) {
	s := newTestServer(t, 1<<20)
	dealID, priceID := primitive.NewObjectID(), primitive.NewObjectID()
	base := "/api/deals/" + dealID.Hex() + "/prices/" + priceID.Hex()

	s.prices.On("ReplacePrice", mock.Anything, dealID, priceID, mock.Anything).Return(entity.PriceEntry{}, entity.ErrPriceNotFound).Once()
	rec := s.do(httptest.NewRequest(http.MethodPut, base, strings.NewReader(`{"airport":"LHR"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.prices.On("RemovePrice", mock.Anything, dealID, priceID).Return(nil).Once()
	rec = s.do(httptest.NewRequest(http.MethodDelete, base, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestGetDealAndListPrices(t *testing.T) {
	s := newTestServer(t, 1<<20)
	dealID := primitive.NewObjectID()

	s.prices.On("GetDeal", mock.Anything, dealID).Return(&entity.Deal{ID: dealID, Title: "Rome"}, nil)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/deals/"+dealID.Hex(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Rome"`)

	s.prices.On("ListPrices", mock.Anything, dealID).Return(nil, nil)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/deals/"+dealID.Hex()+"/prices", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	missing := primitive.NewObjectID()
	s.prices.On("GetDeal", mock.Anything, missing).Return(nil, entity.ErrDealNotFound)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/deals/"+missing.Hex(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDeal_UnencodableDocument(t *testing.T) {
	s := newTestServer(t, 1<<20)
	dealID := primitive.NewObjectID()

	s.prices.On("GetDeal", mock.Anything, dealID).Return(&entity.Deal{
		ID:     dealID,
		Prices: []entity.PriceEntry{{ID: primitive.NewObjectID(), Price: math.NaN()}},
	}, nil)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/deals/"+dealID.Hex(), nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func multipartBody(t *testing.T, field, fileName, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadPrices_AlwaysReportsSuccess(t *testing.T) {
	s := newTestServer(t, 1<<20)
	dealID := primitive.NewObjectID()
	content := []byte("xlsx bytes")

	s.ingestion.On("IngestPriceFile", mock.Anything, dealID, "june.xlsx", content).Return(&entity.IngestionReport{
		Success:      true,
		Message:      "Processed 2 rows: 0 added, 2 skipped, 0 errors",
		SkippedCount: 2,
		Issues:       []entity.IngestionIssue{},
	}, nil)

	body, ct := multipartBody(t, "file", "june.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
	req := httptest.NewRequest(http.MethodPost, "/api/deals/"+dealID.Hex()+"/prices/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := s.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var report entity.IngestionReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Success)
	assert.Equal(t, 2, report.SkippedCount)
}

func TestUploadPrices_Failures(t *testing.T) {
	s := newTestServer(t, 1<<20)
	dealID := primitive.NewObjectID()

	req := httptest.NewRequest(http.MethodPost, "/api/deals/"+dealID.Hex()+"/prices/upload", strings.NewReader("no form"))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)

	s.ingestion.On("IngestPriceFile", mock.Anything, dealID, "a.xlsx", mock.Anything).
		Return(nil, &entity.PersistenceError{Op: "ingest", Err: errors.New("socket closed")})
	body, ct := multipartBody(t, "file", "a.xlsx", "application/octet-stream", []byte("x"))
	req = httptest.NewRequest(http.MethodPost, "/api/deals/"+dealID.Hex()+"/prices/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := s.do(req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "socket closed")
}

func TestUploadPrices_TooLarge(t *testing.T) {
	s := newTestServer(t, 64)
	dealID := primitive.NewObjectID()

	body, ct := multipartBody(t, "file", "big.xlsx", "application/octet-stream", bytes.Repeat([]byte("x"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/deals/"+dealID.Hex()+"/prices/upload", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, s.do(req).Code)
}

func TestListUploads(t *testing.T) {
	s := newTestServer(t, 1<<20)
	dealID := primitive.NewObjectID()
	base := "/api/deals/" + dealID.Hex() + "/prices/uploads"

	s.ingestion.On("ListRuns", mock.Anything, dealID, 5).Return([]*entity.IngestionRun{
		{ID: "run-1", FileName: "june.xlsx", Added: 3, Status: entity.IngestionCompleted},
	}, nil)
	rec := s.do(httptest.NewRequest(http.MethodGet, base+"?limit=5", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fileName":"june.xlsx"`)

	rec = s.do(httptest.NewRequest(http.MethodGet, base+"?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadVideos(t *testing.T) {
	s := newTestServer(t, 1<<20)
	dealID := primitive.NewObjectID()
	record := entity.NewVideoRecord("/tmp/x.mov", "beach.mov", time.Now())

	s.videos.On("AttachVideos", mock.Anything, dealID, mock.MatchedBy(func(uploads []usecase.VideoUpload) bool {
		return len(uploads) == 1 && uploads[0].FileName == "beach.mov" && uploads[0].ContentType == "video/quicktime"
	})).Return([]entity.VideoRecord{record}, nil)

	body, ct := multipartBody(t, "videos", "beach.mov", "video/quicktime", []byte("moov"))
	req := httptest.NewRequest(http.MethodPost, "/api/deals/"+dealID.Hex()+"/videos", body)
	req.Header.Set("Content-Type", ct)
	rec := s.do(req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var got struct {
		Videos []entity.VideoRecord `json:"videos"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Videos, 1)
	assert.Equal(t, entity.VideoProcessing, got.Videos[0].Status)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 1<<20)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Healthy", rec.Body.String())
}

func TestHealth_Unavailable(t *testing.T) {
	h := handler.NewHealthHandler(map[string]repository.HealthCheck{
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
}
