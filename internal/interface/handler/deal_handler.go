package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"deal-catalog-service/internal/domain/entity"
	"deal-catalog-service/internal/usecase"
	"deal-catalog-service/pkg/logger"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const multipartMemory = 32 << 20

// PriceService is the price catalog as seen by the HTTP layer
type PriceService interface {
	GetDeal(ctx context.Context, dealID primitive.ObjectID) (*entity.Deal, error)
	ListPrices(ctx context.Context, dealID primitive.ObjectID) ([]entity.PriceEntry, error)
	AddPrice(ctx context.Context, dealID primitive.ObjectID, req usecase.PriceRequest) (entity.PriceEntry, error)
	ReplacePrice(ctx context.Context, dealID, priceID primitive.ObjectID, req usecase.PriceRequest) (entity.PriceEntry, error)
	RemovePrice(ctx context.Context, dealID, priceID primitive.ObjectID) error
}

// IngestionService bulk-loads price sheets
type IngestionService interface {
	IngestPriceFile(ctx context.Context, dealID primitive.ObjectID, fileName string, data []byte) (*entity.IngestionReport, error)
	ListRuns(ctx context.Context, dealID primitive.ObjectID, limit int) ([]*entity.IngestionRun, error)
}

// VideoService attaches uploaded videos to deals
type VideoService interface {
	AttachVideos(ctx context.Context, dealID primitive.ObjectID, uploads []usecase.VideoUpload) ([]entity.VideoRecord, error)
}

// DealHandler serves the deal price and video endpoints
type DealHandler struct {
	prices         PriceService
	ingestion      IngestionService
	videos         VideoService
	maxUploadBytes int64
	logger         logger.Logger
}

// NewDealHandler creates a new deal handler
func NewDealHandler(
	prices PriceService,
	ingestion IngestionService,
	videos VideoService,
	maxUploadBytes int64,
	logger logger.Logger,
) *DealHandler {
	return &DealHandler{
		prices:         prices,
		ingestion:      ingestion,
		videos:         videos,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

func objectIDVar(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := mux.Vars(r)[name]
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, &entity.ValidationError{Field: name, Reason: fmt.Sprintf("%q is not a valid id", raw)}
	}
	return id, nil
}

// GetDeal returns the whole deal document
func (h *DealHandler) GetDeal(w http.ResponseWriter, r *http.Request) {
	dealID, err := objectIDVar(r, "dealId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	deal, err := h.prices.GetDeal(r.Context(), dealID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, deal)
}

// ListPrices returns the deal's prices ordered by start date
func (h *DealHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	dealID, err := objectIDVar(r, "dealId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	prices, err := h.prices.ListPrices(r.Context(), dealID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if prices == nil {
		prices = []entity.PriceEntry{}
	}
	writeJSON(w, h.logger, http.StatusOK, prices)
}

// CreatePrice adds one entry. A taken start date answers 409 with the
// existing entry.
func (h *DealHandler) CreatePrice(w http.ResponseWriter, r *http.Request) {
	dealID, err := objectIDVar(r, "dealId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	req, err := decodePriceRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	entry, err := h.prices.AddPrice(r.Context(), dealID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, entry)
}

// UpdatePrice replaces one entry
func (h *DealHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	dealID, err := objectIDVar(r, "dealId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	priceID, err := objectIDVar(r, "priceId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	req, err := decodePriceRequest(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	entry, err := h.prices.ReplacePrice(r.Context(), dealID, priceID, req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, entry)
}

// DeletePrice removes one entry
func (h *DealHandler) DeletePrice(w http.ResponseWriter, r *http.Request) {
	dealID, err := objectIDVar(r, "dealId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	priceID, err := objectIDVar(r, "priceId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.prices.RemovePrice(r.Context(), dealID, priceID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]bool{"success": true})
}

// UploadPrices ingests the spreadsheet in the "file" form field. Row level
// problems are part of the 200 report.
func (h *DealHandler) UploadPrices(w http.ResponseWriter, r *http.Request) {
	dealID, err := objectIDVar(r, "dealId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, h.logger, uploadError("file", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, h.logger, uploadError("file", err))
		return
	}

	report, err := h.ingestion.IngestPriceFile(r.Context(), dealID, header.Filename, data)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, report)
}

// ListUploads returns the upload history of a deal. ?limit caps the result.
func (h *DealHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	dealID, err := objectIDVar(r, "dealId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, h.logger, &entity.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
	}

	runs, err := h.ingestion.ListRuns(r.Context(), dealID, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, runs)
}

// UploadVideos attaches the files in the "videos" form field and answers
// before any transcoding starts
func (h *DealHandler) UploadVideos(w http.ResponseWriter, r *http.Request) {
	dealID, err := objectIDVar(r, "dealId")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, h.logger, uploadError("videos", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["videos"]
	uploads := make([]usecase.VideoUpload, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, h.logger, uploadError("videos", err))
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, usecase.VideoUpload{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     f,
		})
	}

	records, err := h.videos.AttachVideos(r.Context(), dealID, uploads)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusAccepted, map[string][]entity.VideoRecord{"videos": records})
}

func decodePriceRequest(r *http.Request) (usecase.PriceRequest, error) {
	var req usecase.PriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, &entity.ValidationError{Field: "body", Reason: err.Error()}
	}
	return req, nil
}

func uploadError(field string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &entity.ValidationError{Field: field, Reason: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)}
	}
	return &entity.ValidationError{Field: field, Reason: err.Error()}
}
