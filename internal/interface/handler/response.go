package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"deal-catalog-service/internal/domain/entity"
	"deal-catalog-service/internal/domain/repository"
	"deal-catalog-service/pkg/logger"
)

// ErrorMessage is the body of every error response
type ErrorMessage struct {
	Error    string        `json:"error"`
	Conflict *ConflictInfo `json:"conflict,omitempty"`
}

// ConflictInfo points the caller at the entry that already owns a date
type ConflictInfo struct {
	ID        string  `json:"id"`
	StartDate string  `json:"startdate"`
	Price     float64 `json:"price"`
}

// ReturnJSONError writes err as JSON with the given status code
func ReturnJSONError(w http.ResponseWriter, err interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(err)
}

// writeJSON encodes body before the status is written. Encoding failures
// are logged and answered with 500.
func writeJSON(w http.ResponseWriter, log logger.Logger, code int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Error("Failed to encode response", "error", err)
		ReturnJSONError(w, ErrorMessage{Error: "internal server error"}, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(append(data, '\n'))
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and hidden from the caller.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	var dup *entity.DuplicateDateError
	if errors.As(err, &dup) {
		ReturnJSONError(w, ErrorMessage{
			Error: err.Error(),
			Conflict: &ConflictInfo{
				ID:        dup.ExistingID.Hex(),
				StartDate: entity.DayKey(dup.StartDate),
				Price:     dup.Price,
			},
		}, http.StatusConflict)
		return
	}

	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, entity.ErrDealNotFound),
		errors.Is(err, entity.ErrPriceNotFound),
		errors.Is(err, entity.ErrVideoNotFound):
		code = http.StatusNotFound
	case errors.Is(err, entity.ErrValidation), errors.Is(err, entity.ErrUnresolved):
		code = http.StatusBadRequest
	case errors.Is(err, entity.ErrVersionConflict):
		code = http.StatusConflict
	}

	msg := err.Error()
	if code == http.StatusInternalServerError {
		log.Error("Request failed", "error", err)
		msg = "internal server error"
	}
	ReturnJSONError(w, ErrorMessage{Error: msg}, code)
}

// HealthHandler reports 200 while every check passes
type HealthHandler struct {
	checks map[string]repository.HealthCheck
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checks map[string]repository.HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	failed := make(map[string]string)
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		ReturnJSONError(w, failed, http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Healthy"))
}
