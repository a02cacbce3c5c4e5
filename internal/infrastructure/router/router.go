package router

import (
	"net/http"

	"deal-catalog-service/internal/interface/handler"
	"deal-catalog-service/pkg/logger"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// NewRouter wires the deal endpoints plus health and metrics behind CORS
func NewRouter(
	deals *handler.DealHandler,
	health http.Handler,
	metrics http.Handler,
	allowedOrigins []string,
	logger logger.Logger,
) http.Handler {
	r := mux.NewRouter()
	r.Use(requestLogger(logger))

	r.Handle("/health", health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics).Methods(http.MethodGet)

	api := r.PathPrefix("/api/deals/{dealId}").Subrouter()
	api.HandleFunc("", deals.GetDeal).Methods(http.MethodGet)
	api.HandleFunc("/prices", deals.ListPrices).Methods(http.MethodGet)
	api.HandleFunc("/prices", deals.CreatePrice).Methods(http.MethodPost)
	api.HandleFunc("/prices/upload", deals.UploadPrices).Methods(http.MethodPost)
	api.HandleFunc("/prices/uploads", deals.ListUploads).Methods(http.MethodGet)
	api.HandleFunc("/prices/{priceId}", deals.UpdatePrice).Methods(http.MethodPut)
	api.HandleFunc("/prices/{priceId}", deals.DeletePrice).Methods(http.MethodDelete)
	api.HandleFunc("/videos", deals.UploadVideos).Methods(http.MethodPost)

	headersOk := gorillaHandlers.AllowedHeaders([]string{"X-Requested-With", "Authorization", "Content-Type"})
	originsOk := gorillaHandlers.AllowedOrigins(allowedOrigins)
	methodsOk := gorillaHandlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"})

	return gorillaHandlers.CORS(originsOk, headersOk, methodsOk)(r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				return
			}
			log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", rec.status)
		})
	}
}
