package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/keyrank/internal/api/handlers"
	"github.com/wonny/keyrank/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
//
// 대시보드용 읽기 API다. 쓰기는 알림 read 플래그 하나뿐이고, 수집/평가는
// 전부 배치 파이프라인이 담당한다. metricsHandler가 nil이면 /metrics는
// 노출하지 않는다.
func NewRouter(
	alertHandler *handlers.AlertHandler,
	candidateHandler *handlers.CandidateHandler,
	contributionHandler *handlers.ContributionHandler,
	budgetHandler *handlers.BudgetHandler,
	historyHandler *handlers.HistoryHandler,
	metricsHandler http.Handler,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	// Alert endpoints
	api.HandleFunc("/alerts", alertHandler.ListUnread).Methods("GET")
	api.HandleFunc("/alerts/{id}/read", alertHandler.MarkRead).Methods("POST")

	// Candidate endpoints
	api.HandleFunc("/candidates", candidateHandler.List).Methods("GET")
	api.HandleFunc("/candidates/{id}", candidateHandler.Get).Methods("GET")
	api.HandleFunc("/candidates/{id}/transitions", candidateHandler.ListTransitions).Methods("GET")

	// Product endpoints
	api.HandleFunc("/products/{productID}/contribution", contributionHandler.GetReport).Methods("GET")
	api.HandleFunc("/products/{productID}/keywords/{keyword}/history", historyHandler.GetHistory).Methods("GET")

	// Budget endpoint
	api.HandleFunc("/budget", budgetHandler.GetStatus).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "keyrank-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
