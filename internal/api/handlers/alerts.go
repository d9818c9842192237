package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/pkg/logger"
)

// Alert list paging
const (
	defaultAlertLimit = 50
	maxAlertLimit     = 200
)

// AlertHandler handles rank alert API endpoints
// ⭐ SSOT: 알림 API 핸들러는 이 구조체에서만
type AlertHandler struct {
	alerts contracts.AlertRepository
	logger *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alerts contracts.AlertRepository, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alerts: alerts,
		logger: log,
	}
}

// ListUnread returns unread alerts, newest first
// GET /api/v1/alerts?limit=50
func (h *AlertHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' (expected positive integer)")
			return
		}
		limit = n
	}
	if limit > maxAlertLimit {
		limit = maxAlertLimit
	}

	alerts, err := h.alerts.ListUnread(ctx, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list unread alerts")
		respondError(w, http.StatusInternalServerError, "Failed to list unread alerts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"count":  len(alerts),
			"alerts": alerts,
		},
	})
}

// MarkRead flips one alert's read flag. 알림 레코드에서 유일하게 바뀌는 필드.
// POST /api/v1/alerts/{id}/read
func (h *AlertHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid alert id")
		return
	}

	if err := h.alerts.MarkRead(ctx, id); err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Alert not found")
			return
		}
		h.logger.WithError(err).Error("Failed to mark alert read")
		respondError(w, http.StatusInternalServerError, "Failed to mark alert read")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"id":   id,
			"read": true,
		},
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
