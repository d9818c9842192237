package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/pkg/logger"
)

// HistoryHandler serves rank snapshot history for one tracked pair
type HistoryHandler struct {
	snapshots contracts.SnapshotRepository
	logger    *logger.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(snapshots contracts.SnapshotRepository, log *logger.Logger) *HistoryHandler {
	return &HistoryHandler{
		snapshots: snapshots,
		logger:    log,
	}
}

// GetHistory returns rank snapshots for one (product, keyword) pair,
// oldest first
// GET /api/v1/products/{productID}/keywords/{keyword}/history?from=2026-08-01&to=2026-08-23
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	productID := vars["productID"]
	keyword := vars["keyword"]

	var from, to time.Time
	var err error

	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'to' date format (expected YYYY-MM-DD)")
			return
		}
		// 저장소 조회는 [from, to) 반개구간이라 종료일을 포함하려면 하루 민다
		to = to.AddDate(0, 0, 1)
	} else {
		to = time.Now()
	}

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid 'from' date format (expected YYYY-MM-DD)")
			return
		}
	} else {
		// Default: last 30 days
		from = to.AddDate(0, 0, -30)
	}

	snapshots, err := h.snapshots.History(ctx, productID, keyword, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to query rank history")
		respondError(w, http.StatusInternalServerError, "Failed to query rank history")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"product_id": productID,
			"keyword":    keyword,
			"count":      len(snapshots),
			"snapshots":  snapshots,
		},
	})
}
