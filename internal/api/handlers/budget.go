package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/keyrank/internal/budget"
	"github.com/wonny/keyrank/pkg/logger"
	"github.com/wonny/keyrank/pkg/redis"
)

// BudgetHandler reports daily API call budget consumption
// ⭐ SSOT: 예산 현황 API는 이 구조체에서만
type BudgetHandler struct {
	tracker *budget.Tracker
	cache   *redis.Cache
	loc     *time.Location
	logger  *logger.Logger
}

// NewBudgetHandler creates a new budget handler.
// loc은 예산 장부와 같은 정책 타임존이어야 캐시 키가 자정에 같이 넘어간다.
func NewBudgetHandler(tracker *budget.Tracker, cache *redis.Cache, loc *time.Location, log *logger.Logger) *BudgetHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BudgetHandler{
		tracker: tracker,
		cache:   cache,
		loc:     loc,
		logger:  log,
	}
}

// GetStatus returns today's call budget status
// GET /api/v1/budget
func (h *BudgetHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	today := time.Now().In(h.loc).Format("2006-01-02")

	var status budget.Status
	err := h.cache.GetOrSet(ctx, redis.BudgetStatusKey(today), &status, redis.TTLShort,
		func() (interface{}, error) {
			return h.tracker.Status(ctx)
		})
	if err != nil {
		h.logger.WithError(err).Error("Failed to get budget status")
		respondError(w, http.StatusInternalServerError, "Failed to get budget status")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    status,
	})
}
