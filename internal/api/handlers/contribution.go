package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/contribution"
	"github.com/wonny/keyrank/pkg/logger"
	"github.com/wonny/keyrank/pkg/redis"
)

// ContributionHandler serves per-product contribution rankings
// ⭐ SSOT: 기여도 리포트 API는 이 구조체에서만
type ContributionHandler struct {
	candidates contracts.CandidateRepository
	analyzer   *contribution.Analyzer
	cache      *redis.Cache
	logger     *logger.Logger
}

// NewContributionHandler creates a new contribution handler
func NewContributionHandler(
	candidates contracts.CandidateRepository,
	analyzer *contribution.Analyzer,
	cache *redis.Cache,
	log *logger.Logger,
) *ContributionHandler {
	return &ContributionHandler{
		candidates: candidates,
		analyzer:   analyzer,
		cache:      cache,
		logger:     log,
	}
}

// ContributionReport ranks one product's keywords by contribution share.
// 저장된 ContributionScore는 배치 전체 기준 정규화 값이고, 이 리포트는
// 상품 내부 기준으로 다시 정규화한다 (1위 키워드 = 100).
type ContributionReport struct {
	ProductID   string                        `json:"product_id"`
	Count       int                           `json:"count"`
	GeneratedAt time.Time                     `json:"generated_at"`
	Entries     []contracts.ContributionEntry `json:"entries"`
}

// GetReport returns the contribution ranking for one product
// GET /api/v1/products/{productID}/contribution
func (h *ContributionHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := mux.Vars(r)["productID"]

	var report ContributionReport
	err := h.cache.GetOrSet(ctx, redis.ContributionReportKey(productID), &report, redis.TTLMedium,
		func() (interface{}, error) {
			return h.buildReport(ctx, productID)
		})
	if err != nil {
		h.logger.WithError(err).Error("Failed to build contribution report")
		respondError(w, http.StatusInternalServerError, "Failed to build contribution report")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    report,
	})
}

// buildReport recomputes the ranking over the product's active/warning
// candidates.
func (h *ContributionHandler) buildReport(ctx context.Context, productID string) (*ContributionReport, error) {
	candidates, err := h.candidates.ListByStatus(ctx, contracts.StatusActive, contracts.StatusWarning)
	if err != nil {
		return nil, err
	}

	mine := make([]contracts.KeywordCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ProductID == productID {
			mine = append(mine, c)
		}
	}

	entries := h.analyzer.Analyze(mine)

	return &ContributionReport{
		ProductID:   productID,
		Count:       len(entries),
		GeneratedAt: time.Now(),
		Entries:     entries,
	}, nil
}
