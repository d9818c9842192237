package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/pkg/logger"
	"github.com/wonny/keyrank/pkg/redis"
)

// Transition history paging
const (
	defaultTransitionLimit = 20
	maxTransitionLimit     = 100
)

// CandidateHandler handles keyword candidate API endpoints
// ⭐ SSOT: 후보 API 핸들러는 이 구조체에서만
//
// 읽기 전용. 후보의 상태/지표는 일일 배치와 운영 명령만 바꾼다.
type CandidateHandler struct {
	candidates  contracts.CandidateRepository
	transitions contracts.TransitionRepository
	cache       *redis.Cache
	logger      *logger.Logger
}

// NewCandidateHandler creates a new candidate handler
func NewCandidateHandler(
	candidates contracts.CandidateRepository,
	transitions contracts.TransitionRepository,
	cache *redis.Cache,
	log *logger.Logger,
) *CandidateHandler {
	return &CandidateHandler{
		candidates:  candidates,
		transitions: transitions,
		cache:       cache,
		logger:      log,
	}
}

// List returns candidates filtered by lifecycle status
// GET /api/v1/candidates?status=active,warning
func (h *CandidateHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := r.URL.Query().Get("status")
	statuses, err := parseStatuses(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := "all"
	if raw != "" {
		cacheKey = statusCacheKey(statuses)
	}

	// 후보 목록은 일일 배치가 갱신하므로 긴 TTL로 캐시해도 안전하다
	candidates := make([]contracts.KeywordCandidate, 0)
	cacheErr := h.cache.GetOrSet(ctx, redis.CandidateListKey(cacheKey), &candidates, redis.TTLLong,
		func() (interface{}, error) {
			return h.candidates.ListByStatus(ctx, statuses...)
		})
	if cacheErr != nil {
		h.logger.WithError(cacheErr).Error("Failed to list candidates")
		respondError(w, http.StatusInternalServerError, "Failed to list candidates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"count":      len(candidates),
			"candidates": candidates,
		},
	})
}

// Get returns one candidate by id
// GET /api/v1/candidates/{id}
func (h *CandidateHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid candidate id")
		return
	}

	candidate, err := h.candidates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Candidate not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get candidate")
		respondError(w, http.StatusInternalServerError, "Failed to get candidate")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    candidate,
	})
}

// ListTransitions returns a candidate's lifecycle audit log, newest first
// GET /api/v1/candidates/{id}/transitions?limit=20
func (h *CandidateHandler) ListTransitions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid candidate id")
		return
	}

	limit := defaultTransitionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'limit' (expected positive integer)")
			return
		}
		limit = n
	}
	if limit > maxTransitionLimit {
		limit = maxTransitionLimit
	}

	transitions, err := h.transitions.ListByCandidate(ctx, id, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list transitions")
		respondError(w, http.StatusInternalServerError, "Failed to list transitions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"candidate_id": id,
			"count":        len(transitions),
			"transitions":  transitions,
		},
	})
}

// parseStatuses parses the status query parameter. 빈 값은 전체 상태.
func parseStatuses(raw string) ([]contracts.Status, error) {
	if raw == "" {
		return contracts.AllStatuses(), nil
	}

	parts := strings.Split(raw, ",")
	statuses := make([]contracts.Status, 0, len(parts))
	for _, p := range parts {
		s := contracts.Status(strings.TrimSpace(p))
		if !s.Valid() {
			return nil, fmt.Errorf("Invalid status %q (valid: candidate, testing, active, warning, failed, retired)", p)
		}
		statuses = append(statuses, s)
	}
	return statuses, nil
}

// statusCacheKey builds a stable cache key fragment for a status filter.
func statusCacheKey(statuses []contracts.Status) string {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	return strings.Join(names, ",")
}
