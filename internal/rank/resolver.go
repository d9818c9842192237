// Package rank finds where a product sits in the shop search results for a
// keyword and drives the daily collection batch over every tracked pair.
//
// 탐색은 정확도순 결과를 페이지 단위로 내려가며, 대상 상품을 찾는 즉시
// 멈춘다 (early exit). 호출 한 번 한 번이 일일 예산에서 차감되므로
// 페이지를 가져오기 전에 반드시 예산부터 예약한다.
package rank

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/keyrank/internal/external/navershop"
	"github.com/wonny/keyrank/internal/trackerconfig"
)

// Searcher fetches one page of search results.
type Searcher interface {
	Search(ctx context.Context, keyword string, start, display int) (*navershop.SearchPage, error)
}

// BudgetReserver reserves calls from the shared daily ledger before they
// are made. 소진 시 contracts.ErrBudgetExhausted를 돌려준다.
type BudgetReserver interface {
	Reserve(ctx context.Context, n int) error
}

// Resolver locates a product's rank for one keyword
// ⭐ SSOT: 순위 판정(페이지 탐색 + productId 매칭)은 여기서만
type Resolver struct {
	searcher Searcher
	budget   BudgetReserver
	pageSize int
	maxDepth int
	log      zerolog.Logger
}

// NewResolver 새 순위 판정기 생성
func NewResolver(searcher Searcher, budget BudgetReserver, cfg *trackerconfig.Config, log zerolog.Logger) *Resolver {
	return &Resolver{
		searcher: searcher,
		budget:   budget,
		pageSize: cfg.Tracking.PageSize,
		maxDepth: cfg.Tracking.MaxDepth(),
		log:      log.With().Str("component", "rank.resolver").Logger(),
	}
}

// ResolveRank pages through the search results for keyword until it finds
// productID, the result set runs out, or the configured depth is reached.
//
// 반환되는 호출 수는 예약이 성사된 페이지 조회 수다: 조회가 실패해도
// 예약은 이미 소비됐으므로 호출 수에 포함된다. 같은 페이지에 대한 HTTP
// 레벨 재시도는 한 번의 논리적 조회로 친다.
//
// rank nil은 에러가 아니라 "탐색 범위 안에 없음"이다.
func (r *Resolver) ResolveRank(ctx context.Context, keyword, productID string) (*int, int, error) {
	calls := 0

	for start := 1; start <= r.maxDepth; start += r.pageSize {
		if start > navershop.MaxStart {
			// API가 받는 최대 오프셋 초과, 더 깊은 순위는 관측 불가
			break
		}

		if err := r.budget.Reserve(ctx, 1); err != nil {
			return nil, calls, fmt.Errorf("reserve page fetch: %w", err)
		}

		page, err := r.searcher.Search(ctx, keyword, start, r.pageSize)
		calls++
		if err != nil {
			return nil, calls, fmt.Errorf("fetch page at start=%d: %w", start, err)
		}

		for i := range page.Items {
			if page.Items[i].ProductID != productID {
				continue
			}
			rank := start + i
			r.log.Debug().
				Str("keyword", keyword).
				Str("product_id", productID).
				Int("rank", rank).
				Int("api_calls", calls).
				Str("title", page.Items[i].CleanedTitle()).
				Msg("product found in search results")
			return &rank, calls, nil
		}

		if len(page.Items) < r.pageSize {
			// 요청보다 적게 돌아오면 결과 집합 소진
			break
		}
	}

	r.log.Debug().
		Str("keyword", keyword).
		Str("product_id", productID).
		Int("api_calls", calls).
		Int("max_depth", r.maxDepth).
		Msg("product not found within tracked window")
	return nil, calls, nil
}
