package rank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/metrics"
	"github.com/wonny/keyrank/internal/trackerconfig"
)

// PairResolver resolves one pair's rank. 반환된 호출 수는 에러가 나도
// 이미 소비된 예산이므로 배치 합계에 더해야 한다.
type PairResolver interface {
	ResolveRank(ctx context.Context, keyword, productID string) (*int, int, error)
}

// BudgetSource reports the remaining daily call budget.
type BudgetSource interface {
	Remaining(ctx context.Context) (int, error)
}

// Collector drives the resolver over every tracked pair, sequentially
// ⭐ SSOT: 일일 수집 배치의 진행/중단 판단은 여기서만
//
// 동시 실행은 설계상 없다. 외부 API의 속도 제한 아래에서는 조율 없는
// 병렬 호출이 오히려 손해라, 명시적 호출 간격을 둔 순차 모델을 쓴다.
type Collector struct {
	resolver PairResolver
	store    contracts.SnapshotRepository
	budget   BudgetSource
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// NewCollector 새 배치 수집기 생성
func NewCollector(resolver PairResolver, store contracts.SnapshotRepository, budget BudgetSource, cfg *trackerconfig.Config, log zerolog.Logger) *Collector {
	delay := time.Duration(cfg.Tracking.InterCallDelayMS) * time.Millisecond
	return &Collector{
		resolver: resolver,
		store:    store,
		budget:   budget,
		// burst 1로 시작해 첫 쌍은 바로, 이후는 delay 간격
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		log:     log.With().Str("component", "rank.collector").Logger(),
	}
}

// Collect runs one sequential rank check over pairs and reports what
// happened. 예산 소진은 에러가 아니라 Incomplete=true의 정상 종료다.
//
// 쌍 하나의 실패는 기록하고 건너뛴다. 배치 자체를 중단시키는 것은
// 저장소 접근 불가 같은 배치 수준 실패뿐이다.
func (c *Collector) Collect(ctx context.Context, pairs []contracts.TrackedPair) (*contracts.BatchReport, error) {
	report := &contracts.BatchReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		Requested: len(pairs),
	}
	defer func() { report.FinishedAt = time.Now() }()

	log := c.log.With().Str("run_id", report.RunID).Logger()
	log.Info().Int("pairs", len(pairs)).Msg("rank collection batch started")

	for i, pair := range pairs {
		if err := c.limiter.Wait(ctx); err != nil {
			report.Skipped = len(pairs) - i
			return report, fmt.Errorf("inter-call delay interrupted: %w", err)
		}

		remaining, err := c.budget.Remaining(ctx)
		if err != nil {
			report.Skipped = len(pairs) - i
			return report, fmt.Errorf("check remaining budget: %w", err)
		}
		if remaining < 1 {
			report.Skipped = len(pairs) - i
			report.Incomplete = true
			metrics.AddRankChecks("skipped", report.Skipped)
			log.Warn().
				Int("processed", i).
				Int("skipped", report.Skipped).
				Msg("daily call budget exhausted, stopping batch")
			break
		}

		checkedAt := time.Now()
		rankPos, calls, err := c.resolver.ResolveRank(ctx, pair.Keyword, pair.ProductID)
		report.CallsUsed += calls
		if err != nil {
			if errors.Is(err, contracts.ErrBudgetExhausted) {
				// 쌍 처리 도중 예산 소진, 이 쌍 포함 나머지는 스킵
				report.Skipped = len(pairs) - i
				report.Incomplete = true
				metrics.AddRankChecks("skipped", report.Skipped)
				log.Warn().
					Int("processed", i).
					Int("skipped", report.Skipped).
					Msg("budget exhausted mid-pair, stopping batch")
				break
			}
			report.Failed++
			report.Failures = append(report.Failures, contracts.PairFailure{
				Pair:   pair,
				Reason: err.Error(),
			})
			metrics.AddRankChecks("failed", 1)
			log.Error().Err(err).
				Str("product_id", pair.ProductID).
				Str("keyword", pair.Keyword).
				Msg("pair resolution failed, continuing batch")
			continue
		}

		snap := contracts.RankSnapshot{
			ProductID:    pair.ProductID,
			Keyword:      pair.Keyword,
			Rank:         rankPos,
			APICallsUsed: calls,
			CheckedAt:    checkedAt,
		}
		if err := c.store.Save(ctx, &snap); err != nil {
			// 저장 실패한 현재 쌍까지 스킵으로 집계해 수량이 항상 맞게 한다
			report.Skipped = len(pairs) - i
			return report, fmt.Errorf("persist snapshot for %s/%s: %w", pair.ProductID, pair.Keyword, err)
		}
		report.Snapshots = append(report.Snapshots, snap)
		report.Succeeded++
		if snap.Ranked() {
			metrics.AddRankChecks("ranked", 1)
		} else {
			metrics.AddRankChecks("unranked", 1)
		}
	}

	log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("calls_used", report.CallsUsed).
		Bool("incomplete", report.Incomplete).
		Msg("rank collection batch finished")
	return report, nil
}
