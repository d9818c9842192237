package lifecycle

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/trackerconfig"
)

// Evaluator folds daily rank snapshots into candidate metrics and applies
// the rank-driven lifecycle branches
// ⭐ SSOT: 롤링 지표 갱신과 순위 기반 전이 판정은 여기서만
type Evaluator struct {
	topN        int
	successDays int
	testTimeout time.Duration
	log         zerolog.Logger
}

// NewEvaluator 새 성과 평가기 생성
func NewEvaluator(cfg *trackerconfig.Config, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		topN:        cfg.Tracking.TopN,
		successDays: cfg.Lifecycle.SuccessDays,
		testTimeout: time.Duration(cfg.Lifecycle.TestTimeoutDays) * 24 * time.Hour,
		log:         log.With().Str("component", "lifecycle.evaluator").Logger(),
	}
}

// Evaluate applies one day's snapshot to the candidate and returns the
// updated value plus a transition if a rank-driven branch fired.
//
// 판정 순서 고정: testing은 성공 기준을 먼저 보고, 그 다음에 타임아웃을
// 본다. 둘 다 해당하는 날은 성공이다.
//
// Invariant: 0 <= ConsecutiveDaysInTopN <= DaysInTopN.
func (e *Evaluator) Evaluate(c contracts.KeywordCandidate, snap contracts.RankSnapshot, now time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition) {
	if !c.Status.RankDriven() {
		return c, nil
	}

	inTopN := snap.InTopN(e.topN)

	// CurrentRank는 범위 밖(nil)도 그대로 반영한다
	if snap.Rank != nil {
		rank := *snap.Rank
		c.CurrentRank = &rank
	} else {
		c.CurrentRank = nil
	}

	if inTopN {
		c.DaysInTopN++
		c.ConsecutiveDaysInTopN++
		if c.BestRank == nil || *snap.Rank < *c.BestRank {
			best := *snap.Rank
			c.BestRank = &best
		}
	} else {
		// 연속 카운터만 끊기고 누적 일수는 유지
		c.ConsecutiveDaysInTopN = 0
	}
	c.UpdatedAt = now

	metrics := contracts.CaptureMetrics(&c)

	switch c.Status {
	case contracts.StatusTesting:
		if c.ConsecutiveDaysInTopN >= e.successDays {
			updated, tr, err := Activate(c, metrics,
				fmt.Sprintf("연속 %d일 상위 %d위 유지 (테스트 통과)", c.ConsecutiveDaysInTopN, e.topN), now)
			if err != nil {
				e.log.Error().Err(err).Int64("candidate_id", c.ID).Msg("activate transition rejected")
				return c, nil
			}
			return updated, tr
		}
		if c.TestTimedOut(now, e.testTimeout) {
			updated, tr, err := Fail(c, metrics, contracts.TestFailedTimeout,
				fmt.Sprintf("테스트 기간 %d일 경과 (기준 미달)", int(e.testTimeout.Hours()/24)), now)
			if err != nil {
				e.log.Error().Err(err).Int64("candidate_id", c.ID).Msg("fail transition rejected")
				return c, nil
			}
			return updated, tr
		}

	case contracts.StatusActive:
		if !inTopN {
			updated, tr, err := Warn(c, metrics, fmt.Sprintf("상위 %d위 이탈", e.topN), now)
			if err != nil {
				e.log.Error().Err(err).Int64("candidate_id", c.ID).Msg("warn transition rejected")
				return c, nil
			}
			return updated, tr
		}

	case contracts.StatusWarning:
		if inTopN {
			updated, tr, err := Recover(c, metrics, fmt.Sprintf("상위 %d위 복귀", e.topN), now)
			if err != nil {
				e.log.Error().Err(err).Int64("candidate_id", c.ID).Msg("recover transition rejected")
				return c, nil
			}
			return updated, tr
		}
	}

	return c, nil
}

// EvaluateAll evaluates one product's candidates against its snapshot map
// keyed by normalized keyword. 스냅샷이 없는 후보는 결측일로 보고
// 건너뛴다 (실패 아님). 평가된 후보들과 발생한 전이만 반환한다.
//
// byKeyword는 키워드로만 키가 잡히므로 호출부가 상품 단위로 맵을 만들어
// 넘겨야 한다.
func (e *Evaluator) EvaluateAll(candidates []contracts.KeywordCandidate, byKeyword map[string]contracts.RankSnapshot, now time.Time) ([]contracts.KeywordCandidate, []contracts.LifecycleTransition) {
	evaluated := make([]contracts.KeywordCandidate, 0, len(candidates))
	emitted := make([]contracts.LifecycleTransition, 0)

	for _, c := range candidates {
		snap, ok := byKeyword[contracts.NormalizeKeyword(c.Keyword)]
		if !ok {
			e.log.Warn().
				Int64("candidate_id", c.ID).
				Str("product_id", c.ProductID).
				Str("keyword", c.Keyword).
				Msg("no snapshot for candidate, skipping evaluation")
			continue
		}

		next, tr := e.Evaluate(c, snap, now)
		evaluated = append(evaluated, next)
		if tr != nil {
			emitted = append(emitted, *tr)
			e.log.Info().
				Int64("candidate_id", c.ID).
				Str("keyword", c.Keyword).
				Str("from", string(tr.FromStatus)).
				Str("to", string(tr.ToStatus)).
				Str("reason", tr.Reason).
				Msg("lifecycle transition")
		}
	}

	return evaluated, emitted
}
