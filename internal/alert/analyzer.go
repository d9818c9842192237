// Package alert turns day-over-day rank movement into persisted alerts.
//
// 비교는 항상 달력일 단위의 latest-per-day 스냅샷끼리 한다. 전일 측정이
// 아예 없는 키워드는 비교 기준이 없으므로 조용히 건너뛴다. 측정값이
// 있되 rank가 nil인 것(범위 밖)과는 다르다.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/trackerconfig"
)

// Analyzer classifies rank changes for one product against the previous day
// ⭐ SSOT: 알림 생성은 여기서만 (분류 규칙은 contracts.Classify)
type Analyzer struct {
	snapshots contracts.SnapshotRepository
	alerts    contracts.AlertRepository
	threshold int
	log       zerolog.Logger
}

// NewAnalyzer 새 알림 분석기 생성
func NewAnalyzer(snapshots contracts.SnapshotRepository, alerts contracts.AlertRepository, cfg *trackerconfig.Config, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		snapshots: snapshots,
		alerts:    alerts,
		threshold: cfg.Alerting.SurgeDropThreshold,
		log:       log.With().Str("component", "alert.analyzer").Logger(),
	}
}

// Analyze compares day's snapshots with the previous day's and persists
// every classified change. day는 정책 타임존 기준 자정.
//
// 분류되지 않은 변동(임계값 미만, 양쪽 다 범위 밖)은 아무것도 남기지
// 않는다. 저장 실패는 배치 수준 실패로 전파한다.
func (a *Analyzer) Analyze(ctx context.Context, productID string, day time.Time) ([]contracts.RankAlert, error) {
	curr, err := a.snapshots.LatestOnDay(ctx, productID, day)
	if err != nil {
		return nil, fmt.Errorf("load snapshots for %s: %w", day.Format("2006-01-02"), err)
	}
	if len(curr) == 0 {
		return nil, nil
	}

	prevDay := day.AddDate(0, 0, -1)
	prev, err := a.snapshots.LatestOnDay(ctx, productID, prevDay)
	if err != nil {
		return nil, fmt.Errorf("load snapshots for %s: %w", prevDay.Format("2006-01-02"), err)
	}
	prevByKeyword := contracts.SnapshotsByKeyword(prev)

	alerts := make([]contracts.RankAlert, 0)
	for _, snap := range curr {
		baseline, ok := prevByKeyword[contracts.NormalizeKeyword(snap.Keyword)]
		if !ok {
			// 전일 측정 없음, 비교 기준이 없어 스킵
			continue
		}

		alertType, change, fired := contracts.Classify(baseline.Rank, snap.Rank, a.threshold)
		if !fired {
			continue
		}

		alert := contracts.RankAlert{
			ProductID:    productID,
			Keyword:      snap.Keyword,
			PrevRank:     baseline.Rank,
			CurrRank:     snap.Rank,
			ChangeAmount: change,
			AlertType:    alertType,
			CreatedAt:    time.Now(),
		}
		if err := a.alerts.Save(ctx, &alert); err != nil {
			return alerts, fmt.Errorf("save %s alert for %s: %w", alertType, snap.Keyword, err)
		}
		alerts = append(alerts, alert)

		a.log.Info().
			Str("product_id", productID).
			Str("keyword", snap.Keyword).
			Str("alert_type", string(alertType)).
			Int("change", change).
			Msg("rank alert created")
	}

	return alerts, nil
}
