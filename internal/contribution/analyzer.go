// Package contribution ranks surviving keywords by how much search
// visibility they bring, so downstream consumers can pick which keyword to
// feature first.
package contribution

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/trackerconfig"
)

// Analyzer scores active/warning candidates on search volume, current rank
// and streak stability
// ⭐ SSOT: 기여도 점수 계산은 여기서만
type Analyzer struct {
	topN    int
	weights trackerconfig.Contribution
	log     zerolog.Logger
}

// NewAnalyzer 새 기여도 분석기 생성
func NewAnalyzer(cfg *trackerconfig.Config, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		topN:    cfg.Tracking.TopN,
		weights: cfg.Contribution,
		log:     log.With().Str("component", "contribution.analyzer").Logger(),
	}
}

// Analyze ranks the active/warning subset by weighted contribution score.
// 순수 우선순위 계산, 후보 상태는 절대 바꾸지 않는다.
//
// raw = volumeWeight*volumeScore + rankWeight*rankScore
// + stabilityWeight*stabilityScore, normalized = raw/maxRaw*100 (1위 = 100).
func (a *Analyzer) Analyze(candidates []contracts.KeywordCandidate) []contracts.ContributionEntry {
	entries := make([]contracts.ContributionEntry, 0, len(candidates))

	for _, c := range candidates {
		if c.Status != contracts.StatusActive && c.Status != contracts.StatusWarning {
			continue
		}

		raw := a.weights.VolumeWeight*volumeScore(c.MonthlySearchVolume) +
			a.weights.RankWeight*a.rankScore(c.CurrentRank) +
			a.weights.StabilityWeight*stabilityScore(c.ConsecutiveDaysInTopN, c.DaysInTopN)

		entries = append(entries, contracts.ContributionEntry{
			CandidateID: c.ID,
			ProductID:   c.ProductID,
			Keyword:     c.Keyword,
			RawScore:    raw,
		})
	}

	if len(entries) == 0 {
		return entries
	}

	// 동점은 입력 순서 유지
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RawScore > entries[j].RawScore
	})

	maxRaw := entries[0].RawScore
	for i := range entries {
		if maxRaw > 0 {
			entries[i].NormalizedScore = entries[i].RawScore / maxRaw * 100
		}
		entries[i].Rank = i + 1
	}

	a.log.Info().
		Int("candidates", len(candidates)).
		Int("ranked", len(entries)).
		Float64("top_raw", maxRaw).
		Str("top_keyword", entries[0].Keyword).
		Msg("contribution ranking calculated")

	return entries
}

// volumeScore buckets monthly search volume onto a 0-40 scale.
// 검색량이 아무리 적어도 바닥 점수는 준다 (10% floor).
func volumeScore(volume int) float64 {
	switch {
	case volume >= 10000:
		return 40
	case volume >= 5000:
		return 32
	case volume >= 1000:
		return 24
	case volume >= 500:
		return 16
	case volume >= 100:
		return 8
	default:
		return 4
	}
}

// rankScore buckets the current rank onto a 0-40 scale. 추적 범위 밖이거나
// 미발견이면 0.
func (a *Analyzer) rankScore(rank *int) float64 {
	if rank == nil || *rank > a.topN {
		return 0
	}
	switch {
	case *rank <= 10:
		return 40
	case *rank <= 20:
		return 30
	case *rank <= 30:
		return 20
	default:
		return 10
	}
}

// stabilityScore rewards streak length (70%) and cumulative presence (30%)
// on a 0-20 scale. 연속 7일 / 누적 14일에서 각각 만점.
func stabilityScore(consecutive, total int) float64 {
	streak := math.Min(float64(consecutive)/7, 1)
	presence := math.Min(float64(total)/14, 1)
	return 20 * (0.7*streak + 0.3*presence)
}
