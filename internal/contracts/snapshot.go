package contracts

import (
	"strings"
	"time"
)

// RankSnapshot is one (product, keyword, time) rank measurement
// ⭐ SSOT: 순위 측정값은 append-only (수정/삭제 없음)
//
// Rank nil means the product was outside the tracked window
// (maxPosition 밖이거나 검색 결과 소진). 같은 날 여러 번 측정될 수 있고,
// 일 단위 비교는 항상 latest-per-day 값을 쓴다.
type RankSnapshot struct {
	ID           int64     `json:"id"`
	ProductID    string    `json:"product_id"`
	Keyword      string    `json:"keyword"`
	Rank         *int      `json:"rank,omitempty"`
	APICallsUsed int       `json:"api_calls_used"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Ranked reports whether the product appeared inside the tracked window.
func (s *RankSnapshot) Ranked() bool {
	return s.Rank != nil
}

// InTopN reports whether the snapshot rank is within the page-one cutoff.
func (s *RankSnapshot) InTopN(n int) bool {
	return s.Rank != nil && *s.Rank <= n
}

// NormalizeKeyword canonicalizes a keyword for map lookup: trimmed and
// lowercased. 대소문자/공백 차이는 경계에서 한 번만 정규화한다.
func NormalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// SnapshotsByKeyword builds a lookup map keyed by normalized keyword.
func SnapshotsByKeyword(snapshots []RankSnapshot) map[string]RankSnapshot {
	byKeyword := make(map[string]RankSnapshot, len(snapshots))
	for _, s := range snapshots {
		byKeyword[NormalizeKeyword(s.Keyword)] = s
	}
	return byKeyword
}
