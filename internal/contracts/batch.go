package contracts

import "time"

// TrackedPair is one (product, keyword) pair queued for a rank check.
type TrackedPair struct {
	CandidateID int64  `json:"candidate_id"`
	ProductID   string `json:"product_id"`
	Keyword     string `json:"keyword"`
}

// PairFailure records one pair the collector gave up on after the resolver's
// retries were exhausted. 배치는 계속 진행된다 (partial-failure semantics).
type PairFailure struct {
	Pair   TrackedPair `json:"pair"`
	Reason string      `json:"reason"`
}

// BatchReport is the result of one sequential collection run
// ⭐ SSOT: 배치 결과 보고는 이 타입으로만, 성공/스킵/실패 수를 항상 보고
//
// Incomplete=true는 에러가 아니라 예산 소진에 의한 정상 조기 종료 신호다.
// 스냅샷은 (pair, check time) 키의 append-only 사실이라 남은 pair부터
// 재실행해도 그날 데이터셋은 일관된다.
type BatchReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Requested int `json:"requested"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	CallsUsed int `json:"calls_used"`

	Incomplete bool          `json:"incomplete"`
	Failures   []PairFailure `json:"failures,omitempty"`

	Snapshots []RankSnapshot `json:"-"`
}

// Duration returns the wall time of the run.
func (r *BatchReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Complete reports whether every requested pair was attempted.
func (r *BatchReport) Complete() bool {
	return !r.Incomplete
}
