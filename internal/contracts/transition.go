package contracts

import "time"

// MetricsSnapshot freezes the rolling metrics at transition time.
// 전이 사유를 나중에 재구성할 수 있도록 JSONB로 같이 저장한다.
type MetricsSnapshot struct {
	BestRank              *int `json:"best_rank,omitempty"`
	CurrentRank           *int `json:"current_rank,omitempty"`
	DaysInTopN            int  `json:"days_in_top_n"`
	ConsecutiveDaysInTopN int  `json:"consecutive_days_in_top_n"`
}

// CaptureMetrics snapshots the candidate's rolling metrics.
func CaptureMetrics(c *KeywordCandidate) MetricsSnapshot {
	return MetricsSnapshot{
		BestRank:              c.BestRank,
		CurrentRank:           c.CurrentRank,
		DaysInTopN:            c.DaysInTopN,
		ConsecutiveDaysInTopN: c.ConsecutiveDaysInTopN,
	}
}

// LifecycleTransition is a write-once audit log entry for one state change
// ⭐ SSOT: 모든 상태 전이는 이 레코드를 남긴다 (수정 불가)
type LifecycleTransition struct {
	ID          int64           `json:"id"`
	CandidateID int64           `json:"candidate_id"`
	FromStatus  Status          `json:"from_status"`
	ToStatus    Status          `json:"to_status"`
	Reason      string          `json:"reason"`
	Metrics     MetricsSnapshot `json:"metrics"`
	CreatedAt   time.Time       `json:"created_at"`
}
