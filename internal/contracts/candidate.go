package contracts

import "time"

// Status represents the lifecycle state of a keyword candidate
// ⭐ SSOT: 키워드 라이프사이클 상태는 이 enum으로만 표현
//
// 업스트림 승인 단계(pending_approval/rejected)는 발굴 파이프라인 소유라
// 이 코어에는 candidate부터 들어온다.
type Status string

const (
	// StatusCandidate 승인 완료, 테스트 대기
	StatusCandidate Status = "candidate"

	// StatusTesting 노출 테스트 진행 중 (테스트 윈도우 안)
	StatusTesting Status = "testing"

	// StatusActive 테스트 통과, 운영 편입
	StatusActive Status = "active"

	// StatusWarning 순위 이탈 감지, 회복 관찰 중
	StatusWarning Status = "warning"

	// StatusFailed 테스트 실패 (순위 미달 또는 타임아웃)
	StatusFailed Status = "failed"

	// StatusRetired 추적 종료 (terminal)
	StatusRetired Status = "retired"
)

// String returns the status name.
func (s Status) String() string {
	return string(s)
}

// Valid checks if the status is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusCandidate, StatusTesting, StatusActive, StatusWarning, StatusFailed, StatusRetired:
		return true
	}
	return false
}

// Terminal reports whether the status has no outgoing edges.
func (s Status) Terminal() bool {
	return s == StatusRetired
}

// RankDriven reports whether daily rank snapshots drive evaluation in this
// state. Only testing/active/warning react to rank data.
func (s Status) RankDriven() bool {
	return s == StatusTesting || s == StatusActive || s == StatusWarning
}

// AllStatuses returns every lifecycle state in graph order.
func AllStatuses() []Status {
	return []Status{
		StatusCandidate,
		StatusTesting,
		StatusActive,
		StatusWarning,
		StatusFailed,
		StatusRetired,
	}
}

// CompetitionTier buckets keyword competition intensity
// 발굴 파이프라인이 분류해서 내려주는 읽기 전용 메타데이터
type CompetitionTier string

const (
	TierLow    CompetitionTier = "low"
	TierMedium CompetitionTier = "medium"
	TierHigh   CompetitionTier = "high"
)

// TestResult records how a test window ended.
type TestResult string

const (
	// TestPassed 연속 상위 노출 기준 충족
	TestPassed TestResult = "passed"

	// TestFailedRank 순위 기준 미달로 종료
	TestFailedRank TestResult = "failed_rank"

	// TestFailedTimeout 기준 충족 전에 테스트 기간 만료
	TestFailedTimeout TestResult = "failed_timeout"

	// TestAborted 테스트 중 수동 종료(retire)
	TestAborted TestResult = "aborted"
)

// KeywordCandidate is a keyword being evaluated for one product
// ⭐ SSOT: 후보 키워드의 상태/지표는 state machine과 evaluator만 변경
//
// Invariant: 0 <= ConsecutiveDaysInTopN <= DaysInTopN.
// CurrentRank is nil exactly when the keyword was outside the tracked window
// on the most recent check.
type KeywordCandidate struct {
	ID        int64  `json:"id"`
	ProductID string `json:"product_id"`
	Keyword   string `json:"keyword"`
	Status    Status `json:"status"`

	// 검색/경쟁 메타데이터 (업스트림 제공, 읽기 전용)
	MonthlySearchVolume int             `json:"monthly_search_volume"`
	CompetitionTier     CompetitionTier `json:"competition_tier"`

	// 롤링 성과 지표
	BestRank              *int `json:"best_rank,omitempty"`
	CurrentRank           *int `json:"current_rank,omitempty"`
	DaysInTopN            int  `json:"days_in_top_n"`
	ConsecutiveDaysInTopN int  `json:"consecutive_days_in_top_n"`

	// 점수
	ContributionScore float64 `json:"contribution_score"`
	CandidateScore    float64 `json:"candidate_score"`

	// 테스트 윈도우
	TestStartedAt *time.Time `json:"test_started_at,omitempty"`
	TestEndedAt   *time.Time `json:"test_ended_at,omitempty"`
	TestResult    TestResult `json:"test_result,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pair returns the tracked (product, keyword) pair for this candidate.
func (c *KeywordCandidate) Pair() TrackedPair {
	return TrackedPair{
		CandidateID: c.ID,
		ProductID:   c.ProductID,
		Keyword:     c.Keyword,
	}
}

// TestTimedOut reports whether the test window has expired. Only meaningful
// while the candidate is in testing with a recorded start time.
func (c *KeywordCandidate) TestTimedOut(now time.Time, timeout time.Duration) bool {
	if c.Status != StatusTesting || c.TestStartedAt == nil {
		return false
	}
	return now.Sub(*c.TestStartedAt) >= timeout
}

// MetricsConsistent checks the rolling counter invariant.
func (c *KeywordCandidate) MetricsConsistent() bool {
	return c.ConsecutiveDaysInTopN >= 0 &&
		c.DaysInTopN >= 0 &&
		c.ConsecutiveDaysInTopN <= c.DaysInTopN
}

// GroupByStatus groups candidates into an enum-keyed map.
func GroupByStatus(candidates []KeywordCandidate) map[Status][]KeywordCandidate {
	groups := make(map[Status][]KeywordCandidate)
	for _, c := range candidates {
		groups[c.Status] = append(groups[c.Status], c)
	}
	return groups
}
