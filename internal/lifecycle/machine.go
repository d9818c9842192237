// Package lifecycle drives keyword candidates through the tracking state
// graph and keeps their rolling performance metrics.
//
// 상태 전이는 전부 값을 받아 값을 돌려주는 순수 함수다. 전이가 거부되면
// 원본 후보가 그대로 돌아오고 (부분 변경 없음), 성공하면 갱신된 후보와
// 감사용 전이 기록이 함께 돌아온다. 영속화는 repository 몫이다.
package lifecycle

import (
	"time"

	"github.com/wonny/keyrank/internal/contracts"
)

// transitions is the allowed edge set of the lifecycle graph
// ⭐ SSOT: 허용 전이는 이 테이블로만 판정
//
//	candidate → testing, retired
//	testing   → active, failed, retired
//	active    → warning, retired
//	warning   → active, retired
//	failed    → retired, candidate
//	retired   → (terminal)
var transitions = map[contracts.Status][]contracts.Status{
	contracts.StatusCandidate: {contracts.StatusTesting, contracts.StatusRetired},
	contracts.StatusTesting:   {contracts.StatusActive, contracts.StatusFailed, contracts.StatusRetired},
	contracts.StatusActive:    {contracts.StatusWarning, contracts.StatusRetired},
	contracts.StatusWarning:   {contracts.StatusActive, contracts.StatusRetired},
	contracts.StatusFailed:    {contracts.StatusRetired, contracts.StatusCandidate},
	contracts.StatusRetired:   {},
}

// CanTransition reports whether from → to is an allowed edge.
func CanTransition(from, to contracts.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// apply performs the common part of every transition: edge check, status
// flip, audit record. 타임스탬프 등 엣지별 부수 효과는 호출부에서.
func apply(c contracts.KeywordCandidate, to contracts.Status, metrics contracts.MetricsSnapshot, reason string, now time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error) {
	if !CanTransition(c.Status, to) {
		return c, nil, &contracts.InvalidTransitionError{CandidateID: c.ID, From: c.Status, To: to}
	}

	tr := &contracts.LifecycleTransition{
		CandidateID: c.ID,
		FromStatus:  c.Status,
		ToStatus:    to,
		Reason:      reason,
		Metrics:     metrics,
		CreatedAt:   now,
	}

	c.Status = to
	c.UpdatedAt = now
	return c, tr, nil
}

// reject builds the typed failure for an edge whose required source state
// does not match.
func reject(c contracts.KeywordCandidate, to contracts.Status) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error) {
	return c, nil, &contracts.InvalidTransitionError{CandidateID: c.ID, From: c.Status, To: to}
}

// StartTest moves candidate → testing and opens the test window.
// 테스트 창 안의 연속 일수를 새로 세기 위해 연속 카운터를 0으로 되돌린다
// (재도전 후보가 이전 기록을 끌고 오지 않도록).
func StartTest(c contracts.KeywordCandidate, metrics contracts.MetricsSnapshot, reason string, now time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error) {
	if c.Status != contracts.StatusCandidate {
		return reject(c, contracts.StatusTesting)
	}

	updated, tr, err := apply(c, contracts.StatusTesting, metrics, reason, now)
	if err != nil {
		return c, nil, err
	}
	updated.TestStartedAt = &now
	updated.TestEndedAt = nil
	updated.TestResult = ""
	updated.ConsecutiveDaysInTopN = 0
	return updated, tr, nil
}

// Activate moves testing → active: the keyword passed its exposure test.
func Activate(c contracts.KeywordCandidate, metrics contracts.MetricsSnapshot, reason string, now time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error) {
	if c.Status != contracts.StatusTesting {
		return reject(c, contracts.StatusActive)
	}

	updated, tr, err := apply(c, contracts.StatusActive, metrics, reason, now)
	if err != nil {
		return c, nil, err
	}
	updated.TestEndedAt = &now
	updated.TestResult = contracts.TestPassed
	return updated, tr, nil
}

// Fail moves testing → failed with the given result
// (failed_rank 또는 failed_timeout).
func Fail(c contracts.KeywordCandidate, metrics contracts.MetricsSnapshot, result contracts.TestResult, reason string, now time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error) {
	if c.Status != contracts.StatusTesting {
		return reject(c, contracts.StatusFailed)
	}

	updated, tr, err := apply(c, contracts.StatusFailed, metrics, reason, now)
	if err != nil {
		return c, nil, err
	}
	updated.TestEndedAt = &now
	updated.TestResult = result
	return updated, tr, nil
}

// Warn moves active → warning: the keyword left the tracked top range.
func Warn(c contracts.KeywordCandidate, metrics contracts.MetricsSnapshot, reason string, now time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error) {
	if c.Status != contracts.StatusActive {
		return reject(c, contracts.StatusWarning)
	}
	return apply(c, contracts.StatusWarning, metrics, reason, now)
}

// Recover moves warning → active: the keyword came back into range.
func Recover(c contracts.KeywordCandidate, metrics contracts.MetricsSnapshot, reason string, now time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error) {
	if c.Status != contracts.StatusWarning {
		return reject(c, contracts.StatusActive)
	}
	return apply(c, contracts.StatusActive, metrics, reason, now)
}

// Retire ends tracking from any non-terminal state. 테스트 도중이면 창을
// aborted로 닫는다.
func Retire(c contracts.KeywordCandidate, metrics contracts.MetricsSnapshot, reason string, now time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error) {
	if !c.Status.Valid() || c.Status.Terminal() {
		return reject(c, contracts.StatusRetired)
	}

	wasTesting := c.Status == contracts.StatusTesting
	updated, tr, err := apply(c, contracts.StatusRetired, metrics, reason, now)
	if err != nil {
		return c, nil, err
	}
	if wasTesting {
		updated.TestEndedAt = &now
		updated.TestResult = contracts.TestAborted
	}
	return updated, tr, nil
}

// Reinstate moves failed → candidate for another try. 이전 테스트 창
// 기록은 지우고 롤링 지표(최고 순위, 누적 일수)는 역사로 남긴다.
func Reinstate(c contracts.KeywordCandidate, metrics contracts.MetricsSnapshot, reason string, now time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error) {
	if c.Status != contracts.StatusFailed {
		return reject(c, contracts.StatusCandidate)
	}

	updated, tr, err := apply(c, contracts.StatusCandidate, metrics, reason, now)
	if err != nil {
		return c, nil, err
	}
	updated.TestStartedAt = nil
	updated.TestEndedAt = nil
	updated.TestResult = ""
	return updated, tr, nil
}
