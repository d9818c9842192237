package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/keyrank/internal/contracts"
)

var machineNow = time.Date(2026, 3, 14, 2, 0, 0, 0, time.UTC)

func intPtr(n int) *int { return &n }

// testCandidate returns a candidate with history, so unchanged-on-reject
// assertions catch partial writes.
func testCandidate(status contracts.Status) contracts.KeywordCandidate {
	started := machineNow.AddDate(0, 0, -5)
	return contracts.KeywordCandidate{
		ID:                    77,
		ProductID:             "82512345678",
		Keyword:               "무선 이어폰",
		Status:                status,
		MonthlySearchVolume:   12000,
		CompetitionTier:       contracts.TierMedium,
		BestRank:              intPtr(8),
		CurrentRank:           intPtr(15),
		DaysInTopN:            9,
		ConsecutiveDaysInTopN: 4,
		TestStartedAt:         &started,
		CreatedAt:             machineNow.AddDate(0, 0, -30),
		UpdatedAt:             machineNow.AddDate(0, 0, -1),
	}
}

func TestCanTransition(t *testing.T) {
	allowed := map[contracts.Status][]contracts.Status{
		contracts.StatusCandidate: {contracts.StatusTesting, contracts.StatusRetired},
		contracts.StatusTesting:   {contracts.StatusActive, contracts.StatusFailed, contracts.StatusRetired},
		contracts.StatusActive:    {contracts.StatusWarning, contracts.StatusRetired},
		contracts.StatusWarning:   {contracts.StatusActive, contracts.StatusRetired},
		contracts.StatusFailed:    {contracts.StatusRetired, contracts.StatusCandidate},
		contracts.StatusRetired:   {},
	}

	for _, from := range contracts.AllStatuses() {
		for _, to := range contracts.AllStatuses() {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	// 정의되지 않은 상태에서는 어디로도 못 간다
	assert.False(t, CanTransition(contracts.Status("pending"), contracts.StatusTesting))
}

func TestStartTest(t *testing.T) {
	c := testCandidate(contracts.StatusCandidate)
	c.TestStartedAt = nil
	c.ConsecutiveDaysInTopN = 4 // 이전 주기 잔재

	metrics := contracts.CaptureMetrics(&c)
	updated, tr, err := StartTest(c, metrics, "테스트 시작 (수동)", machineNow)
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusTesting, updated.Status)
	require.NotNil(t, updated.TestStartedAt)
	assert.Equal(t, machineNow, *updated.TestStartedAt)
	assert.Nil(t, updated.TestEndedAt)
	assert.Empty(t, updated.TestResult)
	assert.Equal(t, 0, updated.ConsecutiveDaysInTopN, "테스트 창 안에서 연속 일수를 새로 센다")
	assert.Equal(t, 9, updated.DaysInTopN, "누적 일수는 역사로 유지")
	assert.Equal(t, machineNow, updated.UpdatedAt)

	require.NotNil(t, tr)
	assert.Equal(t, int64(77), tr.CandidateID)
	assert.Equal(t, contracts.StatusCandidate, tr.FromStatus)
	assert.Equal(t, contracts.StatusTesting, tr.ToStatus)
	assert.Equal(t, "테스트 시작 (수동)", tr.Reason)
	assert.Equal(t, metrics, tr.Metrics)
	assert.Equal(t, machineNow, tr.CreatedAt)
}

func TestActivate(t *testing.T) {
	c := testCandidate(contracts.StatusTesting)

	updated, tr, err := Activate(c, contracts.CaptureMetrics(&c), "연속 3일 상위 40위 유지 (테스트 통과)", machineNow)
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusActive, updated.Status)
	require.NotNil(t, updated.TestEndedAt)
	assert.Equal(t, machineNow, *updated.TestEndedAt)
	assert.Equal(t, contracts.TestPassed, updated.TestResult)
	require.NotNil(t, updated.TestStartedAt, "테스트 시작 시각은 기록으로 남는다")

	require.NotNil(t, tr)
	assert.Equal(t, contracts.StatusTesting, tr.FromStatus)
	assert.Equal(t, contracts.StatusActive, tr.ToStatus)
}

func TestFail(t *testing.T) {
	tests := []struct {
		name   string
		result contracts.TestResult
		reason string
	}{
		{"timeout", contracts.TestFailedTimeout, "테스트 기간 14일 경과 (기준 미달)"},
		{"rank", contracts.TestFailedRank, "순위 기준 미달 판정 (수동)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCandidate(contracts.StatusTesting)

			updated, tr, err := Fail(c, contracts.CaptureMetrics(&c), tt.result, tt.reason, machineNow)
			require.NoError(t, err)

			assert.Equal(t, contracts.StatusFailed, updated.Status)
			assert.Equal(t, tt.result, updated.TestResult)
			require.NotNil(t, updated.TestEndedAt)
			assert.Equal(t, machineNow, *updated.TestEndedAt)

			require.NotNil(t, tr)
			assert.Equal(t, tt.reason, tr.Reason)
		})
	}
}

func TestWarnAndRecover(t *testing.T) {
	c := testCandidate(contracts.StatusActive)

	warned, tr, err := Warn(c, contracts.CaptureMetrics(&c), "상위 40위 이탈", machineNow)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusWarning, warned.Status)
	require.NotNil(t, tr)
	assert.Equal(t, contracts.StatusActive, tr.FromStatus)
	assert.Equal(t, contracts.StatusWarning, tr.ToStatus)

	later := machineNow.AddDate(0, 0, 2)
	recovered, tr, err := Recover(warned, contracts.CaptureMetrics(&warned), "상위 40위 복귀", later)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusActive, recovered.Status)
	assert.Equal(t, later, recovered.UpdatedAt)
	require.NotNil(t, tr)
	assert.Equal(t, contracts.StatusWarning, tr.FromStatus)
	assert.Equal(t, contracts.StatusActive, tr.ToStatus)
}

func TestRetire(t *testing.T) {
	for _, from := range []contracts.Status{
		contracts.StatusCandidate,
		contracts.StatusTesting,
		contracts.StatusActive,
		contracts.StatusWarning,
		contracts.StatusFailed,
	} {
		t.Run(string(from), func(t *testing.T) {
			c := testCandidate(from)

			updated, tr, err := Retire(c, contracts.CaptureMetrics(&c), "추적 종료 (수동)", machineNow)
			require.NoError(t, err)
			assert.Equal(t, contracts.StatusRetired, updated.Status)
			require.NotNil(t, tr)
			assert.Equal(t, from, tr.FromStatus)

			if from == contracts.StatusTesting {
				assert.Equal(t, contracts.TestAborted, updated.TestResult, "진행 중이던 테스트 창은 aborted로 닫는다")
				require.NotNil(t, updated.TestEndedAt)
				assert.Equal(t, machineNow, *updated.TestEndedAt)
			} else {
				assert.Empty(t, updated.TestResult)
			}
		})
	}

	t.Run("retired is terminal", func(t *testing.T) {
		c := testCandidate(contracts.StatusRetired)
		got, tr, err := Retire(c, contracts.CaptureMetrics(&c), "추적 종료 (수동)", machineNow)
		assert.True(t, contracts.IsInvalidTransition(err))
		assert.Nil(t, tr)
		assert.Equal(t, c, got)
	})
}

func TestReinstate(t *testing.T) {
	c := testCandidate(contracts.StatusFailed)
	ended := machineNow.AddDate(0, 0, -2)
	c.TestEndedAt = &ended
	c.TestResult = contracts.TestFailedTimeout

	updated, tr, err := Reinstate(c, contracts.CaptureMetrics(&c), "재도전 (수동)", machineNow)
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusCandidate, updated.Status)
	assert.Nil(t, updated.TestStartedAt, "이전 테스트 창 기록은 지운다")
	assert.Nil(t, updated.TestEndedAt)
	assert.Empty(t, updated.TestResult)
	assert.Equal(t, intPtr(8), updated.BestRank, "롤링 지표는 역사로 유지")
	assert.Equal(t, 9, updated.DaysInTopN)

	require.NotNil(t, tr)
	assert.Equal(t, contracts.StatusFailed, tr.FromStatus)
	assert.Equal(t, contracts.StatusCandidate, tr.ToStatus)
}

// TestRejectedTransitionLeavesCandidateUnchanged drives every edge function
// from a wrong source state and checks the no-partial-write guarantee.
func TestRejectedTransitionLeavesCandidateUnchanged(t *testing.T) {
	type edgeFn func(contracts.KeywordCandidate, contracts.MetricsSnapshot, string, time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error)

	fail := func(c contracts.KeywordCandidate, m contracts.MetricsSnapshot, reason string, now time.Time) (contracts.KeywordCandidate, *contracts.LifecycleTransition, error) {
		return Fail(c, m, contracts.TestFailedRank, reason, now)
	}

	edges := []struct {
		name     string
		fn       edgeFn
		required contracts.Status
	}{
		{"StartTest", StartTest, contracts.StatusCandidate},
		{"Activate", Activate, contracts.StatusTesting},
		{"Fail", fail, contracts.StatusTesting},
		{"Warn", Warn, contracts.StatusActive},
		{"Recover", Recover, contracts.StatusWarning},
		{"Reinstate", Reinstate, contracts.StatusFailed},
	}

	for _, edge := range edges {
		for _, from := range contracts.AllStatuses() {
			if from == edge.required {
				continue
			}
			t.Run(edge.name+"/"+string(from), func(t *testing.T) {
				c := testCandidate(from)

				got, tr, err := edge.fn(c, contracts.CaptureMetrics(&c), "사유", machineNow)

				require.Error(t, err)
				assert.True(t, contracts.IsInvalidTransition(err))
				assert.Nil(t, tr)
				assert.Equal(t, c, got, "거부된 전이는 원본을 그대로 돌려준다")
			})
		}
	}
}

func TestTransitionMetricsFrozenAtCallTime(t *testing.T) {
	c := testCandidate(contracts.StatusTesting)
	metrics := contracts.CaptureMetrics(&c)

	_, tr, err := Activate(c, metrics, "테스트 통과", machineNow)
	require.NoError(t, err)

	assert.Equal(t, intPtr(8), tr.Metrics.BestRank)
	assert.Equal(t, intPtr(15), tr.Metrics.CurrentRank)
	assert.Equal(t, 9, tr.Metrics.DaysInTopN)
	assert.Equal(t, 4, tr.Metrics.ConsecutiveDaysInTopN)
}
