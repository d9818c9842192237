package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/keyrank/internal/alert"
	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/contribution"
	"github.com/wonny/keyrank/internal/lifecycle"
	"github.com/wonny/keyrank/internal/trackerconfig"
)

func intPtr(n int) *int { return &n }

type fakeCandidates struct {
	rankDriven []contracts.KeywordCandidate
	listErr    error
	updateErr  error
	txErr      error

	updated    []contracts.KeywordCandidate
	transacted []contracts.KeywordCandidate
	saved      []contracts.LifecycleTransition
	nextTrID   int64
}

func (f *fakeCandidates) GetByID(ctx context.Context, id int64) (*contracts.KeywordCandidate, error) {
	for i := range f.rankDriven {
		if f.rankDriven[i].ID == id {
			c := f.rankDriven[i]
			return &c, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeCandidates) GetByPair(ctx context.Context, productID, keyword string) (*contracts.KeywordCandidate, error) {
	for i := range f.rankDriven {
		if f.rankDriven[i].ProductID == productID && f.rankDriven[i].Keyword == keyword {
			c := f.rankDriven[i]
			return &c, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeCandidates) ListByStatus(ctx context.Context, statuses ...contracts.Status) ([]contracts.KeywordCandidate, error) {
	out := make([]contracts.KeywordCandidate, 0)
	for _, c := range f.rankDriven {
		for _, s := range statuses {
			if c.Status == s {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (f *fakeCandidates) ListRankDriven(ctx context.Context) ([]contracts.KeywordCandidate, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.rankDriven, nil
}

func (f *fakeCandidates) Create(ctx context.Context, c *contracts.KeywordCandidate) error {
	f.rankDriven = append(f.rankDriven, *c)
	return nil
}

func (f *fakeCandidates) Update(ctx context.Context, c *contracts.KeywordCandidate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, *c)
	return nil
}

func (f *fakeCandidates) UpdateWithTransition(ctx context.Context, c *contracts.KeywordCandidate, tr *contracts.LifecycleTransition) error {
	if f.txErr != nil {
		return f.txErr
	}
	f.nextTrID++
	tr.ID = f.nextTrID
	f.transacted = append(f.transacted, *c)
	f.saved = append(f.saved, *tr)
	return nil
}

type fakeSnapshots struct {
	byDay map[string][]contracts.RankSnapshot
	err   error
}

func snapKey(productID string, day time.Time) string {
	return productID + "|" + day.Format("2006-01-02")
}

func (f *fakeSnapshots) Save(ctx context.Context, snap *contracts.RankSnapshot) error {
	key := snapKey(snap.ProductID, snap.CheckedAt)
	f.byDay[key] = append(f.byDay[key], *snap)
	return nil
}

func (f *fakeSnapshots) LatestOnDay(ctx context.Context, productID string, day time.Time) ([]contracts.RankSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byDay[snapKey(productID, day)], nil
}

func (f *fakeSnapshots) History(ctx context.Context, productID, keyword string, from, to time.Time) ([]contracts.RankSnapshot, error) {
	return nil, nil
}

type fakeAlertStore struct {
	saved  []contracts.RankAlert
	nextID int64
}

func (f *fakeAlertStore) Save(ctx context.Context, a *contracts.RankAlert) error {
	f.nextID++
	a.ID = f.nextID
	f.saved = append(f.saved, *a)
	return nil
}

func (f *fakeAlertStore) ListUnread(ctx context.Context, limit int) ([]contracts.RankAlert, error) {
	return f.saved, nil
}

func (f *fakeAlertStore) MarkRead(ctx context.Context, id int64) error { return nil }

type fakeCollector struct {
	err   error
	pairs []contracts.TrackedPair
	calls int
}

func (f *fakeCollector) Collect(ctx context.Context, pairs []contracts.TrackedPair) (*contracts.BatchReport, error) {
	f.calls++
	f.pairs = pairs
	if f.err != nil {
		return nil, f.err
	}
	return &contracts.BatchReport{
		RunID:     "batch-test",
		Requested: len(pairs),
		Succeeded: len(pairs),
		CallsUsed: len(pairs),
	}, nil
}

func pipelineConfig() *trackerconfig.Config {
	return &trackerconfig.Config{
		Tracking:     trackerconfig.Tracking{PageSize: 100, MaxPages: 10, TopN: 40},
		Lifecycle:    trackerconfig.Lifecycle{SuccessDays: 3, TestTimeoutDays: 14},
		Alerting:     trackerconfig.Alerting{SurgeDropThreshold: 10},
		Contribution: trackerconfig.Contribution{VolumeWeight: 0.4, RankWeight: 0.4, StabilityWeight: 0.2},
	}
}

// newTestDaily wires the real evaluator/alert/contribution components over
// in-memory persistence, faking only the API-facing collector.
func newTestDaily(candidates *fakeCandidates, snaps *fakeSnapshots, alertStore *fakeAlertStore, collector *fakeCollector) *Daily {
	cfg := pipelineConfig()
	nop := zerolog.Nop()
	return NewDaily(
		candidates,
		snaps,
		collector,
		lifecycle.NewEvaluator(cfg, nop),
		alert.NewAnalyzer(snaps, alertStore, cfg, nop),
		contribution.NewAnalyzer(cfg, nop),
		nop,
	)
}

var testDay = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func seedSnapshots() *fakeSnapshots {
	yesterday := testDay.AddDate(0, 0, -1)
	return &fakeSnapshots{byDay: map[string][]contracts.RankSnapshot{
		snapKey("1001", testDay): {
			{ProductID: "1001", Keyword: "무선 이어폰", Rank: intPtr(10), CheckedAt: testDay.Add(2 * time.Hour)},
			{ProductID: "1001", Keyword: "블루투스 스피커", Rank: intPtr(50), CheckedAt: testDay.Add(2 * time.Hour)},
		},
		snapKey("2002", testDay): {
			{ProductID: "2002", Keyword: "캠핑 의자", Rank: intPtr(20), CheckedAt: testDay.Add(2 * time.Hour)},
		},
		snapKey("1001", yesterday): {
			{ProductID: "1001", Keyword: "무선 이어폰", Rank: intPtr(30), CheckedAt: yesterday.Add(2 * time.Hour)},
			{ProductID: "1001", Keyword: "블루투스 스피커", Rank: intPtr(20), CheckedAt: yesterday.Add(2 * time.Hour)},
		},
		snapKey("2002", yesterday): {
			{ProductID: "2002", Keyword: "캠핑 의자", Rank: nil, CheckedAt: yesterday.Add(2 * time.Hour)},
		},
	}}
}

func seedCandidates() *fakeCandidates {
	started := time.Now().AddDate(0, 0, -5)
	return &fakeCandidates{rankDriven: []contracts.KeywordCandidate{
		{ID: 1, ProductID: "1001", Keyword: "무선 이어폰", Status: contracts.StatusTesting,
			MonthlySearchVolume: 12000, DaysInTopN: 2, ConsecutiveDaysInTopN: 2, TestStartedAt: &started},
		{ID: 2, ProductID: "1001", Keyword: "블루투스 스피커", Status: contracts.StatusActive,
			MonthlySearchVolume: 5000, DaysInTopN: 10, ConsecutiveDaysInTopN: 5, CurrentRank: intPtr(20)},
		{ID: 3, ProductID: "2002", Keyword: "캠핑 의자", Status: contracts.StatusWarning,
			MonthlySearchVolume: 800, DaysInTopN: 7},
	}}
}

func TestRunFullDay(t *testing.T) {
	candidates := seedCandidates()
	snaps := seedSnapshots()
	alertStore := &fakeAlertStore{}
	collector := &fakeCollector{}
	d := newTestDaily(candidates, snaps, alertStore, collector)

	result, err := d.Run(context.Background(), RunConfig{Day: testDay})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, []string{"collect", "evaluate", "alerts", "contribution"}, result.CompletedStages)
	assert.NotEmpty(t, result.RunID)

	// 수집: 추적 쌍 전부를 한 번에
	assert.Equal(t, 1, collector.calls)
	require.Len(t, collector.pairs, 3)
	require.NotNil(t, result.Batch)
	assert.Equal(t, 3, result.Batch.Requested)

	// 평가: 3건 모두 전이 발생
	assert.Equal(t, 3, result.Evaluated)
	require.Len(t, result.Transitions, 3)
	assert.Equal(t, contracts.StatusActive, result.Transitions[0].ToStatus, "테스트 통과")
	assert.Equal(t, contracts.StatusWarning, result.Transitions[1].ToStatus, "상위권 이탈")
	assert.Equal(t, contracts.StatusActive, result.Transitions[2].ToStatus, "복귀")
	require.Len(t, candidates.saved, 3)
	assert.NotZero(t, candidates.saved[0].ID, "전이 기록은 저장되며 ID를 받는다")
	require.Len(t, candidates.transacted, 3)
	assert.Equal(t, contracts.TestPassed, candidates.transacted[0].TestResult)

	// 알림: SURGE(30→10), DROP(20→50), ENTER(nil→20)
	require.Len(t, result.Alerts, 3)
	byKeyword := make(map[string]contracts.RankAlert)
	for _, a := range result.Alerts {
		byKeyword[a.Keyword] = a
	}
	assert.Equal(t, contracts.AlertSurge, byKeyword["무선 이어폰"].AlertType)
	assert.Equal(t, 20, byKeyword["무선 이어폰"].ChangeAmount)
	assert.Equal(t, contracts.AlertDrop, byKeyword["블루투스 스피커"].AlertType)
	assert.Equal(t, -30, byKeyword["블루투스 스피커"].ChangeAmount)
	assert.Equal(t, contracts.AlertEnter, byKeyword["캠핑 의자"].AlertType)
	assert.Len(t, alertStore.saved, 3)

	// 기여도: 평가 후 상태 기준 (1=active 1위, 3=active, 2=warning 범위 밖)
	require.Len(t, result.Contribution, 3)
	assert.Equal(t, int64(1), result.Contribution[0].CandidateID)
	assert.InDelta(t, 100.0, result.Contribution[0].NormalizedScore, 1e-9)
	assert.Equal(t, int64(3), result.Contribution[1].CandidateID)
	assert.Equal(t, int64(2), result.Contribution[2].CandidateID)

	// 점수 영속화: 기여도 단계의 Update 3건
	require.Len(t, candidates.updated, 3)
	assert.Equal(t, int64(1), candidates.updated[0].ID)
	assert.InDelta(t, 100.0, candidates.updated[0].ContributionScore, 1e-9)
}

func TestRunCollectErrorAborts(t *testing.T) {
	candidates := seedCandidates()
	collector := &fakeCollector{err: errors.New("database down")}
	d := newTestDaily(candidates, seedSnapshots(), &fakeAlertStore{}, collector)

	result, err := d.Run(context.Background(), RunConfig{Day: testDay})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "collect stage failed")
	assert.False(t, result.Success)
	assert.Empty(t, result.CompletedStages)
	assert.Equal(t, err, result.Error)
	assert.Empty(t, candidates.transacted, "수집 실패 후 평가는 돌지 않는다")
}

func TestRunSkipCollect(t *testing.T) {
	candidates := seedCandidates()
	collector := &fakeCollector{err: errors.New("should not be called")}
	d := newTestDaily(candidates, seedSnapshots(), &fakeAlertStore{}, collector)

	result, err := d.Run(context.Background(), RunConfig{Day: testDay, SkipCollect: true})
	require.NoError(t, err)

	assert.Equal(t, 0, collector.calls)
	assert.Nil(t, result.Batch)
	assert.Equal(t, []string{"evaluate", "alerts", "contribution"}, result.CompletedStages)
	assert.Equal(t, 3, result.Evaluated, "저장된 스냅샷으로 하위 단계는 그대로 돈다")
}

func TestRunMissingSnapshotCandidateKeptInRanking(t *testing.T) {
	candidates := &fakeCandidates{rankDriven: []contracts.KeywordCandidate{
		{ID: 1, ProductID: "1001", Keyword: "무선 이어폰", Status: contracts.StatusActive,
			MonthlySearchVolume: 10000, DaysInTopN: 5, ConsecutiveDaysInTopN: 5},
		{ID: 2, ProductID: "1001", Keyword: "충전 케이스", Status: contracts.StatusActive,
			MonthlySearchVolume: 10000, DaysInTopN: 5, ConsecutiveDaysInTopN: 5, CurrentRank: intPtr(12)},
	}}
	snaps := &fakeSnapshots{byDay: map[string][]contracts.RankSnapshot{
		snapKey("1001", testDay): {
			{ProductID: "1001", Keyword: "무선 이어폰", Rank: intPtr(5), CheckedAt: testDay.Add(time.Hour)},
		},
	}}
	d := newTestDaily(candidates, snaps, &fakeAlertStore{}, &fakeCollector{})

	result, err := d.Run(context.Background(), RunConfig{Day: testDay})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Evaluated, "스냅샷 없는 후보는 평가 제외")
	assert.Empty(t, result.Transitions)
	assert.Empty(t, result.Alerts, "전일 기준 없음, 알림 없음")

	// 결측 후보도 이전 상태로 랭킹에는 남는다
	require.Len(t, result.Contribution, 2)
	assert.Equal(t, int64(1), result.Contribution[0].CandidateID)
	assert.Equal(t, int64(2), result.Contribution[1].CandidateID)
	assert.Len(t, candidates.updated, 3, "평가 1건 + 점수 2건")
}

func TestRunNoCandidates(t *testing.T) {
	candidates := &fakeCandidates{}
	collector := &fakeCollector{}
	snaps := &fakeSnapshots{byDay: map[string][]contracts.RankSnapshot{}}
	d := newTestDaily(candidates, snaps, &fakeAlertStore{}, collector)

	result, err := d.Run(context.Background(), RunConfig{Day: testDay})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Len(t, result.CompletedStages, 4)
	assert.Equal(t, 0, result.Evaluated)
	assert.Empty(t, result.Alerts)
	assert.Empty(t, result.Contribution)
}

func TestRunLoadCandidatesError(t *testing.T) {
	candidates := &fakeCandidates{listErr: errors.New("connection refused")}
	d := newTestDaily(candidates, seedSnapshots(), &fakeAlertStore{}, &fakeCollector{})

	_, err := d.Run(context.Background(), RunConfig{Day: testDay})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load candidates failed")
}

func TestRunPersistTransitionErrorAborts(t *testing.T) {
	candidates := seedCandidates()
	candidates.txErr = errors.New("tx rollback")
	d := newTestDaily(candidates, seedSnapshots(), &fakeAlertStore{}, &fakeCollector{})

	result, err := d.Run(context.Background(), RunConfig{Day: testDay})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "evaluate stage failed")
	assert.Equal(t, []string{"collect"}, result.CompletedStages)
}

func TestDayBoundary(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// UTC 2026-03-13 16:30 = KST 2026-03-14 01:30
	now := time.Date(2026, 3, 13, 16, 30, 0, 0, time.UTC)
	day := DayBoundary(now, seoul)

	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, seoul), day)
	assert.Equal(t, "2026-03-14", day.Format("2006-01-02"))
}

func TestGenerateRunID(t *testing.T) {
	now := time.Date(2026, 3, 14, 2, 30, 45, 0, time.UTC)
	assert.Equal(t, "run_20260314_023045", GenerateRunID(now))
}
