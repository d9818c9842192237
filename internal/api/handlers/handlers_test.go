package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/keyrank/internal/budget"
	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/contribution"
	"github.com/wonny/keyrank/internal/trackerconfig"
	"github.com/wonny/keyrank/pkg/config"
	"github.com/wonny/keyrank/pkg/logger"
	"github.com/wonny/keyrank/pkg/redis"
)

// --- fakes ---

type fakeAlerts struct {
	alerts    []contracts.RankAlert
	lastLimit int
	marked    []int64
	markErr   error
	listErr   error
}

func (f *fakeAlerts) Save(ctx context.Context, alert *contracts.RankAlert) error {
	f.alerts = append(f.alerts, *alert)
	return nil
}

func (f *fakeAlerts) ListUnread(ctx context.Context, limit int) ([]contracts.RankAlert, error) {
	f.lastLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit > len(f.alerts) {
		limit = len(f.alerts)
	}
	return f.alerts[:limit], nil
}

func (f *fakeAlerts) MarkRead(ctx context.Context, id int64) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, id)
	return nil
}

type fakeCandidates struct {
	candidates   []contracts.KeywordCandidate
	lastStatuses []contracts.Status
}

func (f *fakeCandidates) GetByID(ctx context.Context, id int64) (*contracts.KeywordCandidate, error) {
	for i := range f.candidates {
		if f.candidates[i].ID == id {
			c := f.candidates[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("candidate %d: %w", id, contracts.ErrNotFound)
}

func (f *fakeCandidates) GetByPair(ctx context.Context, productID, keyword string) (*contracts.KeywordCandidate, error) {
	for i := range f.candidates {
		if f.candidates[i].ProductID == productID && f.candidates[i].Keyword == keyword {
			c := f.candidates[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("candidate for %s/%s: %w", productID, keyword, contracts.ErrNotFound)
}

func (f *fakeCandidates) ListByStatus(ctx context.Context, statuses ...contracts.Status) ([]contracts.KeywordCandidate, error) {
	f.lastStatuses = statuses
	wanted := make(map[contracts.Status]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}
	matched := make([]contracts.KeywordCandidate, 0)
	for _, c := range f.candidates {
		if wanted[c.Status] {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

func (f *fakeCandidates) ListRankDriven(ctx context.Context) ([]contracts.KeywordCandidate, error) {
	return f.ListByStatus(ctx, contracts.StatusTesting, contracts.StatusActive, contracts.StatusWarning)
}

func (f *fakeCandidates) Create(ctx context.Context, c *contracts.KeywordCandidate) error {
	f.candidates = append(f.candidates, *c)
	return nil
}

func (f *fakeCandidates) Update(ctx context.Context, c *contracts.KeywordCandidate) error {
	return nil
}

func (f *fakeCandidates) UpdateWithTransition(ctx context.Context, c *contracts.KeywordCandidate, tr *contracts.LifecycleTransition) error {
	return nil
}

type fakeTransitions struct {
	transitions []contracts.LifecycleTransition
	lastID      int64
	lastLimit   int
}

func (f *fakeTransitions) ListByCandidate(ctx context.Context, candidateID int64, limit int) ([]contracts.LifecycleTransition, error) {
	f.lastID = candidateID
	f.lastLimit = limit
	matched := make([]contracts.LifecycleTransition, 0)
	for _, tr := range f.transitions {
		if tr.CandidateID == candidateID {
			matched = append(matched, tr)
		}
	}
	return matched, nil
}

type fakeSnapshots struct {
	snapshots []contracts.RankSnapshot
	lastFrom  time.Time
	lastTo    time.Time
}

func (f *fakeSnapshots) Save(ctx context.Context, snap *contracts.RankSnapshot) error {
	f.snapshots = append(f.snapshots, *snap)
	return nil
}

func (f *fakeSnapshots) LatestOnDay(ctx context.Context, productID string, day time.Time) ([]contracts.RankSnapshot, error) {
	return nil, nil
}

func (f *fakeSnapshots) History(ctx context.Context, productID, keyword string, from, to time.Time) ([]contracts.RankSnapshot, error) {
	f.lastFrom = from
	f.lastTo = to
	matched := make([]contracts.RankSnapshot, 0)
	for _, s := range f.snapshots {
		if s.ProductID == productID && s.Keyword == keyword {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

type fakeBudgetRepo struct {
	used int
}

func (f *fakeBudgetRepo) UsedOn(ctx context.Context, date time.Time) (int, error) {
	return f.used, nil
}

func (f *fakeBudgetRepo) TryAdd(ctx context.Context, date time.Time, n, limit int) (int, bool, error) {
	if f.used+n > limit {
		return f.used, false, nil
	}
	f.used += n
	return f.used, true, nil
}

// --- helpers ---

// noCache returns a pass-through cache backed by a disabled redis client.
func noCache(t *testing.T) *redis.Cache {
	t.Helper()
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)
	return redis.NewCache(client, "test")
}

func intPtr(n int) *int { return &n }

func testAnalyzer() *contribution.Analyzer {
	cfg := &trackerconfig.Config{}
	cfg.Tracking.TopN = 40
	cfg.Contribution.VolumeWeight = 0.4
	cfg.Contribution.RankWeight = 0.4
	cfg.Contribution.StabilityWeight = 0.2
	return contribution.NewAnalyzer(cfg, zerolog.Nop())
}

// --- alert endpoints ---

func TestListUnreadAlerts(t *testing.T) {
	fake := &fakeAlerts{
		alerts: []contracts.RankAlert{
			{ID: 1, ProductID: "82512345678", Keyword: "무선 이어폰", AlertType: contracts.AlertSurge, ChangeAmount: 12},
			{ID: 2, ProductID: "82512345678", Keyword: "블루투스 스피커", AlertType: contracts.AlertExit, ChangeAmount: -31},
		},
	}
	h := NewAlertHandler(fake, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?limit=5", nil)
	rec := httptest.NewRecorder()
	h.ListUnread(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, fake.lastLimit)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Count  int                   `json:"count"`
			Alerts []contracts.RankAlert `json:"alerts"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Data.Count)
	require.Len(t, body.Data.Alerts, 2)
	assert.Equal(t, contracts.AlertSurge, body.Data.Alerts[0].AlertType)
	assert.Equal(t, "무선 이어폰", body.Data.Alerts[0].Keyword)
}

func TestListUnreadAlertsLimitHandling(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantLimit int
	}{
		{"기본값 50", "", http.StatusOK, 50},
		{"상한 200으로 클램프", "?limit=999", http.StatusOK, 200},
		{"숫자 아님", "?limit=abc", http.StatusBadRequest, 0},
		{"0 거부", "?limit=0", http.StatusBadRequest, 0},
		{"음수 거부", "?limit=-3", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAlerts{}
			h := NewAlertHandler(fake, logger.Nop())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts"+tt.query, nil)
			rec := httptest.NewRecorder()
			h.ListUnread(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantLimit, fake.lastLimit)
			}
		})
	}
}

func TestMarkAlertRead(t *testing.T) {
	fake := &fakeAlerts{}
	h := NewAlertHandler(fake, logger.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/7/read", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "7"})
	rec := httptest.NewRecorder()
	h.MarkRead(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{7}, fake.marked)
}

func TestMarkAlertReadNotFound(t *testing.T) {
	fake := &fakeAlerts{markErr: fmt.Errorf("alert 99: %w", contracts.ErrNotFound)}
	h := NewAlertHandler(fake, logger.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/99/read", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "99"})
	rec := httptest.NewRecorder()
	h.MarkRead(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkAlertReadInvalidID(t *testing.T) {
	h := NewAlertHandler(&fakeAlerts{}, logger.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/abc/read", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "abc"})
	rec := httptest.NewRecorder()
	h.MarkRead(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- candidate endpoints ---

func TestListCandidatesByStatus(t *testing.T) {
	fake := &fakeCandidates{
		candidates: []contracts.KeywordCandidate{
			{ID: 1, ProductID: "82512345678", Keyword: "무선 이어폰", Status: contracts.StatusActive},
			{ID: 2, ProductID: "82512345678", Keyword: "노이즈캔슬링", Status: contracts.StatusWarning},
			{ID: 3, ProductID: "82512345678", Keyword: "가성비 이어폰", Status: contracts.StatusRetired},
		},
	}
	h := NewCandidateHandler(fake, &fakeTransitions{}, noCache(t), logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/candidates?status=active,warning", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []contracts.Status{contracts.StatusActive, contracts.StatusWarning}, fake.lastStatuses)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Count      int                          `json:"count"`
			Candidates []contracts.KeywordCandidate `json:"candidates"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Data.Count)
}

func TestListCandidatesDefaultsToAllStatuses(t *testing.T) {
	fake := &fakeCandidates{}
	h := NewCandidateHandler(fake, &fakeTransitions{}, noCache(t), logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/candidates", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contracts.AllStatuses(), fake.lastStatuses)
}

func TestListCandidatesRejectsUnknownStatus(t *testing.T) {
	h := NewCandidateHandler(&fakeCandidates{}, &fakeTransitions{}, noCache(t), logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/candidates?status=pending_approval", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCandidate(t *testing.T) {
	fake := &fakeCandidates{
		candidates: []contracts.KeywordCandidate{
			{ID: 42, ProductID: "82512345678", Keyword: "무선 이어폰", Status: contracts.StatusActive, CurrentRank: intPtr(7)},
		},
	}
	h := NewCandidateHandler(fake, &fakeTransitions{}, noCache(t), logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/candidates/42", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "42"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool                       `json:"success"`
		Data    contracts.KeywordCandidate `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, int64(42), body.Data.ID)
	assert.Equal(t, "무선 이어폰", body.Data.Keyword)
	require.NotNil(t, body.Data.CurrentRank)
	assert.Equal(t, 7, *body.Data.CurrentRank)
}

func TestGetCandidateNotFound(t *testing.T) {
	h := NewCandidateHandler(&fakeCandidates{}, &fakeTransitions{}, noCache(t), logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/candidates/404", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "404"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTransitions(t *testing.T) {
	fake := &fakeTransitions{
		transitions: []contracts.LifecycleTransition{
			{ID: 10, CandidateID: 42, FromStatus: contracts.StatusTesting, ToStatus: contracts.StatusActive, Reason: "연속 3일 상위 40위 유지 (테스트 통과)"},
			{ID: 9, CandidateID: 42, FromStatus: contracts.StatusCandidate, ToStatus: contracts.StatusTesting, Reason: "노출 테스트 시작"},
		},
	}
	h := NewCandidateHandler(&fakeCandidates{}, fake, noCache(t), logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/candidates/42/transitions?limit=10", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "42"})
	rec := httptest.NewRecorder()
	h.ListTransitions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), fake.lastID)
	assert.Equal(t, 10, fake.lastLimit)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			CandidateID int64                           `json:"candidate_id"`
			Count       int                             `json:"count"`
			Transitions []contracts.LifecycleTransition `json:"transitions"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Data.Count)
	assert.Equal(t, contracts.StatusActive, body.Data.Transitions[0].ToStatus)
}

// --- contribution endpoint ---

func TestContributionReport(t *testing.T) {
	fake := &fakeCandidates{
		candidates: []contracts.KeywordCandidate{
			// 리포트 대상 상품: active 1위 + warning 1건
			{ID: 1, ProductID: "82512345678", Keyword: "무선 이어폰", Status: contracts.StatusActive,
				MonthlySearchVolume: 12000, CurrentRank: intPtr(5), DaysInTopN: 14, ConsecutiveDaysInTopN: 7},
			{ID: 2, ProductID: "82512345678", Keyword: "가성비 이어폰", Status: contracts.StatusWarning,
				MonthlySearchVolume: 800, CurrentRank: nil, DaysInTopN: 7, ConsecutiveDaysInTopN: 0},
			// 분석기가 거르는 상태
			{ID: 3, ProductID: "82512345678", Keyword: "통화용 이어폰", Status: contracts.StatusTesting,
				MonthlySearchVolume: 30000, CurrentRank: intPtr(1)},
			// 다른 상품
			{ID: 4, ProductID: "82599999999", Keyword: "캠핑 의자", Status: contracts.StatusActive,
				MonthlySearchVolume: 50000, CurrentRank: intPtr(2), DaysInTopN: 30, ConsecutiveDaysInTopN: 14},
		},
	}
	h := NewContributionHandler(fake, testAnalyzer(), noCache(t), logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/82512345678/contribution", nil)
	req = mux.SetURLVars(req, map[string]string{"productID": "82512345678"})
	rec := httptest.NewRecorder()
	h.GetReport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool               `json:"success"`
		Data    ContributionReport `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	assert.Equal(t, "82512345678", body.Data.ProductID)
	require.Equal(t, 2, body.Data.Count)

	// 상품 내부 정규화: 1위 키워드 = 100
	top := body.Data.Entries[0]
	assert.Equal(t, int64(1), top.CandidateID)
	assert.Equal(t, 1, top.Rank)
	assert.InDelta(t, 36.0, top.RawScore, 1e-9)
	assert.InDelta(t, 100.0, top.NormalizedScore, 1e-9)

	second := body.Data.Entries[1]
	assert.Equal(t, int64(2), second.CandidateID)
	assert.Equal(t, 2, second.Rank)
	assert.InDelta(t, 7.0, second.RawScore, 1e-9)
	assert.InDelta(t, 100.0*7.0/36.0, second.NormalizedScore, 1e-9)
}

func TestContributionReportEmptyProduct(t *testing.T) {
	h := NewContributionHandler(&fakeCandidates{}, testAnalyzer(), noCache(t), logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/82500000000/contribution", nil)
	req = mux.SetURLVars(req, map[string]string{"productID": "82500000000"})
	rec := httptest.NewRecorder()
	h.GetReport(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool               `json:"success"`
		Data    ContributionReport `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 0, body.Data.Count)
	assert.Empty(t, body.Data.Entries)
}

// --- budget endpoint ---

func TestBudgetStatus(t *testing.T) {
	tracker := budget.NewTracker(&fakeBudgetRepo{used: 37}, 100, time.UTC, zerolog.Nop())
	h := NewBudgetHandler(tracker, noCache(t), time.UTC, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/budget", nil)
	rec := httptest.NewRecorder()
	h.GetStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool          `json:"success"`
		Data    budget.Status `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 100, body.Data.Limit)
	assert.Equal(t, 37, body.Data.Used)
	assert.Equal(t, 63, body.Data.Remaining)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), body.Data.Date)
}

// --- history endpoint ---

func TestHistory(t *testing.T) {
	fake := &fakeSnapshots{
		snapshots: []contracts.RankSnapshot{
			{ID: 1, ProductID: "82512345678", Keyword: "무선 이어폰", Rank: intPtr(12)},
			{ID: 2, ProductID: "82512345678", Keyword: "무선 이어폰", Rank: nil},
			{ID: 3, ProductID: "82512345678", Keyword: "블루투스 스피커", Rank: intPtr(3)},
		},
	}
	h := NewHistoryHandler(fake, logger.Nop())

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/products/82512345678/keywords/%EB%AC%B4%EC%84%A0%20%EC%9D%B4%EC%96%B4%ED%8F%B0/history?from=2026-08-01&to=2026-08-23", nil)
	req = mux.SetURLVars(req, map[string]string{"productID": "82512345678", "keyword": "무선 이어폰"})
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	// 종료일 포함: 저장소에는 to+1일이 전달된다
	wantFrom := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	wantTo := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	assert.True(t, wantFrom.Equal(fake.lastFrom), "want from %s, got %s", wantFrom, fake.lastFrom)
	assert.True(t, wantTo.Equal(fake.lastTo), "want to %s, got %s", wantTo, fake.lastTo)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			ProductID string                   `json:"product_id"`
			Keyword   string                   `json:"keyword"`
			Count     int                      `json:"count"`
			Snapshots []contracts.RankSnapshot `json:"snapshots"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "무선 이어폰", body.Data.Keyword)
	assert.Equal(t, 2, body.Data.Count)
}

func TestHistoryDefaultRange(t *testing.T) {
	fake := &fakeSnapshots{}
	h := NewHistoryHandler(fake, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/82512345678/keywords/k/history", nil)
	req = mux.SetURLVars(req, map[string]string{"productID": "82512345678", "keyword": "k"})
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, fake.lastFrom.Equal(fake.lastTo.AddDate(0, 0, -30)))
	assert.WithinDuration(t, time.Now(), fake.lastTo, time.Minute)
}

func TestHistoryInvalidDate(t *testing.T) {
	h := NewHistoryHandler(&fakeSnapshots{}, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/p/keywords/k/history?from=08-01-2026", nil)
	req = mux.SetURLVars(req, map[string]string{"productID": "p", "keyword": "k"})
	rec := httptest.NewRecorder()
	h.GetHistory(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
