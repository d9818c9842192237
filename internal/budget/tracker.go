// Package budget enforces the daily API call budget.
//
// 하루치 호출 장부는 DB에 남아 재시작해도 줄어든 예산이 유지된다.
// 예약(Reserve)은 호출 전에 이루어지며, 실패한 호출도 예약분은 소모된 것으로 본다.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/metrics"
)

// Repository persists daily call usage.
type Repository interface {
	// UsedOn returns calls already recorded for the given date.
	UsedOn(ctx context.Context, date time.Time) (int, error)
	// TryAdd atomically adds n calls for the date if the total stays
	// within limit. Returns the new total and whether the add happened.
	TryAdd(ctx context.Context, date time.Time, n, limit int) (int, bool, error)
}

// Tracker hands out slices of the daily call budget.
// ⭐ SSOT: 일일 예산 판정은 이 타입을 통해서만
type Tracker struct {
	repo  Repository
	limit int
	loc   *time.Location
	log   zerolog.Logger
}

// NewTracker creates a budget tracker for the given daily limit.
// loc determines when "today" rolls over (정책 타임존 기준).
func NewTracker(repo Repository, dailyLimit int, loc *time.Location, log zerolog.Logger) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		repo:  repo,
		limit: dailyLimit,
		loc:   loc,
		log:   log.With().Str("component", "budget.tracker").Logger(),
	}
}

// Limit returns the configured daily call limit.
func (t *Tracker) Limit() int {
	return t.limit
}

// today returns the current date in the tracker's timezone.
func (t *Tracker) today() time.Time {
	now := time.Now().In(t.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, t.loc)
}

// Reserve claims n calls from today's budget before they are spent.
// 예산이 모자라면 ErrBudgetExhausted를 반환하고 장부는 바뀌지 않는다
func (t *Tracker) Reserve(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	if n > t.limit {
		return fmt.Errorf("reserve %d of %d: %w", n, t.limit, contracts.ErrBudgetExhausted)
	}

	total, ok, err := t.repo.TryAdd(ctx, t.today(), n, t.limit)
	if err != nil {
		return fmt.Errorf("reserve %d calls: %w", n, err)
	}
	if !ok {
		t.log.Warn().
			Int("requested", n).
			Int("limit", t.limit).
			Msg("daily call budget exhausted")
		return fmt.Errorf("reserve %d of %d: %w", n, t.limit, contracts.ErrBudgetExhausted)
	}

	metrics.SetBudgetRemaining(t.limit - total)
	t.log.Debug().
		Int("reserved", n).
		Int("used", total).
		Int("remaining", t.limit-total).
		Msg("budget reserved")

	return nil
}

// Remaining returns how many calls are left today.
func (t *Tracker) Remaining(ctx context.Context) (int, error) {
	used, err := t.repo.UsedOn(ctx, t.today())
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}

	remaining := t.limit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Status is a point-in-time view of today's budget.
type Status struct {
	Date      string `json:"date"`
	Limit     int    `json:"limit"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

// Status reports today's budget consumption.
func (t *Tracker) Status(ctx context.Context) (*Status, error) {
	today := t.today()
	used, err := t.repo.UsedOn(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("read usage: %w", err)
	}

	remaining := t.limit - used
	if remaining < 0 {
		remaining = 0
	}

	return &Status{
		Date:      today.Format("2006-01-02"),
		Limit:     t.limit,
		Used:      used,
		Remaining: remaining,
	}, nil
}
