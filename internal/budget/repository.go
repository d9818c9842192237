package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository persists the call ledger in track.api_usage
// ⭐ SSOT: 호출 장부 저장/조회는 여기서만
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new budget repository
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// UsedOn returns calls recorded for the given date.
func (r *PgRepository) UsedOn(ctx context.Context, date time.Time) (int, error) {
	query := `
		SELECT calls_used
		FROM track.api_usage
		WHERE usage_date = $1
	`

	var used int
	err := r.pool.QueryRow(ctx, query, date.Format("2006-01-02")).Scan(&used)

	if err == pgx.ErrNoRows {
		return 0, nil // 오늘 첫 조회
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read api usage: %w", err)
	}

	return used, nil
}

// TryAdd atomically adds n calls if the total stays within limit.
// 동시 실행에도 안전하도록 guard 조건을 UPDATE에 포함한다
func (r *PgRepository) TryAdd(ctx context.Context, date time.Time, n, limit int) (int, bool, error) {
	query := `
		INSERT INTO track.api_usage (usage_date, calls_used, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (usage_date) DO UPDATE SET
			calls_used = track.api_usage.calls_used + $2,
			updated_at = now()
		WHERE track.api_usage.calls_used + $2 <= $3
		RETURNING calls_used
	`

	var total int
	err := r.pool.QueryRow(ctx, query, date.Format("2006-01-02"), n, limit).Scan(&total)

	if err == pgx.ErrNoRows {
		// guard 조건 불충족: 예산 초과
		used, readErr := r.UsedOn(ctx, date)
		if readErr != nil {
			return 0, false, readErr
		}
		return used, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to add api usage: %w", err)
	}

	return total, true, nil
}
