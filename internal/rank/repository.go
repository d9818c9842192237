package rank

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/keyrank/internal/contracts"
)

// Repository handles rank snapshot persistence
// ⭐ SSOT: 순위 스냅샷 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new rank snapshot repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save appends one snapshot and fills in its generated id.
func (r *Repository) Save(ctx context.Context, snap *contracts.RankSnapshot) error {
	query := `
		INSERT INTO track.rank_snapshots (
			product_id, keyword, rank, api_calls_used, checked_at
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		snap.ProductID, snap.Keyword, snap.Rank, snap.APICallsUsed, snap.CheckedAt,
	).Scan(&snap.ID)

	if err != nil {
		return fmt.Errorf("failed to save rank snapshot: %w", err)
	}

	return nil
}

// LatestOnDay returns the latest snapshot per keyword for one product on
// the calendar day starting at day. day는 정책 타임존 기준 자정이어야 한다.
// 같은 날 재실행으로 스냅샷이 여러 개여도 항상 마지막 측정값 하나만 쓴다.
func (r *Repository) LatestOnDay(ctx context.Context, productID string, day time.Time) ([]contracts.RankSnapshot, error) {
	query := `
		SELECT DISTINCT ON (keyword)
			id, product_id, keyword, rank, api_calls_used, checked_at
		FROM track.rank_snapshots
		WHERE product_id = $1
		  AND checked_at >= $2
		  AND checked_at < $2 + interval '1 day'
		ORDER BY keyword, checked_at DESC
	`

	rows, err := r.pool.Query(ctx, query, productID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]contracts.RankSnapshot, 0)
	for rows.Next() {
		var s contracts.RankSnapshot
		if err := rows.Scan(&s.ID, &s.ProductID, &s.Keyword, &s.Rank, &s.APICallsUsed, &s.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snapshots, nil
}

// History returns snapshots for one pair in [from, to), oldest first.
func (r *Repository) History(ctx context.Context, productID, keyword string, from, to time.Time) ([]contracts.RankSnapshot, error) {
	query := `
		SELECT id, product_id, keyword, rank, api_calls_used, checked_at
		FROM track.rank_snapshots
		WHERE product_id = $1
		  AND keyword = $2
		  AND checked_at >= $3
		  AND checked_at < $4
		ORDER BY checked_at ASC
	`

	rows, err := r.pool.Query(ctx, query, productID, keyword, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer rows.Close()

	snapshots := make([]contracts.RankSnapshot, 0)
	for rows.Next() {
		var s contracts.RankSnapshot
		if err := rows.Scan(&s.ID, &s.ProductID, &s.Keyword, &s.Rank, &s.APICallsUsed, &s.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snapshots, nil
}
