package alert

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/keyrank/internal/contracts"
)

// Repository handles rank alert persistence
// ⭐ SSOT: 알림 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new alert repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save inserts one alert and fills in its generated id.
func (r *Repository) Save(ctx context.Context, alert *contracts.RankAlert) error {
	query := `
		INSERT INTO track.rank_alerts (
			product_id, keyword, alert_type, prev_rank, curr_rank, change_amount, read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.pool.QueryRow(ctx, query,
		alert.ProductID, alert.Keyword, string(alert.AlertType),
		alert.PrevRank, alert.CurrRank, alert.ChangeAmount,
		alert.Read, alert.CreatedAt,
	).Scan(&alert.ID)

	if err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}

	return nil
}

// ListUnread returns unread alerts, newest first.
func (r *Repository) ListUnread(ctx context.Context, limit int) ([]contracts.RankAlert, error) {
	query := `
		SELECT id, product_id, keyword, alert_type, prev_rank, curr_rank, change_amount, read, created_at
		FROM track.rank_alerts
		WHERE read = FALSE
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unread alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]contracts.RankAlert, 0)
	for rows.Next() {
		var a contracts.RankAlert
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Keyword, &a.AlertType,
			&a.PrevRank, &a.CurrRank, &a.ChangeAmount, &a.Read, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// MarkRead flips the read flag of one alert. 알림의 유일한 가변 필드다.
func (r *Repository) MarkRead(ctx context.Context, id int64) error {
	query := `UPDATE track.rank_alerts SET read = TRUE WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %d: %w", id, contracts.ErrNotFound)
	}

	return nil
}
