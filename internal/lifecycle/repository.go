package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/pkg/database"
)

// Repository handles candidate and transition persistence
// ⭐ SSOT: 후보/전이 저장은 여기서만, 전이는 항상 후보 갱신과 한 트랜잭션
type Repository struct {
	db *database.DB
}

// NewRepository creates a new lifecycle repository
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

const candidateColumns = `
	id, product_id, keyword, status, monthly_search_volume, competition_tier,
	best_rank, current_rank, days_in_top_n, consecutive_days_in_top_n,
	contribution_score, candidate_score, test_started_at, test_ended_at,
	test_result, created_at, updated_at`

func scanCandidate(row pgx.Row) (*contracts.KeywordCandidate, error) {
	var c contracts.KeywordCandidate
	var status, tier, result string

	err := row.Scan(
		&c.ID, &c.ProductID, &c.Keyword, &status, &c.MonthlySearchVolume, &tier,
		&c.BestRank, &c.CurrentRank, &c.DaysInTopN, &c.ConsecutiveDaysInTopN,
		&c.ContributionScore, &c.CandidateScore, &c.TestStartedAt, &c.TestEndedAt,
		&result, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = contracts.Status(status)
	c.CompetitionTier = contracts.CompetitionTier(tier)
	c.TestResult = contracts.TestResult(result)
	return &c, nil
}

// GetByID retrieves one candidate.
func (r *Repository) GetByID(ctx context.Context, id int64) (*contracts.KeywordCandidate, error) {
	query := `SELECT ` + candidateColumns + `
		FROM track.keyword_candidates
		WHERE id = $1`

	c, err := scanCandidate(r.db.Pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("candidate %d: %w", id, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}

	return c, nil
}

// GetByPair retrieves the candidate tracking one (product, keyword) pair.
func (r *Repository) GetByPair(ctx context.Context, productID, keyword string) (*contracts.KeywordCandidate, error) {
	query := `SELECT ` + candidateColumns + `
		FROM track.keyword_candidates
		WHERE product_id = $1 AND keyword = $2`

	c, err := scanCandidate(r.db.Pool.QueryRow(ctx, query, productID, keyword))
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("candidate for %s/%s: %w", productID, keyword, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}

	return c, nil
}

// ListByStatus returns candidates in any of the given states,
// 오래 머문 것부터 (updated_at ASC).
func (r *Repository) ListByStatus(ctx context.Context, statuses ...contracts.Status) ([]contracts.KeywordCandidate, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	query := `SELECT ` + candidateColumns + `
		FROM track.keyword_candidates
		WHERE status = ANY($1)
		ORDER BY updated_at ASC, id ASC`

	rows, err := r.db.Pool.Query(ctx, query, names)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]contracts.KeywordCandidate, 0)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}

	return candidates, nil
}

// ListRankDriven returns the candidates the daily batch tracks.
func (r *Repository) ListRankDriven(ctx context.Context) ([]contracts.KeywordCandidate, error) {
	return r.ListByStatus(ctx, contracts.StatusTesting, contracts.StatusActive, contracts.StatusWarning)
}

// Create inserts a new candidate and fills in generated fields.
func (r *Repository) Create(ctx context.Context, c *contracts.KeywordCandidate) error {
	if c.Status == "" {
		c.Status = contracts.StatusCandidate
	}
	if c.CompetitionTier == "" {
		c.CompetitionTier = contracts.TierMedium
	}

	query := `
		INSERT INTO track.keyword_candidates (
			product_id, keyword, status, monthly_search_volume, competition_tier,
			best_rank, current_rank, days_in_top_n, consecutive_days_in_top_n,
			contribution_score, candidate_score, test_started_at, test_ended_at, test_result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		c.ProductID, c.Keyword, string(c.Status), c.MonthlySearchVolume, string(c.CompetitionTier),
		c.BestRank, c.CurrentRank, c.DaysInTopN, c.ConsecutiveDaysInTopN,
		c.ContributionScore, c.CandidateScore, c.TestStartedAt, c.TestEndedAt, string(c.TestResult),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create candidate: %w", err)
	}

	return nil
}

const updateCandidateSQL = `
	UPDATE track.keyword_candidates SET
		status = $2,
		best_rank = $3,
		current_rank = $4,
		days_in_top_n = $5,
		consecutive_days_in_top_n = $6,
		contribution_score = $7,
		candidate_score = $8,
		test_started_at = $9,
		test_ended_at = $10,
		test_result = $11,
		updated_at = $12
	WHERE id = $1`

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// updateCandidate writes the fields this core owns. product/keyword와
// 업스트림 메타데이터(검색량, 경쟁 강도)는 건드리지 않는다.
func updateCandidate(ctx context.Context, ex execer, c *contracts.KeywordCandidate) error {
	tag, err := ex.Exec(ctx, updateCandidateSQL,
		c.ID, string(c.Status), c.BestRank, c.CurrentRank,
		c.DaysInTopN, c.ConsecutiveDaysInTopN,
		c.ContributionScore, c.CandidateScore,
		c.TestStartedAt, c.TestEndedAt, string(c.TestResult), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("candidate %d: %w", c.ID, contracts.ErrNotFound)
	}
	return nil
}

// Update persists a metrics-only candidate update (no state change).
func (r *Repository) Update(ctx context.Context, c *contracts.KeywordCandidate) error {
	return updateCandidate(ctx, r.db.Pool, c)
}

// UpdateWithTransition persists a candidate update together with its
// transition record in one transaction.
func (r *Repository) UpdateWithTransition(ctx context.Context, c *contracts.KeywordCandidate, tr *contracts.LifecycleTransition) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := updateCandidate(ctx, tx, c); err != nil {
			return err
		}

		metricsJSON, err := json.Marshal(tr.Metrics)
		if err != nil {
			return fmt.Errorf("failed to marshal transition metrics: %w", err)
		}

		query := `
			INSERT INTO track.lifecycle_transitions (
				candidate_id, from_status, to_status, reason, metrics, created_at
			) VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`

		err = tx.QueryRow(ctx, query,
			tr.CandidateID, string(tr.FromStatus), string(tr.ToStatus),
			tr.Reason, metricsJSON, tr.CreatedAt,
		).Scan(&tr.ID)
		if err != nil {
			return fmt.Errorf("failed to save transition: %w", err)
		}

		return nil
	})
}

// ListByCandidate returns a candidate's transition history, newest first.
func (r *Repository) ListByCandidate(ctx context.Context, candidateID int64, limit int) ([]contracts.LifecycleTransition, error) {
	query := `
		SELECT id, candidate_id, from_status, to_status, reason, metrics, created_at
		FROM track.lifecycle_transitions
		WHERE candidate_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, candidateID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	trs := make([]contracts.LifecycleTransition, 0)
	for rows.Next() {
		var tr contracts.LifecycleTransition
		var from, to string
		var metricsJSON []byte

		if err := rows.Scan(&tr.ID, &tr.CandidateID, &from, &to, &tr.Reason, &metricsJSON, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.FromStatus = contracts.Status(from)
		tr.ToStatus = contracts.Status(to)
		if err := json.Unmarshal(metricsJSON, &tr.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transition metrics: %w", err)
		}

		trs = append(trs, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}

	return trs, nil
}
