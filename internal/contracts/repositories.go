package contracts

import (
	"context"
	"time"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

// CandidateRepository manages keyword candidate records.
// 상태/지표 변경은 state machine과 evaluator의 결과만 저장한다.
type CandidateRepository interface {
	GetByID(ctx context.Context, id int64) (*KeywordCandidate, error)
	GetByPair(ctx context.Context, productID, keyword string) (*KeywordCandidate, error)
	ListByStatus(ctx context.Context, statuses ...Status) ([]KeywordCandidate, error)

	// ListRankDriven returns candidates in testing/active/warning,
	// the set the daily batch tracks.
	ListRankDriven(ctx context.Context) ([]KeywordCandidate, error)

	Create(ctx context.Context, c *KeywordCandidate) error
	Update(ctx context.Context, c *KeywordCandidate) error

	// UpdateWithTransition persists a candidate update together with its
	// transition record in one transaction. 상태 전이는 항상 감사 기록과
	// 같이 커밋된다.
	UpdateWithTransition(ctx context.Context, c *KeywordCandidate, tr *LifecycleTransition) error
}

// SnapshotRepository manages append-only rank snapshots.
type SnapshotRepository interface {
	Save(ctx context.Context, snap *RankSnapshot) error

	// LatestOnDay returns, for one product, the latest snapshot per keyword
	// taken on the calendar day starting at day (자정 기준, 정책 타임존).
	LatestOnDay(ctx context.Context, productID string, day time.Time) ([]RankSnapshot, error)

	History(ctx context.Context, productID, keyword string, from, to time.Time) ([]RankSnapshot, error)
}

// AlertRepository manages rank alerts. 생성 후 read 플래그만 바뀐다.
type AlertRepository interface {
	Save(ctx context.Context, alert *RankAlert) error
	ListUnread(ctx context.Context, limit int) ([]RankAlert, error)
	MarkRead(ctx context.Context, id int64) error
}

// TransitionRepository reads the write-once lifecycle audit log.
// 쓰기는 CandidateRepository.UpdateWithTransition을 통해서만 일어난다.
type TransitionRepository interface {
	ListByCandidate(ctx context.Context, candidateID int64, limit int) ([]LifecycleTransition, error)
}
