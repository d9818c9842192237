package budget

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps the call ledger in memory.
// DB 없이 도는 단위 테스트와 드라이런에서 사용
type MemoryRepository struct {
	mu   sync.Mutex
	used map[string]int
}

// NewMemoryRepository creates an empty in-memory ledger.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{used: make(map[string]int)}
}

func (r *MemoryRepository) key(date time.Time) string {
	return date.Format("2006-01-02")
}

// UsedOn returns calls recorded for the given date.
func (r *MemoryRepository) UsedOn(_ context.Context, date time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used[r.key(date)], nil
}

// TryAdd atomically adds n calls if the total stays within limit.
func (r *MemoryRepository) TryAdd(_ context.Context, date time.Time, n, limit int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.key(date)
	if r.used[key]+n > limit {
		return r.used[key], false, nil
	}

	r.used[key] += n
	return r.used[key], true, nil
}
