package contracts

import "time"

// AlertType classifies a day-over-day rank transition
// ⭐ SSOT: 알림 분류는 이 enum + Classify로만
type AlertType string

const (
	// AlertEnter 추적 범위 밖 → 안 (신규 노출)
	AlertEnter AlertType = "ENTER"

	// AlertExit 추적 범위 안 → 밖 (노출 이탈)
	AlertExit AlertType = "EXIT"

	// AlertSurge 순위가 임계값 이상 상승
	AlertSurge AlertType = "SURGE"

	// AlertDrop 순위가 임계값 이상 하락
	AlertDrop AlertType = "DROP"
)

// Valid checks if the alert type is known.
func (t AlertType) Valid() bool {
	switch t {
	case AlertEnter, AlertExit, AlertSurge, AlertDrop:
		return true
	}
	return false
}

// RankAlert is a derived, immutable fact about a classified rank change.
// Read 플래그만 다운스트림(대시보드)이 뒤집을 수 있다.
type RankAlert struct {
	ID           int64     `json:"id"`
	ProductID    string    `json:"product_id"`
	Keyword      string    `json:"keyword"`
	PrevRank     *int      `json:"prev_rank,omitempty"`
	CurrRank     *int      `json:"curr_rank,omitempty"`
	ChangeAmount int       `json:"change_amount"`
	AlertType    AlertType `json:"alert_type"`
	Read         bool      `json:"read"`
	CreatedAt    time.Time `json:"created_at"`
}

// Classify applies the alert rules to a (prev, curr) rank pair. Returns the
// alert type, the change amount, and whether a rule fired at all.
//
// 분류 순서 고정:
//  1. prev=nil, curr!=nil → ENTER, change=curr
//  2. prev!=nil, curr=nil → EXIT,  change=-prev
//  3. 둘 다 nil → 알림 없음
//  4. 둘 다 값 → delta=prev-curr (양수=상승);
//     delta >= threshold → SURGE, delta <= -threshold → DROP, 그 외 없음
func Classify(prev, curr *int, threshold int) (AlertType, int, bool) {
	switch {
	case prev == nil && curr != nil:
		return AlertEnter, *curr, true
	case prev != nil && curr == nil:
		return AlertExit, -*prev, true
	case prev == nil && curr == nil:
		return "", 0, false
	}

	delta := *prev - *curr
	switch {
	case delta >= threshold:
		return AlertSurge, delta, true
	case delta <= -threshold:
		return AlertDrop, delta, true
	}
	return "", 0, false
}
