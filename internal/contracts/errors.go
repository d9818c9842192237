package contracts

import (
	"errors"
	"fmt"
)

// 에러 분류 체계
//
// ErrRateLimited / ErrServerBusy는 HTTP 클라이언트의 백오프 재시도가 모두
// 소진된 뒤에도 남은 상태를 나타낸다 (429 지수, 5xx 선형).
// ErrBudgetExhausted는 에러가 아닌 정상 조기 종료 신호로, 배치 보고의
// Incomplete=true로 표면화된다. 그 외 API 에러는 즉시 전파 (재시도 없음).
var (
	// ErrRateLimited: 검색 API가 429를 반환
	ErrRateLimited = errors.New("search api rate limited")

	// ErrServerBusy: 검색 API가 5xx를 반환
	ErrServerBusy = errors.New("search api server error")

	// ErrBudgetExhausted: 일일 호출 예산 소진 (정상 종료 신호)
	ErrBudgetExhausted = errors.New("daily call budget exhausted")

	// ErrNotFound: 조회 대상 레코드 없음. ops API가 404로 변환한다.
	ErrNotFound = errors.New("not found")
)

// InvalidTransitionError is returned when a transition function is called on
// a candidate that is not in the required source state. The candidate is
// left unmodified.
type InvalidTransitionError struct {
	CandidateID int64
	From        Status
	To          Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition for candidate %d: %s -> %s",
		e.CandidateID, e.From, e.To)
}

// IsInvalidTransition reports whether err is a state machine rejection.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}

// Retryable reports whether a search API error was of the transient kind.
// 다음 배치에서 같은 쌍을 다시 시도해볼 가치가 있는지 판단할 때 쓴다.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerBusy)
}
