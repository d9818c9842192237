package navershop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/metrics"
)

// Open API 쇼핑 검색 제약: start 1~1000, display 1~100
const (
	// MaxStart is the deepest result offset the API accepts. Rank tracking
	// beyond position MaxStart+MaxDisplay-1 is impossible regardless of config.
	MaxStart = 1000

	// MaxDisplay is the largest page size the API accepts.
	MaxDisplay = 100
)

// SearchError is a non-retryable search API failure (auth, bad request)
type SearchError struct {
	StatusCode int
	Code       string // Naver 오류 코드 (SE01, 024 등)
	Message    string
}

func (e *SearchError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("shop search failed: status=%d code=%s %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("shop search failed: status=%d", e.StatusCode)
}

// naverErrorBody is the error payload the Open API returns on failure
type naverErrorBody struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    string `json:"errorCode"`
}

// Search fetches one page of shop search results sorted by relevance.
// start는 1부터 시작하는 결과 오프셋, display는 페이지 크기
// ⭐ SSOT: /v1/search/shop.json 호출은 이 함수에서만
func (c *Client) Search(ctx context.Context, keyword string, start, display int) (*SearchPage, error) {
	if start < 1 || start > MaxStart {
		return nil, fmt.Errorf("search start out of range [1, %d]: %d", MaxStart, start)
	}
	if display < 1 || display > MaxDisplay {
		return nil, fmt.Errorf("search display out of range [1, %d]: %d", MaxDisplay, display)
	}

	params := url.Values{}
	params.Set("query", keyword)
	params.Set("start", strconv.Itoa(start))
	params.Set("display", strconv.Itoa(display))
	params.Set("sort", "sim") // 정확도순, 순위 판정의 기준 정렬

	fullURL := fmt.Sprintf("%s/v1/search/shop.json?%s", c.baseURL, params.Encode())

	headers := map[string]string{
		"X-Naver-Client-Id":     c.clientID,
		"X-Naver-Client-Secret": c.clientSecret,
	}

	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, headers)
	if err != nil {
		metrics.ObserveSearchCall("error")
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.classifyError(resp)
	}
	metrics.ObserveSearchCall("ok")

	var page SearchPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"keyword": keyword,
		"start":   start,
		"display": display,
		"total":   page.Total,
		"items":   len(page.Items),
	}).Debug("Fetched shop search page")

	return &page, nil
}

// classifyError maps a non-200 response to the error taxonomy.
// httputil이 재시도를 끝낸 뒤에도 남은 상태코드를 여기서 분류한다
// 429 → ErrRateLimited, 5xx → ErrServerBusy, 그 외 → SearchError (치명)
func (c *Client) classifyError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload naverErrorBody
	_ = json.Unmarshal(body, &payload)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.ObserveSearchCall("rate_limited")
		return fmt.Errorf("shop search status %d: %w", resp.StatusCode, contracts.ErrRateLimited)
	case resp.StatusCode >= 500:
		metrics.ObserveSearchCall("server_error")
		return fmt.Errorf("shop search status %d: %w", resp.StatusCode, contracts.ErrServerBusy)
	default:
		metrics.ObserveSearchCall("error")
		return &SearchError{
			StatusCode: resp.StatusCode,
			Code:       payload.ErrorCode,
			Message:    payload.ErrorMessage,
		}
	}
}
