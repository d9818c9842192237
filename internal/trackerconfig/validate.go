package trackerconfig

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.PolicyID == "" {
		return ValidationError{"meta.policy_id", "required"}
	}
	if cfg.Meta.Timezone == "" {
		return ValidationError{"meta.timezone", "required"}
	}

	// === Tracking ===
	if cfg.Tracking.PageSize <= 0 || cfg.Tracking.PageSize > 100 {
		return ValidationError{"tracking.page_size", "must be in (0, 100]"}
	}
	if cfg.Tracking.MaxPages < 1 {
		return ValidationError{"tracking.max_pages", "must be >= 1"}
	}
	if cfg.Tracking.TopN < 1 || cfg.Tracking.TopN > cfg.Tracking.MaxDepth() {
		return ValidationError{"tracking.top_n", fmt.Sprintf("must be in [1, %d]", cfg.Tracking.MaxDepth())}
	}
	if cfg.Tracking.InterCallDelayMS < 0 {
		return ValidationError{"tracking.inter_call_delay_ms", "must be >= 0"}
	}
	if cfg.Tracking.MaxRetries < 0 || cfg.Tracking.MaxRetries > 10 {
		return ValidationError{"tracking.max_retries", "must be in [0, 10]"}
	}

	// === Budget ===
	if cfg.Budget.DailyCallLimit < 0 {
		return ValidationError{"budget.daily_call_limit", "must be >= 0"}
	}

	// === Alerting ===
	if cfg.Alerting.SurgeDropThreshold < 1 {
		return ValidationError{"alerting.surge_drop_threshold", "must be >= 1"}
	}

	// === Lifecycle ===
	if cfg.Lifecycle.SuccessDays < 1 {
		return ValidationError{"lifecycle.success_days", "must be >= 1"}
	}
	if cfg.Lifecycle.TestTimeoutDays < cfg.Lifecycle.SuccessDays {
		return ValidationError{"lifecycle.test_timeout_days", "must be >= success_days"}
	}

	// === Contribution ===
	if err := validateWeightsSum(cfg.Contribution.Weights(), 1.0, 1e-6); err != nil {
		return ValidationError{"contribution", err.Error()}
	}

	// === Schedule ===
	if err := validateHHMM(cfg.Schedule.RunTimeLocal); err != nil {
		return ValidationError{"schedule.run_time_local", err.Error()}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 한 쌍 전체 탐색에 max_pages 호출이 든다
	// 예산이 10쌍치 미만이면 하루에 추적 가능한 쌍 수가 너무 적음
	if cfg.Budget.DailyCallLimit > 0 && cfg.Budget.DailyCallLimit < cfg.Tracking.MaxPages*10 {
		warnings = append(warnings, Warning{
			Code:    "LOW_BUDGET",
			Message: "일일 예산이 작아 추적 가능한 키워드 수가 크게 제한됨",
		})
	}

	// 페이지 크기가 작으면 같은 깊이에 더 많은 호출이 필요
	if cfg.Tracking.PageSize < 100 {
		warnings = append(warnings, Warning{
			Code:    "SMALL_PAGE_SIZE",
			Message: "page_size < 100: 같은 탐색 깊이에 더 많은 API 호출 소모",
		})
	}

	// 변동폭 기준이 너무 낮으면 알림 노이즈 증가
	if cfg.Alerting.SurgeDropThreshold < 5 {
		warnings = append(warnings, Warning{
			Code:    "NOISY_ALERTS",
			Message: "surge_drop_threshold < 5: 일상적 변동에도 알림 발생 우려",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateHHMM(s string) error {
	re := regexp.MustCompile(`^\d{2}:\d{2}$`)
	if !re.MatchString(s) {
		return errors.New("must be HH:MM format")
	}
	_, err := time.Parse("15:04", s)
	return err
}

func validateWeightsSum(weights []float64, target float64, epsilon float64) error {
	if len(weights) == 0 {
		return errors.New("must not be empty")
	}
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-target) > epsilon {
		return fmt.Errorf("must sum to %.2f, got %.4f", target, sum)
	}
	return nil
}
