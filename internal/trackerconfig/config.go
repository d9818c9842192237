package trackerconfig

import "time"

// Config는 키워드 순위 추적 정책의 전체 설정
type Config struct {
	Meta         Meta         `yaml:"meta" json:"meta"`
	Tracking     Tracking     `yaml:"tracking" json:"tracking"`
	Budget       Budget       `yaml:"budget" json:"budget"`
	Alerting     Alerting     `yaml:"alerting" json:"alerting"`
	Lifecycle    Lifecycle    `yaml:"lifecycle" json:"lifecycle"`
	Contribution Contribution `yaml:"contribution" json:"contribution"`
	Schedule     Schedule     `yaml:"schedule" json:"schedule"`
}

// Meta 메타 정보
type Meta struct {
	PolicyID string `yaml:"policy_id" json:"policy_id"`
	Version  string `yaml:"version" json:"version"`
	Timezone string `yaml:"timezone" json:"timezone"`
}

// Tracking 순위 탐색 파라미터
type Tracking struct {
	PageSize         int `yaml:"page_size" json:"page_size"`                     // 페이지당 항목 수 (최대 100)
	MaxPages         int `yaml:"max_pages" json:"max_pages"`                     // 탐색 깊이 (page_size * max_pages 위까지)
	TopN             int `yaml:"top_n" json:"top_n"`                             // 성과 판정 기준 순위
	InterCallDelayMS int `yaml:"inter_call_delay_ms" json:"inter_call_delay_ms"` // 쌍 간 호출 간격
	MaxRetries       int `yaml:"max_retries" json:"max_retries"`                 // 페이지 호출 재시도 횟수
}

// MaxDepth returns the deepest rank the resolver can observe.
func (t Tracking) MaxDepth() int {
	return t.PageSize * t.MaxPages
}

// Budget 일일 API 호출 예산
type Budget struct {
	DailyCallLimit int `yaml:"daily_call_limit" json:"daily_call_limit"`
}

// Alerting 순위 변동 알림 기준
type Alerting struct {
	SurgeDropThreshold int `yaml:"surge_drop_threshold" json:"surge_drop_threshold"` // SURGE/DROP 판정 변동폭
}

// Lifecycle 키워드 생애주기 판정 기준
//
// warning → retired 자동 전이 기준은 의도적으로 없다. 원 정책이 미정으로
// 남긴 부분이라 수동 retire만 지원한다.
type Lifecycle struct {
	SuccessDays     int `yaml:"success_days" json:"success_days"`           // 테스트 통과에 필요한 연속 상위권 일수
	TestTimeoutDays int `yaml:"test_timeout_days" json:"test_timeout_days"` // 테스트 최대 기간
}

// Contribution 기여도 점수 가중치 (합 = 1.0)
type Contribution struct {
	VolumeWeight    float64 `yaml:"volume_weight" json:"volume_weight"`
	RankWeight      float64 `yaml:"rank_weight" json:"rank_weight"`
	StabilityWeight float64 `yaml:"stability_weight" json:"stability_weight"`
}

// Weights returns the weights as a slice for sum validation.
func (c Contribution) Weights() []float64 {
	return []float64{c.VolumeWeight, c.RankWeight, c.StabilityWeight}
}

// Schedule 일일 배치 실행 시각
type Schedule struct {
	RunTimeLocal string `yaml:"run_time_local" json:"run_time_local"` // HH:MM
}

// PolicySnapshot 정책 스냅샷 (재현성용)
// 어떤 정책으로 수집이 돌았는지 배치 리포트와 함께 남긴다
type PolicySnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	PolicyID   string    `json:"policy_id"`
	GitCommit  string    `json:"git_commit"`
	CreatedAt  time.Time `json:"created_at"`
}
