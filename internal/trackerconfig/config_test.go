package trackerconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Meta: Meta{
			PolicyID: "test_policy",
			Version:  "1.0.0",
			Timezone: "Asia/Seoul",
		},
		Tracking: Tracking{
			PageSize:         100,
			MaxPages:         10,
			TopN:             40,
			InterCallDelayMS: 400,
			MaxRetries:       3,
		},
		Budget: Budget{
			DailyCallLimit: 25000,
		},
		Alerting: Alerting{
			SurgeDropThreshold: 10,
		},
		Lifecycle: Lifecycle{
			SuccessDays:     3,
			TestTimeoutDays: 14,
		},
		Contribution: Contribution{
			VolumeWeight:    0.4,
			RankWeight:      0.4,
			StabilityWeight: 0.2,
		},
		Schedule: Schedule{
			RunTimeLocal: "06:30",
		},
	}
}

func TestLoad(t *testing.T) {
	// 테스트용 YAML 경로
	path := "../../config/tracker.yaml"

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skip("config file not found")
	}

	cfg, yamlData, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// 기본 검증
	if cfg.Meta.PolicyID == "" {
		t.Error("expected policy_id to be set")
	}

	if cfg.Tracking.PageSize != 100 {
		t.Errorf("expected page_size=100, got %d", cfg.Tracking.PageSize)
	}

	// 해시 생성
	hash, err := Hash(cfg)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(hash))
	}

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(cfg)
	if hash != hash2 {
		t.Error("hash not deterministic")
	}

	t.Logf("config hash: %s", hash)
	t.Logf("yaml size: %d bytes", len(yamlData))
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	yaml := `
meta:
  policy_id: test
  timezone: Asia/Seoul
tracking:
  page_size: 100
  max_pages: 10
  top_n: 40
  unknown_knob: 1
`
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	_, _, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "unknown_knob") && !strings.Contains(err.Error(), "not found") {
		t.Logf("error: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "missing policy_id",
			mutate: func(c *Config) { c.Meta.PolicyID = "" },
			field:  "meta.policy_id",
		},
		{
			name:   "page_size too large",
			mutate: func(c *Config) { c.Tracking.PageSize = 200 },
			field:  "tracking.page_size",
		},
		{
			name:   "page_size zero",
			mutate: func(c *Config) { c.Tracking.PageSize = 0 },
			field:  "tracking.page_size",
		},
		{
			name:   "max_pages zero",
			mutate: func(c *Config) { c.Tracking.MaxPages = 0 },
			field:  "tracking.max_pages",
		},
		{
			name:   "top_n beyond search depth",
			mutate: func(c *Config) { c.Tracking.TopN = 1001 },
			field:  "tracking.top_n",
		},
		{
			name:   "negative daily budget",
			mutate: func(c *Config) { c.Budget.DailyCallLimit = -1 },
			field:  "budget.daily_call_limit",
		},
		{
			name:   "timeout shorter than success window",
			mutate: func(c *Config) { c.Lifecycle.TestTimeoutDays = 2 },
			field:  "lifecycle.test_timeout_days",
		},
		{
			name:   "weights not summing to one",
			mutate: func(c *Config) { c.Contribution.VolumeWeight = 0.5 },
			field:  "contribution",
		},
		{
			name:   "bad run time",
			mutate: func(c *Config) { c.Schedule.RunTimeLocal = "6:30" },
			field:  "schedule.run_time_local",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}

			var verr ValidationError
			if ve, ok := err.(ValidationError); ok {
				verr = ve
			} else {
				t.Fatalf("expected ValidationError, got %T", err)
			}

			if verr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, verr.Field)
			}
		})
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
}

func TestWarn(t *testing.T) {
	cfg := validConfig()
	cfg.Budget.DailyCallLimit = 50 // 10쌍치 미만
	cfg.Tracking.PageSize = 50
	cfg.Alerting.SurgeDropThreshold = 3

	warnings := Warn(cfg)
	if len(warnings) < 3 {
		t.Errorf("expected at least 3 warnings, got %d", len(warnings))
	}
}

func TestMaxDepth(t *testing.T) {
	tr := Tracking{PageSize: 100, MaxPages: 10}
	if tr.MaxDepth() != 1000 {
		t.Errorf("expected 1000, got %d", tr.MaxDepth())
	}

	tr = Tracking{PageSize: 50, MaxPages: 4}
	if tr.MaxDepth() != 200 {
		t.Errorf("expected 200, got %d", tr.MaxDepth())
	}
}

func TestPolicySnapshot(t *testing.T) {
	cfg := validConfig()
	yamlData := []byte("test yaml content")

	snapshot, err := NewPolicySnapshot(cfg, yamlData, "abc123")
	if err != nil {
		t.Fatalf("NewPolicySnapshot failed: %v", err)
	}

	if snapshot.PolicyID != "test_policy" {
		t.Errorf("expected policy_id=test_policy, got %s", snapshot.PolicyID)
	}
	if snapshot.GitCommit != "abc123" {
		t.Errorf("expected git_commit=abc123, got %s", snapshot.GitCommit)
	}
	if len(snapshot.ConfigHash) != 64 {
		t.Errorf("expected 64 char hash, got %d", len(snapshot.ConfigHash))
	}
}

func TestValidateHHMM(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"09:00", true},
		{"15:30", true},
		{"00:00", true},
		{"23:59", true},
		{"9:00", false},
		{"09:0", false},
		{"25:00", false},
		{"09:60", false},
		{"invalid", false},
	}

	for _, tc := range tests {
		err := validateHHMM(tc.input)
		if tc.valid && err != nil {
			t.Errorf("validateHHMM(%s) expected valid, got error: %v", tc.input, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("validateHHMM(%s) expected error, got nil", tc.input)
		}
	}
}

func TestValidateWeightsSum(t *testing.T) {
	tests := []struct {
		weights []float64
		target  float64
		valid   bool
	}{
		{[]float64{0.4, 0.4, 0.2}, 1.0, true},
		{[]float64{0.5, 0.5}, 1.0, true},
		{[]float64{0.3, 0.3, 0.3}, 1.0, false}, // 0.9
		{[]float64{}, 1.0, false},
	}

	for _, tc := range tests {
		err := validateWeightsSum(tc.weights, tc.target, 1e-6)
		if tc.valid && err != nil {
			t.Errorf("validateWeightsSum(%v) expected valid, got error: %v", tc.weights, err)
		}
		if !tc.valid && err == nil {
			t.Errorf("validateWeightsSum(%v) expected error, got nil", tc.weights)
		}
	}
}
