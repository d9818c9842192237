package commands

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/keyrank/internal/alert"
	"github.com/wonny/keyrank/internal/budget"
	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/contribution"
	"github.com/wonny/keyrank/internal/external/navershop"
	"github.com/wonny/keyrank/internal/lifecycle"
	"github.com/wonny/keyrank/internal/pipeline"
	"github.com/wonny/keyrank/internal/rank"
	"github.com/wonny/keyrank/internal/trackerconfig"
	"github.com/wonny/keyrank/pkg/config"
	"github.com/wonny/keyrank/pkg/database"
	"github.com/wonny/keyrank/pkg/httputil"
	"github.com/wonny/keyrank/pkg/logger"
	"github.com/wonny/keyrank/pkg/redis"
)

// trackCmd represents the track command
var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "키워드 추적 관리",
	Long: `키워드 후보를 관리하고 일일 추적 배치를 실행합니다.

생애주기:
  candidate → testing → active ⇄ warning
                      ↘ failed → candidate (재도전)
  모든 상태 → retired (수동 종료)

Subcommands:
  run       - 일일 추적 배치 실행 (수집 → 판정 → 알림 → 기여도)
  add       - 후보 키워드 등록
  start     - 노출 테스트 시작 (candidate → testing)
  retire    - 추적 종료
  reinstate - 실패 후보 재등록 (failed → candidate)

Example:
  go run ./cmd/keyrank track run
  go run ./cmd/keyrank track run --date 2026-08-23 --skip-collect
  go run ./cmd/keyrank track add PROD-1001 "무선 이어폰" --volume 12000 --tier high
  go run ./cmd/keyrank track start 42
  go run ./cmd/keyrank track retire 42 --reason "시즌 종료"`,
}

var (
	trackRunCmd = &cobra.Command{
		Use:   "run",
		Short: "일일 추적 배치 실행",
		Long: `일일 추적 배치를 실행합니다.

단계:
- collect: 추적 대상 쌍의 오늘 순위 수집 (호출 예산 내에서)
- evaluate: 스냅샷 기반 생애주기 판정 + 전이 기록
- alerts: 전일 대비 순위 급변 감지
- contribution: 노출 기여도 재산정

Flags:
  --date          실행 날짜 (YYYY-MM-DD, 기본: 오늘)
  --skip-collect  수집 생략, 저장된 스냅샷으로 재평가

Example:
  go run ./cmd/keyrank track run
  go run ./cmd/keyrank track run --date 2026-08-23
  go run ./cmd/keyrank track run --skip-collect`,
		RunE: runTrack,
	}

	trackAddCmd = &cobra.Command{
		Use:   "add [product_id] [keyword]",
		Short: "후보 키워드 등록",
		Long: `승인된 키워드를 추적 후보로 등록합니다.

검색량과 경쟁 강도는 발굴 파이프라인이 내려주는 메타데이터로,
등록 이후에는 읽기 전용입니다.

Example:
  go run ./cmd/keyrank track add PROD-1001 "무선 이어폰" --volume 12000 --tier high`,
		Args: cobra.ExactArgs(2),
		RunE: addCandidate,
	}

	trackStartCmd = &cobra.Command{
		Use:   "start [candidate_id]",
		Short: "노출 테스트 시작 (candidate → testing)",
		Args:  cobra.ExactArgs(1),
		RunE:  startCandidateTest,
	}

	trackRetireCmd = &cobra.Command{
		Use:   "retire [candidate_id]",
		Short: "추적 종료",
		Args:  cobra.ExactArgs(1),
		RunE:  retireCandidate,
	}

	trackReinstateCmd = &cobra.Command{
		Use:   "reinstate [candidate_id]",
		Short: "실패 후보 재등록 (failed → candidate)",
		Args:  cobra.ExactArgs(1),
		RunE:  reinstateCandidate,
	}

	// Flags
	trackDate            string
	trackSkipCollect     bool
	trackVolume          int
	trackTier            string
	trackScore           float64
	trackStartReason     string
	trackRetireReason    string
	trackReinstateReason string
)

func init() {
	rootCmd.AddCommand(trackCmd)
	trackCmd.AddCommand(trackRunCmd)
	trackCmd.AddCommand(trackAddCmd)
	trackCmd.AddCommand(trackStartCmd)
	trackCmd.AddCommand(trackRetireCmd)
	trackCmd.AddCommand(trackReinstateCmd)

	// Flags
	trackRunCmd.Flags().StringVar(&trackDate, "date", "", "실행 날짜 (YYYY-MM-DD, 기본: 오늘)")
	trackRunCmd.Flags().BoolVar(&trackSkipCollect, "skip-collect", false, "수집 생략, 저장된 스냅샷으로 재평가")
	trackAddCmd.Flags().IntVar(&trackVolume, "volume", 0, "월간 검색량")
	trackAddCmd.Flags().StringVar(&trackTier, "tier", "medium", "경쟁 강도 (low|medium|high)")
	trackAddCmd.Flags().Float64Var(&trackScore, "score", 0, "발굴 파이프라인 후보 점수")
	trackStartCmd.Flags().StringVar(&trackStartReason, "reason", "수동 테스트 시작", "전이 사유")
	trackRetireCmd.Flags().StringVar(&trackRetireReason, "reason", "수동 추적 종료", "전이 사유")
	trackReinstateCmd.Flags().StringVar(&trackReinstateReason, "reason", "재도전 등록", "전이 사유")
}

func runTrack(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Keyrank Daily Tracking Run ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load tracking policy and stamp the run for reproducibility
	policy, yamlData, err := trackerconfig.Load(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("load tracker policy: %w", err)
	}
	snapshot, err := trackerconfig.NewPolicySnapshot(policy, yamlData, getGitSHA())
	if err != nil {
		return fmt.Errorf("snapshot tracker policy: %w", err)
	}
	tz, err := time.LoadLocation(policy.Meta.Timezone)
	if err != nil {
		return fmt.Errorf("invalid policy timezone %q: %w", policy.Meta.Timezone, err)
	}

	log.WithFields(map[string]interface{}{
		"policy_id":   snapshot.PolicyID,
		"config_hash": snapshot.ConfigHash,
		"git_commit":  snapshot.GitCommit,
	}).Info("Tracking policy loaded")

	// Parse run day in the policy timezone
	var day time.Time
	if trackDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", trackDate, tz)
		if err != nil {
			return fmt.Errorf("invalid date format: %w", err)
		}
		day = parsed
	} else {
		day = pipeline.DayBoundary(time.Now(), tz)
	}

	if !trackSkipCollect && !cfg.HasNaverCredentials() {
		return fmt.Errorf("NAVER_CLIENT_ID and NAVER_CLIENT_SECRET are required unless --skip-collect is set")
	}

	fmt.Printf("\n📅 Run Day: %s (%s)\n", day.Format("2006-01-02"), policy.Meta.Timezone)
	fmt.Printf("🔖 Policy: %s %s (%s @ %s)\n",
		policy.Meta.PolicyID, policy.Meta.Version, snapshot.ConfigHash[:12], snapshot.GitCommit)
	fmt.Printf("🔧 Skip Collect: %v\n\n", trackSkipCollect)

	// 4. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 5. Connect to Redis (disabled mode tolerated)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "keyrank")

	// 6. Assemble the daily pipeline
	daily := buildDaily(cfg, policy, tz, db, redisClient, log)

	fmt.Println("🚀 Starting tracking run")

	// 7. Execute
	result, err := daily.Run(cmd.Context(), pipeline.RunConfig{
		Day:         day,
		PolicyHash:  snapshot.ConfigHash,
		SkipCollect: trackSkipCollect,
	})
	if err != nil {
		return fmt.Errorf("tracking run failed: %w", err)
	}

	// 8. Cache the outcome for the status command
	storeLastRun(cmd.Context(), cache, result, log)

	printRunResult(result)
	return nil
}

// buildDaily wires the collect → evaluate → alerts → contribution stages.
// 수집 경로는 초당 제한(redis)과 일일 예산(tracker) 두 겹으로 보호된다.
func buildDaily(cfg *config.Config, policy *trackerconfig.Config, tz *time.Location, db *database.DB, redisClient *redis.Client, log *logger.Logger) *pipeline.Daily {
	// 1. Create repositories
	candidateRepo := lifecycle.NewRepository(db)
	snapshotRepo := rank.NewRepository(db.Pool)
	alertRepo := alert.NewRepository(db.Pool)
	budgetRepo := budget.NewPgRepository(db.Pool)

	// 2. Create budget tracker
	tracker := budget.NewTracker(budgetRepo, policy.Budget.DailyCallLimit, tz, log.Zerolog())

	// 3. Create HTTP client with the per-second limiter
	httpClient := httputil.New(cfg, log)
	if redisClient.Enabled() {
		limiter := redis.NewRateLimiter(redisClient, "keyrank")
		httpClient.WithRateLimiter(limiter, redis.ShopSearchRateLimit)
	}

	// 4. Create search client, resolver, collector
	naverClient := navershop.NewClient(cfg, httpClient, log)
	resolver := rank.NewResolver(naverClient, tracker, policy, log.Zerolog())
	collector := rank.NewCollector(resolver, snapshotRepo, tracker, policy, log.Zerolog())

	// 5. Create evaluator and analyzers
	evaluator := lifecycle.NewEvaluator(policy, log.Zerolog())
	alertAnalyzer := alert.NewAnalyzer(snapshotRepo, alertRepo, policy, log.Zerolog())
	contributionAnalyzer := contribution.NewAnalyzer(policy, log.Zerolog())

	// 6. Assemble pipeline
	return pipeline.NewDaily(candidateRepo, snapshotRepo, collector, evaluator, alertAnalyzer, contributionAnalyzer, log.Zerolog())
}

// runSummary is the compact last-run record the status command reads.
type runSummary struct {
	RunID       string    `json:"run_id"`
	Day         string    `json:"day"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	CallsUsed   int       `json:"calls_used"`
	Incomplete  bool      `json:"incomplete"`
	Evaluated   int       `json:"evaluated"`
	Transitions int       `json:"transitions"`
	Alerts      int       `json:"alerts"`
	FinishedAt  time.Time `json:"finished_at"`
}

func summarizeRun(result *pipeline.RunResult) runSummary {
	summary := runSummary{
		RunID:       result.RunID,
		Day:         result.Day.Format("2006-01-02"),
		Evaluated:   result.Evaluated,
		Transitions: len(result.Transitions),
		Alerts:      len(result.Alerts),
		FinishedAt:  time.Now(),
	}
	if result.Batch != nil {
		summary.Succeeded = result.Batch.Succeeded
		summary.Failed = result.Batch.Failed
		summary.Skipped = result.Batch.Skipped
		summary.CallsUsed = result.Batch.CallsUsed
		summary.Incomplete = result.Batch.Incomplete
	}
	return summary
}

// storeLastRun caches the run outcome. 런 자체는 이미 영속화됐으므로
// 캐시 실패는 경고만 남긴다.
func storeLastRun(ctx context.Context, cache *redis.Cache, result *pipeline.RunResult, log *logger.Logger) {
	if err := cache.Set(ctx, redis.LastRunKey(), summarizeRun(result), redis.TTLDaily); err != nil {
		log.WithError(err).Warn("Failed to cache last run summary")
	}
}

func printRunResult(result *pipeline.RunResult) {
	fmt.Println("\n✅ Tracking Run Completed")
	fmt.Println()

	// Summary
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Day: %s\n", result.Day.Format("2006-01-02"))
	fmt.Printf("Duration: %.2fs\n", result.Duration.Seconds())
	fmt.Println()

	// Stages
	fmt.Println("Completed Stages:")
	for _, stage := range result.CompletedStages {
		fmt.Printf("  ✅ %s\n", stage)
	}
	fmt.Println()

	// Results
	if result.Batch != nil {
		fmt.Printf("Collected: %d ok, %d failed, %d skipped (%d calls)\n",
			result.Batch.Succeeded, result.Batch.Failed, result.Batch.Skipped, result.Batch.CallsUsed)
		if result.Batch.Incomplete {
			fmt.Println("⚠️  Collection incomplete: daily call budget exhausted")
		}
	}
	fmt.Printf("Evaluated: %d candidates\n", result.Evaluated)
	if len(result.Transitions) > 0 {
		fmt.Printf("Transitions: %d\n", len(result.Transitions))
		for _, tr := range result.Transitions {
			fmt.Printf("  - candidate %d: %s → %s (%s)\n", tr.CandidateID, tr.FromStatus, tr.ToStatus, tr.Reason)
		}
	}
	fmt.Printf("Alerts: %d\n", len(result.Alerts))
	if len(result.Contribution) > 0 {
		top := result.Contribution[0]
		fmt.Printf("Contribution: %d keywords ranked (top: %q, score: %.1f)\n",
			len(result.Contribution), top.Keyword, top.NormalizedScore)
	}
}

// getGitSHA stamps the run with the code revision. 배포 환경에 git이
// 없으면 unknown으로 남긴다.
func getGitSHA() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// openStore loads config and opens the candidate store. 호출부가 Close를
// 책임진다.
func openStore() (*database.DB, *lifecycle.Repository, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, lifecycle.NewRepository(db), log, nil
}

func addCandidate(cmd *cobra.Command, args []string) error {
	productID := strings.TrimSpace(args[0])
	keyword := strings.TrimSpace(args[1])
	if productID == "" || keyword == "" {
		return fmt.Errorf("product_id and keyword must not be empty")
	}

	tier := contracts.CompetitionTier(trackTier)
	switch tier {
	case contracts.TierLow, contracts.TierMedium, contracts.TierHigh:
	default:
		return fmt.Errorf("invalid tier %q (valid: low, medium, high)", trackTier)
	}
	if trackVolume < 0 {
		return fmt.Errorf("volume must not be negative")
	}

	db, repo, _, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	// Reject duplicates with a readable message before hitting the
	// unique constraint
	existing, err := repo.GetByPair(ctx, productID, keyword)
	if err == nil {
		return fmt.Errorf("pair already tracked: candidate %d (%s)", existing.ID, existing.Status)
	}
	if !errors.Is(err, contracts.ErrNotFound) {
		return fmt.Errorf("check existing pair: %w", err)
	}

	c := &contracts.KeywordCandidate{
		ProductID:           productID,
		Keyword:             keyword,
		Status:              contracts.StatusCandidate,
		MonthlySearchVolume: trackVolume,
		CompetitionTier:     tier,
		CandidateScore:      trackScore,
	}
	if err := repo.Create(ctx, c); err != nil {
		return fmt.Errorf("create candidate: %w", err)
	}

	fmt.Printf("✅ Candidate %d registered: %s / %q (%s, 검색량 %d)\n",
		c.ID, c.ProductID, c.Keyword, c.CompetitionTier, c.MonthlySearchVolume)
	return nil
}

func startCandidateTest(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid candidate id %q", args[0])
	}

	db, repo, _, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load candidate: %w", err)
	}

	updated, tr, err := lifecycle.StartTest(*c, contracts.CaptureMetrics(c), trackStartReason, time.Now())
	if err != nil {
		return err
	}
	if err := repo.UpdateWithTransition(ctx, &updated, tr); err != nil {
		return fmt.Errorf("persist transition: %w", err)
	}

	fmt.Printf("✅ Candidate %d: %s → %s (test window opened)\n", id, tr.FromStatus, tr.ToStatus)
	return nil
}

func retireCandidate(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid candidate id %q", args[0])
	}

	db, repo, _, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load candidate: %w", err)
	}

	updated, tr, err := lifecycle.Retire(*c, contracts.CaptureMetrics(c), trackRetireReason, time.Now())
	if err != nil {
		return err
	}
	if err := repo.UpdateWithTransition(ctx, &updated, tr); err != nil {
		return fmt.Errorf("persist transition: %w", err)
	}

	fmt.Printf("✅ Candidate %d: %s → %s (tracking ended)\n", id, tr.FromStatus, tr.ToStatus)
	return nil
}

func reinstateCandidate(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid candidate id %q", args[0])
	}

	db, repo, _, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load candidate: %w", err)
	}

	updated, tr, err := lifecycle.Reinstate(*c, contracts.CaptureMetrics(c), trackReinstateReason, time.Now())
	if err != nil {
		return err
	}
	if err := repo.UpdateWithTransition(ctx, &updated, tr); err != nil {
		return fmt.Errorf("persist transition: %w", err)
	}

	fmt.Printf("✅ Candidate %d: %s → %s (ready for another test)\n", id, tr.FromStatus, tr.ToStatus)
	return nil
}
