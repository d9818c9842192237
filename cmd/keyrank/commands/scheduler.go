package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/keyrank/internal/pipeline"
	"github.com/wonny/keyrank/internal/scheduler"
	"github.com/wonny/keyrank/internal/scheduler/jobs"
	"github.com/wonny/keyrank/internal/trackerconfig"
	"github.com/wonny/keyrank/pkg/config"
	"github.com/wonny/keyrank/pkg/database"
	"github.com/wonny/keyrank/pkg/logger"
	"github.com/wonny/keyrank/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `추적 배치 스케줄러를 관리합니다.

이 명령어는:
- 스케줄러 데몬 시작 (정책 타임존 기준 run_time_local에 일일 배치 실행)
- 등록된 작업 조회

즉시 실행이 필요하면 스케줄러 대신 track run을 사용하세요.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록

Example:
  go run ./cmd/keyrank scheduler start
  go run ./cmd/keyrank scheduler list`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 일일 추적 배치를 스케줄합니다.

등록되는 작업:
- daily_rank_check: 정책 run_time_local (기본 매일 02:00, 정책 타임존)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listScheduledJobs,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Keyrank Scheduler ===")

	// Initialize dependencies
	sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.JobNames() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listScheduledJobs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	policy, _, err := trackerconfig.Load(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("load tracker policy: %w", err)
	}

	fmt.Println("Registered jobs:")
	fmt.Printf("  - daily_rank_check: 매일 %s (%s)\n",
		policy.Schedule.RunTimeLocal, policy.Meta.Timezone)

	return nil
}

func initScheduler() (*scheduler.Scheduler, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	if !cfg.HasNaverCredentials() {
		return nil, fmt.Errorf("NAVER_CLIENT_ID and NAVER_CLIENT_SECRET are required")
	}

	// 3. Load tracking policy
	policy, _, err := trackerconfig.Load(cfg.PolicyPath)
	if err != nil {
		return nil, fmt.Errorf("load tracker policy: %w", err)
	}
	policyHash, err := trackerconfig.Hash(policy)
	if err != nil {
		return nil, fmt.Errorf("hash tracker policy: %w", err)
	}
	tz, err := time.LoadLocation(policy.Meta.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid policy timezone %q: %w", policy.Meta.Timezone, err)
	}

	// 4. Connect to database and Redis
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	redisClient, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache := redis.NewCache(redisClient, "keyrank")

	// 5. Assemble the daily pipeline
	daily := buildDaily(cfg, policy, tz, db, redisClient, log)
	runner := &cachingRunner{daily: daily, cache: cache, logger: log}

	// 6. Create scheduler and register the daily job
	sched := scheduler.New(log, tz)
	job, err := jobs.NewRankCheckJob(runner, policy, policyHash, log)
	if err != nil {
		return nil, fmt.Errorf("create rank check job: %w", err)
	}
	if err := sched.AddJob(job); err != nil {
		return nil, fmt.Errorf("register job: %w", err)
	}

	return sched, nil
}

// cachingRunner records each scheduled run's summary for the status command.
type cachingRunner struct {
	daily  *pipeline.Daily
	cache  *redis.Cache
	logger *logger.Logger
}

func (r *cachingRunner) Run(ctx context.Context, config pipeline.RunConfig) (*pipeline.RunResult, error) {
	result, err := r.daily.Run(ctx, config)
	if err == nil {
		storeLastRun(ctx, r.cache, result, r.logger)
	}
	return result, err
}
