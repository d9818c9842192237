package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/keyrank/internal/budget"
	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/lifecycle"
	"github.com/wonny/keyrank/internal/trackerconfig"
	"github.com/wonny/keyrank/pkg/config"
	"github.com/wonny/keyrank/pkg/database"
	"github.com/wonny/keyrank/pkg/logger"
	"github.com/wonny/keyrank/pkg/redis"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "추적 현황 조회",
	Long: `추적 시스템의 현재 상태를 요약합니다.

표시 정보:
- 상태별 후보 키워드 수
- 오늘 API 호출 예산 (사용량 / 잔여)
- 마지막 배치 실행 결과

Example:
  go run ./cmd/keyrank status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Keyrank Status ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load tracking policy
	policy, _, err := trackerconfig.Load(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("load tracker policy: %w", err)
	}
	tz, err := time.LoadLocation(policy.Meta.Timezone)
	if err != nil {
		return fmt.Errorf("invalid policy timezone %q: %w", policy.Meta.Timezone, err)
	}

	// 4. Connect to database and Redis
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "keyrank")

	ctx := cmd.Context()

	// 5. Candidate counts by status
	candidateRepo := lifecycle.NewRepository(db)
	candidates, err := candidateRepo.ListByStatus(ctx, contracts.AllStatuses()...)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}
	groups := contracts.GroupByStatus(candidates)

	fmt.Println("\n📊 Candidates")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for _, status := range contracts.AllStatuses() {
		fmt.Printf("%-15s %10d\n", status.String()+":", len(groups[status]))
	}
	fmt.Printf("%-15s %10d\n", "total:", len(candidates))

	// 6. Today's call budget
	budgetRepo := budget.NewPgRepository(db.Pool)
	tracker := budget.NewTracker(budgetRepo, policy.Budget.DailyCallLimit, tz, log.Zerolog())
	budgetStatus, err := tracker.Status(ctx)
	if err != nil {
		return fmt.Errorf("load budget status: %w", err)
	}

	fmt.Println("\n💰 API Budget (today)")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("%-15s %10s\n", "date:", budgetStatus.Date)
	fmt.Printf("%-15s %10d\n", "limit:", budgetStatus.Limit)
	fmt.Printf("%-15s %10d\n", "used:", budgetStatus.Used)
	fmt.Printf("%-15s %10d\n", "remaining:", budgetStatus.Remaining)

	// 7. Last batch run (cached, best effort)
	fmt.Println("\n📈 Last Run")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	var last runSummary
	found, err := cache.Get(ctx, redis.LastRunKey(), &last)
	if err != nil || !found {
		fmt.Println("(no cached run report)")
		return nil
	}

	fmt.Printf("%-15s %s\n", "run_id:", last.RunID)
	fmt.Printf("%-15s %s\n", "day:", last.Day)
	fmt.Printf("%-15s %d ok, %d failed, %d skipped (%d calls)\n",
		"collected:", last.Succeeded, last.Failed, last.Skipped, last.CallsUsed)
	fmt.Printf("%-15s %10d\n", "evaluated:", last.Evaluated)
	fmt.Printf("%-15s %10d\n", "transitions:", last.Transitions)
	fmt.Printf("%-15s %10d\n", "alerts:", last.Alerts)
	fmt.Printf("%-15s %s\n", "finished_at:", last.FinishedAt.In(tz).Format("2006-01-02 15:04:05"))
	if last.Incomplete {
		fmt.Println("⚠️  incomplete: daily call budget exhausted")
	}

	return nil
}
