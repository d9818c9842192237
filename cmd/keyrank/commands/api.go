package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/keyrank/internal/alert"
	"github.com/wonny/keyrank/internal/api"
	"github.com/wonny/keyrank/internal/api/handlers"
	"github.com/wonny/keyrank/internal/budget"
	"github.com/wonny/keyrank/internal/contribution"
	"github.com/wonny/keyrank/internal/lifecycle"
	"github.com/wonny/keyrank/internal/metrics"
	"github.com/wonny/keyrank/internal/rank"
	"github.com/wonny/keyrank/internal/trackerconfig"
	"github.com/wonny/keyrank/pkg/config"
	"github.com/wonny/keyrank/pkg/database"
	"github.com/wonny/keyrank/pkg/logger"
	"github.com/wonny/keyrank/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "운영 API 서버 시작",
	Long: `운영 조회 API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 추적 데이터 조회 엔드포인트 제공
- 미확인 알림 조회 / 읽음 처리 제공

Endpoints:
  GET  /health                                                - Health check
  GET  /api/v1/alerts                                         - 미확인 알림 목록
  POST /api/v1/alerts/{id}/read                               - 알림 읽음 처리
  GET  /api/v1/candidates                                     - 후보 목록 (상태 필터)
  GET  /api/v1/candidates/{id}                                - 후보 단건 조회
  GET  /api/v1/candidates/{id}/transitions                    - 전이 이력
  GET  /api/v1/products/{productID}/contribution              - 기여도 리포트
  GET  /api/v1/products/{productID}/keywords/{keyword}/history - 순위 이력
  GET  /api/v1/budget                                         - 오늘 호출 예산 현황

Example:
  go run ./cmd/keyrank api
  go run ./cmd/keyrank api --port 8097`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: API_PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Keyrank API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.APIPort = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port": cfg.APIPort,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Connect to Redis (disabled mode tolerated)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	cache := redis.NewCache(redisClient, "keyrank")

	// 5. Load tracking policy
	policy, _, err := trackerconfig.Load(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("load tracker policy: %w", err)
	}
	tz, err := time.LoadLocation(policy.Meta.Timezone)
	if err != nil {
		return fmt.Errorf("invalid policy timezone %q: %w", policy.Meta.Timezone, err)
	}

	// 6. Create repositories
	candidateRepo := lifecycle.NewRepository(db)
	snapshotRepo := rank.NewRepository(db.Pool)
	alertRepo := alert.NewRepository(db.Pool)
	budgetRepo := budget.NewPgRepository(db.Pool)

	// 7. Create budget tracker
	tracker := budget.NewTracker(budgetRepo, policy.Budget.DailyCallLimit, tz, log.Zerolog())

	// 8. Create contribution analyzer
	analyzer := contribution.NewAnalyzer(policy, log.Zerolog())

	// 9. Create handlers
	alertHandler := handlers.NewAlertHandler(alertRepo, log)
	candidateHandler := handlers.NewCandidateHandler(candidateRepo, candidateRepo, cache, log)
	contributionHandler := handlers.NewContributionHandler(candidateRepo, analyzer, cache, log)
	budgetHandler := handlers.NewBudgetHandler(tracker, cache, tz, log)
	historyHandler := handlers.NewHistoryHandler(snapshotRepo, log)

	// 10. Register metrics if enabled
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metrics.Init()
		metricsHandler = metrics.Handler()
	}

	// 11. Create router and server
	router := api.NewRouter(alertHandler, candidateHandler, contributionHandler, budgetHandler, historyHandler, metricsHandler, log)
	server := api.New(cfg, log, router)

	// 12. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.APIPort)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/v1/alerts")
	fmt.Println("  POST /api/v1/alerts/{id}/read")
	fmt.Println("  GET  /api/v1/candidates")
	fmt.Println("  GET  /api/v1/candidates/{id}")
	fmt.Println("  GET  /api/v1/candidates/{id}/transitions")
	fmt.Println("  GET  /api/v1/products/{productID}/contribution")
	fmt.Println("  GET  /api/v1/products/{productID}/keywords/{keyword}/history")
	fmt.Println("  GET  /api/v1/budget")
	if cfg.MetricsEnabled {
		fmt.Println("  GET  /metrics")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
