package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/keyrank/pkg/config"
	"github.com/wonny/keyrank/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 마이그레이션 적용",
	Long: `내장된 SQL 마이그레이션을 DATABASE_URL 대상에 적용합니다.

track 스키마의 테이블을 생성/갱신합니다:
- track.keyword_candidates
- track.rank_snapshots
- track.rank_alerts
- track.lifecycle_transitions
- track.api_usage

멱등성이 보장되므로 반복 실행해도 안전합니다.

Example:
  go run ./cmd/keyrank migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Keyrank DB Migration ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Apply embedded migrations
	fmt.Println("Applying migrations...")
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	fmt.Println("✅ Migrations applied")
	return nil
}
