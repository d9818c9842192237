package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/keyrank/internal/alert"
	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/pkg/config"
	"github.com/wonny/keyrank/pkg/database"
)

// alertsCmd represents the alerts command
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "순위 변동 알림 조회",
	Long: `일일 배치가 감지한 순위 변동 알림을 관리합니다.

알림 유형:
- ENTER: 추적 범위 밖 → 안 (신규 노출)
- EXIT:  추적 범위 안 → 밖 (노출 이탈)
- SURGE: 임계값 이상 순위 상승
- DROP:  임계값 이상 순위 하락

Subcommands:
  list  - 미확인 알림 목록
  read  - 알림 읽음 처리

Example:
  go run ./cmd/keyrank alerts list
  go run ./cmd/keyrank alerts list --limit 20
  go run ./cmd/keyrank alerts read 42`,
}

var (
	alertsListCmd = &cobra.Command{
		Use:   "list",
		Short: "미확인 알림 목록",
		RunE:  listAlerts,
	}

	alertsReadCmd = &cobra.Command{
		Use:   "read [alert_id]",
		Short: "알림 읽음 처리",
		Args:  cobra.ExactArgs(1),
		RunE:  markAlertRead,
	}

	// Flags
	alertsLimit int
)

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsReadCmd)

	// Flags
	alertsListCmd.Flags().IntVar(&alertsLimit, "limit", 50, "최대 표시 개수")
}

func listAlerts(cmd *cobra.Command, args []string) error {
	if alertsLimit <= 0 {
		return fmt.Errorf("limit must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	alertRepo := alert.NewRepository(db.Pool)
	alerts, err := alertRepo.ListUnread(cmd.Context(), alertsLimit)
	if err != nil {
		return fmt.Errorf("list alerts: %w", err)
	}

	if len(alerts) == 0 {
		fmt.Println("No unread alerts")
		return nil
	}

	fmt.Printf("Unread alerts: %d\n\n", len(alerts))
	for _, a := range alerts {
		fmt.Printf("  [%d] %-5s %s / %q  %s → %s (%+d)  %s\n",
			a.ID, a.AlertType, a.ProductID, a.Keyword,
			formatRank(a.PrevRank), formatRank(a.CurrRank), a.ChangeAmount,
			a.CreatedAt.Format("2006-01-02 15:04"))
	}

	return nil
}

func markAlertRead(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid alert id %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	alertRepo := alert.NewRepository(db.Pool)
	if err := alertRepo.MarkRead(cmd.Context(), id); err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			return fmt.Errorf("alert %d not found", id)
		}
		return fmt.Errorf("mark alert read: %w", err)
	}

	fmt.Printf("✅ Alert %d marked as read\n", id)
	return nil
}

// formatRank renders a nullable rank. nil은 추적 범위 밖.
func formatRank(rank *int) string {
	if rank == nil {
		return "-"
	}
	return strconv.Itoa(*rank)
}
