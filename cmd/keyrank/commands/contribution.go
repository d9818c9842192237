package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/contribution"
	"github.com/wonny/keyrank/internal/lifecycle"
	"github.com/wonny/keyrank/internal/trackerconfig"
	"github.com/wonny/keyrank/pkg/config"
	"github.com/wonny/keyrank/pkg/database"
	"github.com/wonny/keyrank/pkg/logger"
)

// contributionCmd represents the contribution command
var contributionCmd = &cobra.Command{
	Use:   "contribution [product_id]",
	Short: "상품 기여도 리포트",
	Long: `한 상품의 키워드 노출 기여도 랭킹을 출력합니다.

active/warning 후보를 검색량·순위·안정성 가중합으로 점수화하고
상품 내 1위를 100으로 정규화합니다.

Example:
  go run ./cmd/keyrank contribution PROD-1001`,
	Args: cobra.ExactArgs(1),
	RunE: runContributionReport,
}

func init() {
	rootCmd.AddCommand(contributionCmd)
}

func runContributionReport(cmd *cobra.Command, args []string) error {
	productID := args[0]

	// 1. Load config and policy
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	policy, _, err := trackerconfig.Load(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("load tracker policy: %w", err)
	}

	// 2. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// 3. Load the product's surviving candidates
	candidateRepo := lifecycle.NewRepository(db)
	candidates, err := candidateRepo.ListByStatus(cmd.Context(), contracts.StatusActive, contracts.StatusWarning)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}

	mine := make([]contracts.KeywordCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.ProductID == productID {
			mine = append(mine, c)
		}
	}

	// 4. Analyze
	analyzer := contribution.NewAnalyzer(policy, log.Zerolog())
	entries := analyzer.Analyze(mine)

	if len(entries) == 0 {
		fmt.Printf("No active/warning keywords for product %s\n", productID)
		return nil
	}

	fmt.Printf("Contribution report: %s (%d keywords)\n\n", productID, len(entries))
	fmt.Printf("%-4s %-24s %10s %10s\n", "RANK", "KEYWORD", "SCORE", "RAW")
	for _, e := range entries {
		fmt.Printf("%-4d %-24s %10.1f %10.2f\n", e.Rank, e.Keyword, e.NormalizedScore, e.RawScore)
	}

	return nil
}
