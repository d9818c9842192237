package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "keyrank",
	Short: "Keyrank - 상품 키워드 순위 추적기",
	Long: `Keyrank Unified CLI

네이버 쇼핑 검색 순위 기반 키워드 추적 시스템.
키워드 후보 등록부터 일일 순위 수집, 생애주기 판정, 기여도 분석까지.

Usage:
  go run ./cmd/keyrank [command]

Examples:
  go run ./cmd/keyrank migrate
  go run ./cmd/keyrank track run
  go run ./cmd/keyrank api
  go run ./cmd/keyrank scheduler start
  go run ./cmd/keyrank status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
