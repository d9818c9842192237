package main

import (
	"os"

	"github.com/wonny/keyrank/cmd/keyrank/commands"
)

// main is the entry point for the keyrank CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/keyrank [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
