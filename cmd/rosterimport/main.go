package main

import (
	"os"

	"github.com/SAP-F-2025/roster-import-service/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
