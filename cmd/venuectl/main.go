package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/joshua-takyi/venuebook/internal/config"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	_ = godotenv.Load(".env.local")

	rootCmd := &cobra.Command{
		Use:           "venuectl",
		Short:         "Operator tasks for the venuebook API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(pdfCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.ToolConfig, error) {
	cfg, err := config.LoadToolConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
