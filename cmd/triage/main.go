// Command triage analyzes a single issue from the command line.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/issuelens/backend/internal/config"
)

var (
	appConfig config.Config
	verbose   bool
	logger    zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Triage - summarize, classify and prioritize issues",
	Long: `Triage analyzes an issue with the configured text-generation backends and
falls back to keyword rules when none of them answers with a usable analysis.

Configuration is read from .env and the environment (AI_ENDPOINTS, AI_TOKEN,
OPENAI_*, GITHUB_TOKEN, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appConfig, err = config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		zerolog.TimeFieldFormat = time.RFC3339
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log backend attempts to stderr")
	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
