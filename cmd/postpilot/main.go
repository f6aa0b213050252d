// Command postpilot drafts LinkedIn posts with a generative model and writes them into
// the compose editor of an open LinkedIn tab.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"postpilot/internal/config"
	"postpilot/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	envPath    string
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "postpilot",
	Short: "Draft LinkedIn posts and drop them into the compose editor",
	Long: `postpilot generates LinkedIn posts from a topic or prompt, scores their
readability, keeps a short history, and writes the result into the LinkedIn
compose editor of a Chrome tab.

Run "postpilot serve" to start the local API used by the compose UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envPath); err != nil {
			return err
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		logCfg := logging.Config{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			File:       cfg.Logging.File,
			Categories: cfg.Logging.Categories,
		}
		if verbose {
			logCfg.Level = "debug"
		}
		if err := logging.Initialize(logCfg); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Root()
		logBootConfig(cfg)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "postpilot.yaml", "Config file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "Dotenv file with API keys")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(browserCmd)
	rootCmd.AddCommand(injectCmd)
	rootCmd.AddCommand(contextCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(trendsCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
