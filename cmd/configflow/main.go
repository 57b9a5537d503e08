package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/thsrite/configflow/internal/config"
	"github.com/thsrite/configflow/internal/support/logging"
)

// Build info - injected via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath   string
	snapshotPath string
	baseURLFlag  string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "configflow",
	Short:   "Compile proxy nodes, groups and rules into client configs",
	Long:    `configflow compiles nodes, subscriptions, aggregations, policy groups and rules into Mihomo YAML and Surge documents.`,
	Version: Version + " (" + Commit + ", " + BuildTime + ")",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if snapshotPath != "" {
			loaded.Snapshot.Path = snapshotPath
		}
		if baseURLFlag != "" {
			loaded.Render.BaseURL = baseURLFlag
		}
		cfg = loaded
		logger = logging.New(logging.Options{
			Level:     cfg.Log.SlogLevel(),
			Format:    cfg.Log.Format,
			AddSource: cfg.Log.AddSource,
		})
		slog.SetDefault(logger)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml or /etc/configflow/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&snapshotPath, "snapshot", "s", "", "snapshot file, overrides snapshot.path")
	rootCmd.PersistentFlags().StringVar(&baseURLFlag, "base-url", "", "base URL used when system_config.server_domain is empty")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
