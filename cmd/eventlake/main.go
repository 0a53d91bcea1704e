// Package main implements the eventlake binary.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eventlake/eventlake/internal/app"
	"github.com/eventlake/eventlake/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configFile string
	envFile    string
	dataDir    string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "eventlake",
		Short:         "Interaction event ingestion and data lake pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Environment file loaded before reading the environment")
	root.PersistentFlags().StringVar(&flags.dataDir, "data-dir", "", "Base directory for all local data files")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newServeCommand(flags),
		newExtractCommand(flags),
		newNormalizeCommand(flags),
		newVersionCommand(),
	)
	return root
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	if flags.envFile != "" {
		if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var cfg *config.Config
	var err error

	if flags.configFile != "" {
		cfg, err = config.LoadFromFile(flags.configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	cfg.Resolve()
	return cfg, nil
}

// setup loads configuration and builds the logger.
func setup(flags *rootFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	log, err := app.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "eventlake version %s (commit: %s)\n", version, commit)
		},
	}
}
