package cmd

import (
	"fmt"

	"direxpo/pkg/config"
	"direxpo/pkg/logging"
	"direxpo/pkg/version"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	envFile string

	v      = viper.New()
	cfg    *config.Config
	logger = zap.NewNop()
)

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "direxpo",
	Short: "direxpo exports selected files of a directory tree as one Markdown document",
	Long: `direxpo runs a local HTTP API that lets a file picker select files and folders
from a directory tree and export their contents, optionally preceded by a folder
structure diagram, into a single Markdown document.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and runs it. The logger is used
// until the configuration has been loaded.
func Execute(bootstrap *zap.Logger) error {
	if bootstrap != nil {
		logger = bootstrap
	}
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./direxpo.yaml)")
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading DIREXPO_* variables")
	RootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
}

// initConfig loads configuration for every subcommand that needs it and replaces the
// bootstrap logger with one built from it.
func initConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations["skipConfig"] == "true" {
		return nil
	}

	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	loaded, err := config.Load(v, cfgFile, envFile)
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg = loaded

	if err := logging.Setup(cfg.Log.Debug, "direxpo", version.Get().Version); err != nil {
		logger.Warn("Failed to build configured logger, keeping bootstrap logger", zap.Error(err))
		return nil
	}
	logger = logging.Logger
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("Using config file", zap.String("path", used))
	}
	return nil
}
