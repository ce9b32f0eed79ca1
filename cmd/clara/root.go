package main

import (
	"fmt"
	"os"

	"github.com/goblincore/clara"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	verbose    bool

	logger   *zap.Logger
	logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

var rootCmd = &cobra.Command{
	Use:   "clara",
	Short: "Clara, the Orion network terminal character",
	Long: `Clara walks a scripted yes/no introduction, then hands the conversation to
an LLM with her persona and the most relevant Orion lore as context.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			logLevel.SetLevel(zapcore.DebugLevel)
		}
		config.Level = logLevel
		// stdout carries MCP frames and JSON output
		config.OutputPaths = []string{"stderr"}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CLARA_CONFIG"), "YAML config file (default: $CLARA_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

// loadConfig reads the config file and environment; debug: true in the file
// raises the log level like --verbose.
func loadConfig() (clara.Config, error) {
	cfg, err := clara.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if cfg.Debug {
		logLevel.SetLevel(zapcore.DebugLevel)
	}
	return cfg, nil
}

// openEngine loads configuration and builds the engine.
func openEngine() (*clara.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return clara.New(cfg, clara.WithLogger(logger.Named("engine")))
}
