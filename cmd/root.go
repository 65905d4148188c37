package cmd

import (
	"fmt"
	"os"

	"hlsladder/config"
	"hlsladder/logger"

	"github.com/spf13/cobra"
)

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "hlsladder",
	Short:         "Publish mp3 tracks as multi-bitrate HLS audio ladders.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

// Execute executes the root command and exits non-zero on any error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Sync()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
