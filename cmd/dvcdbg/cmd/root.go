package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/p14c31355/dvcdbg/internal/config"
)

var (
	// Global flags
	verbose bool
	cfgPath string

	// Loaded in PersistentPreRunE, available to every subcommand.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "dvcdbg",
	Short: "I2C device bring-up explorer",
	Long: `A host-side debugging tool for bringing up I2C devices: scan the bus,
parse sequence files describing bring-up commands and their dependencies,
and explore which command order a device accepts, pruning what it rejects.

Examples:
  dvcdbg scan                                        # Sweep the bus for devices
  dvcdbg info ssd1306.seq                            # Show a sequence's graph and order
  dvcdbg explore ssd1306.seq                         # Pruning exploration on all devices
  dvcdbg once ssd1306.seq --addr 0x3C                # One ordered run, no pruning
  dvcdbg bridges                                     # List USB-I2C bridges`,
	Version:       "0.9.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		setupLogging()
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging() {
	level := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "dvcdbg.hcl", "configuration file")
}
