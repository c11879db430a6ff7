// Command augplayground serves the augmentation preview UI and offers the
// same pipeline from the command line.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"augplayground/pkg/config"
)

// configPath is the YAML config file; a missing file falls back to
// defaults and environment
var configPath string

var rootCmd = &cobra.Command{
	Use:   "augplayground",
	Short: "Preview medical-image augmentation pipelines",
	Long: `augplayground loads NIfTI and HDF5 volumes, applies a configurable chain of
spatial and intensity augmentations and renders slices of the result.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "augplayground.yaml", "Path to the YAML config file")

	rootCmd.AddCommand(serveCmd, renderCmd, convertCmd, exportCmd, initConfigCmd)
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config selected by --config
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger at the configured level
func newLogger(level string, json bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
