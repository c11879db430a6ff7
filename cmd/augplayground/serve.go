package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"augplayground/internal/server"
	"augplayground/internal/telemetry"
)

var (
	servePort      int
	serveLogFormat string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the preview web server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "json", "Log format: json or text")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	logger := newLogger(cfg.Log.Level, serveLogFormat != "text")
	slog.SetDefault(logger)

	shutdown := telemetry.Shutdown(telemetry.Noop)
	if cfg.Telemetry.Enabled {
		if shutdown, err = telemetry.InitTracer(cfg.Telemetry.ServiceName, os.Stdout, logger); err != nil {
			return err
		}
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, logger).Start(ctx)
}
