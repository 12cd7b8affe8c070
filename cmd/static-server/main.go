package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dreschagin/static-server/internal/server"
	"github.com/dreschagin/static-server/pkg/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "static-server",
		Short: "Serve a directory with cross-origin isolation headers",
		Long: "Serves files from a local directory on the loopback interface and attaches\n" +
			"COOP/COEP and no-cache headers to every response, so pages can use\n" +
			"SharedArrayBuffer during development.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logger := newLogger(cfg.LogLevel)

			srv, err := server.New(cfg, logger, cmd.OutOrStdout())
			if err != nil {
				logger.Error("failed to initialize server", "error", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.Run(ctx); err != nil {
				logger.Error("server stopped with error", "error", err)
				return err
			}
			logger.Info("server stopped gracefully")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("host", "127.0.0.1", "listen host (SERVER_HOST)")
	flags.StringP("port", "p", "5500", "listen port (SERVER_PORT)")
	flags.StringP("root", "r", ".", "directory to serve (ROOT_DIR)")
	flags.String("log-level", "info", "debug, info, warn or error (LOG_LEVEL)")
	flags.String("admin-addr", "", "metrics/health listen address, empty disables (ADMIN_ADDR)")

	return cmd
}

// loadConfig reads the environment, lets explicitly set flags replace it,
// then validates the result once.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.FromEnv()

	overrides := []struct {
		flag string
		dst  *string
	}{
		{flag: "host", dst: &cfg.Server.Host},
		{flag: "port", dst: &cfg.Server.Port},
		{flag: "root", dst: &cfg.Content.RootDir},
		{flag: "log-level", dst: &cfg.LogLevel},
		{flag: "admin-addr", dst: &cfg.Admin.Addr},
	}

	flags := cmd.Flags()
	for _, o := range overrides {
		if !flags.Changed(o.flag) {
			continue
		}
		value, err := flags.GetString(o.flag)
		if err != nil {
			return nil, err
		}
		*o.dst = value
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})
	return slog.New(handler)
}
