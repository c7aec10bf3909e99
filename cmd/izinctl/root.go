package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/izin-asrama-api/internal/app"
	"github.com/noah-isme/izin-asrama-api/internal/models"
	"github.com/noah-isme/izin-asrama-api/pkg/config"
	"github.com/noah-isme/izin-asrama-api/pkg/logger"
)

// operatorActor is the identity used for CLI reads; it carries the top role so
// every staff-only query is permitted.
var operatorActor = models.Actor{UserID: "izinctl", FullName: "izinctl", Role: models.RoleSuperAdmin}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "izinctl",
		Short:         "Operator tools for dormitory leave applications",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(newReportCmd(), newOverdueCmd(), newTokenCmd())
	return cmd
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	// CLI output goes to stdout; keep logs quiet unless asked for.
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Log.Level = "warn"
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}

func withContainer(ctx context.Context, fn func(*app.Container) error) error {
	cfg, logr, err := loadConfig()
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	container, err := app.New(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer container.Close()
	return fn(container)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
