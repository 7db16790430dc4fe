package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/logging"
	"github.com/fyrsmithlabs/issuevec/internal/relay"
	"github.com/fyrsmithlabs/issuevec/internal/telemetry"
	"github.com/fyrsmithlabs/issuevec/internal/tracker"
)

const shutdownTimeout = 5 * time.Second

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	tel    *telemetry.Telemetry
}

// newApp loads configuration and starts telemetry and logging.
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Otel, version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Log, cfg.Otel.Enable)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("invalid log configuration: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if health := tel.Health(); health.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.Error(health.Err))
	}

	return &app{cfg: cfg, logger: logger, tel: tel}, nil
}

// trackerClient wires the relay invoker into a tracker client.
func (a *app) trackerClient() *tracker.Client {
	inv := relay.New(relay.ConfigFromApp(a.cfg), a.logger)
	return tracker.NewClient(inv, a.logger)
}

// Close flushes logs and telemetry. The parent context may already be
// cancelled, so shutdown gets its own deadline.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = a.logger.Sync()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
	}
}
