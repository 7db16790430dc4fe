// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stderr + OpenTelemetry)
//   - Automatic context field injection (trace_id, run.id, project, issue.key)
//   - Secret redaction at the encoder
//
// # Usage
//
//	cfg, err := logging.FromAppConfig(appCfg.Log, appCfg.Otel.Enable)
//	logger, err := logging.NewLogger(cfg, global.GetLoggerProvider())
//	defer logger.Sync()
//
//	ctx = logging.WithRunID(ctx, runID)
//	ctx = logging.WithProject(ctx, "PRTFL")
//	logger.Info(ctx, "fetched issues", zap.Int("count", n))
//
// # Secret Redaction
//
// Secrets are redacted at several layers:
//  1. Domain primitives (config.Secret type)
//  2. Encoder-level field name filtering
//  3. Encoder-level pattern matching (bearer/basic headers, OpenAI keys)
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertNoSecrets(t)
package logging
