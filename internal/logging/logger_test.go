package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/issuevec/internal/config"
)

func newBufferedLogger(t *testing.T, mutate func(*Config)) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	cfg.Output.Writer = &buf
	if mutate != nil {
		mutate(cfg)
	}
	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	logger, buf := newBufferedLogger(t, nil)
	logger.Info(context.Background(), "hello", zap.Int("count", 3))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "hello", lines[0]["msg"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "issuevec", lines[0]["service"])
	assert.EqualValues(t, 3, lines[0]["count"])
}

func TestLogger_TraceLevelName(t *testing.T) {
	logger, buf := newBufferedLogger(t, nil)
	logger.Trace(context.Background(), "raw output")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "trace", lines[0]["level"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(t, func(c *Config) { c.Level = zapcore.WarnLevel })
	ctx := context.Background()

	logger.Debug(ctx, "dropped")
	logger.Info(ctx, "dropped too")
	logger.Warn(ctx, "kept")
	logger.Error(ctx, "kept too")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.False(t, logger.Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Enabled(zapcore.ErrorLevel))
}

func TestLogger_RedactsPerCallFields(t *testing.T) {
	logger, buf := newBufferedLogger(t, nil)

	logger.Info(context.Background(), "calling api",
		zap.String("api_key", "sk-abcdefghijklmnopqrstuvwxyz"),
		zap.String("header", "Bearer abc.def.ghi"),
		zap.String("issue", "PRTFL-1"),
	)

	out := buf.String()
	assert.NotContains(t, out, "sk-abcdefghijklmnopqrstuvwxyz")
	assert.NotContains(t, out, "abc.def.ghi")
	assert.Contains(t, out, "PRTFL-1")
}

func TestLogger_RedactsWithFields(t *testing.T) {
	logger, buf := newBufferedLogger(t, nil)

	logger.With(zap.String("token", "jira-secret")).Info(context.Background(), "child")

	assert.NotContains(t, buf.String(), "jira-secret")
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestLogger_SecretHelper(t *testing.T) {
	logger, buf := newBufferedLogger(t, nil)

	logger.Info(context.Background(), "loaded", Secret("openai", config.Secret("sk-12345")))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "[REDACTED:8]", lines[0]["openai"])
}

func TestLogger_Named(t *testing.T) {
	logger, buf := newBufferedLogger(t, nil)
	logger.Named("relay").Info(context.Background(), "spawned")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "relay", lines[0]["logger"])
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)

	cfg = NewDefaultConfig()
	cfg.Output.Console = false
	_, err = NewLogger(cfg, nil)
	assert.ErrorContains(t, err, "at least one output")
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(config.LogConfig{Level: "debug", Format: "console"}, true)
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.True(t, cfg.Output.OTEL)

	cfg, err = FromAppConfig(config.LogConfig{Level: "trace"}, false)
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)

	_, err = FromAppConfig(config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]zapcore.Level{
		"trace": TraceLevel,
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := LevelFromString(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNewDualCore_NilOtelProvider(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output.OTEL = true

	core, err := newDualCore(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, core)

	cfg.Output.Console = false
	_, err = newDualCore(cfg, nil)
	assert.Error(t, err)
}
