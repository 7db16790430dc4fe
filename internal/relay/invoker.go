// Package relay invokes tools exposed by a local command-relay process.
//
// Each call spawns `<runtime> <script> <envelope>` where envelope is a single
// JSON-RPC style request. The process prints one JSON document on stdout and
// exits. The invoker does not interpret that document.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/logging"
)

// waitDelay bounds how long Wait blocks on output pipes after the process is killed.
const waitDelay = 2 * time.Second

// Config configures an Invoker.
type Config struct {
	ScriptPath string
	Runtime    string
	Timeout    time.Duration

	// Env is added to the child's copy of the parent environment.
	Env map[string]string
}

// ConfigFromApp derives relay settings from application config. Tracker
// credentials are passed to the child only when set.
func ConfigFromApp(cfg *config.Config) Config {
	env := make(map[string]string, 3)
	if cfg.Jira.Domain != "" {
		env["JIRA_DOMAIN"] = cfg.Jira.Domain
	}
	if cfg.Jira.Email != "" {
		env["JIRA_EMAIL"] = cfg.Jira.Email
	}
	if cfg.Jira.APIToken.IsSet() {
		env["JIRA_API_TOKEN"] = cfg.Jira.APIToken.Value()
	}
	return Config{
		ScriptPath: cfg.MCP.ServerPath,
		Runtime:    cfg.MCP.Runtime,
		Timeout:    cfg.MCP.Timeout,
		Env:        env,
	}
}

// Invoker runs relay tool calls.
type Invoker struct {
	cfg    Config
	logger *logging.Logger
}

// New creates an Invoker. A nil logger discards output.
func New(cfg Config, logger *logging.Logger) *Invoker {
	if cfg.Runtime == "" {
		cfg.Runtime = config.DefaultRelayRuntime
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultRelayTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Invoker{cfg: cfg, logger: logger.Named("relay")}
}

type envelope struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  params `json:"params"`
	ID      int    `json:"id"`
}

type params struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Envelope returns the serialized request for a tool call.
func Envelope(tool string, args map[string]any) ([]byte, error) {
	if args == nil {
		args = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // JQL uses < and >
	if err := enc.Encode(envelope{
		JSONRPC: "2.0",
		Method:  "call_tool",
		Params:  params{Name: tool, Arguments: args},
		ID:      1,
	}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Invoke calls a relay tool and returns the top-level JSON document it printed.
func (i *Invoker) Invoke(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	if _, err := os.Stat(i.cfg.ScriptPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, i.cfg.ScriptPath, err)
	}

	req, err := Envelope(tool, args)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", tool, err)
	}

	i.logger.Info(ctx, "invoking relay tool",
		zap.String("tool", tool),
		zap.Strings("args", argKeys(args)),
	)

	runCtx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, i.cfg.Runtime, i.cfg.ScriptPath, string(req))
	cmd.Env = i.childEnv()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if stderr.Len() > 0 {
		i.logger.Debug(ctx, "relay stderr", zap.String("tool", tool), zap.String("stderr", stderr.String()))
	}
	i.logger.Trace(ctx, "relay stdout", zap.String("tool", tool), zap.String("stdout", stdout.String()))

	if runErr != nil {
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			return nil, fmt.Errorf("%w: tool %s after %v", ErrInvocationTimeout, tool, i.cfg.Timeout)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("relay tool %s: %w", tool, ctx.Err())
		case errors.Is(runErr, exec.ErrNotFound):
			return nil, fmt.Errorf("%w: runtime %q: %v", ErrToolUnavailable, i.cfg.Runtime, runErr)
		}

		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &InvocationFailedError{
			Tool:     tool,
			ExitCode: exitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
		}
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if !json.Valid(out) {
		return nil, &MalformedResponseError{Tool: tool, Raw: stdout.String()}
	}

	i.logger.Debug(ctx, "relay tool completed",
		zap.String("tool", tool),
		zap.Duration("elapsed", elapsed),
		zap.Int("bytes", len(out)),
	)

	return json.RawMessage(out), nil
}

// childEnv copies the parent environment and appends configured overrides.
// exec keeps the last value for duplicate keys.
func (i *Invoker) childEnv() []string {
	env := os.Environ()
	keys := make([]string, 0, len(i.cfg.Env))
	for k := range i.cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+i.cfg.Env[k])
	}
	return env
}

func argKeys(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
