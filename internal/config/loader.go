package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// envSections maps environment prefixes to config sections. Longer prefixes
// must precede shorter ones sharing a stem.
var envSections = []struct {
	prefix  string
	section string
}{
	{"VECTOR_DB_", "vector_db"},
	{"OPENAI_", "openai"},
	{"JIRA_", "jira"},
	{"MCP_", "mcp"},
	{"EMBEDDING_", "embedding"},
	{"QDRANT_", "qdrant"},
	{"CHROMEM_", "chromem"},
	{"SCRUB_", "scrub"},
	{"NATS_", "nats"},
	{"PUSHGATEWAY_", "pushgateway"},
	{"OTEL_", "otel"},
	{"LOG_", "log"},
}

// Load loads configuration from a YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (JIRA_DOMAIN, VECTOR_DB_API_KEY, etc.)
//  2. YAML config file (~/.config/issuevec/config.yaml)
//  3. Hardcoded defaults
//
// A missing config file is not an error. An existing file must have 0600 or
// 0400 permissions and be at most 1MB.
//
// # Environment Variable Mapping
//
// Each variable is split into a known section prefix and a field name:
//
//	JIRA_API_TOKEN      -> jira.api_token
//	VECTOR_DB_API_KEY   -> vector_db.api_key
//	MCP_SERVER_PATH     -> mcp.server_path
//
// Variables without a known prefix are ignored.
//
// Load does not check for required credentials; call Validate for that.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "issuevec", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate via the descriptor to avoid a TOCTOU race
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// envKey maps an environment variable name to a koanf key, or "" to skip it.
func envKey(name string) string {
	for _, s := range envSections {
		if strings.HasPrefix(name, s.prefix) && len(name) > len(s.prefix) {
			return s.section + "." + strings.ToLower(strings.TrimPrefix(name, s.prefix))
		}
	}
	return ""
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Jira.ProjectKey == "" {
		cfg.Jira.ProjectKey = DefaultProjectKey
	}
	if cfg.Jira.MaxResults == 0 {
		cfg.Jira.MaxResults = DefaultMaxResults
	}

	if cfg.MCP.ServerPath == "" {
		cfg.MCP.ServerPath = DefaultRelayScriptPath
	}
	if cfg.MCP.Runtime == "" {
		cfg.MCP.Runtime = DefaultRelayRuntime
	}
	if cfg.MCP.Timeout == 0 {
		cfg.MCP.Timeout = DefaultRelayTimeout
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultEmbeddingModel
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = DefaultEmbeddingBaseURL
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = DefaultEmbeddingTimeout
	}

	if cfg.VectorDB.Provider == "" {
		cfg.VectorDB.Provider = "fuelix"
	}
	if cfg.VectorDB.BaseURL == "" {
		cfg.VectorDB.BaseURL = DefaultVectorDBBaseURL
	}
	if cfg.VectorDB.Region == "" {
		cfg.VectorDB.Region = DefaultVectorDBRegion
	}
	if cfg.VectorDB.Namespace == "" {
		cfg.VectorDB.Namespace = DefaultVectorDBNS
	}
	if cfg.VectorDB.Metric == "" {
		cfg.VectorDB.Metric = DefaultVectorDBMetric
	}
	if cfg.VectorDB.Timeout == 0 {
		cfg.VectorDB.Timeout = DefaultVectorDBTimeout
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}

	if cfg.Chromem.Path == "" {
		cfg.Chromem.Path = "~/.local/share/issuevec/vectors"
	}

	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = DefaultNATSSubject
	}
	if cfg.Pushgateway.Job == "" {
		cfg.Pushgateway.Job = DefaultPushgatewayJob
	}

	if cfg.Otel.Endpoint == "" {
		cfg.Otel.Endpoint = "localhost:4317"
	}
	if cfg.Otel.Protocol == "" {
		cfg.Otel.Protocol = "grpc"
	}
	if cfg.Otel.ServiceName == "" {
		cfg.Otel.ServiceName = "issuevec"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
