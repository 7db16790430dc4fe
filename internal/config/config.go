// Package config provides configuration loading for issuevec.
//
// Configuration is read once at process start from an optional YAML file and
// environment variables, then passed by value into every component
// constructor. No component reads the environment on its own.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMissingRequired indicates one or more required settings are unset.
	ErrMissingRequired = errors.New("missing required configuration")

	// ErrInvalid indicates a setting holds an unusable value.
	ErrInvalid = errors.New("invalid configuration")
)

// Defaults applied when neither the config file nor the environment set a value.
const (
	DefaultProjectKey       = "PRTFL"
	DefaultMaxResults       = 10
	DefaultRelayScriptPath  = "/home/codespace/Documents/Cline/MCP/jira-server/build/index.js"
	DefaultRelayRuntime     = "node"
	DefaultRelayTimeout     = 2 * time.Minute
	DefaultEmbeddingBaseURL = "https://api.openai.com"
	DefaultEmbeddingModel   = "text-embedding-ada-002"
	DefaultEmbeddingTimeout = 30 * time.Second
	DefaultVectorDBBaseURL  = "https://vectors.fuelix.ai"
	DefaultVectorDBRegion   = "us-east-1"
	DefaultVectorDBNS       = "jira_tickets"
	DefaultVectorDBMetric   = "cosine"
	DefaultVectorDBTimeout  = 30 * time.Second
	DefaultNATSSubject      = "issuevec.runs"
	DefaultPushgatewayJob   = "issuevec"
)

// Config holds the complete issuevec configuration.
type Config struct {
	OpenAI      OpenAIConfig      `koanf:"openai"`
	Jira        JiraConfig        `koanf:"jira"`
	MCP         MCPConfig         `koanf:"mcp"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
	VectorDB    VectorDBConfig    `koanf:"vector_db"`
	Qdrant      QdrantConfig      `koanf:"qdrant"`
	Chromem     ChromemConfig     `koanf:"chromem"`
	Scrub       ScrubConfig       `koanf:"scrub"`
	NATS        NATSConfig        `koanf:"nats"`
	Pushgateway PushgatewayConfig `koanf:"pushgateway"`
	Otel        OtelConfig        `koanf:"otel"`
	Log         LogConfig         `koanf:"log"`
}

// OpenAIConfig holds the embedding service credential.
type OpenAIConfig struct {
	APIKey Secret `koanf:"api_key"`
}

// JiraConfig holds tracker credentials and the page to fetch.
type JiraConfig struct {
	Domain     string `koanf:"domain"`
	Email      string `koanf:"email"`
	APIToken   Secret `koanf:"api_token"`
	ProjectKey string `koanf:"project_key"`
	MaxResults int    `koanf:"max_results"`
	JQLFilter  string `koanf:"jql_filter"`
}

// MCPConfig holds settings for the tool-relay subprocess.
type MCPConfig struct {
	ServerPath string        `koanf:"server_path"`
	Runtime    string        `koanf:"runtime"`
	Timeout    time.Duration `koanf:"timeout"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider  string        `koanf:"provider"` // openai or langchain
	Model     string        `koanf:"model"`
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
}

// VectorDBConfig holds vector store settings.
type VectorDBConfig struct {
	Provider  string        `koanf:"provider"` // fuelix, qdrant or chromem
	APIKey    Secret        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url"`
	Region    string        `koanf:"region"`
	Namespace string        `koanf:"namespace"`
	Dimension int           `koanf:"dimension"` // 0 = derive from embedding model
	Metric    string        `koanf:"metric"`
	Timeout   time.Duration `koanf:"timeout"`
}

// QdrantConfig holds the qdrant backend connection.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	APIKey Secret `koanf:"api_key"`
	UseTLS bool   `koanf:"use_tls"`

	// MaxRetries enables retrying transient gRPC failures. 0 disables retries.
	MaxRetries int `koanf:"max_retries"`
}

// ChromemConfig holds the embedded chromem backend location.
type ChromemConfig struct {
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// ScrubConfig controls secret scrubbing of issue text.
type ScrubConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Allowlist string `koanf:"allowlist"` // path to a gitleaks-style allowlist TOML
}

// IsEnabled reports whether scrubbing is on. Off unless SCRUB_ENABLED=true.
func (s ScrubConfig) IsEnabled() bool {
	return s.Enabled
}

// NATSConfig holds the run-report publisher target. Empty URL disables it.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// PushgatewayConfig holds the Prometheus Pushgateway target. Empty URL disables it.
type PushgatewayConfig struct {
	URL string `koanf:"url"`
	Job string `koanf:"job"`
}

// OtelConfig holds OpenTelemetry export settings.
type OtelConfig struct {
	Enable      bool   `koanf:"enable"`
	Endpoint    string `koanf:"endpoint"`
	Protocol    string `koanf:"protocol"` // grpc or http/protobuf
	Insecure    *bool  `koanf:"insecure"`
	ServiceName string `koanf:"service_name"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RequiredMissing returns the environment names of required settings that are unset.
func (c *Config) RequiredMissing() []string {
	var missing []string
	if !c.OpenAI.APIKey.IsSet() {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.Jira.Domain == "" {
		missing = append(missing, "JIRA_DOMAIN")
	}
	if c.Jira.Email == "" {
		missing = append(missing, "JIRA_EMAIL")
	}
	if !c.Jira.APIToken.IsSet() {
		missing = append(missing, "JIRA_API_TOKEN")
	}
	if c.VectorDB.Provider == "fuelix" && !c.VectorDB.APIKey.IsSet() {
		missing = append(missing, "VECTOR_DB_API_KEY")
	}
	return missing
}

// Validate validates the configuration.
//
// Returns ErrMissingRequired if any of the four required credentials, or the
// fuelix store key when that backend is selected, are unset, and ErrInvalid for out-of-range or unknown values.
func (c *Config) Validate() error {
	if missing := c.RequiredMissing(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}

	if c.Jira.ProjectKey == "" {
		return fmt.Errorf("%w: project key cannot be empty", ErrInvalid)
	}
	if c.Jira.MaxResults < 1 {
		return fmt.Errorf("%w: max results must be positive, got %d", ErrInvalid, c.Jira.MaxResults)
	}
	if c.MCP.Timeout <= 0 {
		return fmt.Errorf("%w: relay timeout must be positive", ErrInvalid)
	}
	if c.Embedding.Timeout <= 0 {
		return fmt.Errorf("%w: embedding timeout must be positive", ErrInvalid)
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("%w: embedding rate limit cannot be negative", ErrInvalid)
	}

	switch c.Embedding.Provider {
	case "openai", "langchain":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalid, c.Embedding.Provider)
	}

	switch c.VectorDB.Provider {
	case "fuelix", "qdrant", "chromem":
	default:
		return fmt.Errorf("%w: unknown vector store provider %q", ErrInvalid, c.VectorDB.Provider)
	}
	if c.VectorDB.Dimension < 0 {
		return fmt.Errorf("%w: vector dimension cannot be negative", ErrInvalid)
	}
	if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
		return fmt.Errorf("%w: invalid qdrant port: %d (must be 1-65535)", ErrInvalid, c.Qdrant.Port)
	}

	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("%w: log format must be 'json' or 'console', got %q", ErrInvalid, c.Log.Format)
	}

	return nil
}
