package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{
		OpenAI: OpenAIConfig{APIKey: "sk-test"},
		Jira: JiraConfig{
			Domain:   "example.atlassian.net",
			Email:    "dev@example.com",
			APIToken: "jira-token",
		},
		VectorDB: VectorDBConfig{APIKey: "vdb-key"},
	}
	applyDefaults(cfg)
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_StoreKeyOnlyForFuelix(t *testing.T) {
	for _, provider := range []string{"qdrant", "chromem"} {
		cfg := validConfig()
		cfg.VectorDB.Provider = provider
		cfg.VectorDB.APIKey = ""
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() with %s and no store key = %v, want nil", provider, err)
		}
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		missing []string
	}{
		{
			name:    "openai key",
			mutate:  func(c *Config) { c.OpenAI.APIKey = "" },
			missing: []string{"OPENAI_API_KEY"},
		},
		{
			name:    "jira domain",
			mutate:  func(c *Config) { c.Jira.Domain = "" },
			missing: []string{"JIRA_DOMAIN"},
		},
		{
			name:    "fuelix store key",
			mutate:  func(c *Config) { c.VectorDB.APIKey = "" },
			missing: []string{"VECTOR_DB_API_KEY"},
		},
		{
			name: "all four",
			mutate: func(c *Config) {
				c.OpenAI.APIKey = ""
				c.Jira = JiraConfig{ProjectKey: "PRTFL", MaxResults: 10}
			},
			missing: []string{"OPENAI_API_KEY", "JIRA_DOMAIN", "JIRA_EMAIL", "JIRA_API_TOKEN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrMissingRequired) {
				t.Fatalf("Validate() error = %v, want ErrMissingRequired", err)
			}
			for _, name := range tt.missing {
				if !strings.Contains(err.Error(), name) {
					t.Errorf("error %q does not name %s", err, name)
				}
			}
			if got := cfg.RequiredMissing(); len(got) != len(tt.missing) {
				t.Errorf("RequiredMissing() = %v, want %v", got, tt.missing)
			}
		})
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero max results", func(c *Config) { c.Jira.MaxResults = -1 }, "max results"},
		{"negative relay timeout", func(c *Config) { c.MCP.Timeout = -time.Second }, "relay timeout"},
		{"unknown embedding provider", func(c *Config) { c.Embedding.Provider = "cohere" }, "embedding provider"},
		{"unknown store provider", func(c *Config) { c.VectorDB.Provider = "pinecone" }, "vector store provider"},
		{"bad qdrant port", func(c *Config) { c.Qdrant.Port = 70000 }, "qdrant port"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"negative rate limit", func(c *Config) { c.Embedding.RateLimit = -1 }, "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() error = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q should contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestScrubConfig_IsEnabled(t *testing.T) {
	if (ScrubConfig{}).IsEnabled() {
		t.Error("unset scrub should default to disabled")
	}
	if !(ScrubConfig{Enabled: true}).IsEnabled() {
		t.Error("explicit true should enable scrubbing")
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-very-secret")

	if s.String() != "[REDACTED]" {
		t.Errorf("String() = %q, want [REDACTED]", s.String())
	}
	if s.Value() != "sk-very-secret" {
		t.Errorf("Value() = %q", s.Value())
	}

	b, err := s.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"[REDACTED]"` {
		t.Errorf("MarshalJSON() = %s", b)
	}

	var empty Secret
	if empty.IsSet() || empty.String() != "" {
		t.Error("empty secret should be unset and print empty")
	}
}
