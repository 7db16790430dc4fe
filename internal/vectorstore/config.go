package vectorstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/embeddings"
)

// Config selects and configures a backend.
type Config struct {
	// Provider is "fuelix" (default), "qdrant" or "chromem".
	Provider string

	// Dimension is fixed at collection creation.
	Dimension int

	// Metric is the similarity metric, "cosine" by default.
	Metric string

	Fuelix  FuelixConfig
	Qdrant  QdrantConfig
	Chromem ChromemConfig
}

// ConfigFromApp derives store settings from application config. A zero
// dimension is derived from the embedding model.
func ConfigFromApp(cfg *config.Config) Config {
	dim := cfg.VectorDB.Dimension
	if dim == 0 {
		dim = embeddings.DimensionForModel(cfg.Embedding.Model)
	}
	return Config{
		Provider:  cfg.VectorDB.Provider,
		Dimension: dim,
		Metric:    cfg.VectorDB.Metric,
		Fuelix: FuelixConfig{
			BaseURL:   cfg.VectorDB.BaseURL,
			Region:    cfg.VectorDB.Region,
			Namespace: cfg.VectorDB.Namespace,
			APIKey:    cfg.VectorDB.APIKey,
			Timeout:   cfg.VectorDB.Timeout,
		},
		Qdrant: QdrantConfig{
			Host:    cfg.Qdrant.Host,
			Port:    cfg.Qdrant.Port,
			APIKey:  cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Timeout:    cfg.VectorDB.Timeout,
			MaxRetries: cfg.Qdrant.MaxRetries,
		},
		Chromem: ChromemConfig{
			Path:     cfg.Chromem.Path,
			Compress: cfg.Chromem.Compress,
		},
	}
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "fuelix"
	}
	if c.Dimension == 0 {
		c.Dimension = embeddings.DefaultDimension
	}
	if c.Metric == "" {
		c.Metric = config.DefaultVectorDBMetric
	}
	c.Metric = strings.ToLower(c.Metric)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, c.Dimension)
	}
	switch c.Metric {
	case "cosine", "euclidean", "dotproduct":
	default:
		return fmt.Errorf("%w: unsupported metric %q (supported: cosine, euclidean, dotproduct)", ErrInvalidConfig, c.Metric)
	}
	return nil
}

// defaultTimeout is applied when a backend timeout is unset.
const defaultTimeout = config.DefaultVectorDBTimeout

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}
