package embeddings

import (
	"context"
	"fmt"
	"strings"
)

// Embedder produces an embedding for a single text.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// DefaultDimension is used for models not listed in modelDimensions.
const DefaultDimension = 1536

var modelDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// DimensionForModel returns the vector size produced by model.
func DimensionForModel(model string) int {
	if dim, ok := modelDimensions[strings.ToLower(strings.TrimSpace(model))]; ok {
		return dim
	}
	return DefaultDimension
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg Config, opts ...Option) (Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return New(cfg, opts...), nil
	case "langchain":
		return NewLangchain(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
