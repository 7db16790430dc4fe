package vectorstore

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/logging"
	"github.com/fyrsmithlabs/issuevec/internal/vectorize"
)

// Option configures New.
type Option func(*options)

type options struct {
	meter      metric.Meter
	httpClient *http.Client
}

// WithMeter records store metrics on meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) { o.meter = meter }
}

// WithHTTPClient replaces the HTTP client of REST backends.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// New creates the Store selected by cfg.Provider:
//   - "fuelix" (default): REST vector service, requires an API key
//   - "qdrant": Qdrant server over gRPC
//   - "chromem": embedded database on local disk
//
// Example usage:
//
//	store, err := vectorstore.New(ctx, vectorstore.ConfigFromApp(cfg), logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func New(ctx context.Context, cfg Config, logger *logging.Logger, opts ...Option) (Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		store Store
		err   error
	)
	switch cfg.Provider {
	case "fuelix":
		store, err = NewFuelixStore(cfg.Fuelix, cfg.Dimension, cfg.Metric, o.httpClient, logger)
	case "qdrant":
		store, err = NewQdrantStore(ctx, cfg.Qdrant, cfg.Dimension, cfg.Metric, logger)
	case "chromem":
		store, err = NewChromemStore(cfg.Chromem, cfg.Dimension, cfg.Metric, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q (supported: fuelix, qdrant, chromem)", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s store: %w", cfg.Provider, err)
	}

	logger.Debug(ctx, "vector store ready",
		zap.String("provider", cfg.Provider),
		zap.Int("dimension", cfg.Dimension),
		zap.String("metric", cfg.Metric),
	)

	return instrument(store, cfg.Provider, o.meter, logger), nil
}

// Unavailable returns a Store whose operations all fail with err. It stands
// in for a backend that could not be constructed, so the failure surfaces
// when the collection is first ensured.
func Unavailable(err error) Store {
	return unavailableStore{err: err}
}

type unavailableStore struct {
	err error
}

func (s unavailableStore) EnsureCollection(context.Context, string) (*Ack, error) {
	return nil, &StoreError{Op: OpCreate, Err: s.err}
}

func (s unavailableStore) Upsert(context.Context, string, []vectorize.VectorRecord) (*Ack, error) {
	return nil, &StoreError{Op: OpUpsert, Err: s.err}
}

func (unavailableStore) Close() error { return nil }
