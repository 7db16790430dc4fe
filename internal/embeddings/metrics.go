package embeddings

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/logging"
)

const instrumentationName = "github.com/fyrsmithlabs/issuevec/internal/embeddings"

// Metric names.
const (
	MetricRequests = "issuevec.embedding.requests"
	MetricErrors   = "issuevec.embedding.errors"
	MetricDuration = "issuevec.embedding.duration_seconds"
)

// Metrics holds embedding request instruments.
type Metrics struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates embedding instruments on meter. A nil meter uses the
// global provider. Instrument creation failures are logged and the
// instrument is left unset.
func NewMetrics(meter metric.Meter, logger *logging.Logger) *Metrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx := context.Background()
	m := &Metrics{}

	var err error
	m.requests, err = meter.Int64Counter(
		MetricRequests,
		metric.WithDescription("Embedding requests by model and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create requests counter", zap.Error(err))
	}

	m.errors, err = meter.Int64Counter(
		MetricErrors,
		metric.WithDescription("Failed embedding requests by model and outcome"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create errors counter", zap.Error(err))
	}

	m.duration, err = meter.Float64Histogram(
		MetricDuration,
		metric.WithDescription("Duration of embedding requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	return m
}

// Record records one embedding request.
func (m *Metrics) Record(ctx context.Context, model string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("outcome", outcome(err)),
	)

	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyInput), errors.Is(err, ErrNotConfigured):
		return "rejected"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "transport"
	}
}
