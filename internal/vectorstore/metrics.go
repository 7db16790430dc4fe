package vectorstore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/logging"
	"github.com/fyrsmithlabs/issuevec/internal/vectorize"
)

const instrumentationName = "github.com/fyrsmithlabs/issuevec/internal/vectorstore"

// Metric names.
const (
	MetricOperations = "issuevec.vectorstore.operations"
	MetricDuration   = "issuevec.vectorstore.duration_seconds"
	MetricRecords    = "issuevec.vectorstore.records_upserted"
)

// instrumentedStore records operation counts and latency around a backend.
type instrumentedStore struct {
	Store
	backend  string
	ops      metric.Int64Counter
	duration metric.Float64Histogram
	records  metric.Int64Counter
}

// instrument wraps store with metrics. A nil meter uses the global provider.
func instrument(store Store, backend string, meter metric.Meter, logger *logging.Logger) Store {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	ctx := context.Background()
	s := &instrumentedStore{Store: store, backend: backend}

	var err error
	s.ops, err = meter.Int64Counter(
		MetricOperations,
		metric.WithDescription("Vector store operations by backend, operation and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create operations counter", zap.Error(err))
	}

	s.duration, err = meter.Float64Histogram(
		MetricDuration,
		metric.WithDescription("Duration of vector store operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create duration histogram", zap.Error(err))
	}

	s.records, err = meter.Int64Counter(
		MetricRecords,
		metric.WithDescription("Records written to the vector store"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		logger.Warn(ctx, "failed to create records counter", zap.Error(err))
	}

	return s
}

func (s *instrumentedStore) EnsureCollection(ctx context.Context, name string) (*Ack, error) {
	start := time.Now()
	ack, err := s.Store.EnsureCollection(ctx, name)
	s.record(ctx, OpCreate, time.Since(start), ack, err)
	return ack, err
}

func (s *instrumentedStore) Upsert(ctx context.Context, name string, records []vectorize.VectorRecord) (*Ack, error) {
	start := time.Now()
	ack, err := s.Store.Upsert(ctx, name, records)
	s.record(ctx, OpUpsert, time.Since(start), ack, err)
	if err == nil && ack != nil && s.records != nil {
		s.records.Add(ctx, int64(ack.Count), metric.WithAttributes(attribute.String("backend", s.backend)))
	}
	return ack, err
}

func (s *instrumentedStore) record(ctx context.Context, op Op, d time.Duration, ack *Ack, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case ack != nil && ack.Skipped:
		outcome = "skipped"
	case ack != nil && ack.Existed:
		outcome = "existed"
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", s.backend),
		attribute.String("op", string(op)),
		attribute.String("outcome", outcome),
	)
	if s.ops != nil {
		s.ops.Add(ctx, 1, attrs)
	}
	if s.duration != nil {
		s.duration.Record(ctx, d.Seconds(), attrs)
	}
}
