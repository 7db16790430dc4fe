package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/logging"
	"github.com/fyrsmithlabs/issuevec/internal/vectorize"
)

var qdrantTracer = otel.Tracer("github.com/fyrsmithlabs/issuevec/internal/vectorstore/qdrant")

// issueKeyNamespace seeds the UUIDv5 point IDs derived from issue keys.
var issueKeyNamespace = uuid.MustParse("6f1c2a4e-9b7d-4c1e-8a53-2d9e4f7b1c30")

// Payload keys written with every point.
const (
	payloadIssueKey    = "issue_key"
	payloadSummary     = "summary"
	payloadDescription = "description"
	payloadProject     = "project"
)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT HTTP REST port).
	// Default: 6334 (gRPC), not 6333 (HTTP)
	Port int

	APIKey config.Secret

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// Timeout bounds each gRPC call.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient failures.
	// Default: 0 (each call is attempted once)
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry (exponential backoff).
	// Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of failures before opening circuit.
	// Default: 5
	CircuitBreakerThreshold int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	c.Timeout = timeoutOrDefault(c.Timeout)
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts, temporary unavailability.
// Returns false for invalid config, not found, permission denied.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func isAlreadyExists(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == grpccodes.AlreadyExists
}

// QdrantStore writes points through Qdrant's native gRPC client.
type QdrantStore struct {
	client    *qdrant.Client
	config    QdrantConfig
	dimension int
	distance  qdrant.Distance
	logger    *logging.Logger

	// circuitBreaker tracks failures for circuit breaker pattern
	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

// NewQdrantStore creates a QdrantStore and checks the server is reachable.
func NewQdrantStore(ctx context.Context, cfg QdrantConfig, dimension int, metric string, logger *logging.Logger) (*QdrantStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("vectorstore.qdrant")

	distance, err := qdrantDistance(metric)
	if err != nil {
		return nil, err
	}

	if !cfg.UseTLS {
		logger.Warn(ctx, "qdrant gRPC using plaintext (TLS disabled)", zap.String("host", cfg.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey.Value(),
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", ErrInvalidConfig, err)
	}

	store := &QdrantStore{
		client:    client,
		config:    cfg,
		dimension: dimension,
		distance:  distance,
		logger:    logger,
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check failed: %w", err)
	}

	return store, nil
}

func qdrantDistance(metric string) (qdrant.Distance, error) {
	switch metric {
	case "cosine", "":
		return qdrant.Distance_Cosine, nil
	case "euclidean":
		return qdrant.Distance_Euclid, nil
	case "dotproduct":
		return qdrant.Distance_Dot, nil
	default:
		return 0, fmt.Errorf("%w: unsupported metric %q", ErrInvalidConfig, metric)
	}
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// EnsureCollection creates the collection unless it exists. A concurrent
// creation reported as AlreadyExists is success.
func (s *QdrantStore) EnsureCollection(ctx context.Context, name string) (*Ack, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("dimension", s.dimension))

	if err := ValidateCollectionName(name); err != nil {
		return nil, &StoreError{Op: OpCreate, Err: err}
	}

	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func(ctx context.Context) error {
		var err error
		exists, err = s.client.CollectionExists(ctx, name)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &StoreError{Op: OpCreate, Err: err}
	}
	if exists {
		s.logger.Info(ctx, "collection already exists", zap.String("collection", name))
		return &Ack{Collection: name, Existed: true}, nil
	}

	err = s.retryOperation(ctx, "create_collection", func(ctx context.Context) error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: s.distance,
			}),
		})
	})
	if isAlreadyExists(err) {
		s.logger.Info(ctx, "collection already exists", zap.String("collection", name))
		return &Ack{Collection: name, Existed: true}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &StoreError{Op: OpCreate, Err: err}
	}

	s.logger.Info(ctx, "created collection", zap.String("collection", name), zap.Int("dimension", s.dimension))
	span.SetStatus(codes.Ok, "success")
	return &Ack{Collection: name}, nil
}

// Upsert writes records as points in one request and waits for the write.
func (s *QdrantStore) Upsert(ctx context.Context, name string, records []vectorize.VectorRecord) (*Ack, error) {
	if len(records) == 0 {
		return &Ack{Collection: name, Skipped: true}, nil
	}

	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("record_count", len(records)))

	if err := ValidateCollectionName(name); err != nil {
		return nil, &StoreError{Op: OpUpsert, Err: err}
	}

	points := toPoints(records)
	err := s.retryOperation(ctx, "upsert", func(ctx context.Context) error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &StoreError{Op: OpUpsert, Err: err}
	}

	s.logger.Debug(ctx, "upserted points", zap.String("collection", name), zap.Int("count", len(points)))
	span.SetStatus(codes.Ok, "success")
	return &Ack{Collection: name, Count: len(points)}, nil
}

// PointID returns the deterministic point ID for an issue key. Qdrant only
// accepts UUIDs and integers, so the key itself is kept in the payload.
func PointID(issueKey string) string {
	return uuid.NewSHA1(issueKeyNamespace, []byte(issueKey)).String()
}

func toPoints(records []vectorize.VectorRecord) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(records))
	for i, rec := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(rec.ID)),
			Vectors: qdrant.NewVectors(rec.Values...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadIssueKey:    rec.ID,
				payloadSummary:     rec.Metadata.Summary,
				payloadDescription: rec.Metadata.Description,
				payloadProject:     rec.Metadata.Project,
			}),
		}
	}
	return points
}

// retryOperation retries an operation with exponential backoff. Each attempt
// runs under the configured call timeout.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func(context.Context) error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", operationName)
		}

		callCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		err := operation(callCtx)
		cancel()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		s.recordFailure()

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}

		s.logger.Warn(ctx, "retrying qdrant operation",
			zap.String("operation", operationName),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()

	if s.circuitBreaker.failures >= s.config.CircuitBreakerThreshold {
		// Allow retry after 30 seconds
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}
