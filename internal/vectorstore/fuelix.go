package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/logging"
	"github.com/fyrsmithlabs/issuevec/internal/vectorize"
)

var fuelixTracer = otel.Tracer("github.com/fyrsmithlabs/issuevec/internal/vectorstore/fuelix")

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4096

// FuelixConfig holds configuration for the REST vector service.
type FuelixConfig struct {
	BaseURL   string
	Region    string
	Namespace string
	APIKey    config.Secret
	Timeout   time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *FuelixConfig) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = config.DefaultVectorDBBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Region == "" {
		c.Region = config.DefaultVectorDBRegion
	}
	if c.Namespace == "" {
		c.Namespace = config.DefaultVectorDBNS
	}
	c.Timeout = timeoutOrDefault(c.Timeout)
}

// Validate validates the configuration.
func (c *FuelixConfig) Validate() error {
	if !c.APIKey.IsSet() {
		return fmt.Errorf("%w: VECTOR_DB_API_KEY is required for the fuelix backend", ErrInvalidConfig)
	}
	return nil
}

// FuelixStore talks to the fuelix vector REST API.
type FuelixStore struct {
	config    FuelixConfig
	dimension int
	metric    string
	client    *http.Client
	logger    *logging.Logger
}

// NewFuelixStore creates a FuelixStore. A nil client uses one with the
// configured timeout.
func NewFuelixStore(cfg FuelixConfig, dimension int, metric string, client *http.Client, logger *logging.Logger) (*FuelixStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FuelixStore{
		config:    cfg,
		dimension: dimension,
		metric:    metric,
		client:    client,
		logger:    logger.Named("vectorstore.fuelix"),
	}, nil
}

func (s *FuelixStore) namespaceURL() string {
	return fmt.Sprintf("%s/%s/v2/namespaces/%s", s.config.BaseURL, url.PathEscape(s.config.Region), url.PathEscape(s.config.Namespace))
}

type createCollectionRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
}

// EnsureCollection creates the collection. HTTP 409, or a 4xx body that says
// the collection already exists, is success.
func (s *FuelixStore) EnsureCollection(ctx context.Context, name string) (*Ack, error) {
	ctx, span := fuelixTracer.Start(ctx, "FuelixStore.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("dimension", s.dimension))

	if err := ValidateCollectionName(name); err != nil {
		return nil, &StoreError{Op: OpCreate, Err: err}
	}

	status, body, err := s.post(ctx, s.namespaceURL(), createCollectionRequest{
		Name:      name,
		Dimension: s.dimension,
		Metric:    s.metric,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &StoreError{Op: OpCreate, Err: err}
	}

	ack := &Ack{Collection: name, Raw: rawJSON(body)}
	switch {
	case status >= 200 && status < 300:
		s.logger.Info(ctx, "created collection", zap.String("collection", name), zap.Int("dimension", s.dimension))
	case alreadyExists(status, body):
		ack.Existed = true
		s.logger.Info(ctx, "collection already exists", zap.String("collection", name), zap.Int("status", status))
	default:
		serr := &StoreError{Op: OpCreate, Status: status, Body: truncate(string(body), maxErrorBody)}
		span.RecordError(serr)
		span.SetStatus(codes.Error, serr.Error())
		return nil, serr
	}

	span.SetStatus(codes.Ok, "success")
	return ack, nil
}

// alreadyExists reports whether a create response means the collection exists.
func alreadyExists(status int, body []byte) bool {
	if status == http.StatusConflict {
		return true
	}
	return status >= 400 && status < 500 && strings.Contains(strings.ToLower(string(body)), "already exists")
}

type upsertRequest struct {
	Vectors []vectorize.VectorRecord `json:"vectors"`
}

// Upsert writes records in one request.
func (s *FuelixStore) Upsert(ctx context.Context, name string, records []vectorize.VectorRecord) (*Ack, error) {
	if len(records) == 0 {
		return &Ack{Collection: name, Skipped: true}, nil
	}

	ctx, span := fuelixTracer.Start(ctx, "FuelixStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("record_count", len(records)))

	if err := ValidateCollectionName(name); err != nil {
		return nil, &StoreError{Op: OpUpsert, Err: err}
	}

	endpoint := s.namespaceURL() + "/" + url.PathEscape(name) + "/upsert"
	status, body, err := s.post(ctx, endpoint, upsertRequest{Vectors: records})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &StoreError{Op: OpUpsert, Err: err}
	}
	if status < 200 || status >= 300 {
		serr := &StoreError{Op: OpUpsert, Status: status, Body: truncate(string(body), maxErrorBody)}
		span.RecordError(serr)
		span.SetStatus(codes.Error, serr.Error())
		return nil, serr
	}

	s.logger.Debug(ctx, "upserted records", zap.String("collection", name), zap.Int("count", len(records)))
	span.SetStatus(codes.Ok, "success")
	return &Ack{Collection: name, Count: len(records), Raw: rawJSON(body)}, nil
}

// post sends v as JSON and returns the status and body. A non-nil error
// means no response was received.
func (s *FuelixStore) post(ctx context.Context, endpoint string, v any) (int, []byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey.Value())

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Close is a no-op; the HTTP client holds no dedicated resources.
func (s *FuelixStore) Close() error {
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
