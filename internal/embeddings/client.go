package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/logging"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4096

// Config holds configuration for an embedding provider.
type Config struct {
	// Provider is "openai" (default) or "langchain".
	Provider string

	// BaseURL is the service root; requests go to {BaseURL}/v1/embeddings.
	BaseURL string

	// Model is used when Embed is called with an empty model.
	Model string

	APIKey config.Secret

	Timeout time.Duration

	// RateLimit is the maximum requests per second. Zero disables limiting.
	RateLimit float64
}

// ConfigFromApp derives embedding settings from application config.
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		Provider:  cfg.Embedding.Provider,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.OpenAI.APIKey,
		Timeout:   cfg.Embedding.Timeout,
		RateLimit: cfg.Embedding.RateLimit,
	}
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.BaseURL == "" {
		c.BaseURL = config.DefaultEmbeddingBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = config.DefaultEmbeddingModel
	}
	if c.Timeout <= 0 {
		c.Timeout = config.DefaultEmbeddingTimeout
	}
}

// Option configures a provider.
type Option func(*options)

type options struct {
	meter      metric.Meter
	logger     *logging.Logger
	httpClient *http.Client
}

// WithMeter records request metrics on meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) { o.meter = meter }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithHTTPClient replaces the HTTP client. Its timeout is left as given.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	return o
}

// Client calls the OpenAI embeddings endpoint.
type Client struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	metrics *Metrics
	logger  *logging.Logger
}

// New creates an OpenAI embedding client.
func New(cfg Config, opts ...Option) *Client {
	cfg.applyDefaults()
	o := buildOptions(opts)

	client := o.httpClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		config:  cfg,
		client:  client,
		limiter: newLimiter(cfg.RateLimit),
		metrics: NewMetrics(o.meter, o.logger),
		logger:  o.logger.Named("embeddings"),
	}
}

// newLimiter returns nil when rate is not positive.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding of text. An empty model selects the
// configured default.
func (c *Client) Embed(ctx context.Context, text, model string) (vec []float32, err error) {
	if model == "" {
		model = c.config.Model
	}

	start := time.Now()
	defer func() {
		c.metrics.Record(ctx, model, time.Since(start), err)
	}()

	if err := checkPreconditions(c.config.APIKey, text); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	body, err := json.Marshal(embeddingRequest{Input: text, Model: model})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey.Value())

	c.logger.Debug(ctx, "requesting embedding", zap.String("model", model), zap.Int("text_len", len(text)))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn(ctx, "embedding request rejected", zap.Int("status", resp.StatusCode))
		return nil, &TransportError{Status: resp.StatusCode, Body: truncate(string(respBody), maxErrorBody)}
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding in response", ErrMalformedResponse)
	}

	return parsed.Data[0].Embedding, nil
}

// checkPreconditions rejects calls that must not reach the network.
func checkPreconditions(apiKey config.Secret, text string) error {
	if !apiKey.IsSet() {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrNotConfigured)
	}
	if text == "" {
		return ErrEmptyInput
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
