package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/issuevec/internal/logging"
)

// Langchain embeds through langchaingo's OpenAI client. One langchaingo
// embedder is built lazily per model.
type Langchain struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	metrics *Metrics
	logger  *logging.Logger

	mu        sync.Mutex
	embedders map[string]lcembeddings.Embedder
}

// NewLangchain creates a langchaingo-backed provider.
func NewLangchain(cfg Config, opts ...Option) *Langchain {
	cfg.applyDefaults()
	o := buildOptions(opts)

	client := o.httpClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Langchain{
		config:    cfg,
		client:    client,
		limiter:   newLimiter(cfg.RateLimit),
		metrics:   NewMetrics(o.meter, o.logger),
		logger:    o.logger.Named("embeddings.langchain"),
		embedders: make(map[string]lcembeddings.Embedder),
	}
}

// Embed returns the embedding of text. Failures from langchaingo surface as
// *TransportError with Status 0.
func (l *Langchain) Embed(ctx context.Context, text, model string) (vec []float32, err error) {
	if model == "" {
		model = l.config.Model
	}

	start := time.Now()
	defer func() {
		l.metrics.Record(ctx, model, time.Since(start), err)
	}()

	if err := checkPreconditions(l.config.APIKey, text); err != nil {
		return nil, err
	}

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	embedder, err := l.embedder(model)
	if err != nil {
		return nil, err
	}

	l.logger.Debug(ctx, "requesting embedding", zap.String("model", model), zap.Int("text_len", len(text)))

	vec, err = embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: no embedding in response", ErrMalformedResponse)
	}
	return vec, nil
}

func (l *Langchain) embedder(model string) (lcembeddings.Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.embedders[model]; ok {
		return e, nil
	}

	llm, err := openai.New(
		openai.WithBaseURL(l.config.BaseURL+"/v1"),
		openai.WithToken(l.config.APIKey.Value()),
		openai.WithEmbeddingModel(model),
		openai.WithHTTPClient(l.client),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating langchain client: %v", ErrInvalidConfig, err)
	}

	e, err := lcembeddings.NewEmbedder(llm, lcembeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("%w: creating langchain embedder: %v", ErrInvalidConfig, err)
	}

	l.embedders[model] = e
	return e, nil
}
