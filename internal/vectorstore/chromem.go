package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/logging"
	"github.com/fyrsmithlabs/issuevec/internal/vectorize"
)

var chromemTracer = otel.Tracer("github.com/fyrsmithlabs/issuevec/internal/vectorstore/chromem")

// DefaultChromemPath is used when ChromemConfig.Path is empty.
const DefaultChromemPath = "~/.local/share/issuevec/vectors"

// errPrecomputedOnly is returned if chromem ever asks for an embedding.
var errPrecomputedOnly = errors.New("chromem store accepts precomputed embeddings only")

// ChromemConfig holds configuration for the embedded store.
type ChromemConfig struct {
	// Path is the persistence directory. A leading ~ expands to the home directory.
	Path string

	// Compress enables gzip compression of persisted files.
	Compress bool
}

// ChromemStore writes records into an embedded chromem-go database.
type ChromemStore struct {
	db        *chromem.DB
	dimension int
	metric    string
	logger    *logging.Logger
}

// NewChromemStore opens or creates the persistent database.
func NewChromemStore(cfg ChromemConfig, dimension int, metric string, logger *logging.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if metric != "" && metric != "cosine" {
		return nil, fmt.Errorf("%w: chromem supports only the cosine metric, got %q", ErrInvalidConfig, metric)
	}
	if cfg.Path == "" {
		cfg.Path = DefaultChromemPath
	}

	path, err := expandChromemPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger = logger.Named("vectorstore.chromem")
	logger.Info(context.Background(), "chromem store initialized",
		zap.String("path", path),
		zap.Bool("compress", cfg.Compress),
		zap.Int("dimension", dimension),
	)

	return &ChromemStore{db: db, dimension: dimension, metric: "cosine", logger: logger}, nil
}

// expandChromemPath expands ~ to home directory.
func expandChromemPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc must be passed instead of nil: chromem-go falls back to its
// OpenAI embedder for persisted collections when given nil.
func embeddingFunc(context.Context, string) ([]float32, error) {
	return nil, errPrecomputedOnly
}

// EnsureCollection gets or creates the collection.
func (s *ChromemStore) EnsureCollection(ctx context.Context, name string) (*Ack, error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("dimension", s.dimension))

	if err := ValidateCollectionName(name); err != nil {
		return nil, &StoreError{Op: OpCreate, Err: err}
	}

	existed := s.db.GetCollection(name, embeddingFunc) != nil

	metadata := map[string]string{
		"dimension": strconv.Itoa(s.dimension),
		"metric":    s.metric,
	}
	if _, err := s.db.GetOrCreateCollection(name, metadata, embeddingFunc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &StoreError{Op: OpCreate, Err: err}
	}

	if existed {
		s.logger.Info(ctx, "collection already exists", zap.String("collection", name))
	} else {
		s.logger.Info(ctx, "created collection", zap.String("collection", name), zap.Int("dimension", s.dimension))
	}
	span.SetStatus(codes.Ok, "success")
	return &Ack{Collection: name, Existed: existed}, nil
}

// Upsert adds records with their precomputed embeddings. Existing IDs are
// replaced.
func (s *ChromemStore) Upsert(ctx context.Context, name string, records []vectorize.VectorRecord) (*Ack, error) {
	if len(records) == 0 {
		return &Ack{Collection: name, Skipped: true}, nil
	}

	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()
	span.SetAttributes(attribute.String("collection", name), attribute.Int("record_count", len(records)))

	collection := s.db.GetCollection(name, embeddingFunc)
	if collection == nil {
		return nil, &StoreError{Op: OpUpsert, Err: fmt.Errorf("%w: %s", ErrCollectionNotFound, name)}
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		if len(rec.Values) != s.dimension {
			return nil, &StoreError{Op: OpUpsert, Err: fmt.Errorf("%w: %s has %d values, collection expects %d",
				ErrDimensionMismatch, rec.ID, len(rec.Values), s.dimension)}
		}
		docs[i] = chromem.Document{
			ID:      rec.ID,
			Content: vectorize.Text(rec.Metadata.Summary, rec.Metadata.Description),
			Metadata: map[string]string{
				payloadSummary:     rec.Metadata.Summary,
				payloadDescription: rec.Metadata.Description,
				payloadProject:     rec.Metadata.Project,
			},
			Embedding: rec.Values,
		}
	}

	// Concurrency of 1 since embeddings are already computed.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &StoreError{Op: OpUpsert, Err: err}
	}

	s.logger.Debug(ctx, "upserted documents", zap.String("collection", name), zap.Int("count", len(docs)))
	span.SetStatus(codes.Ok, "success")
	return &Ack{Collection: name, Count: len(docs)}, nil
}

// Close is a no-op; chromem persists on every write.
func (s *ChromemStore) Close() error {
	return nil
}
