// Package vectorize turns tracker issues into vector records.
//
// Issues with neither summary nor description are skipped without calling
// the embedding service. A skip is reported as a nil record and nil error.
package vectorize

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/embeddings"
	"github.com/fyrsmithlabs/issuevec/internal/logging"
	"github.com/fyrsmithlabs/issuevec/internal/tracker"
)

// Vectorizer embeds issues one at a time.
type Vectorizer struct {
	embedder embeddings.Embedder
	scrubber Scrubber
	model    string
	logger   *logging.Logger
}

// Option configures a Vectorizer.
type Option func(*Vectorizer)

// WithScrubber scrubs summary and description before embedding. The stored
// metadata holds the scrubbed text too.
func WithScrubber(s Scrubber) Option {
	return func(v *Vectorizer) { v.scrubber = s }
}

// WithModel selects the embedding model. Empty uses the embedder's default.
func WithModel(model string) Option {
	return func(v *Vectorizer) { v.model = model }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(v *Vectorizer) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New creates a Vectorizer.
func New(embedder embeddings.Embedder, opts ...Option) *Vectorizer {
	v := &Vectorizer{embedder: embedder, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(v)
	}
	v.logger = v.logger.Named("vectorize")
	return v
}

// Vectorize returns the vector record for issue, or nil without error when
// the issue has no text to embed.
func (v *Vectorizer) Vectorize(ctx context.Context, issue tracker.Issue) (*VectorRecord, error) {
	if issue.Key == "" {
		v.logger.Error(ctx, "issue has no key", zap.String("summary", issue.Fields.Summary))
		return nil, ErrMissingKey
	}
	ctx = logging.WithIssueKey(ctx, issue.Key)

	summary := issue.Fields.Summary
	description := issue.Fields.Description
	if summary == "" && description == "" {
		v.logger.Warn(ctx, "issue has no summary or description, skipping")
		return nil, nil
	}

	if v.scrubber != nil {
		var err error
		if summary, err = v.scrubber.Scrub(ctx, summary); err != nil {
			return nil, v.fail(ctx, issue.Key, ErrScrub, err)
		}
		if description, err = v.scrubber.Scrub(ctx, description); err != nil {
			return nil, v.fail(ctx, issue.Key, ErrScrub, err)
		}
	}

	values, err := v.embedder.Embed(ctx, Text(summary, description), v.model)
	if err != nil {
		return nil, v.fail(ctx, issue.Key, ErrEmbedding, err)
	}

	return &VectorRecord{
		ID:     issue.Key,
		Values: values,
		Metadata: Metadata{
			Summary:     summary,
			Description: description,
			Project:     issue.Fields.Project.Key,
		},
	}, nil
}

func (v *Vectorizer) fail(ctx context.Context, key string, kind, err error) error {
	v.logger.Warn(ctx, "skipping issue", zap.String("reason", kind.Error()), zap.Error(err))
	return &Error{Key: key, Kind: kind, Err: err}
}

// Text builds the embedding input for an issue.
func Text(summary, description string) string {
	return strings.TrimSpace("Summary: " + summary + "\n\nDescription: " + description)
}
