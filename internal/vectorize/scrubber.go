package vectorize

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/logging"
	"github.com/fyrsmithlabs/issuevec/pkg/secrets"
)

// Scrubber removes secrets from issue text before it leaves the process.
type Scrubber interface {
	Scrub(ctx context.Context, text string) (string, error)
}

// SecretScrubber adapts a gitleaks-backed secrets.Scrubber. Only rule IDs
// and counts are logged, never the redacted values.
type SecretScrubber struct {
	scrubber *secrets.Scrubber
	logger   *logging.Logger
}

// NewSecretScrubber wraps s. A nil logger discards output.
func NewSecretScrubber(s *secrets.Scrubber, logger *logging.Logger) *SecretScrubber {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SecretScrubber{scrubber: s, logger: logger.Named("scrub")}
}

// Scrub implements Scrubber.
func (s *SecretScrubber) Scrub(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	result := s.scrubber.Redact(text)
	if result.Audit.HasRedactions() {
		s.logger.Warn(ctx, "redacted secrets from issue text",
			zap.Int("count", result.Audit.Summary.TotalSecrets),
			zap.Strings("rules", result.Audit.Rules()),
		)
	}
	return result.Content, nil
}
