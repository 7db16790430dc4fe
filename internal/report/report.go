// Package report publishes a summary of each pipeline run.
//
// Reporters are best-effort: a failure to publish is returned to the caller,
// which logs it, and never changes the run's outcome.
package report

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/logging"
)

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID         string    `json:"run_id"`
	Project       string    `json:"project"`
	Collection    string    `json:"collection"`
	FinalState    string    `json:"final_state"`
	Fetched       int       `json:"fetched"`
	Vectorized    int       `json:"vectorized"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	Upserted      int       `json:"upserted"`
	SampleFetched bool      `json:"sample_fetched"`
	Err           string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// Succeeded reports whether the run reached Done.
func (r *RunReport) Succeeded() bool {
	return r.FinalState == "Done"
}

// Duration returns the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Reporter publishes a run report.
type Reporter interface {
	Report(ctx context.Context, r *RunReport) error
}

// Multi fans a report out to several reporters. Every reporter is tried.
type Multi struct {
	reporters []Reporter
	closers   []func() error
}

// NewMulti combines reporters.
func NewMulti(reporters ...Reporter) *Multi {
	return &Multi{reporters: reporters}
}

// Len returns the number of reporters.
func (m *Multi) Len() int {
	return len(m.reporters)
}

// Report implements Reporter. Errors from all reporters are joined.
func (m *Multi) Report(ctx context.Context, r *RunReport) error {
	var errs []error
	for _, rep := range m.reporters {
		if err := rep.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases reporter connections.
func (m *Multi) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the reporters enabled in cfg. A reporter that cannot be
// set up is logged and left out.
func FromConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger) *Multi {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Multi{}

	if cfg.Pushgateway.URL != "" {
		m.reporters = append(m.reporters, NewPushReporter(cfg.Pushgateway.URL, cfg.Pushgateway.Job))
	}

	if cfg.NATS.URL != "" {
		nr, err := NewNATSReporter(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			logger.Warn(ctx, "run reports will not be published to NATS", zap.String("url", cfg.NATS.URL), zap.Error(err))
		} else {
			m.reporters = append(m.reporters, nr)
			m.closers = append(m.closers, nr.Close)
		}
	}

	return m
}
