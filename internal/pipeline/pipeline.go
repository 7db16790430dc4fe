// Package pipeline drives one extract-vectorize-load run.
//
// A run is a small state machine:
//
//	ValidatingConfig -> EnsuringCollection -> FetchingIssues -> Vectorizing
//	  -> Upserting -> FetchingSample -> Done
//
// Only ValidatingConfig and EnsuringCollection can end the run in Failed.
// Every later state logs its failures and moves on with whatever it has.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/logging"
	"github.com/fyrsmithlabs/issuevec/internal/report"
	"github.com/fyrsmithlabs/issuevec/internal/tracker"
	"github.com/fyrsmithlabs/issuevec/internal/vectorize"
	"github.com/fyrsmithlabs/issuevec/internal/vectorstore"
	"github.com/fyrsmithlabs/issuevec/pkg/collections"
)

const instrumentationName = "github.com/fyrsmithlabs/issuevec/internal/pipeline"

// Report summarizes a run.
type Report = report.RunReport

// IssueSource reads issues from the tracker. Satisfied by *tracker.Client.
type IssueSource interface {
	ListIssues(ctx context.Context, projectKey string, maxResults int, jqlFilter string) (*tracker.IssueList, error)
	GetIssue(ctx context.Context, issueKey string) (*tracker.IssueDetail, error)
}

// Vectorizer turns an issue into a record. A nil record with nil error is a
// skip. Satisfied by *vectorize.Vectorizer.
type Vectorizer interface {
	Vectorize(ctx context.Context, issue tracker.Issue) (*vectorize.VectorRecord, error)
}

// Pipeline runs the issue ETL.
type Pipeline struct {
	cfg        *config.Config
	source     IssueSource
	vectorizer Vectorizer
	store      vectorstore.Store
	reporter   report.Reporter
	tracer     trace.Tracer
	logger     *logging.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReporter publishes the run report when the run ends.
func WithReporter(r report.Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// WithTracer sets the tracer for state spans.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pipeline.
func New(cfg *config.Config, source IssueSource, vectorizer Vectorizer, store vectorstore.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:        cfg,
		source:     source,
		vectorizer: vectorizer,
		store:      store,
		tracer:     otel.Tracer(instrumentationName),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("pipeline")
	return p
}

// run holds the data passed between states.
type run struct {
	report  *Report
	issues  []tracker.Issue
	records []vectorize.VectorRecord
	err     error
}

type step func(ctx context.Context, r *run) State

// Run executes the pipeline. The returned error is non-nil only when the run
// ends in Failed; the report is returned either way.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	r := &run{report: &Report{
		RunID:     uuid.NewString(),
		Project:   p.cfg.Jira.ProjectKey,
		StartedAt: time.Now().UTC(),
	}}

	ctx = logging.WithRunID(ctx, r.report.RunID)
	ctx = logging.WithProject(ctx, r.report.Project)
	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("run.id", r.report.RunID),
		attribute.String("project", r.report.Project),
	))
	defer span.End()

	steps := map[State]step{
		StateValidatingConfig:   p.validateConfig,
		StateEnsuringCollection: p.ensureCollection,
		StateFetchingIssues:     p.fetchIssues,
		StateVectorizing:        p.vectorizeIssues,
		StateUpserting:          p.upsert,
		StateFetchingSample:     p.fetchSample,
	}

	state := StateValidatingConfig
	for !state.Terminal() {
		next := p.runState(ctx, state, steps[state], r)
		if err := checkTransition(state, next); err != nil {
			panic(err)
		}
		p.logger.Debug(ctx, "state transition", zap.String("from", string(state)), zap.String("to", string(next)))
		state = next
	}

	r.report.FinalState = string(state)
	r.report.FinishedAt = time.Now().UTC()
	if r.err != nil {
		r.report.Err = r.err.Error()
	}

	span.SetAttributes(
		attribute.String("final_state", r.report.FinalState),
		attribute.Int("issues.fetched", r.report.Fetched),
		attribute.Int("records.upserted", r.report.Upserted),
	)

	p.publish(ctx, r.report)

	if state == StateFailed {
		span.RecordError(r.err)
		span.SetStatus(codes.Error, r.err.Error())
		p.logger.Error(ctx, "pipeline failed", zap.Error(r.err))
		return r.report, r.err
	}

	span.SetStatus(codes.Ok, "done")
	p.logger.Info(ctx, "pipeline complete",
		zap.Int("fetched", r.report.Fetched),
		zap.Int("vectorized", r.report.Vectorized),
		zap.Int("skipped", r.report.Skipped),
		zap.Int("failed", r.report.Failed),
		zap.Int("upserted", r.report.Upserted),
		zap.Duration("duration", r.report.Duration()),
	)
	return r.report, nil
}

// runState executes one step inside its own span.
func (p *Pipeline) runState(ctx context.Context, state State, fn step, r *run) State {
	ctx, span := p.tracer.Start(ctx, "pipeline."+string(state))
	defer span.End()

	next := fn(ctx, r)
	span.SetAttributes(attribute.String("next_state", string(next)))
	if next == StateFailed && r.err != nil {
		span.RecordError(r.err)
		span.SetStatus(codes.Error, r.err.Error())
	}
	return next
}

func (p *Pipeline) validateConfig(ctx context.Context, r *run) State {
	if err := p.cfg.Validate(); err != nil {
		r.err = err
		return StateFailed
	}

	name, err := collections.NameForProject(p.cfg.Jira.ProjectKey)
	if err != nil {
		r.err = fmt.Errorf("%w: %v", config.ErrInvalid, err)
		return StateFailed
	}
	r.report.Collection = name

	p.logger.Info(ctx, "configuration valid", zap.String("collection", name))
	return StateEnsuringCollection
}

func (p *Pipeline) ensureCollection(ctx context.Context, r *run) State {
	ack, err := p.store.EnsureCollection(ctx, r.report.Collection)
	if err != nil {
		r.err = fmt.Errorf("ensuring collection %s: %w", r.report.Collection, err)
		return StateFailed
	}

	p.logger.Info(ctx, "collection ready",
		zap.String("collection", r.report.Collection),
		zap.Bool("existed", ack.Existed),
	)
	return StateFetchingIssues
}

func (p *Pipeline) fetchIssues(ctx context.Context, r *run) State {
	list, err := p.source.ListIssues(ctx, p.cfg.Jira.ProjectKey, p.cfg.Jira.MaxResults, p.cfg.Jira.JQLFilter)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		var ferr *tracker.FetchError
		if errors.As(err, &ferr) {
			fields = append(fields, zap.String("tool", ferr.Tool), zap.String("kind", ferr.Kind.String()))
		}
		p.logger.Warn(ctx, "failed to fetch issues, continuing with none", fields...)
	} else {
		r.issues = list.Issues
		r.report.Failed += len(list.Rejected)
		r.report.Fetched = len(list.Rejected)
	}
	r.report.Fetched += len(r.issues)

	if len(r.issues) == 0 {
		p.logger.Warn(ctx, "no issues found", zap.String("project", p.cfg.Jira.ProjectKey))
		return StateDone
	}

	p.logger.Info(ctx, "fetched issues", zap.Int("count", len(r.issues)))
	for _, issue := range r.issues {
		p.logger.Info(ctx, "issue",
			zap.String("issue_key", issue.Key),
			zap.String("summary", issue.Fields.Summary),
		)
	}
	return StateVectorizing
}

func (p *Pipeline) vectorizeIssues(ctx context.Context, r *run) State {
	for _, issue := range r.issues {
		rec, err := p.vectorizer.Vectorize(ctx, issue)
		switch {
		case err != nil:
			r.report.Failed++
			p.logger.Warn(ctx, "failed to vectorize issue", zap.String("issue_key", issue.Key), zap.Error(err))
		case rec == nil:
			r.report.Skipped++
		default:
			r.records = append(r.records, *rec)
		}
	}
	r.report.Vectorized = len(r.records)

	p.logger.Info(ctx, "vectorized issues",
		zap.Int("records", r.report.Vectorized),
		zap.Int("skipped", r.report.Skipped),
		zap.Int("failed", r.report.Failed),
	)
	return StateUpserting
}

func (p *Pipeline) upsert(ctx context.Context, r *run) State {
	if len(r.records) == 0 {
		p.logger.Warn(ctx, "no records to upsert", zap.String("collection", r.report.Collection))
		return StateFetchingSample
	}

	ack, err := p.store.Upsert(ctx, r.report.Collection, r.records)
	if err != nil {
		fields := []zap.Field{zap.String("collection", r.report.Collection), zap.Error(err)}
		var serr *vectorstore.StoreError
		if errors.As(err, &serr) && serr.Status != 0 {
			fields = append(fields, zap.Int("status", serr.Status))
		}
		p.logger.Error(ctx, "failed to upsert records", fields...)
		return StateFetchingSample
	}

	r.report.Upserted = ack.Count
	fields := []zap.Field{zap.String("collection", r.report.Collection), zap.Int("count", ack.Count)}
	if len(ack.Raw) > 0 {
		fields = append(fields, zap.ByteString("response", ack.Raw))
	}
	p.logger.Info(ctx, "upserted records", fields...)
	return StateFetchingSample
}

func (p *Pipeline) fetchSample(ctx context.Context, r *run) State {
	key := r.issues[0].Key
	if key == "" {
		p.logger.Warn(ctx, "first issue has no key, skipping sample fetch")
		return StateDone
	}

	detail, err := p.source.GetIssue(ctx, key)
	if err != nil {
		p.logger.Warn(ctx, "failed to fetch sample issue", zap.String("issue_key", key), zap.Error(err))
		return StateDone
	}
	r.report.SampleFetched = true

	p.logger.Info(ctx, "sample issue detail",
		zap.String("issue_key", key),
		zap.String("detail", prettyJSON(detail.Raw)),
	)
	return StateDone
}

// prettyJSON indents raw, or returns it unchanged if it is not valid JSON.
func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// publish hands the report to the reporter. Failures are logged only.
func (p *Pipeline) publish(ctx context.Context, rep *Report) {
	if p.reporter == nil {
		return
	}
	if err := p.reporter.Report(ctx, rep); err != nil {
		p.logger.Warn(ctx, "failed to publish run report", zap.Error(err))
	}
}
