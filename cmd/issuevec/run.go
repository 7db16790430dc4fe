package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/embeddings"
	"github.com/fyrsmithlabs/issuevec/internal/logging"
	"github.com/fyrsmithlabs/issuevec/internal/pipeline"
	"github.com/fyrsmithlabs/issuevec/internal/report"
	"github.com/fyrsmithlabs/issuevec/internal/vectorize"
	"github.com/fyrsmithlabs/issuevec/internal/vectorstore"
	"github.com/fyrsmithlabs/issuevec/pkg/secrets"
)

const instrumentationName = "github.com/fyrsmithlabs/issuevec"

// runOptions are command-line overrides for a pipeline run.
type runOptions struct {
	project    string
	maxResults int
	jql        string
}

func bindRunFlags(fs *pflag.FlagSet, opts *runOptions) {
	fs.StringVar(&opts.project, "project", "", "Jira project key (overrides JIRA_PROJECT_KEY)")
	fs.IntVar(&opts.maxResults, "max-results", 0, "maximum issues to fetch (overrides JIRA_MAX_RESULTS)")
	fs.StringVar(&opts.jql, "jql", "", "extra JQL filter (overrides JIRA_JQL_FILTER)")
}

// apply copies the flags that were set on the command line into cfg.
func (o *runOptions) apply(cfg *config.Config, fs *pflag.FlagSet) {
	if fs.Changed("project") {
		cfg.Jira.ProjectKey = o.project
	}
	if fs.Changed("max-results") {
		cfg.Jira.MaxResults = o.maxResults
	}
	if fs.Changed("jql") {
		cfg.Jira.JQLFilter = o.jql
	}
}

func newRunCmd(configPath *string, opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, embed and upsert issues for a project",
		Long: `Run the pipeline once:

  validate config -> ensure collection -> fetch issues -> vectorize
    -> upsert -> fetch a sample issue

Only configuration and collection errors fail the run. Issues that cannot be
embedded are skipped and reported in the run summary.

Examples:
  issuevec run
  issuevec run --project OPS --max-results 50
  issuevec run --jql "status = Open"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			opts.apply(a.cfg, cmd.Flags())
			return runPipeline(cmd, a)
		},
	}
	bindRunFlags(cmd.Flags(), opts)
	return cmd
}

// runPipeline wires the pipeline components and runs it once. A run that ends
// in Failed returns an error so the process exits non-zero.
func runPipeline(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	logger := a.logger

	reporter := report.FromConfig(ctx, a.cfg, logger)
	defer reporter.Close()

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithTracer(a.tel.Tracer(instrumentationName)),
		pipeline.WithReporter(reporter),
	}

	// Invalid configuration fails in the pipeline's first state, before any
	// backend is touched, so the failure is still reported.
	if err := a.cfg.Validate(); err != nil {
		_, err := pipeline.New(a.cfg, nil, nil, nil, opts...).Run(ctx)
		return err
	}

	meter := a.tel.Meter(instrumentationName)

	embedder, err := embeddings.NewProvider(embeddings.ConfigFromApp(a.cfg),
		embeddings.WithMeter(meter),
		embeddings.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}

	vectorizer, err := newVectorizer(a.cfg, embedder, logger)
	if err != nil {
		return err
	}

	// A backend that cannot be built fails the run in EnsuringCollection, so
	// the failure is reported like any other fatal state.
	store, err := vectorstore.New(ctx, vectorstore.ConfigFromApp(a.cfg), logger, vectorstore.WithMeter(meter))
	if err != nil {
		logger.Error(ctx, "vector store unavailable", zap.String("provider", a.cfg.VectorDB.Provider), zap.Error(err))
		store = vectorstore.Unavailable(err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn(ctx, "closing vector store", zap.Error(err))
		}
	}()

	p := pipeline.New(a.cfg, a.trackerClient(), vectorizer, store, opts...)
	rep, err := p.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s, %d fetched, %d upserted into %s\n",
		rep.RunID, rep.FinalState, rep.Fetched, rep.Upserted, rep.Collection)
	return nil
}

// newVectorizer builds the vectorizer. Issue text is embedded and stored
// as-is unless scrubbing is enabled.
func newVectorizer(cfg *config.Config, embedder embeddings.Embedder, logger *logging.Logger) (*vectorize.Vectorizer, error) {
	opts := []vectorize.Option{
		vectorize.WithModel(cfg.Embedding.Model),
		vectorize.WithLogger(logger),
	}
	if cfg.Scrub.IsEnabled() {
		scrubber, err := newScrubber(cfg.Scrub.Allowlist)
		if err != nil {
			return nil, err
		}
		opts = append(opts, vectorize.WithScrubber(vectorize.NewSecretScrubber(scrubber, logger)))
	}
	return vectorize.New(embedder, opts...), nil
}

func newScrubber(allowlistPath string) (*secrets.Scrubber, error) {
	allowlist, err := secrets.LoadAllowlists(allowlistPath)
	if err != nil {
		return nil, fmt.Errorf("loading scrub allowlist: %w", err)
	}
	s, err := secrets.NewScrubber(allowlist)
	if err != nil {
		return nil, fmt.Errorf("building secret scrubber: %w", err)
	}
	return s, nil
}
