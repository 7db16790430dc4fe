package report

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/fyrsmithlabs/issuevec/internal/config"
)

// PushReporter pushes run metrics to a Prometheus Pushgateway. Metrics live
// in a private registry so nothing leaks from the default one.
type PushReporter struct {
	url    string
	job    string
	client *http.Client
}

// NewPushReporter creates a PushReporter. An empty job uses "issuevec".
func NewPushReporter(url, job string) *PushReporter {
	if job == "" {
		job = config.DefaultPushgatewayJob
	}
	return &PushReporter{url: url, job: job}
}

// WithClient sets the HTTP client used for pushes.
func (p *PushReporter) WithClient(client *http.Client) *PushReporter {
	p.client = client
	return p
}

// Report implements Reporter. The push replaces earlier metrics of the same
// job and project grouping.
func (p *PushReporter) Report(ctx context.Context, r *RunReport) error {
	reg := prometheus.NewRegistry()

	issues := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "issuevec",
		Subsystem: "pipeline",
		Name:      "issues",
		Help:      "Issues handled in the last run, by stage",
	}, []string{"stage"})
	success := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "issuevec",
		Subsystem: "pipeline",
		Name:      "last_run_success",
		Help:      "1 if the last run reached Done, 0 otherwise",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "issuevec",
		Subsystem: "pipeline",
		Name:      "last_run_duration_seconds",
		Help:      "Wall time of the last run in seconds",
	})
	finished := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "issuevec",
		Subsystem: "pipeline",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})
	reg.MustRegister(issues, success, duration, finished)

	issues.WithLabelValues("fetched").Set(float64(r.Fetched))
	issues.WithLabelValues("vectorized").Set(float64(r.Vectorized))
	issues.WithLabelValues("skipped").Set(float64(r.Skipped))
	issues.WithLabelValues("failed").Set(float64(r.Failed))
	issues.WithLabelValues("upserted").Set(float64(r.Upserted))
	if r.Succeeded() {
		success.Set(1)
	}
	duration.Set(r.Duration().Seconds())
	if !r.FinishedAt.IsZero() {
		finished.Set(float64(r.FinishedAt.Unix()))
	}

	pusher := push.New(p.url, p.job).Gatherer(reg)
	if r.Project != "" {
		pusher = pusher.Grouping("project", r.Project)
	}
	if p.client != nil {
		pusher = pusher.Client(p.client)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing run metrics: %w", err)
	}
	return nil
}
