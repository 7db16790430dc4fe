package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/logging"
)

func sampleReport() *RunReport {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &RunReport{
		RunID:         "run-1",
		Project:       "PRTFL",
		Collection:    "jira_issues_prtfl",
		FinalState:    "Done",
		Fetched:       2,
		Vectorized:    1,
		Skipped:       1,
		Upserted:      1,
		SampleFetched: true,
		StartedAt:     start,
		FinishedAt:    start.Add(3 * time.Second),
	}
}

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1, // Random port
		NoLog:  true,
		NoSigs: true,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})

	return server
}

func TestRunReport(t *testing.T) {
	r := sampleReport()
	assert.True(t, r.Succeeded())
	assert.Equal(t, 3*time.Second, r.Duration())

	r.FinalState = "Failed"
	assert.False(t, r.Succeeded())

	assert.Zero(t, (&RunReport{StartedAt: time.Now()}).Duration())
}

func TestNATSReporter_Publishes(t *testing.T) {
	server := startTestNATSServer(t)

	sub, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 1)
	_, err = sub.ChanSubscribe("issuevec.runs", msgs)
	require.NoError(t, err)
	require.NoError(t, sub.Flush())

	reporter, err := NewNATSReporter(server.ClientURL(), "")
	require.NoError(t, err)
	defer reporter.Close()

	require.NoError(t, reporter.Report(context.Background(), sampleReport()))

	select {
	case msg := <-msgs:
		var got RunReport
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, "run-1", got.RunID)
		assert.Equal(t, "jira_issues_prtfl", got.Collection)
		assert.Equal(t, 1, got.Upserted)
		assert.True(t, got.SampleFetched)
	case <-time.After(5 * time.Second):
		t.Fatal("no run report received")
	}
}

func TestNewNATSReporter_Unreachable(t *testing.T) {
	_, err := NewNATSReporter("nats://127.0.0.1:1", "")
	assert.Error(t, err)
}

func TestPushReporter_Pushes(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		method, path = r.Method, r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewPushReporter(srv.URL, "").Report(context.Background(), sampleReport())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/issuevec/project/PRTFL", path)
	assert.True(t, bytes.Contains(body, []byte("issuevec_pipeline_last_run_success")))
	assert.True(t, bytes.Contains(body, []byte("issuevec_pipeline_issues")))
}

func TestPushReporter_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewPushReporter(srv.URL, "custom").Report(context.Background(), sampleReport())
	assert.Error(t, err)
}

type fakeReporter struct {
	calls int
	err   error
}

func (f *fakeReporter) Report(context.Context, *RunReport) error {
	f.calls++
	return f.err
}

func TestMulti_TriesEveryReporter(t *testing.T) {
	failing := &fakeReporter{err: errors.New("gateway down")}
	ok := &fakeReporter{}

	err := NewMulti(failing, ok).Report(context.Background(), sampleReport())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway down")
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, ok.calls)
}

func TestFromConfig(t *testing.T) {
	server := startTestNATSServer(t)
	ctx := context.Background()

	t.Run("nothing enabled", func(t *testing.T) {
		m := FromConfig(ctx, &config.Config{}, nil)
		assert.Zero(t, m.Len())
		assert.NoError(t, m.Close())
	})

	t.Run("both enabled", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Pushgateway.URL = "http://127.0.0.1:9091"
		cfg.NATS.URL = server.ClientURL()

		m := FromConfig(ctx, cfg, nil)
		assert.Equal(t, 2, m.Len())
		assert.NoError(t, m.Close())
	})

	t.Run("unreachable NATS is left out", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.NATS.URL = "nats://127.0.0.1:1"
		logger := logging.NewTestLogger()

		m := FromConfig(ctx, cfg, logger.Logger)
		assert.Zero(t, m.Len())
		logger.AssertLogged(t, zapcore.WarnLevel, "will not be published to NATS")
	})
}
