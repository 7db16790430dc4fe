package vectorstore

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/issuevec/internal/config"
	"github.com/fyrsmithlabs/issuevec/internal/telemetry"
)

func TestUnavailable(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	store := Unavailable(cause)

	_, err := store.EnsureCollection(context.Background(), "jira_issues_prtfl")
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, OpCreate, serr.Op)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)

	_, err = store.Upsert(context.Background(), "jira_issues_prtfl", sampleRecords())
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, OpUpsert, serr.Op)
	assert.NoError(t, store.Close())
}

func TestNew_Providers(t *testing.T) {
	ctx := context.Background()

	t.Run("fuelix default", func(t *testing.T) {
		store, err := New(ctx, Config{Fuelix: FuelixConfig{APIKey: "vk-test"}}, nil)
		require.NoError(t, err)
		defer store.Close()

		inst, ok := store.(*instrumentedStore)
		require.True(t, ok)
		assert.IsType(t, &FuelixStore{}, inst.Store)
		assert.Equal(t, "fuelix", inst.backend)
	})

	t.Run("chromem", func(t *testing.T) {
		cfg := Config{Provider: "chromem", Chromem: ChromemConfig{Path: filepath.Join(t.TempDir(), "db")}}
		store, err := New(ctx, cfg, nil)
		require.NoError(t, err)
		defer store.Close()

		assert.IsType(t, &ChromemStore{}, store.(*instrumentedStore).Store)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: "pinecone"}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("fuelix without key", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: "fuelix"}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("bad metric", func(t *testing.T) {
		_, err := New(ctx, Config{Metric: "hamming", Fuelix: FuelixConfig{APIKey: "k"}}, nil)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestConfigFromApp(t *testing.T) {
	app := &config.Config{}
	app.Embedding.Model = "text-embedding-3-large"
	app.VectorDB.Provider = "qdrant"
	app.VectorDB.Timeout = 5 * time.Second
	app.Qdrant.Host = "qdrant.internal"
	app.Qdrant.Port = 6334
	app.Qdrant.MaxRetries = 2

	cfg := ConfigFromApp(app)

	assert.Equal(t, "qdrant", cfg.Provider)
	assert.Equal(t, 3072, cfg.Dimension, "dimension derives from the embedding model")
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, 2, cfg.Qdrant.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Qdrant.Timeout)

	app.VectorDB.Dimension = 8
	assert.Equal(t, 8, ConfigFromApp(app).Dimension)
}

func TestNew_RecordsMetrics(t *testing.T) {
	fake := &fakeFuelix{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	tt := telemetry.NewTestTelemetry()
	ctx := context.Background()

	store, err := New(ctx, Config{Fuelix: FuelixConfig{BaseURL: srv.URL, APIKey: "vk-test"}}, nil, WithMeter(tt.Meter("test")))
	require.NoError(t, err)

	_, err = store.EnsureCollection(ctx, "jira_issues_prtfl")
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "jira_issues_prtfl", sampleRecords())
	require.NoError(t, err)
	_, err = store.Upsert(ctx, "jira_issues_prtfl", nil)
	require.NoError(t, err)

	ops, ok := tt.CounterTotal(ctx, MetricOperations)
	require.True(t, ok)
	assert.EqualValues(t, 3, ops)

	written, ok := tt.CounterTotal(ctx, MetricRecords)
	require.True(t, ok)
	assert.EqualValues(t, 1, written)

	count, ok := tt.HistogramCount(ctx, MetricDuration)
	require.True(t, ok)
	assert.EqualValues(t, 3, count)
}
