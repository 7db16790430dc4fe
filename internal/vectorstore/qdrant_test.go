package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/issuevec/internal/logging"
)

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "unavailable", err: status.Error(grpccodes.Unavailable, "down"), want: true},
		{name: "deadline", err: status.Error(grpccodes.DeadlineExceeded, "slow"), want: true},
		{name: "aborted", err: status.Error(grpccodes.Aborted, "retry"), want: true},
		{name: "exhausted", err: status.Error(grpccodes.ResourceExhausted, "busy"), want: true},
		{name: "invalid argument", err: status.Error(grpccodes.InvalidArgument, "bad"), want: false},
		{name: "already exists", err: status.Error(grpccodes.AlreadyExists, "dup"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransientError(tt.err))
		})
	}
}

func TestIsAlreadyExists_Wrapped(t *testing.T) {
	err := fmt.Errorf("create_collection failed (permanent): %w", status.Error(grpccodes.AlreadyExists, "exists"))
	assert.True(t, isAlreadyExists(err))
	assert.False(t, isAlreadyExists(errors.New("exists")))
}

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("PRTFL-1")
	assert.Equal(t, a, PointID("PRTFL-1"))
	assert.NotEqual(t, a, PointID("PRTFL-2"))
	assert.Len(t, a, 36)
}

func TestToPoints(t *testing.T) {
	points := toPoints(sampleRecords())

	require.Len(t, points, 1)
	p := points[0]
	assert.Equal(t, PointID("X-1"), p.GetId().GetUuid())
	assert.Equal(t, "X-1", p.GetPayload()[payloadIssueKey].GetStringValue())
	assert.Equal(t, "s", p.GetPayload()[payloadSummary].GetStringValue())
	assert.Equal(t, "d", p.GetPayload()[payloadDescription].GetStringValue())
	assert.Equal(t, "X", p.GetPayload()[payloadProject].GetStringValue())
}

func TestQdrantDistance(t *testing.T) {
	d, err := qdrantDistance("cosine")
	require.NoError(t, err)
	assert.Equal(t, qdrant.Distance_Cosine, d)

	d, err = qdrantDistance("dotproduct")
	require.NoError(t, err)
	assert.Equal(t, qdrant.Distance_Dot, d)

	_, err = qdrantDistance("manhattan")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func newRetryStore() *QdrantStore {
	cfg := QdrantConfig{RetryBackoff: time.Millisecond, MaxRetries: 2}
	cfg.ApplyDefaults()
	return &QdrantStore{config: cfg, logger: logging.NewNop()}
}

func TestRetryOperation_TransientThenSuccess(t *testing.T) {
	s := newRetryStore()
	attempts := 0

	err := s.retryOperation(context.Background(), "upsert", func(context.Context) error {
		attempts++
		if attempts < 2 {
			return status.Error(grpccodes.Unavailable, "down")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryOperation_PermanentNotRetried(t *testing.T) {
	s := newRetryStore()
	attempts := 0

	err := s.retryOperation(context.Background(), "upsert", func(context.Context) error {
		attempts++
		return status.Error(grpccodes.InvalidArgument, "bad vector")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, err.Error(), "permanent")
}

func TestRetryOperation_GivesUp(t *testing.T) {
	s := newRetryStore()
	attempts := 0

	err := s.retryOperation(context.Background(), "upsert", func(context.Context) error {
		attempts++
		return status.Error(grpccodes.Unavailable, "down")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, IsTransientError(err))
}

func TestRetryOperation_NoRetriesByDefault(t *testing.T) {
	cfg := QdrantConfig{}
	cfg.ApplyDefaults()
	s := &QdrantStore{config: cfg, logger: logging.NewNop()}
	attempts := 0

	err := s.retryOperation(context.Background(), "upsert", func(context.Context) error {
		attempts++
		return status.Error(grpccodes.Unavailable, "down")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestQdrantConfig_Defaults(t *testing.T) {
	var cfg QdrantConfig
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.Zero(t, cfg.MaxRetries, "retries are opt-in")
	require.NoError(t, cfg.Validate())

	cfg.MaxRetries = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	cfg.MaxRetries = 0

	cfg.Port = 70000
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
