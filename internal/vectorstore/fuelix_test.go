package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/issuevec/internal/vectorize"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   []byte
}

// fakeFuelix records requests and answers with the handler's status and body.
type fakeFuelix struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r *http.Request) (int, string)
}

func (f *fakeFuelix) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})
	f.mu.Unlock()

	status, resp := http.StatusOK, `{"status":"ok"}`
	if f.respond != nil {
		status, resp = f.respond(r)
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func (f *fakeFuelix) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newFuelixTest(t *testing.T, fake *fakeFuelix) *FuelixStore {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	store, err := NewFuelixStore(FuelixConfig{BaseURL: srv.URL, APIKey: "vk-test"}, 1536, "cosine", nil, nil)
	require.NoError(t, err)
	return store
}

func sampleRecords() []vectorize.VectorRecord {
	return []vectorize.VectorRecord{
		{ID: "X-1", Values: []float32{0.1, 0.2}, Metadata: vectorize.Metadata{Summary: "s", Description: "d", Project: "X"}},
	}
}

func TestFuelixStore_EnsureCollection(t *testing.T) {
	fake := &fakeFuelix{}
	store := newFuelixTest(t, fake)

	ack, err := store.EnsureCollection(context.Background(), "jira_issues_prtfl")

	require.NoError(t, err)
	assert.Equal(t, "jira_issues_prtfl", ack.Collection)
	assert.False(t, ack.Existed)
	assert.JSONEq(t, `{"status":"ok"}`, string(ack.Raw))

	require.Equal(t, 1, fake.count())
	req := fake.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/us-east-1/v2/namespaces/jira_tickets", req.Path)
	assert.Equal(t, "Bearer vk-test", req.Auth)
	assert.JSONEq(t, `{"name":"jira_issues_prtfl","dimension":1536,"metric":"cosine"}`, string(req.Body))
}

func TestFuelixStore_EnsureCollection_AlreadyExists(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "conflict status", status: http.StatusConflict, body: `{"error":"conflict"}`},
		{name: "bad request naming existing collection", status: http.StatusBadRequest, body: `{"error":"Collection Already Exists"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeFuelix{respond: func(*http.Request) (int, string) { return tt.status, tt.body }}
			store := newFuelixTest(t, fake)

			ack, err := store.EnsureCollection(context.Background(), "jira_issues_prtfl")

			require.NoError(t, err)
			assert.True(t, ack.Existed)
		})
	}
}

func TestFuelixStore_EnsureCollection_Idempotent(t *testing.T) {
	created := false
	fake := &fakeFuelix{respond: func(*http.Request) (int, string) {
		if created {
			return http.StatusConflict, `{"error":"collection already exists"}`
		}
		created = true
		return http.StatusCreated, `{"name":"jira_issues_prtfl"}`
	}}
	store := newFuelixTest(t, fake)
	ctx := context.Background()

	_, err := store.EnsureCollection(ctx, "jira_issues_prtfl")
	require.NoError(t, err)
	_, err = store.EnsureCollection(ctx, "jira_issues_prtfl")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.count())
}

func TestFuelixStore_EnsureCollection_Failure(t *testing.T) {
	fake := &fakeFuelix{respond: func(*http.Request) (int, string) {
		return http.StatusForbidden, `{"error":"invalid api key"}`
	}}
	store := newFuelixTest(t, fake)

	_, err := store.EnsureCollection(context.Background(), "jira_issues_prtfl")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStore)
	var serr *StoreError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, OpCreate, serr.Op)
	assert.Equal(t, http.StatusForbidden, serr.Status)
	assert.Contains(t, serr.Body, "invalid api key")
}

func TestFuelixStore_EnsureCollection_InvalidName(t *testing.T) {
	fake := &fakeFuelix{}
	store := newFuelixTest(t, fake)

	_, err := store.EnsureCollection(context.Background(), "../etc")

	assert.ErrorIs(t, err, ErrInvalidCollectionName)
	assert.Zero(t, fake.count())
}

func TestFuelixStore_Upsert(t *testing.T) {
	fake := &fakeFuelix{respond: func(*http.Request) (int, string) { return http.StatusOK, `{"upserted":1}` }}
	store := newFuelixTest(t, fake)

	ack, err := store.Upsert(context.Background(), "jira_issues_prtfl", sampleRecords())

	require.NoError(t, err)
	assert.Equal(t, 1, ack.Count)
	assert.False(t, ack.Skipped)
	assert.JSONEq(t, `{"upserted":1}`, string(ack.Raw))

	require.Equal(t, 1, fake.count())
	req := fake.requests[0]
	assert.Equal(t, "/us-east-1/v2/namespaces/jira_tickets/jira_issues_prtfl/upsert", req.Path)

	var body struct {
		Vectors []map[string]any `json:"vectors"`
	}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	require.Len(t, body.Vectors, 1)
	assert.Equal(t, "X-1", body.Vectors[0]["id"])
	assert.Equal(t, map[string]any{"summary": "s", "description": "d", "project": "X"}, body.Vectors[0]["metadata"])
}

func TestFuelixStore_Upsert_EmptyBatch(t *testing.T) {
	fake := &fakeFuelix{}
	store := newFuelixTest(t, fake)

	ack, err := store.Upsert(context.Background(), "jira_issues_prtfl", nil)

	require.NoError(t, err)
	assert.True(t, ack.Skipped)
	assert.Zero(t, fake.count(), "no request expected for an empty batch")
}

func TestFuelixStore_Upsert_Failure(t *testing.T) {
	fake := &fakeFuelix{respond: func(*http.Request) (int, string) {
		return http.StatusInternalServerError, "upstream timeout"
	}}
	store := newFuelixTest(t, fake)

	ack, err := store.Upsert(context.Background(), "jira_issues_prtfl", sampleRecords())

	assert.Nil(t, ack)
	var serr *StoreError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, OpUpsert, serr.Op)
	assert.Equal(t, http.StatusInternalServerError, serr.Status)
	assert.Nil(t, rawJSON([]byte(serr.Body)))
}

func TestFuelixStore_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	store, err := NewFuelixStore(FuelixConfig{BaseURL: url, APIKey: "vk-test"}, 1536, "cosine", nil, nil)
	require.NoError(t, err)

	_, err = store.Upsert(context.Background(), "jira_issues_prtfl", sampleRecords())

	var serr *StoreError
	require.True(t, errors.As(err, &serr))
	assert.Zero(t, serr.Status)
	assert.NotNil(t, serr.Err)
}

func TestNewFuelixStore_RequiresAPIKey(t *testing.T) {
	_, err := NewFuelixStore(FuelixConfig{}, 1536, "cosine", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
