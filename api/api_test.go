package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeStore struct {
	healthErr error
	countErr  error
}

func (f *fakeStore) HealthCheck(ctx context.Context) error { return f.healthErr }

func (f *fakeStore) CountAlerts(ctx context.Context) (int64, error) { return 7, f.countErr }

func (f *fakeStore) CountCorrelationAlerts(ctx context.Context) (int64, error) { return 2, nil }

type fakeCatalog struct{}

func (fakeCatalog) Version() string { return "abc123def456" }
func (fakeCatalog) Len() int        { return 4 }

func do(t *testing.T, a *API, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	t.Run("healthy", func(t *testing.T) {
		rr := do(t, NewAPI(&fakeStore{}, nil, nil, logger), "/health")
		assert.Equal(t, http.StatusOK, rr.Code)
		var resp healthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
	})

	t.Run("store down", func(t *testing.T) {
		rr := do(t, NewAPI(&fakeStore{healthErr: errors.New("dial tcp: refused")}, nil, nil, logger), "/health")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.NotContains(t, rr.Body.String(), "refused")
	})

	t.Run("no store", func(t *testing.T) {
		rr := do(t, NewAPI(nil, nil, nil, logger), "/health")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "degraded")
	})
}

func TestStats(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	store := &fakeStore{}

	rr := do(t, NewAPI(store, store, fakeCatalog{}, logger), "/api/v1/stats")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Alerts)
	assert.EqualValues(t, 7, *resp.Alerts)
	assert.EqualValues(t, 2, *resp.CorrelationAlerts)
	assert.Equal(t, 4, resp.Rules)
	assert.Equal(t, "abc123def456", resp.CatalogVersion)

	store.countErr = errors.New("locked")
	rr = do(t, NewAPI(store, store, nil, logger), "/api/v1/stats")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rr := do(t, NewAPI(&fakeStore{}, nil, nil, zaptest.NewLogger(t).Sugar()), "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestMethodNotAllowed(t *testing.T) {
	a := NewAPI(&fakeStore{}, nil, nil, zaptest.NewLogger(t).Sugar())
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestServeAndStop(t *testing.T) {
	a := NewAPI(&fakeStore{}, nil, nil, zaptest.NewLogger(t).Sugar())
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Serve(l) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + l.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))
	assert.NoError(t, <-done)
}
