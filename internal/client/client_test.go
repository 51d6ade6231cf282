package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jsworker/internal/host"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/jsworker/internal/worker"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond
	return cfg
}

func newHost(t *testing.T) (*host.Host, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := host.New(host.Config{MaxWorkers: 8}, nil, nil)
	router := gin.New()
	h.Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, srv
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", testConfig())
	assert.Error(t, err)

	_, err = New("://nope", testConfig())
	assert.Error(t, err)
}

func TestSpawnURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/spawn"},
		{"https://workers.example/", "wss://workers.example/spawn"},
		{"http://proxy.example/jsworker", "ws://proxy.example/jsworker/spawn"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			c, err := New(tt.base, testConfig())
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.SpawnURL())
		})
	}
}

func TestHealthAndWorkers(t *testing.T) {
	_, srv := newHost(t)
	c, err := New(srv.URL, testConfig())
	require.NoError(t, err)

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 8, health.MaxWorkers)

	w, err := worker.Create(context.Background(), `function () {}`, nil, nil,
		worker.WithSpawner(&worker.RemoteSpawner{URL: c.SpawnURL()}))
	require.NoError(t, err)
	<-w.Ready()

	workers, err := c.Workers(context.Background())
	require.NoError(t, err)
	require.Len(t, workers, 1)
	assert.Equal(t, w.ID(), workers[0].ID)

	require.NoError(t, c.Terminate(context.Background(), w.ID()))
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		require.FailNow(t, "worker did not stop")
	}
}

func TestTerminateUnknown(t *testing.T) {
	_, srv := newHost(t)
	c, err := New(srv.URL, testConfig())
	require.NoError(t, err)

	err = c.Terminate(context.Background(), "wrk_missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, resilience.StateClosed, c.Breaker().State())
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","workers":0,"max_workers":1}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, testConfig())
	require.NoError(t, err)

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"worker busy"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RetryMax = 0
	c, err := New(srv.URL, cfg)
	require.NoError(t, err)

	_, err = c.Workers(context.Background())
	assert.ErrorIs(t, err, ErrHostStatus)
	assert.Contains(t, err.Error(), "worker busy")
}

func TestBreakerOpensOnDeadHost(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := testConfig()
	cfg.RetryMax = 0
	cfg.Breaker.Trip = func(c resilience.Counts) bool { return c.ConsecutiveFailures >= 2 }
	c, err := New(url, cfg)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.Health(context.Background())
		require.Error(t, err)
	}

	_, err = c.Health(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}
