package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trash4cash/pkg/platform/circuit"
)

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, CheckResponse) {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var body CheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestReadiness(t *testing.T) {
	h := New("test")
	breaker := circuit.New("backend", circuit.WithFailureThreshold(1))
	h.RegisterCheck("backend", BreakerCheck(breaker))
	h.RegisterCheck("redis", func(context.Context) error { return nil })

	w, body := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"backend": "up", "redis": "up"}, body.Checks)

	breaker.RecordFailure()
	w, body = serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, "down: backend circuit open", body.Checks["backend"])
}

func TestReadinessReportsCheckError(t *testing.T) {
	h := New("test")
	h.RegisterCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	w, body := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "down: connection refused", body.Checks["redis"])
}

func TestLiveness(t *testing.T) {
	w, body := serve(t, New("test"), "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alive", body.Status)
}

func TestReadinessRunsChecksConcurrently(t *testing.T) {
	h := New("test")
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	for _, name := range []string{"a", "b"} {
		h.RegisterCheck(name, func(ctx context.Context) error {
			started.Done()
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	go func() {
		// both checks must be running before either can finish
		started.Wait()
		close(release)
	}()

	w, body := serve(t, h, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"a": "up", "b": "up"}, body.Checks)
}

func TestStatus(t *testing.T) {
	h := New("staging")
	h.now = func() time.Time { return h.started.Add(90 * time.Second) }

	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "staging", body.Environment)
	assert.Equal(t, int64(90), body.UptimeSeconds)
	assert.Equal(t, "healthy", body.Status)
}
