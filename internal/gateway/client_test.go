package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"trash4cash/pkg/platform/circuit"
)

type ClientSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	metrics *Metrics
	client  *Client
}

func (s *ClientSuite) SetupTest() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handler(w, r)
	}))
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.client = New(s.server.URL,
		WithTokenSource(StaticToken("tok-123")),
		WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTimeout(time.Second),
	)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *ClientSuite) TestList() {
	s.Run("sends query and bearer token, reads resource-specific total", func() {
		s.handler = func(w http.ResponseWriter, r *http.Request) {
			s.Equal("/dropoffs", r.URL.Path)
			s.Equal("2", r.URL.Query().Get("page"))
			s.Equal("10", r.URL.Query().Get("limit"))
			s.Equal("PENDING", r.URL.Query().Get("status"))
			s.Empty(r.URL.Query().Get("search"))
			s.Equal("Bearer tok-123", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{
				"data":     []map[string]any{{"id": "d1"}, {"id": "d2"}},
				"metadata": map[string]any{"totalDropoffs": 12, "totalPages": 2},
			})
		}

		resp, err := s.client.List(context.Background(), "dropoffs", ListQuery{Page: 2, Limit: 10, Status: "PENDING"})
		s.Require().NoError(err)
		s.Len(resp.Data, 2)
		s.Equal("d1", resp.Data[0]["id"])
		s.Equal(12, resp.Metadata.Total)
		s.Equal(2, resp.Metadata.TotalPages)
	})

	s.Run("bare array body yields data without metadata", func() {
		s.handler = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "w1"}})
		}

		resp, err := s.client.List(context.Background(), "waste-types", ListQuery{})
		s.Require().NoError(err)
		s.Len(resp.Data, 1)
		s.Zero(resp.Metadata.Total)
	})

	s.Run("empty data is an empty slice", func() {
		s.handler = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": nil, "metadata": map[string]any{"total": 0}})
		}

		resp, err := s.client.List(context.Background(), "dropoffs", ListQuery{Page: 1, Limit: 10})
		s.Require().NoError(err)
		s.NotNil(resp.Data)
		s.Empty(resp.Data)
	})
}

func (s *ClientSuite) TestListUserDropoffs() {
	s.Run("calls the per-user path", func() {
		s.handler = func(w http.ResponseWriter, r *http.Request) {
			s.Equal(http.MethodGet, r.Method)
			s.Equal("/dropoffs/users/u-7", r.URL.Path)
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"id": "d1", "userId": "u-7"}}})
		}

		recs, err := s.client.ListUserDropoffs(context.Background(), "u-7")
		s.Require().NoError(err)
		s.Require().Len(recs, 1)
		s.Equal("u-7", recs[0]["userId"])
	})

	s.Run("null data is an empty slice", func() {
		s.handler = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": nil})
		}

		recs, err := s.client.ListUserDropoffs(context.Background(), "u-7")
		s.Require().NoError(err)
		s.NotNil(recs)
		s.Empty(recs)
	})
}

func (s *ClientSuite) TestGetUnwrapsDataEnvelope() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/transactions/t-9", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": "t-9", "status": "PENDING"}})
	}

	rec, err := s.client.Get(context.Background(), "transactions", "t-9")
	s.Require().NoError(err)
	s.Equal("t-9", rec["id"])
	s.Equal("PENDING", rec["status"])
}

func (s *ClientSuite) TestUpdateStatus() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPatch, r.Method)
		s.Equal("/dropoffs/d1/status", r.URL.Path)
		s.Equal("application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal("COMPLETED", body["status"])
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": "d1", "status": "COMPLETED"}})
	}

	rec, err := s.client.UpdateStatus(context.Background(), "dropoffs", "d1", "COMPLETED")
	s.Require().NoError(err)
	s.Equal("COMPLETED", rec["status"])
}

func (s *ClientSuite) TestUpdateSendsMultipartForms() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.True(strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		s.Require().NoError(r.ParseMultipartForm(1 << 20))
		s.Equal("false", r.FormValue("isActive"))
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": "w1", "isActive": false}})
	}

	rec, err := s.client.Update(context.Background(), "waste-types", "w1", Form{"isActive": "false"})
	s.Require().NoError(err)
	s.Equal(false, rec["isActive"])
}

func (s *ClientSuite) TestErrorClassification() {
	cases := []struct {
		name     string
		status   int
		body     any
		category ErrorCategory
		message  string
	}{
		{"unauthorized", http.StatusUnauthorized, map[string]string{"message": "jwt expired"}, ErrorUnauthorized, "jwt expired"},
		{"not found", http.StatusNotFound, nil, ErrorNotFound, "record not found"},
		{"bad request keeps backend message", http.StatusBadRequest, map[string]string{"message": "invalid status"}, ErrorBadRequest, "invalid status"},
		{"rate limited", http.StatusTooManyRequests, nil, ErrorRateLimited, "rate limit exceeded"},
		{"outage", http.StatusServiceUnavailable, nil, ErrorUpstreamOutage, "backend unavailable"},
		{"server error", http.StatusInternalServerError, map[string]string{"error": "boom"}, ErrorInternal, "boom"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.handler = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			}

			_, err := s.client.Get(context.Background(), "dropoffs", "x")
			s.Require().Error(err)
			var ge *Error
			s.Require().ErrorAs(err, &ge)
			s.Equal(tc.category, ge.Category)
			s.Equal(tc.status, ge.Status)
			s.Equal(tc.message, ge.Message)
		})
	}
}

func (s *ClientSuite) TestUnauthorizedHookFires() {
	var fired atomic.Int32
	client := New(s.server.URL, WithUnauthorizedHook(func(context.Context) { fired.Add(1) }))
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}

	_, err := client.Get(context.Background(), "dropoffs", "x")
	s.True(IsUnauthorized(err))
	s.Equal(int32(1), fired.Load())
}

func (s *ClientSuite) TestLoginSendsNoBearer() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/users/login", r.URL.Path)
		s.Empty(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "jwt-abc",
			"data":  map[string]any{"id": "u1", "role": "ADMIN"},
		})
	}

	resp, err := s.client.Login(context.Background(), "admin@example.com", "secret")
	s.Require().NoError(err)
	s.Equal("jwt-abc", resp.Token)
	s.Equal("ADMIN", resp.User["role"])
}

func (s *ClientSuite) TestLoginWithoutTokenIsBadData() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": "u1"}})
	}

	_, err := s.client.Login(context.Background(), "admin@example.com", "secret")
	s.Equal(ErrorBadData, CategoryOf(err))
}

func (s *ClientSuite) TestRecordsDurationByOutcome() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": "d1"}})
	}

	_, err := s.client.Get(context.Background(), "dropoffs", "d1")
	s.Require().NoError(err)
	s.Equal(1, testutil.CollectAndCount(s.metrics.RequestDuration))
}

func TestBreakerOpensOnOutagesOnly(t *testing.T) {
	var calls, status atomic.Int32
	status.Store(http.StatusNotFound)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	breaker := circuit.New("backend", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	client := New(server.URL, WithBreaker(breaker), WithMetrics(NewMetrics(prometheus.NewRegistry())))

	for range 3 {
		_, err := client.Get(context.Background(), "dropoffs", "missing")
		assert.Equal(t, ErrorNotFound, CategoryOf(err))
	}
	assert.Equal(t, circuit.StateClosed, breaker.State(), "4xx answers do not trip the breaker")

	status.Store(http.StatusServiceUnavailable)
	for range 2 {
		_, _ = client.Get(context.Background(), "dropoffs", "x")
	}
	require.Equal(t, circuit.StateOpen, breaker.State())

	before := calls.Load()
	_, err := client.Get(context.Background(), "dropoffs", "x")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, before, calls.Load(), "open circuit short-circuits the call")
}

func TestTimeoutIsClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := New(server.URL, WithTimeout(20*time.Millisecond))
	_, err := client.Get(context.Background(), "dropoffs", "slow")
	assert.Equal(t, ErrorTimeout, CategoryOf(err))
}

func TestWithTokensSharesBreaker(t *testing.T) {
	breaker := circuit.New("backend")
	base := New("http://example.invalid", WithBreaker(breaker))
	scoped := base.WithTokens(StaticToken("other"))

	assert.Same(t, breaker, scoped.Breaker())
	assert.NotSame(t, base, scoped)
}

func TestMetadataTotals(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`{"totalTransactions": 37, "totalPages": 4, "currentPage": 2}`), &m))
	assert.Equal(t, 37, m.Total)
	assert.Equal(t, 4, m.TotalPages)
	assert.Equal(t, 2, m.Page)
}

// recordingTracer remembers the names of started spans.
type recordingTracer struct {
	noop.Tracer
	mu    sync.Mutex
	names []string
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.mu.Lock()
	t.names = append(t.names, name)
	t.mu.Unlock()
	return t.Tracer.Start(ctx, name, opts...)
}

func TestClientStartsSpanPerCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": "w1"}})
	}))
	defer server.Close()

	tracer := &recordingTracer{}
	client := New(server.URL, WithTracer(tracer))

	_, err := client.Get(context.Background(), "waste-types", "w1")
	require.NoError(t, err)
	err = client.Delete(context.Background(), "waste-types", "w1")
	require.Error(t, err)

	assert.Len(t, tracer.names, 2)
	for _, name := range tracer.names {
		assert.True(t, strings.HasPrefix(name, "gateway."), name)
	}
}
