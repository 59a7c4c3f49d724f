// Package gateway is the HTTP client for the Trash4Cash backend API.
//
// Every call carries the session's bearer token, is bounded by a timeout and
// goes through a circuit breaker that only counts outages, timeouts and 5xx
// answers. Failures are returned as *Error with a normalized category.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"trash4cash/pkg/platform/circuit"
)

const instrumentationName = "trash4cash/gateway"

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource yields the bearer token attached to outgoing calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Client talks to the backend API.
type Client struct {
	baseURL        string
	client         HTTPDoer
	tokens         TokenSource
	timeout        time.Duration
	breaker        *circuit.Breaker
	metrics        *Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
	onUnauthorized func(ctx context.Context)
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c HTTPDoer) Option {
	return func(cl *Client) {
		if c != nil {
			cl.client = c
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(cl *Client) { cl.tokens = ts }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

func WithMetrics(m *Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(cl *Client) {
		if t != nil {
			cl.tracer = t
		}
	}
}

// WithTimeout bounds each call. Default is 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithUnauthorizedHook is invoked whenever the backend answers 401.
func WithUnauthorizedHook(fn func(ctx context.Context)) Option {
	return func(cl *Client) { cl.onUnauthorized = fn }
}

// New creates a backend client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 10 * time.Second,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(instrumentationName)
	}
	return c
}

// WithTokens returns a shallow copy of c that authenticates with ts.
// The copy shares the breaker, metrics and HTTP client.
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

// Breaker exposes the client's circuit breaker for health checks. May be nil.
func (c *Client) Breaker() *circuit.Breaker {
	return c.breaker
}

// List fetches one page of a collection.
func (c *Client) List(ctx context.Context, resource string, q ListQuery) (*ListResponse, error) {
	var out ListResponse
	path := "/" + resource
	if qs := q.Values().Encode(); qs != "" {
		path += "?" + qs
	}
	if err := c.do(ctx, resource, "list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []RawRecord{}
	}
	return &out, nil
}

// ListUsers fetches every platform user in a single unpaged call.
func (c *Client) ListUsers(ctx context.Context) ([]RawRecord, error) {
	resp, err := c.List(ctx, "users", ListQuery{})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListUserDropoffs calls GET /dropoffs/users/{userId}. The backend answers
// with every dropoff of the user in one unpaged response.
func (c *Client) ListUserDropoffs(ctx context.Context, userID string) ([]RawRecord, error) {
	var out ListResponse
	path := "/dropoffs/users/" + url.PathEscape(userID)
	if err := c.do(ctx, "dropoffs", "list_by_user", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return []RawRecord{}, nil
	}
	return out.Data, nil
}

// Get fetches a single record.
func (c *Client) Get(ctx context.Context, resource, id string) (RawRecord, error) {
	var out RawRecord
	if err := c.do(ctx, resource, "get", http.MethodGet, recordPath(resource, id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create posts a new record and returns the stored version.
func (c *Client) Create(ctx context.Context, resource string, payload any) (RawRecord, error) {
	var out RawRecord
	if err := c.do(ctx, resource, "create", http.MethodPost, "/"+resource, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update sends a partial update. Payloads implementing MultipartPayload are
// sent as multipart/form-data.
func (c *Client) Update(ctx context.Context, resource, id string, payload any) (RawRecord, error) {
	var out RawRecord
	if err := c.do(ctx, resource, "update", http.MethodPatch, recordPath(resource, id), payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus calls PATCH /{resource}/{id}/status.
func (c *Client) UpdateStatus(ctx context.Context, resource, id, status string) (RawRecord, error) {
	var out RawRecord
	body := map[string]string{"status": status}
	if err := c.do(ctx, resource, "update_status", http.MethodPatch, recordPath(resource, id)+"/status", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelDropoff calls PATCH /dropoffs/{id}/cancel.
func (c *Client) CancelDropoff(ctx context.Context, id string) (RawRecord, error) {
	var out RawRecord
	if err := c.do(ctx, "dropoffs", "cancel", http.MethodPatch, recordPath("dropoffs", id)+"/cancel", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	return c.do(ctx, resource, "delete", http.MethodDelete, recordPath(resource, id), nil, nil)
}

// Login exchanges credentials for a token. It is sent without a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	var out LoginResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.send(ctx, "users", "login", http.MethodPost, "/users/login", body, false, func(data []byte) error {
		return json.Unmarshal(data, &out)
	}); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, NewError(ErrorBadData, "login", http.StatusOK, "response carries no token", nil)
	}
	return &out, nil
}

func recordPath(resource, id string) string {
	return "/" + resource + "/" + url.PathEscape(id)
}

// do sends an authenticated request and decodes the data envelope into out.
func (c *Client) do(ctx context.Context, resource, op, method, path string, payload, out any) error {
	return c.send(ctx, resource, op, method, path, payload, true, func(data []byte) error {
		if out == nil {
			return nil
		}
		return decodeEnvelope(data, out)
	})
}

func (c *Client) send(ctx context.Context, resource, op, method, path string, payload any, auth bool, decode func([]byte) error) (err error) {
	ctx, span := c.tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("trash4cash.resource", resource),
			attribute.String("http.request.method", method),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(CategoryOf(err)))
		}
		span.End()
	}()

	if c.breaker != nil && !c.breaker.Allow() {
		c.metrics.rejected()
		return NewError(ErrorUpstreamOutage, op, 0, "backend circuit open", ErrCircuitOpen)
	}

	start := time.Now()
	err = c.roundTrip(ctx, op, method, path, payload, auth, decode)
	c.metrics.observe(resource, op, outcome(err), time.Since(start).Seconds())

	if c.breaker != nil {
		if countsAgainstBreaker(err) {
			if change := c.breaker.RecordFailure(); change.Opened {
				c.metrics.opened()
				c.logger.WarnContext(ctx, "backend circuit opened", "resource", resource, "op", op)
			}
		} else if change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "backend circuit closed", "resource", resource, "op", op)
		}
	}

	if err != nil {
		if IsUnauthorized(err) && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		c.logger.DebugContext(ctx, "backend call failed",
			"resource", resource, "op", op, "category", CategoryOf(err), "error", err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, payload any, auth bool, decode func([]byte) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := encodeBody(payload)
	if err != nil {
		return NewError(ErrorBadData, op, 0, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return NewError(ErrorInternal, op, 0, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if auth && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return NewError(ErrorUnauthorized, op, 0, "no session token", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return NewError(ErrorTimeout, op, 0, "request timeout", err)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return NewError(ErrorInternal, op, 0, "request canceled", err)
		}
		return NewError(ErrorUpstreamOutage, op, 0, "failed to execute request", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(ErrorBadData, op, resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode >= 300 {
		return classifyStatus(op, resp.StatusCode, data)
	}
	if len(data) == 0 {
		return nil
	}
	if err := decode(data); err != nil {
		return NewError(ErrorBadData, op, resp.StatusCode, "failed to parse response", err)
	}
	return nil
}

func classifyStatus(op string, status int, body []byte) *Error {
	msg := backendMessage(body)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewError(ErrorUnauthorized, op, status, orDefault(msg, "authentication failed"), nil)
	case status == http.StatusNotFound:
		return NewError(ErrorNotFound, op, status, orDefault(msg, "record not found"), nil)
	case status == http.StatusTooManyRequests:
		return NewError(ErrorRateLimited, op, status, orDefault(msg, "rate limit exceeded"), nil)
	case status == http.StatusServiceUnavailable || status == http.StatusBadGateway:
		return NewError(ErrorUpstreamOutage, op, status, orDefault(msg, "backend unavailable"), nil)
	case status == http.StatusGatewayTimeout:
		return NewError(ErrorTimeout, op, status, orDefault(msg, "backend timeout"), nil)
	case status >= 500:
		return NewError(ErrorInternal, op, status, orDefault(msg, fmt.Sprintf("backend error: %d", status)), nil)
	default:
		return NewError(ErrorBadRequest, op, status, orDefault(msg, fmt.Sprintf("request rejected: %d", status)), nil)
	}
}

// backendMessage extracts {"message": "..."} from an error body.
func backendMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	return env.Error
}

// decodeEnvelope accepts both {"data": ...} envelopes and bare values.
// List responses keep their metadata sibling, so they decode as a whole.
func decodeEnvelope(data []byte, out any) error {
	if lr, ok := out.(*ListResponse); ok {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(data, &envelope); err == nil {
			if _, has := envelope["data"]; has {
				return json.Unmarshal(data, lr)
			}
			return errors.New("list response without data")
		}
		// bare array
		return json.Unmarshal(data, &lr.Data)
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err == nil {
		if inner, ok := env["data"]; ok && len(inner) > 0 && string(inner) != "null" {
			return json.Unmarshal(inner, out)
		}
	}
	return json.Unmarshal(data, out)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return string(CategoryOf(err))
}
