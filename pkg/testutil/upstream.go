package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"trash4cash/internal/gateway"
)

// Upstream is an in-memory fake of the Trash4Cash backend API served over
// httptest. Collections keep insertion order.
type Upstream struct {
	Server *httptest.Server

	mu       sync.Mutex
	records  map[string][]gateway.RawRecord
	calls    map[string]int
	failures map[string][]int
	token    string
	expired  bool
}

// NewUpstream starts a fake backend. Close it with Server.Close.
func NewUpstream() *Upstream {
	u := &Upstream{
		records:  make(map[string][]gateway.RawRecord),
		calls:    make(map[string]int),
		failures: make(map[string][]int),
		token:    "upstream-token",
	}

	r := chi.NewRouter()
	r.Post("/users/login", u.login)
	r.Group(func(r chi.Router) {
		r.Use(u.requireBearer)
		r.Get("/{resource}", u.list)
		r.Post("/{resource}", u.create)
		r.Get("/{resource}/{id}", u.get)
		r.Patch("/{resource}/{id}", u.update)
		r.Delete("/{resource}/{id}", u.remove)
		r.Patch("/{resource}/{id}/status", u.updateStatus)
		r.Patch("/dropoffs/{id}/cancel", u.cancel)
		r.Get("/dropoffs/users/{userId}", u.dropoffsByUser)
	})
	u.Server = httptest.NewServer(r)
	return u
}

// URL returns the base URL of the fake backend.
func (u *Upstream) URL() string { return u.Server.URL }

// Token is the token handed out by the login endpoint.
func (u *Upstream) Token() string { return u.token }

// ExpireTokens makes every following authenticated request answer 401.
func (u *Upstream) ExpireTokens() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.expired = true
}

// requireBearer accepts any bearer token until ExpireTokens is called.
func (u *Upstream) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		expired := u.expired
		u.mu.Unlock()
		if expired || !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			u.track(r)
			reply(w, http.StatusUnauthorized, map[string]string{"message": "Token expired"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Close stops the fake backend.
func (u *Upstream) Close() { u.Server.Close() }

// Seed replaces the records of a collection.
func (u *Upstream) Seed(resource string, recs ...gateway.RawRecord) {
	u.mu.Lock()
	defer u.mu.Unlock()
	cp := make([]gateway.RawRecord, len(recs))
	copy(cp, recs)
	u.records[resource] = cp
}

// Record returns the stored record, if any.
func (u *Upstream) Record(resource, recordID string) (gateway.RawRecord, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, r := range u.records[resource] {
		if r["id"] == recordID {
			return clone(r), true
		}
	}
	return nil, false
}

func clone(rec gateway.RawRecord) gateway.RawRecord {
	out := make(gateway.RawRecord, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// Calls returns how many times "METHOD /path" was requested (query excluded).
func (u *Upstream) Calls(method, path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls[method+" "+path]
}

// TotalCalls returns the number of requests served.
func (u *Upstream) TotalCalls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, c := range u.calls {
		n += c
	}
	return n
}

// FailNext makes the next request to "METHOD /path" answer with status.
func (u *Upstream) FailNext(method, path string, status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := method + " " + path
	u.failures[key] = append(u.failures[key], status)
}

// track counts the call and reports an injected failure status, or 0.
func (u *Upstream) track(r *http.Request) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := r.Method + " " + r.URL.Path
	u.calls[key]++
	if queue := u.failures[key]; len(queue) > 0 {
		u.failures[key] = queue[1:]
		return queue[0]
	}
	return 0
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (u *Upstream) failed(w http.ResponseWriter, r *http.Request) bool {
	if status := u.track(r); status != 0 {
		reply(w, status, map[string]string{"message": fmt.Sprintf("injected failure %d", status)})
		return true
	}
	return false
}

func totalField(resource string) string {
	switch resource {
	case "dropoffs":
		return "totalDropoffs"
	case "transactions":
		return "totalTransactions"
	default:
		return "total"
	}
}

func matchesSearch(rec gateway.RawRecord, term string) bool {
	data, _ := json.Marshal(rec)
	return strings.Contains(strings.ToLower(string(data)), strings.ToLower(term))
}

func (u *Upstream) list(w http.ResponseWriter, r *http.Request) {
	if u.failed(w, r) {
		return
	}
	resource := chi.URLParam(r, "resource")
	q := r.URL.Query()

	u.mu.Lock()
	all := make([]gateway.RawRecord, 0, len(u.records[resource]))
	for _, rec := range u.records[resource] {
		if s := q.Get("status"); s != "" && rec["status"] != s {
			continue
		}
		if term := q.Get("search"); term != "" && !matchesSearch(rec, term) {
			continue
		}
		all = append(all, clone(rec))
	}
	u.mu.Unlock()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	items := all
	totalPages := 1
	if page > 0 && limit > 0 {
		start := min((page-1)*limit, len(all))
		end := min(start+limit, len(all))
		items = all[start:end]
		totalPages = max(1, (len(all)+limit-1)/limit)
	}

	reply(w, http.StatusOK, map[string]any{
		"data": items,
		"metadata": map[string]any{
			totalField(resource): len(all),
			"totalPages":         totalPages,
			"page":               page,
			"limit":              limit,
		},
	})
}

func (u *Upstream) dropoffsByUser(w http.ResponseWriter, r *http.Request) {
	if u.failed(w, r) {
		return
	}
	userID := chi.URLParam(r, "userId")
	u.mu.Lock()
	items := []gateway.RawRecord{}
	for _, rec := range u.records["dropoffs"] {
		if rec["userId"] == userID {
			items = append(items, clone(rec))
		}
	}
	u.mu.Unlock()
	reply(w, http.StatusOK, map[string]any{"data": items})
}

func (u *Upstream) get(w http.ResponseWriter, r *http.Request) {
	if u.failed(w, r) {
		return
	}
	rec, ok := u.Record(chi.URLParam(r, "resource"), chi.URLParam(r, "id"))
	if !ok {
		reply(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	reply(w, http.StatusOK, map[string]any{"data": rec})
}

func (u *Upstream) mutate(w http.ResponseWriter, resource, recordID string, apply func(gateway.RawRecord)) {
	u.mu.Lock()
	var found gateway.RawRecord
	for _, rec := range u.records[resource] {
		if rec["id"] == recordID {
			apply(rec)
			found = clone(rec)
			break
		}
	}
	u.mu.Unlock()
	if found == nil {
		reply(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	reply(w, http.StatusOK, map[string]any{"data": found})
}

func (u *Upstream) updateStatus(w http.ResponseWriter, r *http.Request) {
	if u.failed(w, r) {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		reply(w, http.StatusBadRequest, map[string]string{"message": "status is required"})
		return
	}
	u.mutate(w, chi.URLParam(r, "resource"), chi.URLParam(r, "id"), func(rec gateway.RawRecord) {
		rec["status"] = body.Status
	})
}

func (u *Upstream) cancel(w http.ResponseWriter, r *http.Request) {
	if u.failed(w, r) {
		return
	}
	u.mutate(w, "dropoffs", chi.URLParam(r, "id"), func(rec gateway.RawRecord) {
		rec["status"] = "CANCELLED"
	})
}

// readFields accepts JSON objects and multipart forms.
func readFields(r *http.Request) (map[string]any, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			return nil, err
		}
		out := make(map[string]any, len(r.MultipartForm.Value))
		for k, v := range r.MultipartForm.Value {
			if len(v) > 0 {
				out[k] = v[0]
			}
		}
		return out, nil
	}
	var out map[string]any
	if err := json.NewDecoder(r.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func (u *Upstream) update(w http.ResponseWriter, r *http.Request) {
	if u.failed(w, r) {
		return
	}
	fields, err := readFields(r)
	if err != nil {
		reply(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	u.mutate(w, chi.URLParam(r, "resource"), chi.URLParam(r, "id"), func(rec gateway.RawRecord) {
		for k, v := range fields {
			if k == "isActive" {
				if s, ok := v.(string); ok {
					v = s == "true"
				}
			}
			rec[k] = v
		}
	})
}

func (u *Upstream) create(w http.ResponseWriter, r *http.Request) {
	if u.failed(w, r) {
		return
	}
	fields, err := readFields(r)
	if err != nil {
		reply(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	rec := gateway.RawRecord(fields)
	rec["id"] = uuid.NewString()
	if _, ok := rec["status"]; !ok {
		rec["status"] = "PENDING"
	}
	resource := chi.URLParam(r, "resource")
	u.mu.Lock()
	u.records[resource] = append(u.records[resource], rec)
	out := clone(rec)
	u.mu.Unlock()
	reply(w, http.StatusCreated, map[string]any{"data": out})
}

func (u *Upstream) remove(w http.ResponseWriter, r *http.Request) {
	if u.failed(w, r) {
		return
	}
	resource, recordID := chi.URLParam(r, "resource"), chi.URLParam(r, "id")
	u.mu.Lock()
	recs := u.records[resource]
	idx := -1
	for i, rec := range recs {
		if rec["id"] == recordID {
			idx = i
			break
		}
	}
	if idx >= 0 {
		u.records[resource] = append(recs[:idx:idx], recs[idx+1:]...)
	}
	u.mu.Unlock()
	if idx < 0 {
		reply(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (u *Upstream) login(w http.ResponseWriter, r *http.Request) {
	if u.failed(w, r) {
		return
	}
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password == "" {
		reply(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	reply(w, http.StatusOK, map[string]any{
		"token": u.token,
		"data":  map[string]any{"id": "admin-1", "name": "Admin", "email": body.Email, "role": "ADMIN"},
	})
}
