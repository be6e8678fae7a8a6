package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitflow/internal/docstore/sqlite"
	"github.com/julianstephens/habitflow/internal/gateway"
	"github.com/julianstephens/habitflow/internal/metrics"
	"github.com/julianstephens/habitflow/internal/session"
	"github.com/julianstephens/habitflow/internal/state"
	"github.com/julianstephens/habitflow/internal/store"
)

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	return doAs(t, h, "", method, path, body)
}

func doAs(t *testing.T, h http.Handler, token, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func setupLocal(t *testing.T) http.Handler {
	return NewRouter(RouterDeps{Store: store.New(store.Options{})})
}

func setupRemote(t *testing.T) (http.Handler, *prometheus.Registry) {
	t.Helper()
	gokeyring.MockInit()
	ctx := context.Background()

	docs := sqlite.New(filepath.Join(t.TempDir(), "remote.db"))
	if err := docs.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { docs.Close() })

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	s := store.New(store.Options{
		Gateway: gateway.New(docs, gateway.Options{Reporter: collector}),
		Metrics: collector,
	})
	sessions, err := session.NewManager(session.Options{Docs: docs, SigningKey: []byte("test-signing-key")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Bind(ctx, sessions))

	return NewRouter(RouterDeps{
		Store:    s,
		Sessions: sessions,
		Gatherer: reg,
		Recorder: collector,
	}), reg
}

func TestHealthz(t *testing.T) {
	w := do(t, setupLocal(t), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestDispatchLocalOnly(t *testing.T) {
	h := setupLocal(t)

	w := do(t, h, http.MethodPost, "/api/dispatch", `{"type":"ADD_TODO","payload":{"title":"Buy milk"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("dispatch status = %d: %s", w.Code, w.Body)
	}
	resp := decode[dispatchResponse](t, w)
	if resp.Type != "ADD_TODO" || resp.Remote || resp.Degraded {
		t.Errorf("dispatch response = %+v", resp)
	}

	st := decode[state.State](t, do(t, h, http.MethodGet, "/api/state", ""))
	if len(st.Todos) != 1 || st.Todos[0].Title != "Buy milk" || st.Todos[0].ID == "" {
		t.Errorf("todos = %+v", st.Todos)
	}
	if len(st.Habits) == 0 {
		t.Error("state is missing the habit catalog")
	}
}

func TestDispatchErrors(t *testing.T) {
	h := setupLocal(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"not json", `{`, http.StatusBadRequest, "malformed_action"},
		{"missing payload", `{"type":"ADD_TODO"}`, http.StatusBadRequest, "malformed_action"},
		{"invalid record", `{"type":"ADD_TODO","payload":{"title":""}}`, http.StatusUnprocessableEntity, "invalid_record"},
		{"invalid goals", `{"type":"UPDATE_NUTRITION_GOALS","payload":{"daily_fat":-1}}`, http.StatusUnprocessableEntity, "invalid_record"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/dispatch", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body)
			}
			if body := decode[errorBody](t, w); body.Code != tt.wantErr {
				t.Errorf("error code = %q, want %q", body.Code, tt.wantErr)
			}
		})
	}

	w := do(t, h, http.MethodPost, "/api/dispatch", `{"type":"TOGGLE_SIDEBAR"}`)
	if w.Code != http.StatusOK {
		t.Errorf("unknown action status = %d, want 200", w.Code)
	}
}

func TestSessionFlow(t *testing.T) {
	h, _ := setupRemote(t)

	w := do(t, h, http.MethodPost, "/api/session/signup", `{"email":"sam@example.com","password":"password1","fullName":"Sam"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", w.Code, w.Body)
	}
	created := decode[sessionResponse](t, w)
	if created.User == nil || created.User.ID == "" || created.Token == "" {
		t.Fatalf("signup response = %+v", created)
	}
	tok := created.Token

	if w := doAs(t, h, tok, http.MethodGet, "/api/session", ""); w.Code != http.StatusOK {
		t.Errorf("session status = %d, want 200", w.Code)
	}

	w = doAs(t, h, tok, http.MethodPost, "/api/dispatch", `{"type":"ADD_GOAL","payload":{"title":"Run a 10k"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("dispatch status = %d: %s", w.Code, w.Body)
	}
	if resp := decode[dispatchResponse](t, w); !resp.Remote || resp.Degraded {
		t.Errorf("dispatch response = %+v, want remote and synced", resp)
	}

	sync := decode[store.SyncStatus](t, doAs(t, h, tok, http.MethodGet, "/api/sync", ""))
	if sync.PhaseName != "ready" || sync.Synced != 1 {
		t.Errorf("sync status = %+v", sync)
	}

	if w := doAs(t, h, tok, http.MethodPost, "/api/session/logout", ""); w.Code != http.StatusNoContent {
		t.Errorf("logout status = %d, want 204", w.Code)
	}
	if w := doAs(t, h, tok, http.MethodGet, "/api/session", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("session after logout status = %d, want 401", w.Code)
	}
	if w := doAs(t, h, tok, http.MethodGet, "/api/state", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("state after logout status = %d, want 401", w.Code)
	}

	w = do(t, h, http.MethodPost, "/api/session/login", `{"email":"sam@example.com","password":"password1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body)
	}
	tok = decode[sessionResponse](t, w).Token
	if st := decode[state.State](t, doAs(t, h, tok, http.MethodGet, "/api/state", "")); len(st.Goals) != 1 {
		t.Errorf("goals after login = %+v, want the stored goal", st.Goals)
	}
}

func TestRoutesNeedBearerToken(t *testing.T) {
	h, _ := setupRemote(t)

	w := do(t, h, http.MethodPost, "/api/session/signup", `{"email":"sam@example.com","password":"password1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", w.Code, w.Body)
	}
	tok := decode[sessionResponse](t, w).Token
	if w := doAs(t, h, tok, http.MethodPost, "/api/dispatch", `{"type":"ADD_JOURNAL_ENTRY","payload":{"content":"private"}}`); w.Code != http.StatusOK {
		t.Fatalf("dispatch status = %d: %s", w.Code, w.Body)
	}

	routes := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/api/state", ""},
		{http.MethodGet, "/api/stats", ""},
		{http.MethodGet, "/api/sync", ""},
		{http.MethodPost, "/api/dispatch", `{"type":"DELETE_JOURNAL_ENTRY","payload":"x"}`},
		{http.MethodGet, "/api/session", ""},
		{http.MethodPost, "/api/session/logout", ""},
		{http.MethodPost, "/api/session/password", `{"password":"password1","newPassword":"password2"}`},
	}
	tokens := []struct {
		name, token, wantCode string
	}{
		{"no token", "", "missing_token"},
		{"garbage token", "not-a-jwt", "invalid_token"},
		{"token signed with another key", foreignToken(t), "invalid_token"},
	}
	for _, tk := range tokens {
		for _, rt := range routes {
			t.Run(tk.name+" "+rt.method+" "+rt.path, func(t *testing.T) {
				w := doAs(t, h, tk.token, rt.method, rt.path, rt.body)
				if w.Code != http.StatusUnauthorized {
					t.Fatalf("status = %d, want 401: %s", w.Code, w.Body)
				}
				if body := decode[errorBody](t, w); body.Code != tk.wantCode {
					t.Errorf("error code = %q, want %q", body.Code, tk.wantCode)
				}
			})
		}
	}

	st := decode[state.State](t, doAs(t, h, tok, http.MethodGet, "/api/state", ""))
	if st.User == nil || len(st.JournalEntries) != 1 {
		t.Errorf("state after rejected requests = %+v", st)
	}
}

// foreignToken signs up on a separate server and returns its token, which
// is well-formed but signed with a different key.
func foreignToken(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	docs := sqlite.New(filepath.Join(t.TempDir(), "other.db"))
	if err := docs.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { docs.Close() })
	other, err := session.NewManager(session.Options{Docs: docs, SigningKey: []byte("another-signing-key"), Tokens: &memTokens{}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.SignUp(ctx, "eve@example.com", "password1", ""); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	tok, err := other.Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	return tok
}

type memTokens struct{ tok string }

func (m *memTokens) Token() (string, error)  { return m.tok, nil }
func (m *memTokens) SetToken(t string) error { m.tok = t; return nil }
func (m *memTokens) ClearToken() error       { m.tok = ""; return nil }

func TestChangePasswordRoute(t *testing.T) {
	h, _ := setupRemote(t)

	w := do(t, h, http.MethodPost, "/api/session/signup", `{"email":"sam@example.com","password":"password1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", w.Code, w.Body)
	}
	tok := decode[sessionResponse](t, w).Token

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"bad body", `nope`, http.StatusBadRequest},
		{"wrong current password", `{"password":"password9","newPassword":"password2"}`, http.StatusUnauthorized},
		{"weak new password", `{"password":"password1","newPassword":"short"}`, http.StatusBadRequest},
		{"ok", `{"password":"password1","newPassword":"password2"}`, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := doAs(t, h, tok, http.MethodPost, "/api/session/password", tt.body); w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body)
			}
		})
	}

	if w := do(t, h, http.MethodPost, "/api/session/login", `{"email":"sam@example.com","password":"password2"}`); w.Code != http.StatusOK {
		t.Errorf("login with new password status = %d: %s", w.Code, w.Body)
	}
}

func TestStatsRoute(t *testing.T) {
	h := setupLocal(t)
	do(t, h, http.MethodPost, "/api/dispatch", `{"type":"ADD_TODO","payload":{"title":"a","completed":true}}`)
	do(t, h, http.MethodPost, "/api/dispatch", `{"type":"ADD_JOURNAL_ENTRY","payload":{"content":"x"}}`)

	w := do(t, h, http.MethodGet, "/api/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	st := decode[state.Stats](t, w)
	if st.TasksCompleted != 1 || st.JournalEntries != 1 || st.Level != nil {
		t.Errorf("stats = %+v", st)
	}
}

func TestSessionErrors(t *testing.T) {
	h, _ := setupRemote(t)
	if w := do(t, h, http.MethodPost, "/api/session/signup", `{"email":"sam@example.com","password":"password1"}`); w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d", w.Code)
	}

	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
	}{
		{"duplicate", "/api/session/signup", `{"email":"sam@example.com","password":"password1"}`, http.StatusConflict},
		{"weak password", "/api/session/signup", `{"email":"kim@example.com","password":"short"}`, http.StatusBadRequest},
		{"wrong password", "/api/session/login", `{"email":"sam@example.com","password":"nope-nope"}`, http.StatusUnauthorized},
		{"bad body", "/api/session/login", `nope`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := do(t, h, http.MethodPost, tt.path, tt.body); w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body)
			}
		})
	}
}

func TestSessionLocalOnly(t *testing.T) {
	h := setupLocal(t)
	for _, path := range []string{"/api/session", "/api/session/login"} {
		if w := do(t, h, http.MethodPost, path, `{}`); w.Code != http.StatusNotImplemented {
			t.Errorf("%s status = %d, want 501", path, w.Code)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	h, _ := setupRemote(t)
	do(t, h, http.MethodGet, "/api/state", "")

	w := do(t, h, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `habitflow_http_requests_total{method="GET",route="/api/state",status_code="401"} 1`) {
		t.Errorf("metrics missing request counter:\n%s", w.Body)
	}
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2, CleanupInterval: time.Minute})
	defer rl.Stop()
	h := NewRouter(RouterDeps{Store: store.New(store.Options{}), RateLimiter: rl})

	for i := range 2 {
		if w := do(t, h, http.MethodGet, "/api/state", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
	w := do(t, h, http.MethodGet, "/api/state", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", w.Header().Get("Retry-After"))
	}
	if w := do(t, h, http.MethodGet, "/healthz", ""); w.Code != http.StatusOK {
		t.Errorf("healthz is rate limited: %d", w.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Minute})
	defer rl.Stop()

	rl.limiter("10.0.0.1")
	rl.limiter("10.0.0.2")
	if rl.Clients() != 2 {
		t.Fatalf("Clients() = %d, want 2", rl.Clients())
	}
	rl.cleanup(time.Now().Add(time.Hour))
	if rl.Clients() != 0 {
		t.Errorf("Clients() after cleanup = %d, want 0", rl.Clients())
	}
	rl.Stop()
}
