package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"condominio.app/internal/auth"
	"condominio.app/internal/condo"
	"condominio.app/internal/obs"
	"condominio.app/internal/ratelimit"
)

const testPassword = "secreto123"

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	*apiClient

	auth   *auth.Service
	idents *auth.MemoryStore
	condos *condo.MemoryStore

	admin, concierge, ana, beto auth.Identity
	unitA, unitB                condo.HousingUnit
	space                       condo.CommonSpace
	condo                       condo.Condominium
}

type envOption func(*Deps)

func withLimiter(l ratelimit.Limiter) envOption {
	return func(d *Deps) { d.LoginLimiter = l }
}

func withReady(r readinessChecker) envOption {
	return func(d *Deps) { d.Ready = r }
}

func withAuth(svc *auth.Service) envOption {
	return func(d *Deps) { d.Auth = svc }
}

func withTrustedProxies(list ...string) envOption {
	return func(d *Deps) { d.TrustedProxies = list }
}

func newTestAuth(t *testing.T, store auth.IdentityStore) *auth.Service {
	t.Helper()
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: "test-secret", Algorithm: "HS256", TTL: time.Hour})
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	hasher, err := auth.NewHasher(4)
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	svc, err := auth.NewService(store, tokens, auth.WithHasher(hasher))
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return svc
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()
	env := &testEnv{idents: auth.NewMemoryStore(), condos: condo.NewMemoryStore()}
	env.auth = newTestAuth(t, env.idents)

	mk := func(email, name string, role auth.Role) auth.Identity {
		ident, err := env.auth.CreateAccount(ctx, auth.Registration{Email: email, Password: testPassword, FullName: name, Role: role})
		if err != nil {
			t.Fatalf("create %s: %v", email, err)
		}
		return ident
	}
	env.admin = mk("admin@condominio.cl", "Admin", auth.RoleAdministrator)
	env.concierge = mk("conserje@condominio.cl", "Conserje", auth.RoleConcierge)
	env.ana = mk("ana@condominio.cl", "Ana Rojas", auth.RoleResident)
	env.beto = mk("beto@condominio.cl", "Beto Diaz", auth.RoleResident)

	cs := env.condos
	cs.AddPerson(condo.ResidentContact{ID: env.admin.ID, Name: env.admin.FullName, Email: env.admin.Email}, false)
	cs.AddPerson(condo.ResidentContact{ID: env.ana.ID, Name: env.ana.FullName, Email: env.ana.Email}, true)
	cs.AddPerson(condo.ResidentContact{ID: env.beto.ID, Name: env.beto.FullName, Email: env.beto.Email}, true)
	env.condo = cs.AddCondominium(condo.Condominium{Name: "Los Robles", Address: "Av. Principal 100"})
	env.unitA = cs.AddUnit(condo.HousingUnit{CondominiumID: env.condo.ID, Number: "101", FixedChargeUF: 2.5, ResidentIDs: []int64{env.ana.ID}})
	env.unitB = cs.AddUnit(condo.HousingUnit{CondominiumID: env.condo.ID, Number: "102", FixedChargeUF: 3, ResidentIDs: []int64{env.beto.ID}})
	env.space = cs.AddSpace(condo.CommonSpace{CondominiumID: env.condo.ID, Name: "Quincho", RequiresPayment: true})
	due := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	cs.AddExpense(condo.Expense{UnitID: env.unitA.ID, Month: 1, Year: 2025, Total: 200, DueDate: &due})

	condoSvc, err := condo.NewService(cs, condo.WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("condo service: %v", err)
	}

	deps := Deps{
		Auth:         env.auth,
		Condo:        condoSvc,
		LoginLimiter: ratelimit.NewMemory(100, time.Minute),
		Logger:       zap.NewNop(),
		Version:      "test",
		CORSOrigins:  []string{"http://localhost:3000"},
	}
	for _, opt := range opts {
		opt(&deps)
	}
	api, err := New(deps)
	if err != nil {
		t.Fatalf("new api: %v", err)
	}
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	env.apiClient = &apiClient{baseURL: srv.URL, client: srv.Client(), t: t}
	return env
}

// token logs ident in through the service and returns a bearer header.
func (e *testEnv) token(ident auth.Identity) map[string]string {
	e.t.Helper()
	sess, err := e.auth.Login(context.Background(), ident.Email, testPassword)
	if err != nil {
		e.t.Fatalf("login %s: %v", ident.Email, err)
	}
	return map[string]string{"Authorization": "Bearer " + sess.Token}
}

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, payload)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, headers map[string]string) *http.Response {
	c.t.Helper()
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) postForm(path string, form url.Values) *http.Response {
	c.t.Helper()
	resp, err := c.client.Post(c.baseURL+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		c.t.Fatalf("post form: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body=%s", resp.StatusCode, want, b)
	}
}

// expectError checks status and envelope code and returns the envelope.
func expectError(t *testing.T, resp *http.Response, status int, code string) errorEnvelope {
	t.Helper()
	expectStatus(t, resp, status)
	env := decode[errorEnvelope](t, resp)
	if env.Error.Code != code {
		t.Fatalf("error.code = %q, want %q (message %q)", env.Error.Code, code, env.Error.Message)
	}
	if env.RequestID == "" {
		t.Fatalf("error envelope without request_id")
	}
	return env
}

type failingReady struct{}

func (failingReady) Check(context.Context) error { return errors.New("db down") }

// brokenStore fails every lookup, standing in for an unreachable database.
type brokenStore struct{ *auth.MemoryStore }

var errBroken = errors.New("connection refused")

func (brokenStore) FindByID(context.Context, int64) (auth.Identity, error) {
	return auth.Identity{}, errBroken
}

func (brokenStore) FindByEmail(context.Context, string) (auth.Identity, error) {
	return auth.Identity{}, errBroken
}

func TestNewRequiresServices(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatalf("expected error without services")
	}
}

func TestHealthzAndReadyz(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get("/healthz", nil)
	expectStatus(t, resp, http.StatusOK)
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Fatalf("unexpected healthz body: %v", body)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}

	resp = env.get("/readyz", nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	down := newTestEnv(t, withReady(failingReady{}))
	expectError(t, down.get("/readyz", nil), http.StatusServiceUnavailable, codeUnavailable)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	env := newTestEnv(t)
	expectError(t, env.get("/nope", nil), http.StatusNotFound, codeNotFound)
	expectError(t, env.do(http.MethodPatch, "/healthz", nil, nil), http.StatusMethodNotAllowed, codeMethodNotAllowed)
}

func TestRequestIDPropagation(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get("/api/v1/auth/me", map[string]string{headerRequestID: "req-123"})
	if got := resp.Header.Get(headerRequestID); got != "req-123" {
		t.Fatalf("X-Request-ID = %q", got)
	}
	envl := expectError(t, resp, http.StatusUnauthorized, codeInvalidToken)
	if envl.RequestID != "req-123" {
		t.Fatalf("request_id = %q", envl.RequestID)
	}

	resp = env.get("/healthz", map[string]string{headerRequestID: "bad id with spaces"})
	if got := resp.Header.Get(headerRequestID); got == "" || got == "bad id with spaces" {
		t.Fatalf("invalid request id kept: %q", got)
	}
	resp.Body.Close()
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(http.MethodOptions, "/api/v1/auth/login", nil, map[string]string{
		"Origin":                        "http://localhost:3000",
		"Access-Control-Request-Method": "POST",
	})
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
	if resp.Header.Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("credentials not allowed")
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Fatalf("Authorization header not allowed")
	}

	resp = env.do(http.MethodOptions, "/api/v1/auth/login", nil, map[string]string{
		"Origin":                        "http://evil.example",
		"Access-Control-Request-Method": "POST",
	})
	expectStatus(t, resp, http.StatusForbidden)
	resp.Body.Close()
}

func TestMetricsEndpoint(t *testing.T) {
	obs.Init()
	env := newTestEnv(t)
	env.get("/healthz", nil).Body.Close()
	resp := env.get("/metrics", nil)
	expectStatus(t, resp, http.StatusOK)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(b), "http_requests_total") {
		t.Fatalf("metrics output missing http_requests_total")
	}
}
