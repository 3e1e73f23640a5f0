package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/middleware"
	"go.uber.org/zap"
)

const (
	operatorEmail    = "ops@example.com"
	operatorPassword = "operator-secret"
)

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Server.SecureCookies = false
	cfg.Server.LoginBurst = 20
	cfg.Seed = SeedConfig{Email: operatorEmail, Password: operatorPassword}
	cfg.Engine.Session.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Engine.Password.Memory = 8 * 1024
	cfg.Engine.Password.Time = 1
	cfg.Engine.Password.Parallelism = 1
	return cfg
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig()
	logger := zap.NewNop()

	b, err := openBackends(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("openBackends: %v", err)
	}
	engine, err := buildEngine(cfg, logger, b)
	if err != nil {
		t.Fatalf("buildEngine: %v", err)
	}
	t.Cleanup(engine.Close)

	seeded, err := seedOperator(context.Background(), engine, cfg.Seed, logger)
	if err != nil || !seeded {
		t.Fatalf("seedOperator: seeded=%v err=%v", seeded, err)
	}

	srv := &server{
		engine:   engine,
		logger:   logger,
		cfg:      cfg.Server,
		auditLog: b.auditLog,
		seeded:   func() bool { return seeded },
	}
	return srv.routes()
}

func do(h http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func login(t *testing.T, h http.Handler, email, password string) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	rec := do(h, http.MethodPost, "/login", loginRequest{Email: email, Password: password})
	return rec, cookie(rec, middleware.SessionCookie)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v (%s)", err, rec.Body.String())
	}
}

func TestPublicRoutes(t *testing.T) {
	h := newTestServer(t)

	if rec := do(h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	rec := do(h, http.MethodGet, "/setup/status", nil)
	var status map[string]bool
	decodeBody(t, rec, &status)
	if !status["operator_seeded"] {
		t.Fatalf("expected operator_seeded, got %v", status)
	}

	if rec := do(h, http.MethodGet, "/login", nil); rec.Code != http.StatusOK {
		t.Fatalf("login page status = %d", rec.Code)
	}
}

func TestAnonymousRequests(t *testing.T) {
	h := newTestServer(t)

	rec := do(h, http.MethodGet, "/", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login?next=%2F" {
		t.Fatalf("page route: status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := do(h, http.MethodGet, "/api/me", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("api route status = %d, want 401", rec.Code)
	}
}

func TestLoginStatuses(t *testing.T) {
	h := newTestServer(t)

	rec, c := login(t, h, operatorEmail, "wrong-password")
	if rec.Code != http.StatusUnauthorized || c != nil {
		t.Fatalf("wrong password: status=%d cookie=%v", rec.Code, c)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != string(goGuard.KindInvalidCredentials) {
		t.Fatalf("error kind = %q", body["error"])
	}

	unknown, _ := login(t, h, "nobody@example.com", "wrong-password")
	var unknownBody map[string]string
	decodeBody(t, unknown, &unknownBody)
	if unknown.Code != rec.Code || unknownBody["message"] != body["message"] {
		t.Fatalf("unknown account distinguishable: %d %v", unknown.Code, unknownBody)
	}

	if rec, _ := login(t, h, "not-an-email", "x"); rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid input status = %d", rec.Code)
	}

	rec, c = login(t, h, operatorEmail, operatorPassword)
	if rec.Code != http.StatusOK || c == nil {
		t.Fatalf("login: status=%d body=%s", rec.Code, rec.Body.String())
	}
	if !c.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
}

func TestOperatorOnboardsTenantAccount(t *testing.T) {
	h := newTestServer(t)

	_, opCookie := login(t, h, operatorEmail, operatorPassword)
	if opCookie == nil {
		t.Fatal("operator login failed")
	}

	// Operators have no tenant until they select one.
	rec := do(h, http.MethodPost, "/api/accounts", createAccountRequest{Email: "admin@acme.test", Password: "initial-pass", Role: "ADMIN"}, opCookie)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("create without tenant: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodPost, "/api/tenant-override", overrideRequest{TenantID: "acme"}, opCookie)
	override := cookie(rec, middleware.OverrideCookie)
	if rec.Code != http.StatusOK || override == nil {
		t.Fatalf("override: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodPost, "/api/accounts", createAccountRequest{Email: "admin@acme.test", Password: "initial-pass", Role: "ADMIN"}, opCookie, override)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var created map[string]any
	decodeBody(t, rec, &created)
	if created["tenant_id"] != "acme" {
		t.Fatalf("account tenant = %v", created["tenant_id"])
	}

	// First login lands on the reset page and every other route is gated.
	rec, adminCookie := login(t, h, "admin@acme.test", "initial-pass")
	var loginBody map[string]any
	decodeBody(t, rec, &loginBody)
	if loginBody["redirect"] != "/reset-password" {
		t.Fatalf("redirect = %v", loginBody["redirect"])
	}
	if rec := do(h, http.MethodGet, "/api/me", nil, adminCookie); rec.Code != http.StatusForbidden {
		t.Fatalf("gated api status = %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/reset-password", nil, adminCookie); rec.Code != http.StatusOK {
		t.Fatalf("reset page status = %d", rec.Code)
	}

	rec = do(h, http.MethodPost, "/api/reset-password", passwordRequest{Password: "chosen-pass"}, adminCookie)
	fresh := cookie(rec, middleware.SessionCookie)
	if rec.Code != http.StatusOK || fresh == nil {
		t.Fatalf("reset: status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = do(h, http.MethodGet, "/api/me", nil, fresh)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: status=%d body=%s", rec.Code, rec.Body.String())
	}
	var me map[string]any
	decodeBody(t, rec, &me)
	if me["tenant_id"] != "acme" || me["must_reset_password"] != false {
		t.Fatalf("me = %v", me)
	}

	// Audit rows are written asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = do(h, http.MethodGet, "/api/audit", nil, fresh)
		if rec.Code != http.StatusOK {
			t.Fatalf("audit: status=%d body=%s", rec.Code, rec.Body.String())
		}
		var rows []map[string]any
		decodeBody(t, rec, &rows)
		for _, row := range rows {
			if row["tenant_id"] != "acme" {
				t.Fatalf("audit row from another tenant: %v", row)
			}
		}
		if len(rows) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no audit rows for tenant")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOperatorSeesPlatformAuditLog(t *testing.T) {
	h := newTestServer(t)
	if rec := do(h, http.MethodPost, "/login", loginRequest{Email: "ghost@example.com", Password: "whatever-pass"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown login: status=%d", rec.Code)
	}
	_, c := login(t, h, operatorEmail, operatorPassword)

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := do(h, http.MethodGet, "/api/audit", nil, c)
		if rec.Code != http.StatusOK {
			t.Fatalf("audit: status=%d body=%s", rec.Code, rec.Body.String())
		}
		var rows []map[string]any
		decodeBody(t, rec, &rows)
		found := false
		for _, row := range rows {
			if _, ok := row["tenant_id"]; ok {
				t.Fatalf("platform audit row with a tenant column: %v", row)
			}
			found = found || row["action"] == goGuard.ActionLoginFailed
		}
		if found {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("unknown-account failure not in platform log: %v", rows)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNonOperatorCannotOverride(t *testing.T) {
	h := newTestServer(t)
	_, opCookie := login(t, h, operatorEmail, operatorPassword)
	override := cookie(do(h, http.MethodPost, "/api/tenant-override", overrideRequest{TenantID: "acme"}, opCookie), middleware.OverrideCookie)
	do(h, http.MethodPost, "/api/accounts", createAccountRequest{Email: "mgr@acme.test", Password: "initial-pass", Role: "MANAGER"}, opCookie, override)

	_, c := login(t, h, "mgr@acme.test", "initial-pass")
	rec := do(h, http.MethodPost, "/api/reset-password", passwordRequest{Password: "chosen-pass"}, c)
	c = cookie(rec, middleware.SessionCookie)

	if rec := do(h, http.MethodPost, "/api/tenant-override", overrideRequest{TenantID: "other"}, c); rec.Code != http.StatusForbidden {
		t.Fatalf("override by manager: status=%d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/api/audit", nil, c); rec.Code != http.StatusForbidden {
		t.Fatalf("audit by manager: status=%d", rec.Code)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	h := newTestServer(t)
	_, c := login(t, h, operatorEmail, operatorPassword)

	rec := do(h, http.MethodPost, "/logout", nil, c)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("logout status = %d", rec.Code)
	}
	cleared := cookie(rec, middleware.SessionCookie)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("session cookie not cleared: %v", cleared)
	}
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                     "/",
		"/shifts":              "/shifts",
		"//evil.example":       "/",
		"https://evil.example": "/",
		"relative":             "/",
	}
	for in, want := range cases {
		if got := safeNext(in); got != want {
			t.Errorf("safeNext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[goGuard.Kind]int{
		goGuard.KindRateLimited:          http.StatusTooManyRequests,
		goGuard.KindInvalidInput:         http.StatusBadRequest,
		goGuard.KindInvalidCredentials:   http.StatusUnauthorized,
		goGuard.KindTwoFactorRequired:    http.StatusAccepted,
		goGuard.KindUnauthorized:         http.StatusForbidden,
		goGuard.KindTenantScopeViolation: http.StatusInternalServerError,
		goGuard.KindConfiguration:        http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := statusFor(kind); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goguard.yaml")
	data := []byte(`
server:
  addr: ":9000"
log:
  environment: dev
engine:
  rate_limit:
    max_attempts: 3
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	env := map[string]string{goGuard.EnvSessionSecret: "from-env"}
	cfg, err := loadConfig(path, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Log.Environment != "dev" {
		t.Fatalf("server config not read: %+v", cfg.Server)
	}
	if cfg.Engine.RateLimit.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d", cfg.Engine.RateLimit.MaxAttempts)
	}
	if cfg.Engine.RateLimit.Window != 15*time.Minute {
		t.Fatalf("window default lost: %v", cfg.Engine.RateLimit.Window)
	}
	if cfg.Engine.Session.Secret != "from-env" {
		t.Fatalf("env secret not applied")
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Fatalf("shutdown default lost: %v", cfg.Server.ShutdownTimeout)
	}
}
