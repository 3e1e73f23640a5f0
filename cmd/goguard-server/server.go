package main

import (
	"encoding/json"
	"errors"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/MrEthical07/goGuard/permission"
	"github.com/MrEthical07/goGuard/query"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const auditPageSize = 100

type server struct {
	engine  *goGuard.Engine
	logger  *zap.Logger
	cfg     ServerConfig
	metrics http.Handler
	// auditLog is the unscoped executor holding AuditLog rows.
	auditLog query.Executor
	// seeded reports whether a platform operator exists.
	seeded func() bool
}

func (s *server) routes() http.Handler {
	guardCfg := middleware.DefaultConfig()
	guardCfg.PublicPaths = append(guardCfg.PublicPaths, "/metrics")
	guardCfg.Logger = s.logger

	r := mux.NewRouter()
	r.Use(mux.MiddlewareFunc(middleware.Guard(s.engine, guardCfg)))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/setup/status", s.handleSetupStatus).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics).Methods(http.MethodGet)
	}
	if s.cfg.StaticDir != "" {
		r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir))))
	}

	r.HandleFunc("/login", s.handleLoginPage).Methods(http.MethodGet)
	r.Handle("/login", middleware.Throttle(s.cfg.LoginPerSecond, s.cfg.LoginBurst)(http.HandlerFunc(s.handleLogin))).
		Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/reset-password", s.handleResetPage).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleHome).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/reset-password", s.handleResetPassword).Methods(http.MethodPost)
	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	api.HandleFunc("/tenant-override", s.handleSetOverride).Methods(http.MethodPost)
	api.HandleFunc("/tenant-override", s.handleClearOverride).Methods(http.MethodDelete)
	api.HandleFunc("/accounts", s.handleCreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}/role", s.handleSetRole).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{id}/permissions", s.handleSetPermissions).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{id}/two-factor", s.handleSetTwoFactor).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{id}/require-reset", s.handleRequireReset).Methods(http.MethodPost)
	api.HandleFunc("/role-templates/{role}", s.handleSaveTemplate).Methods(http.MethodPut)
	api.HandleFunc("/totp/enroll", s.handleTOTPEnroll).Methods(http.MethodPost)
	api.HandleFunc("/totp/confirm", s.handleTOTPConfirm).Methods(http.MethodPost)
	api.Handle("/audit", middleware.RequirePermission(s.engine, permission.AuditView, "AuditLog")(http.HandlerFunc(s.handleAudit))).
		Methods(http.MethodGet)

	return r
}

/*
====================================
PAGES
====================================
*/

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSetupStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"operator_seeded": s.seeded != nil && s.seeded()})
}

func (s *server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	writePage(w, "Sign in", `<form method="post" action="/login">
<input type="hidden" name="next" value="`+html.EscapeString(r.URL.Query().Get("next"))+`">
<input name="email" type="email" placeholder="Email">
<input name="password" type="password" placeholder="Password">
<input name="code" inputmode="numeric" placeholder="Verification code">
<button type="submit">Sign in</button>
</form>`)
}

func (s *server) handleResetPage(w http.ResponseWriter, _ *http.Request) {
	writePage(w, "Choose a new password", `<p>Your password must be changed before you continue.</p>
<p>POST {"password": "..."} to /api/reset-password.</p>`)
}

func (s *server) handleHome(w http.ResponseWriter, r *http.Request) {
	sess, _ := goGuard.SessionFromContext(r.Context())
	writePage(w, "goGuard", "<p>Signed in as "+html.EscapeString(sess.AccountID)+".</p>")
}

/*
====================================
SESSION
====================================
*/

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code"`
	Next     string `json:"next"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, goGuard.ErrInvalidInput)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			s.writeError(w, r, goGuard.ErrInvalidInput)
			return
		}
		req = loginRequest{
			Email:    r.PostFormValue("email"),
			Password: r.PostFormValue("password"),
			Code:     r.PostFormValue("code"),
			Next:     r.PostFormValue("next"),
		}
	}

	res, err := s.engine.Authorize(r.Context(), middleware.ClientIP(r), req.Email, req.Password, req.Code)
	if errors.Is(err, goGuard.ErrTwoFactorRequired) {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"two_factor_required": true,
			"message":             goGuard.PublicMessage(err),
		})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setSessionCookie(w, res)
	next := safeNext(req.Next)
	if res.Session.MustResetPassword {
		next = "/reset-password"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"redirect":            next,
		"must_reset_password": res.Session.MustResetPassword,
	})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := goGuard.SessionFromContext(r.Context()); ok {
		s.engine.Logout(r.Context(), sess)
	}
	s.clearCookie(w, middleware.SessionCookie)
	s.clearCookie(w, middleware.OverrideCookie)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (s *server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	var req passwordRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.SubmitNewPassword(r.Context(), sess, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setSessionCookie(w, res)
	writeJSON(w, http.StatusOK, map[string]string{"redirect": "/"})
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	scope, _ := goGuard.ScopeFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"account_id":          sess.AccountID,
		"role":                sess.Role,
		"tenant_id":           sess.TenantID,
		"permissions":         sess.Permissions.Tokens(),
		"must_reset_password": sess.MustResetPassword,
		"scope":               scope.String(),
		"platform_operator":   s.engine.IsPlatformOperator(sess),
	})
}

type overrideRequest struct {
	TenantID string `json:"tenant_id"`
}

func (s *server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	var req overrideRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.engine.IssueTenantOverride(r.Context(), sess, req.TenantID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.OverrideCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.Override.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id":  res.Override.TenantID,
		"expires_at": res.Override.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	if c, err := r.Cookie(middleware.OverrideCookie); err == nil {
		s.engine.ClearTenantOverride(r.Context(), sess, c.Value)
	}
	s.clearCookie(w, middleware.OverrideCookie)
	w.WriteHeader(http.StatusNoContent)
}

/*
====================================
ADMINISTRATION
====================================
*/

type createAccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !s.decode(w, r, &req) {
		return
	}
	a, err := s.engine.CreateAccount(r.Context(), mustSession(r), goGuard.NewAccount{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        a.ID,
		"email":     a.Email,
		"role":      a.Role,
		"tenant_id": a.TenantID,
	})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (s *server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.engine.SetAccountRole(r.Context(), mustSession(r), mux.Vars(r)["id"], req.Role)
	s.writeResult(w, r, err)
}

// permissionsRequest carries a custom permission set. A null or missing
// list clears the override; an empty list grants nothing.
type permissionsRequest struct {
	Permissions *[]string `json:"permissions"`
}

func (s *server) handleSetPermissions(w http.ResponseWriter, r *http.Request) {
	var req permissionsRequest
	if !s.decode(w, r, &req) {
		return
	}
	var perms *goGuard.PermissionSet
	if req.Permissions != nil {
		perms = permission.NewSet(*req.Permissions...).Ptr()
	}
	err := s.engine.SetCustomPermissions(r.Context(), mustSession(r), mux.Vars(r)["id"], perms)
	s.writeResult(w, r, err)
}

type twoFactorRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *server) handleSetTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req twoFactorRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.engine.SetTwoFactor(r.Context(), mustSession(r), mux.Vars(r)["id"], req.Enabled)
	s.writeResult(w, r, err)
}

func (s *server) handleRequireReset(w http.ResponseWriter, r *http.Request) {
	err := s.engine.RequirePasswordReset(r.Context(), mustSession(r), mux.Vars(r)["id"])
	s.writeResult(w, r, err)
}

type templateRequest struct {
	Permissions []string `json:"permissions"`
}

func (s *server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !s.decode(w, r, &req) {
		return
	}
	err := s.engine.SaveRoleTemplate(r.Context(), mustSession(r), mux.Vars(r)["role"], permission.NewSet(req.Permissions...))
	s.writeResult(w, r, err)
}

func (s *server) handleTOTPEnroll(w http.ResponseWriter, r *http.Request) {
	enrollment, err := s.engine.BeginTOTPEnrollment(r.Context(), mustSession(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"secret": enrollment.SecretBase32,
		"uri":    enrollment.URI,
	})
}

type codeRequest struct {
	Code string `json:"code"`
}

func (s *server) handleTOTPConfirm(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeResult(w, r, s.engine.ConfirmTOTPEnrollment(r.Context(), mustSession(r), req.Code))
}

// handleAudit lists the newest audit rows of the request's tenant, or the
// platform log when the caller has no tenant.
func (s *server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeJSON(w, http.StatusOK, []query.Record{})
		return
	}
	scope, _ := goGuard.ScopeFromContext(r.Context())
	// Operators outside any tenant see platform events; everyone else sees
	// their tenant's log.
	entity := audit.LogEntity
	if !scope.HasTenant() {
		entity = audit.PlatformLogEntity
	}
	res, err := s.engine.ExecutorFor(s.auditLog, scope).Execute(r.Context(), query.Operation{
		Entity:  entity,
		Kind:    query.FindMany,
		OrderBy: "created_at",
		Desc:    true,
		Limit:   auditPageSize,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	records := res.Records
	if records == nil {
		records = []query.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

/*
====================================
HELPERS
====================================
*/

func (s *server) setSessionCookie(w http.ResponseWriter, res *goGuard.LoginResult) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, r, goGuard.ErrInvalidInput)
		return false
	}
	return true
}

func (s *server) writeResult(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := goGuard.ErrorKind(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	writeJSON(w, status, map[string]string{
		"error":   string(kind),
		"message": goGuard.PublicMessage(err),
	})
}

func statusFor(kind goGuard.Kind) int {
	switch kind {
	case goGuard.KindRateLimited:
		return http.StatusTooManyRequests
	case goGuard.KindInvalidInput:
		return http.StatusBadRequest
	case goGuard.KindInvalidCredentials, goGuard.KindTwoFactorInvalid:
		return http.StatusUnauthorized
	case goGuard.KindTwoFactorRequired:
		return http.StatusAccepted
	case goGuard.KindUnauthorized:
		return http.StatusForbidden
	case goGuard.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// mustSession returns the session the guard attached. Every non-public
// route runs behind the guard, so it is always present there.
func mustSession(r *http.Request) *goGuard.Session {
	sess, _ := goGuard.SessionFromContext(r.Context())
	return sess
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writePage(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<!doctype html><title>" + html.EscapeString(title) + "</title><h1>" + html.EscapeString(title) + "</h1>" + body))
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// safeNext keeps post-login redirects on this host.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	if u, err := url.Parse(next); err != nil || u.Host != "" {
		return "/"
	}
	return next
}
