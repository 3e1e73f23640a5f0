package middleware

import (
	"net/http"
	"net/url"
	"strings"

	goGuard "github.com/MrEthical07/goGuard"
	"go.uber.org/zap"
)

// Cookie names shared with the server handlers.
const (
	SessionCookie  = "session"
	OverrideCookie = "tenant_override"
)

// Config lists the routes the guard treats specially.
type Config struct {
	LoginPath    string
	ResetPath    string
	ResetAPIPath string

	// PublicPaths are reachable without a session, matched exactly.
	PublicPaths []string
	// PublicPrefixes are reachable without a session, matched by prefix.
	PublicPrefixes []string
	// ResetExempt are prefixes still reachable while a password reset is
	// pending, in addition to the reset page and its API.
	ResetExempt []string
	// APIPrefix marks routes answered with 401 instead of a redirect.
	APIPrefix string

	Logger *zap.Logger
}

// DefaultConfig returns the routes of the bundled server.
func DefaultConfig() Config {
	return Config{
		LoginPath:      "/login",
		ResetPath:      "/reset-password",
		ResetAPIPath:   "/api/reset-password",
		PublicPaths:    []string{"/login", "/healthz", "/setup/status"},
		PublicPrefixes: []string{"/static/"},
		ResetExempt:    []string{"/static/", "/logout"},
		APIPrefix:      "/api/",
	}
}

// Guard authenticates every request.
//
// Public routes always pass. Without a valid session the request is
// redirected to the login page (API routes get 401). A session whose account
// must reset its password is redirected to the reset page for every route
// except the reset page, its API and the exempt prefixes. Passing requests
// carry the session, the resolved tenant scope and the client IP in their
// context.
func Guard(engine *goGuard.Engine, cfg Config) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("guard")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := goGuard.WithClientIP(r.Context(), ClientIP(r))
			path := r.URL.Path

			var session *goGuard.Session
			if engine != nil {
				if token, ok := sessionToken(r); ok {
					s, err := engine.ParseSession(token)
					if err != nil {
						logger.Debug("session rejected", zap.String("path", path), zap.Error(err))
					} else {
						session = s
					}
				}
			}

			if session != nil {
				ctx = goGuard.WithSession(ctx, session)
				ctx = goGuard.WithScope(ctx, engine.ResolveTenant(session, cookieValue(r, OverrideCookie)))
			}
			r = r.WithContext(ctx)

			if cfg.public(path) {
				next.ServeHTTP(w, r)
				return
			}

			if session == nil {
				if cfg.api(path) {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				redirect(w, r, cfg.LoginPath+"?next="+url.QueryEscape(r.URL.RequestURI()))
				return
			}

			if session.MustResetPassword && !cfg.resetReachable(path) {
				if cfg.api(path) {
					http.Error(w, "password reset required", http.StatusForbidden)
					return
				}
				redirect(w, r, cfg.ResetPath)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (c Config) public(path string) bool {
	for _, p := range c.PublicPaths {
		if path == p {
			return true
		}
	}
	return hasAnyPrefix(path, c.PublicPrefixes)
}

func (c Config) resetReachable(path string) bool {
	if path == c.ResetPath || path == c.ResetAPIPath {
		return true
	}
	return hasAnyPrefix(path, c.ResetExempt)
}

func (c Config) api(path string) bool {
	return c.APIPrefix != "" && strings.HasPrefix(path, c.APIPrefix)
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func sessionToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if v := cookieValue(r, SessionCookie); v != "" {
		return v, true
	}
	return "", false
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
