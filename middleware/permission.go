package middleware

import (
	"errors"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
)

// RequirePermission rejects requests whose session lacks perm with 403. The
// engine logs and audits the refusal. It must run behind [Guard].
func RequirePermission(engine *goGuard.Engine, perm, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := goGuard.SessionFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if err := engine.RequirePermission(r.Context(), s, perm, resource); err != nil {
				status := http.StatusForbidden
				if !errors.Is(err, goGuard.ErrUnauthorized) {
					status = http.StatusInternalServerError
				}
				http.Error(w, goGuard.PublicMessage(err), status)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
