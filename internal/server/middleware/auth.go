package middleware

import (
	"net/http"

	"github.com/gosuda/backoffice/internal/session"
)

// SessionChecker reports the operator session the process holds.
// *session.Source satisfies this interface.
type SessionChecker interface {
	Current() (session.Info, bool)
}

// RequireSession rejects requests while no live session is held and stores
// the session claims in the request context otherwise.
func RequireSession(sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := sessions.Current()
			if !ok {
				w.Header().Set("Content-Type", "application/problem+json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"not signed in"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), info)))
		})
	}
}
