package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/laofi/internal/user"
)

const (
	msgUnauthenticated = "No autenticado"
	msgForbidden       = "Acceso denegado"
)

type contextKey struct{}

func WithPrincipal(ctx context.Context, p user.Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFrom returns the caller attached by Authenticate.
func PrincipalFrom(ctx context.Context) (user.Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(user.Principal)
	return p, ok
}

// Authenticate attaches the caller to the request context when a valid session token is present.
// Requests without one pass through unchanged.
func (m *Manager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := m.TokenFromRequest(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		p, err := m.Parse(raw)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("auth: discarding invalid session token")
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFrom(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		if !p.IsAdmin() {
			log.Warn().Stringer("user_id", p.ID).Str("path", r.URL.Path).Msg("auth: admin route denied")
			writeError(w, http.StatusForbidden, msgForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		log.Error().Err(err).Msg("auth: failed to write error response")
	}
}
