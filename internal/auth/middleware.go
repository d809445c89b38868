package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bulk-pricing/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// Middleware guards admin routes with bearer-token verification.
type Middleware struct {
	Verifier *Verifier
	Logger   zerolog.Logger
}

// RequireAdmin rejects requests without a valid token carrying the admin role.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Verifier == nil {
			common.JSONError(w, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "admin authentication not configured", nil)
			return
		}
		principal, err := m.Verifier.Verify(bearerToken(r))
		if err != nil {
			if errors.Is(err, ErrMissingRole) {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "admin role required", nil)
				return
			}
			if !errors.Is(err, errNoToken) {
				m.Logger.Debug().Err(err).Str("path", r.URL.Path).Msg("admin token rejected")
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("subject", principal.Subject)
		})
		ctx := common.WithSubject(r.Context(), principal.Subject, principal.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
