package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bulk-pricing/internal/auth"
	"github.com/noah-isme/bulk-pricing/internal/common"
)

func newVerifier(t *testing.T) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(auth.Config{
		Secret:       "test-secret-test-secret-test-secret",
		Issuer:       "identity",
		Audience:     "pricing-admin",
		ClockSkew:    time.Second,
		RequiredRole: "admin",
	})
	require.NoError(t, err)
	return v
}

func guarded(v *auth.Verifier, seen *string) http.Handler {
	mw := auth.Middleware{Verifier: v, Logger: zerolog.Nop()}
	return mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen, _ = common.Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestRequireAdminAcceptsAdminToken(t *testing.T) {
	v := newVerifier(t)
	token, err := v.Sign("ops@example.com", []string{"admin"}, time.Minute)
	require.NoError(t, err)

	var subject string
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/TEE/pricing-rule", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	guarded(v, &subject).ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "ops@example.com", subject)
}

func TestRequireAdminRejectsMissingRole(t *testing.T) {
	v := newVerifier(t)
	token, err := v.Sign("viewer@example.com", []string{"viewer"}, time.Minute)
	require.NoError(t, err)

	var subject string
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/TEE/pricing-rule", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	guarded(v, &subject).ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Empty(t, subject)
}

func TestRequireAdminRejectsMissingAndForeignTokens(t *testing.T) {
	v := newVerifier(t)
	other, err := auth.NewVerifier(auth.Config{Secret: "another-secret-another-secret-xx", Issuer: "identity", Audience: "pricing-admin"})
	require.NoError(t, err)
	foreign, err := other.Sign("ops@example.com", []string{"admin"}, time.Minute)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing": "",
		"garbage": "Bearer not-a-token",
		"foreign": "Bearer " + foreign,
	} {
		t.Run(name, func(t *testing.T) {
			var subject string
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/products/TEE/pricing-rule", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			guarded(v, &subject).ServeHTTP(rr, req)
			require.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestRequireAdminRejectsExpiredToken(t *testing.T) {
	v := newVerifier(t)
	past := time.Now().Add(-time.Hour)
	v.WithClock(func() time.Time { return past })
	token, err := v.Sign("ops@example.com", []string{"admin"}, time.Minute)
	require.NoError(t, err)
	v.WithClock(time.Now)

	var subject string
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/TEE/pricing-rule", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	guarded(v, &subject).ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := auth.NewVerifier(auth.Config{})
	require.Error(t, err)
}
