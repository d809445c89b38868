package common_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bulk-pricing/internal/common"
)

func newIdem(t *testing.T) (common.Idem, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return common.Idem{R: client, TTL: time.Minute}, mr
}

func sendWithKey(handler http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPut, path, nil)
	req.Header.Set("Idempotency-Key", key)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	idem, mr := newIdem(t)
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		common.JSON(w, http.StatusOK, map[string]any{"version": calls})
	}))

	first := sendWithKey(handler, "/api/v1/admin/products/p1/pricing-rule", "abc")
	require.Equal(t, http.StatusOK, first.Code)

	second := sendWithKey(handler, "/api/v1/admin/products/p1/pricing-rule", "abc")
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, first.Body.String(), second.Body.String())
	require.Equal(t, 1, calls)

	other := sendWithKey(handler, "/api/v1/admin/products/p2/pricing-rule", "abc")
	require.Equal(t, http.StatusOK, other.Code)
	require.Equal(t, 2, calls)
	require.Len(t, mr.Keys(), 2)
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	idem, mr := newIdem(t)
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	key := "idem:" + common.Sha256Hex(http.MethodPut+" /api/v1/admin/products/p1/pricing-rule abc")
	require.NoError(t, mr.Set(key, "pending"))

	rec := sendWithKey(handler, "/api/v1/admin/products/p1/pricing-rule", "abc")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENT_REPLAY")
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	idem, mr := newIdem(t)
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	require.Equal(t, http.StatusInternalServerError, sendWithKey(handler, "/x", "retry-me").Code)
	require.Empty(t, mr.Keys())
	require.Equal(t, http.StatusInternalServerError, sendWithKey(handler, "/x", "retry-me").Code)
	require.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyOnConflict(t *testing.T) {
	idem, mr := newIdem(t)
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			common.JSONError(w, http.StatusConflict, "RULE_BUSY", "pricing rule is being edited, retry shortly", nil)
			return
		}
		common.JSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}))

	first := sendWithKey(handler, "/api/v1/admin/products/p1/pricing-rule", "busy")
	require.Equal(t, http.StatusConflict, first.Code)
	require.Empty(t, mr.Keys())

	second := sendWithKey(handler, "/api/v1/admin/products/p1/pricing-rule", "busy")
	require.Equal(t, http.StatusOK, second.Code)
	require.Empty(t, second.Header().Get("Idempotent-Replayed"))
	require.Equal(t, 2, calls)

	third := sendWithKey(handler, "/api/v1/admin/products/p1/pricing-rule", "busy")
	require.Equal(t, http.StatusOK, third.Code)
	require.Equal(t, "true", third.Header().Get("Idempotent-Replayed"))
	require.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyOnRetryAfter(t *testing.T) {
	idem, mr := newIdem(t)
	calls := 0
	handler := idem.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	require.Equal(t, http.StatusTooManyRequests, sendWithKey(handler, "/x", "later").Code)
	require.Empty(t, mr.Keys())
	require.Equal(t, http.StatusTooManyRequests, sendWithKey(handler, "/x", "later").Code)
	require.Equal(t, 2, calls)
}

func TestWriteErrorRendersAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	common.WriteError(rec, common.BadRequest("productId", "productId is required", errors.New("empty")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "BAD_REQUEST", body.Error.Code)
	require.Equal(t, map[string]any{"field": "productId"}, body.Error.Details)

	plain := httptest.NewRecorder()
	common.WriteError(plain, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, plain.Code)
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	page, perPage := common.ParsePagination(req, 20, 100)
	require.Equal(t, 3, page)
	require.Equal(t, 100, perPage)

	req = httptest.NewRequest(http.MethodGet, "/?page=x&limit=-2", nil)
	page, perPage = common.ParsePagination(req, 20, 100)
	require.Equal(t, 1, page)
	require.Equal(t, 20, perPage)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", common.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	req.Header.Set("X-Real-IP", "::ffff:198.51.100.4")
	require.Equal(t, "198.51.100.4", common.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4242"
	require.Equal(t, "192.0.2.10", common.ClientIP(req))
}

func TestAtoiDefault(t *testing.T) {
	require.Equal(t, 7, common.AtoiDefault(" 7 ", 1))
	require.Equal(t, 1, common.AtoiDefault("", 1))
	require.Equal(t, 1, common.AtoiDefault("seven", 1))
}
