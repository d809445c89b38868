package rules

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bulk-pricing/internal/common"
	"github.com/noah-isme/bulk-pricing/internal/pricing"
)

// Handler exposes pricing rule endpoints.
type Handler struct {
	service      *Service
	logger       zerolog.Logger
	defaultLimit int
	maxLimit     int
}

// NewHandler constructs a rules HTTP handler.
func NewHandler(service *Service, logger zerolog.Logger, defaultLimit, maxLimit int) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Handler{service: service, logger: logger, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// TierTable handles GET /api/v1/products/{productId}/pricing-rule.
func (h *Handler) TierTable(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	rule, status := h.service.Lookup(r.Context(), productID)
	switch status {
	case StatusFound:
		common.JSON(w, http.StatusOK, map[string]any{"data": NewTierTable(rule)})
	case StatusDegraded:
		common.JSONError(w, http.StatusServiceUnavailable, "PRICING_UNAVAILABLE", "pricing rule temporarily unavailable", nil)
	default:
		common.WriteError(w, common.NotFound("pricing rule not found", nil))
	}
}

// AdminList handles GET /api/v1/admin/pricing-rules.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, h.defaultLimit, h.maxLimit)
	items, total, err := h.service.List(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       items,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: total},
	})
}

// AdminGet handles GET /api/v1/admin/products/{productId}/pricing-rule.
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	rule, err := h.service.Get(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rule})
}

// AdminPut handles PUT /api/v1/admin/products/{productId}/pricing-rule.
func (h *Handler) AdminPut(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	var payload RulePayload
	if err := common.DecodeJSON(r, &payload); err != nil {
		common.WriteError(w, err)
		return
	}
	actor, _ := common.Subject(r.Context())
	saved, err := h.service.Save(r.Context(), SaveInput{
		Rule:      payload.Rule(productID),
		IfVersion: payload.Version,
		Actor:     actor,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": saved})
}

// AdminDelete handles DELETE /api/v1/admin/products/{productId}/pricing-rule.
func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := common.Subject(r.Context())
	if err := h.service.Remove(r.Context(), chi.URLParam(r, "productId"), actor); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *pricing.ValidationError
	switch {
	case errors.As(err, &verr):
		common.WriteError(w, ValidationFailed(verr))
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, common.NotFound("pricing rule not found", err))
	case errors.Is(err, ErrVersionConflict):
		common.JSONError(w, http.StatusConflict, "VERSION_CONFLICT", "pricing rule was changed by someone else", nil)
	case errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		common.JSONError(w, http.StatusConflict, "RULE_BUSY", "pricing rule is being edited, retry shortly", nil)
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("pricing rule request failed")
		common.WriteError(w, err)
	}
}

// ValidationFailed maps rule violations to a 422 response.
func ValidationFailed(verr *pricing.ValidationError) *common.AppError {
	return &common.AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "pricing rule is invalid",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        verr,
		Details:    map[string]any{"violations": verr.Violations},
	}
}
