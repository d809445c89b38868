package audit

import (
	"net/http"

	"github.com/noah-isme/bulk-pricing/internal/common"
)

// Handler exposes rule activity to administrators.
type Handler struct {
	Service      Service
	DefaultLimit int
	MaxLimit     int
}

// List handles GET /api/v1/admin/pricing-rules/activity.
func (h Handler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := common.ParsePagination(r, h.defaultLimit(), h.maxLimit())
	entries, total, err := h.Service.List(r.Context(), Filter{
		ProductID: r.URL.Query().Get("productId"),
		Limit:     limit,
		Offset:    (page - 1) * limit,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "AUDIT_QUERY_FAILED", "unable to fetch rule activity", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       entries,
		"pagination": common.Pagination{Page: page, PerPage: limit, TotalItems: total},
	})
}

func (h Handler) defaultLimit() int {
	if h.DefaultLimit > 0 {
		return h.DefaultLimit
	}
	return 50
}

func (h Handler) maxLimit() int {
	if h.MaxLimit > 0 {
		return h.MaxLimit
	}
	return 200
}
