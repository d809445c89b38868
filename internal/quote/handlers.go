package quote

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/bulk-pricing/internal/common"
	"github.com/noah-isme/bulk-pricing/internal/obs"
	"github.com/noah-isme/bulk-pricing/internal/pricing"
	"github.com/noah-isme/bulk-pricing/internal/rules"
)

// RuleSource resolves the rule a product is quoted with.
type RuleSource interface {
	Lookup(ctx context.Context, productID string) (pricing.Rule, rules.LookupStatus)
}

// LineRequest is one size entry of the shopper's selection.
type LineRequest struct {
	Size          string `json:"size" validate:"max=64"`
	Color         string `json:"color" validate:"max=64"`
	Quantity      Number `json:"quantity"`
	ListUnitPrice Number `json:"listUnitPrice"`
}

// QuoteRequest asks for the authoritative pricing of a stored rule.
type QuoteRequest struct {
	ProductID   string        `json:"productId" validate:"required,max=128"`
	ActiveColor string        `json:"activeColor" validate:"max=64"`
	Lines       []LineRequest `json:"lines" validate:"max=200,dive"`
}

// PreviewRequest prices an unsaved rule from the admin form.
type PreviewRequest struct {
	ProductID   string            `json:"productId" validate:"max=128"`
	ActiveColor string            `json:"activeColor" validate:"max=64"`
	Lines       []LineRequest     `json:"lines" validate:"max=200,dive"`
	Rule        rules.RulePayload `json:"rule"`
}

// Response is the report together with how the rule was resolved.
type Response struct {
	ProductID   string `json:"productId"`
	RuleVersion int    `json:"ruleVersion"`
	RuleStatus  string `json:"ruleStatus"`
	Degraded    string `json:"degraded,omitempty"`
	pricing.Report
}

// Handler serves quote and preview requests.
type Handler struct {
	rules  RuleSource
	logger zerolog.Logger
}

// NewHandler constructs a quote handler.
func NewHandler(source RuleSource, logger zerolog.Logger) *Handler {
	return &Handler{rules: source, logger: logger}
}

// Quote handles POST /api/v1/pricing/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	productID := strings.TrimSpace(req.ProductID)
	rule, status := h.rules.Lookup(r.Context(), productID)
	report := pricing.Compute(CartLines(req.Lines, req.ActiveColor, rule.BasePrice), rule)
	obs.ObserveQuote("quote", report.MatchedTier != nil, len(report.Lines))

	resp := Response{
		ProductID:   productID,
		RuleVersion: rule.Version,
		RuleStatus:  string(status),
		Degraded:    degradedReason(status, rule),
		Report:      report,
	}
	if resp.Degraded != "" && status == rules.StatusDegraded {
		h.logger.Warn().Str("product_id", productID).Str("reason", resp.Degraded).Msg("quote served without volume pricing")
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

// Preview handles POST /api/v1/pricing/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		productID = "preview"
	}
	rule := req.Rule.Rule(productID)
	if res := pricing.ValidateRule(rule); !res.OK {
		obs.ObserveValidationRejection("preview")
		common.WriteError(w, rules.ValidationFailed(&pricing.ValidationError{Violations: res.Violations}))
		return
	}
	report := pricing.Compute(CartLines(req.Lines, req.ActiveColor, rule.BasePrice), rule)
	obs.ObserveQuote("preview", report.MatchedTier != nil, len(report.Lines))
	common.JSON(w, http.StatusOK, map[string]any{"data": Response{
		ProductID:  productID,
		RuleStatus: "preview",
		Degraded:   degradedReason(rules.StatusFound, rule),
		Report:     report,
	}})
}

// CartLines converts request lines into engine input. Lines of another color
// than activeColor are ineligible; a missing list price falls back to
// basePrice.
func CartLines(in []LineRequest, activeColor string, basePrice decimal.Decimal) []pricing.CartLine {
	active := strings.TrimSpace(activeColor)
	out := make([]pricing.CartLine, 0, len(in))
	for _, l := range in {
		list := basePrice
		if l.ListUnitPrice.Present {
			list = l.ListUnitPrice.Value
		}
		color := strings.TrimSpace(l.Color)
		out = append(out, pricing.CartLine{
			SizeLabel:     strings.TrimSpace(l.Size),
			Quantity:      l.Quantity.Quantity(),
			ListUnitPrice: list,
			Eligible:      active == "" || color == "" || strings.EqualFold(color, active),
		})
	}
	return out
}

func degradedReason(status rules.LookupStatus, rule pricing.Rule) string {
	switch status {
	case rules.StatusMissing:
		return "no_rule"
	case rules.StatusInactive:
		return "rule_inactive"
	case rules.StatusDegraded:
		return "rule_unavailable"
	}
	if len(rule.Tiers) == 0 {
		return "no_tiers"
	}
	return ""
}
