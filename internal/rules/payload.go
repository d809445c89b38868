package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bulk-pricing/internal/pricing"
)

// TierPayload is a tier as submitted by the admin form.
type TierPayload struct {
	MinQty int             `json:"minQty"`
	MaxQty *int            `json:"maxQty"`
	Kind   string          `json:"kind" validate:"required"`
	Value  decimal.Decimal `json:"value"`
}

// PremiumPayload is a size premium as submitted by the admin form.
type PremiumPayload struct {
	SizePattern string          `json:"sizePattern"`
	Kind        string          `json:"kind" validate:"required"`
	Value       decimal.Decimal `json:"value"`
}

// RulePayload is the editable part of a pricing rule.
type RulePayload struct {
	BasePrice decimal.Decimal  `json:"basePrice"`
	Active    *bool            `json:"active"`
	Version   int              `json:"version" validate:"gte=0"`
	Tiers     []TierPayload    `json:"tiers" validate:"max=50,dive"`
	Premiums  []PremiumPayload `json:"premiums" validate:"max=50,dive"`
}

// Rule converts the payload for productID. Kinds that do not parse are kept
// verbatim so the rule validator reports them alongside other violations.
func (p RulePayload) Rule(productID string) pricing.Rule {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	rule := pricing.Rule{
		ProductID: strings.TrimSpace(productID),
		BasePrice: p.BasePrice,
		Active:    active,
		Tiers:     make([]pricing.Tier, 0, len(p.Tiers)),
		Premiums:  make([]pricing.Premium, 0, len(p.Premiums)),
	}
	for _, t := range p.Tiers {
		kind, err := pricing.ParseTierKind(t.Kind)
		if err != nil {
			kind = pricing.TierKind(t.Kind)
		}
		rule.Tiers = append(rule.Tiers, pricing.Tier{MinQty: t.MinQty, MaxQty: t.MaxQty, Kind: kind, Value: t.Value})
	}
	for _, pr := range p.Premiums {
		kind, err := pricing.ParsePremiumKind(pr.Kind)
		if err != nil {
			kind = pricing.PremiumKind(pr.Kind)
		}
		rule.Premiums = append(rule.Premiums, pricing.Premium{SizePattern: pr.SizePattern, Kind: kind, Value: pr.Value})
	}
	return rule
}

// TierView is a tier as rendered in the storefront tier table.
type TierView struct {
	pricing.Tier
	Label string `json:"label"`
}

// TierTable is the public view of a product's pricing rule.
type TierTable struct {
	ProductID string            `json:"productId"`
	Version   int               `json:"version"`
	BasePrice decimal.Decimal   `json:"basePrice"`
	Tiers     []TierView        `json:"tiers"`
	Premiums  []pricing.Premium `json:"premiums"`
}

// NewTierTable renders rule for the storefront widget.
func NewTierTable(rule pricing.Rule) TierTable {
	table := TierTable{
		ProductID: rule.ProductID,
		Version:   rule.Version,
		BasePrice: rule.BasePrice,
		Tiers:     make([]TierView, 0, len(rule.Tiers)),
		Premiums:  rule.Premiums,
	}
	if table.Premiums == nil {
		table.Premiums = []pricing.Premium{}
	}
	for _, t := range rule.Tiers {
		table.Tiers = append(table.Tiers, TierView{Tier: t, Label: t.Label()})
	}
	return table
}
