package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TierKind enumerates how a volume tier adjusts the list price.
type TierKind string

const (
	// TierPercentage discounts the list price by Value percent.
	TierPercentage TierKind = "percentage"
	// TierOverride replaces the list price with Value.
	TierOverride TierKind = "override"
)

// PremiumKind enumerates how a size premium adjusts the tier-adjusted price.
type PremiumKind string

const (
	// PremiumPercentage raises the price by Value percent of the tier-adjusted price.
	PremiumPercentage PremiumKind = "percentage"
	// PremiumAdd raises the price by the absolute amount Value.
	PremiumAdd PremiumKind = "add"
)

// ParseTierKind normalises stored or submitted tier kinds. The legacy
// configuration value "fixed" is read as an override, matching how tier tables
// are displayed to shoppers.
func ParseTierKind(raw string) (TierKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "percentage", "percent", "pct":
		return TierPercentage, nil
	case "override", "fixed", "fixed_price", "absolute_override":
		return TierOverride, nil
	default:
		return "", fmt.Errorf("pricing: unknown tier kind %q", raw)
	}
}

// ParsePremiumKind normalises stored or submitted premium kinds.
func ParsePremiumKind(raw string) (PremiumKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "percentage", "percent", "pct":
		return PremiumPercentage, nil
	case "add", "fixed", "absolute_add", "amount":
		return PremiumAdd, nil
	default:
		return "", fmt.Errorf("pricing: unknown premium kind %q", raw)
	}
}

// Tier is a quantity range with its price adjustment. A nil MaxQty means the
// tier is unbounded.
type Tier struct {
	MinQty int             `json:"minQty"`
	MaxQty *int            `json:"maxQty"`
	Kind   TierKind        `json:"kind"`
	Value  decimal.Decimal `json:"value"`
}

// Contains reports whether qty falls inside the tier bounds.
func (t Tier) Contains(qty int) bool {
	if qty < t.MinQty {
		return false
	}
	return t.MaxQty == nil || qty <= *t.MaxQty
}

// Unbounded reports whether the tier has no upper limit.
func (t Tier) Unbounded() bool { return t.MaxQty == nil }

// Label renders the quantity range the way tier tables display it.
func (t Tier) Label() string {
	if t.MaxQty == nil {
		return fmt.Sprintf("%d+ units", t.MinQty)
	}
	if *t.MaxQty == t.MinQty {
		if t.MinQty == 1 {
			return "1 unit"
		}
		return fmt.Sprintf("%d units", t.MinQty)
	}
	return fmt.Sprintf("%d–%d units", t.MinQty, *t.MaxQty)
}

func (t *Tier) apply(list decimal.Decimal) decimal.Decimal {
	if t == nil {
		return list
	}
	switch t.Kind {
	case TierPercentage:
		return list.Mul(hundred.Sub(t.Value)).Div(hundred)
	case TierOverride:
		return t.Value
	default:
		return list
	}
}

// Premium is a per-size adjustment layered on the tier-adjusted price.
type Premium struct {
	SizePattern string          `json:"sizePattern"`
	Kind        PremiumKind     `json:"kind"`
	Value       decimal.Decimal `json:"value"`
}

func (p Premium) apply(price decimal.Decimal) decimal.Decimal {
	switch p.Kind {
	case PremiumPercentage:
		return price.Add(price.Mul(p.Value).Div(hundred))
	case PremiumAdd:
		return price.Add(p.Value)
	default:
		return price
	}
}

// Rule is the pricing configuration of a single product. A Rule is read-only
// once loaded; edits produce a new Version. The zero Rule means "no tier, no
// premiums".
type Rule struct {
	ID        uuid.UUID       `json:"id"`
	ProductID string          `json:"productId"`
	Version   int             `json:"version"`
	Tiers     []Tier          `json:"tiers"`
	Premiums  []Premium       `json:"premiums"`
	BasePrice decimal.Decimal `json:"basePrice"`
	Active    bool            `json:"active"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// IsZero reports whether the rule carries no adjustments at all.
func (r Rule) IsZero() bool {
	return len(r.Tiers) == 0 && len(r.Premiums) == 0
}

// CartLine is one size entry of the shopper's selection.
type CartLine struct {
	SizeLabel     string
	Quantity      int
	ListUnitPrice decimal.Decimal
	Eligible      bool
}

// Qty returns a pointer to v for use as Tier.MaxQty.
func Qty(v int) *int { return &v }
