package pricing

import "github.com/shopspring/decimal"

// Resolution is the priced outcome for a single size.
type Resolution struct {
	UnitPrice      decimal.Decimal
	PremiumApplied bool
	PremiumPattern string
}

// ResolveUnitPrice prices one unit of sizeLabel. The tier adjustment runs first
// against the list price, then the first matching premium runs against the
// tier-adjusted price, and the result is clamped at zero and rounded to cents
// half away from zero. Rounding happens per unit, not per line: a 20% tier on
// 5.99 yields 4.79, so three units total 14.37 rather than 14.376.
func ResolveUnitPrice(listPrice decimal.Decimal, sizeLabel string, tier *Tier, premiums []Premium) Resolution {
	price := tier.apply(listPrice)

	var res Resolution
	if p := MatchPremium(premiums, sizeLabel); p != nil {
		price = p.apply(price)
		res.PremiumApplied = true
		res.PremiumPattern = p.SizePattern
	}
	if price.IsNegative() {
		price = decimal.Zero
	}
	res.UnitPrice = price.Round(2)
	return res
}
