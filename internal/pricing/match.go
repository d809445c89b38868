package pricing

import "strings"

// MatchTier returns the first tier, in stored order, whose bounds contain qty.
// It returns nil when qty is zero or no tier matches; callers price such carts
// at list price. The result is a copy and never aliases the rule.
func MatchTier(tiers []Tier, qty int) *Tier {
	if qty <= 0 {
		return nil
	}
	for i := range tiers {
		if tiers[i].Contains(qty) {
			matched := tiers[i]
			return &matched
		}
	}
	return nil
}

// MatchPremium returns the premium that applies to sizeLabel. An exact pattern
// match wins over a substring match; within each pass list order decides.
func MatchPremium(premiums []Premium, sizeLabel string) *Premium {
	label := strings.TrimSpace(sizeLabel)
	if label == "" || len(premiums) == 0 {
		return nil
	}
	for i := range premiums {
		if strings.TrimSpace(premiums[i].SizePattern) == label {
			matched := premiums[i]
			return &matched
		}
	}
	for i := range premiums {
		pattern := strings.TrimSpace(premiums[i].SizePattern)
		if pattern != "" && strings.Contains(label, pattern) {
			matched := premiums[i]
			return &matched
		}
	}
	return nil
}

// nextTier finds the first tier whose minimum lies above qty.
func nextTier(tiers []Tier, qty int) *NextTier {
	for _, t := range tiers {
		if t.MinQty > qty {
			return &NextTier{MinQty: t.MinQty, UnitsNeeded: t.MinQty - qty, Label: t.Label()}
		}
	}
	return nil
}
