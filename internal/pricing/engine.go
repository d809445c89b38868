package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineResult is the priced form of an eligible cart line.
type LineResult struct {
	SizeLabel      string          `json:"sizeLabel"`
	Quantity       int             `json:"quantity"`
	ListUnitPrice  decimal.Decimal `json:"listUnitPrice"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	LineTotal      decimal.Decimal `json:"lineTotal"`
	PremiumApplied bool            `json:"premiumApplied"`
	PremiumPattern string          `json:"premiumPattern,omitempty"`
}

// NextTier tells the shopper how far the cart is from the next volume tier.
type NextTier struct {
	MinQty      int    `json:"minQty"`
	UnitsNeeded int    `json:"unitsNeeded"`
	Label       string `json:"label"`
}

// Report aggregates computed pricing components.
type Report struct {
	MatchedTier   *Tier           `json:"matchedTier"`
	TierLabel     string          `json:"tierLabel,omitempty"`
	AggregateQty  int             `json:"aggregateQty"`
	Lines         []LineResult    `json:"lines"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	OriginalTotal decimal.Decimal `json:"originalTotal"`
	Savings       decimal.Decimal `json:"savings"`
	NextTier      *NextTier       `json:"nextTier,omitempty"`
	Breakdown     []string        `json:"breakdown"`
}

// Build prices every eligible line of the cart against rule. Only eligible
// lines count toward tier selection and totals; lines with zero quantity are
// dropped from the report. Build is pure and safe for concurrent use.
func Build(lines []CartLine, rule Rule) Report {
	aggregate := 0
	for _, line := range lines {
		if line.Eligible && line.Quantity > 0 {
			aggregate += line.Quantity
		}
	}
	tier := MatchTier(rule.Tiers, aggregate)

	report := Report{
		MatchedTier:   tier,
		AggregateQty:  aggregate,
		Lines:         []LineResult{},
		GrandTotal:    decimal.Zero,
		OriginalTotal: decimal.Zero,
		Savings:       decimal.Zero,
		NextTier:      nextTier(rule.Tiers, aggregate),
		Breakdown:     []string{},
	}
	if tier != nil {
		report.TierLabel = tier.Label()
	}

	for _, line := range lines {
		if !line.Eligible || line.Quantity <= 0 {
			continue
		}
		list := line.ListUnitPrice
		if list.IsNegative() {
			list = decimal.Zero
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		res := ResolveUnitPrice(list, line.SizeLabel, tier, rule.Premiums)
		result := LineResult{
			SizeLabel:      line.SizeLabel,
			Quantity:       line.Quantity,
			ListUnitPrice:  list,
			UnitPrice:      res.UnitPrice,
			LineTotal:      res.UnitPrice.Mul(qty),
			PremiumApplied: res.PremiumApplied,
			PremiumPattern: res.PremiumPattern,
		}
		report.Lines = append(report.Lines, result)
		report.GrandTotal = report.GrandTotal.Add(result.LineTotal)
		report.OriginalTotal = report.OriginalTotal.Add(list.Mul(qty))
		report.Breakdown = append(report.Breakdown, breakdownRow(result))
	}

	savings := report.OriginalTotal.Sub(report.GrandTotal)
	if savings.IsPositive() {
		report.Savings = savings
	}
	report.Breakdown = append(report.Breakdown, summaryRows(report)...)
	return report
}

// Compute is the quote entry point used by the HTTP handlers. It returns
// exactly what Build returns; Build stays exported as the breakdown step the
// engine tests drive directly.
func Compute(lines []CartLine, rule Rule) Report {
	return Build(lines, rule)
}

func breakdownRow(l LineResult) string {
	row := fmt.Sprintf("%d × %s @ %s = %s", l.Quantity, l.SizeLabel, l.UnitPrice.StringFixed(2), l.LineTotal.StringFixed(2))
	if l.PremiumApplied {
		row += " (size premium)"
	}
	return row
}

func summaryRows(r Report) []string {
	if len(r.Lines) == 0 {
		return nil
	}
	rows := make([]string, 0, 3)
	if r.MatchedTier != nil {
		rows = append(rows, "Volume tier: "+r.TierLabel)
	}
	rows = append(rows, "Total: "+r.GrandTotal.StringFixed(2))
	if r.Savings.IsPositive() {
		rows = append(rows, "You save: "+r.Savings.StringFixed(2))
	}
	return rows
}
