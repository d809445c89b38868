package pricing_test

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bulk-pricing/internal/pricing"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func wholesaleTiers() []pricing.Tier {
	return []pricing.Tier{
		{MinQty: 1, MaxQty: pricing.Qty(23), Kind: pricing.TierPercentage, Value: d("0")},
		{MinQty: 24, MaxQty: pricing.Qty(47), Kind: pricing.TierOverride, Value: d("3.49")},
		{MinQty: 48, Kind: pricing.TierOverride, Value: d("3.14")},
	}
}

func line(size string, qty int, price string) pricing.CartLine {
	return pricing.CartLine{SizeLabel: size, Quantity: qty, ListUnitPrice: d(price), Eligible: true}
}

func TestBuildWholesaleTiers(t *testing.T) {
	rule := pricing.Rule{Tiers: wholesaleTiers(), Active: true}

	cases := []struct {
		name      string
		lines     []pricing.CartLine
		unitPrice string
		total     string
		minQty    int
	}{
		{
			name:      "first tier keeps list price",
			lines:     []pricing.CartLine{line("M", 10, "5.99")},
			unitPrice: "5.99",
			total:     "59.90",
			minQty:    1,
		},
		{
			name:      "second tier overrides price",
			lines:     []pricing.CartLine{line("S", 10, "5.99"), line("M", 10, "5.99"), line("L", 10, "5.99")},
			unitPrice: "3.49",
			total:     "104.70",
			minQty:    24,
		},
		{
			name:      "unbounded tier",
			lines:     []pricing.CartLine{line("M", 60, "5.99"), line("L", 40, "5.99")},
			unitPrice: "3.14",
			total:     "314.00",
			minQty:    48,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := pricing.Build(tc.lines, rule)
			require.NotNil(t, report.MatchedTier)
			require.Equal(t, tc.minQty, report.MatchedTier.MinQty)
			require.Len(t, report.Lines, len(tc.lines))
			for _, l := range report.Lines {
				require.True(t, d(tc.unitPrice).Equal(l.UnitPrice), "unit price %s", l.UnitPrice)
				require.False(t, l.PremiumApplied)
			}
			require.True(t, d(tc.total).Equal(report.GrandTotal), "total %s", report.GrandTotal)
		})
	}
}

func TestBuildSizePremiumOnTierPrice(t *testing.T) {
	rule := pricing.Rule{
		Tiers:    wholesaleTiers(),
		Premiums: []pricing.Premium{{SizePattern: "2XL", Kind: pricing.PremiumAdd, Value: d("2.00")}},
	}
	lines := []pricing.CartLine{
		line("S", 10, "5.99"),
		line("M", 10, "5.99"),
		line("L", 5, "5.99"),
		line("2XL", 5, "5.99"),
	}

	report := pricing.Build(lines, rule)
	require.Equal(t, 30, report.AggregateQty)
	require.Len(t, report.Lines, 4)

	xxl := report.Lines[3]
	require.Equal(t, "2XL", xxl.SizeLabel)
	require.True(t, xxl.PremiumApplied)
	require.True(t, d("5.49").Equal(xxl.UnitPrice))
	require.True(t, d("27.45").Equal(xxl.LineTotal))

	for _, l := range report.Lines[:3] {
		require.False(t, l.PremiumApplied)
		require.True(t, d("3.49").Equal(l.UnitPrice))
	}
	require.True(t, d("114.70").Equal(report.GrandTotal))
	require.True(t, d("179.70").Equal(report.OriginalTotal))
	require.True(t, d("65.00").Equal(report.Savings))
}

func TestBuildEmptyCart(t *testing.T) {
	rule := pricing.Rule{Tiers: wholesaleTiers()}
	report := pricing.Build([]pricing.CartLine{line("S", 0, "5.99"), line("M", 0, "5.99")}, rule)

	require.Nil(t, report.MatchedTier)
	require.True(t, report.GrandTotal.IsZero())
	require.NotNil(t, report.Lines)
	require.Empty(t, report.Lines)

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"lines":[]`)
	require.Contains(t, string(raw), `"matchedTier":null`)
}

func TestBuildPercentagePremiumCompoundsOnAdjustedPrice(t *testing.T) {
	rule := pricing.Rule{
		Tiers:    []pricing.Tier{{MinQty: 1, Kind: pricing.TierPercentage, Value: d("20")}},
		Premiums: []pricing.Premium{{SizePattern: "XL", Kind: pricing.PremiumPercentage, Value: d("10")}},
	}

	report := pricing.Build([]pricing.CartLine{line("M", 1, "10.00"), line("XL", 1, "10.00")}, rule)
	require.True(t, d("8.00").Equal(report.Lines[0].UnitPrice))
	require.True(t, d("8.80").Equal(report.Lines[1].UnitPrice))
	require.False(t, d("9.00").Equal(report.Lines[1].UnitPrice))
}

func TestBuildIneligibleLinesExcluded(t *testing.T) {
	rule := pricing.Rule{Tiers: wholesaleTiers()}
	other := line("M", 40, "5.99")
	other.Eligible = false

	report := pricing.Build([]pricing.CartLine{line("S", 10, "5.99"), other}, rule)
	require.Equal(t, 10, report.AggregateQty)
	require.Equal(t, 1, report.MatchedTier.MinQty)
	require.Len(t, report.Lines, 1)
	require.True(t, d("59.90").Equal(report.GrandTotal))
	require.True(t, d("59.90").Equal(report.OriginalTotal))
}

func TestBuildWithoutRuleUsesListPrice(t *testing.T) {
	report := pricing.Compute([]pricing.CartLine{line("S", 3, "4.25"), line("XL", 2, "5.00")}, pricing.Rule{})
	require.Nil(t, report.MatchedTier)
	require.Nil(t, report.NextTier)
	require.True(t, d("22.75").Equal(report.GrandTotal))
	require.True(t, report.Savings.IsZero())
}

func TestBuildSavingsNeverNegative(t *testing.T) {
	rule := pricing.Rule{Premiums: []pricing.Premium{{SizePattern: "3XL", Kind: pricing.PremiumAdd, Value: d("2.00")}}}
	report := pricing.Build([]pricing.CartLine{line("3XL", 4, "5.00")}, rule)
	require.True(t, d("28.00").Equal(report.GrandTotal))
	require.True(t, d("20.00").Equal(report.OriginalTotal))
	require.True(t, report.Savings.IsZero())
}

func TestBuildNextTierHintAndBreakdown(t *testing.T) {
	rule := pricing.Rule{Tiers: wholesaleTiers()}
	report := pricing.Build([]pricing.CartLine{line("S", 20, "5.99")}, rule)

	require.NotNil(t, report.NextTier)
	require.Equal(t, 24, report.NextTier.MinQty)
	require.Equal(t, 4, report.NextTier.UnitsNeeded)
	require.Equal(t, "1–23 units", report.TierLabel)
	require.Equal(t, []string{
		"20 × S @ 5.99 = 119.80",
		"Volume tier: 1–23 units",
		"Total: 119.80",
	}, report.Breakdown)

	top := pricing.Build([]pricing.CartLine{line("S", 80, "5.99")}, rule)
	require.Nil(t, top.NextTier)
	require.Equal(t, "48+ units", top.TierLabel)
	require.Contains(t, top.Breakdown, "You save: 228.00")
}

func TestBuildPreservesInputOrder(t *testing.T) {
	lines := []pricing.CartLine{line("XL", 1, "5"), line("S", 0, "5"), line("M", 2, "5"), line("L", 3, "5")}
	report := pricing.Build(lines, pricing.Rule{})
	var sizes []string
	for _, l := range report.Lines {
		sizes = append(sizes, l.SizeLabel)
	}
	require.Equal(t, []string{"XL", "M", "L"}, sizes)
}

func TestBuildProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	sizes := []string{"S", "M", "L", "XL", "2XL", "3XL"}
	rule := pricing.Rule{
		Tiers: wholesaleTiers(),
		Premiums: []pricing.Premium{
			{SizePattern: "2XL", Kind: pricing.PremiumAdd, Value: d("2.00")},
			{SizePattern: "XL", Kind: pricing.PremiumPercentage, Value: d("15")},
		},
	}
	toLines := func(qtys []int, cents int) []pricing.CartLine {
		out := make([]pricing.CartLine, 0, len(qtys))
		for i, q := range qtys {
			out = append(out, pricing.CartLine{
				SizeLabel:     sizes[i%len(sizes)],
				Quantity:      q,
				ListUnitPrice: decimal.New(int64(cents), -2),
				Eligible:      i%7 != 6,
			})
		}
		return out
	}

	properties.Property("unbounded last tier always matches from the first minimum", prop.ForAll(
		func(qty int) bool {
			return pricing.MatchTier(wholesaleTiers(), qty) != nil
		},
		gen.IntRange(1, 100000),
	))

	properties.Property("build is idempotent", prop.ForAll(
		func(qtys []int, cents int) bool {
			lines := toLines(qtys, cents)
			first, err := json.Marshal(pricing.Build(lines, rule))
			if err != nil {
				return false
			}
			second, err := json.Marshal(pricing.Build(lines, rule))
			if err != nil {
				return false
			}
			return string(first) == string(second)
		},
		gen.SliceOf(gen.IntRange(0, 60)),
		gen.IntRange(0, 5000),
	))

	properties.Property("savings are never negative", prop.ForAll(
		func(qtys []int, cents int) bool {
			report := pricing.Build(toLines(qtys, cents), rule)
			return !report.Savings.IsNegative() && !report.GrandTotal.IsNegative()
		},
		gen.SliceOf(gen.IntRange(0, 60)),
		gen.IntRange(0, 5000),
	))

	properties.Property("totals equal the sum of line totals", prop.ForAll(
		func(qtys []int, cents int) bool {
			report := pricing.Build(toLines(qtys, cents), rule)
			sum := decimal.Zero
			for _, l := range report.Lines {
				sum = sum.Add(l.LineTotal)
			}
			return sum.Equal(report.GrandTotal)
		},
		gen.SliceOf(gen.IntRange(0, 60)),
		gen.IntRange(0, 5000),
	))

	properties.TestingRun(t)
}
