package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bulk-pricing/internal/pricing"
)

func TestMatchTier(t *testing.T) {
	tiers := wholesaleTiers()

	require.Nil(t, pricing.MatchTier(tiers, 0))
	require.Nil(t, pricing.MatchTier(tiers, -4))
	require.Nil(t, pricing.MatchTier(nil, 12))
	require.Equal(t, 1, pricing.MatchTier(tiers, 23).MinQty)
	require.Equal(t, 24, pricing.MatchTier(tiers, 24).MinQty)
	require.Equal(t, 24, pricing.MatchTier(tiers, 47).MinQty)
	require.Equal(t, 48, pricing.MatchTier(tiers, 48).MinQty)
	require.Equal(t, 48, pricing.MatchTier(tiers, 10000).MinQty)
}

func TestMatchTierGapReturnsNil(t *testing.T) {
	tiers := []pricing.Tier{
		{MinQty: 1, MaxQty: pricing.Qty(11), Kind: pricing.TierPercentage, Value: d("0")},
		{MinQty: 24, Kind: pricing.TierPercentage, Value: d("10")},
	}
	require.Nil(t, pricing.MatchTier(tiers, 12))
	require.Nil(t, pricing.MatchTier(tiers, 23))
	require.NotNil(t, pricing.MatchTier(tiers, 24))
}

func TestMatchTierFirstMatchWinsOnOverlap(t *testing.T) {
	tiers := []pricing.Tier{
		{MinQty: 1, MaxQty: pricing.Qty(50), Kind: pricing.TierOverride, Value: d("4.00")},
		{MinQty: 10, MaxQty: pricing.Qty(60), Kind: pricing.TierOverride, Value: d("3.00")},
	}
	matched := pricing.MatchTier(tiers, 20)
	require.True(t, d("4.00").Equal(matched.Value))
}

func TestMatchTierReturnsCopy(t *testing.T) {
	tiers := wholesaleTiers()
	matched := pricing.MatchTier(tiers, 30)
	matched.Value = d("0.01")
	require.True(t, d("3.49").Equal(tiers[1].Value))
}

func TestMatchPremiumPrefersExactMatch(t *testing.T) {
	premiums := []pricing.Premium{
		{SizePattern: "XL", Kind: pricing.PremiumAdd, Value: d("1.00")},
		{SizePattern: "2XL", Kind: pricing.PremiumAdd, Value: d("3.00")},
	}

	exact := pricing.MatchPremium(premiums, "2XL")
	require.Equal(t, "2XL", exact.SizePattern)

	substring := pricing.MatchPremium(premiums, "3XL")
	require.Equal(t, "XL", substring.SizePattern)

	require.Nil(t, pricing.MatchPremium(premiums, "M"))
	require.Nil(t, pricing.MatchPremium(premiums, "  "))
}

func TestMatchPremiumSkipsBlankPatterns(t *testing.T) {
	premiums := []pricing.Premium{{SizePattern: " ", Kind: pricing.PremiumAdd, Value: d("9")}}
	require.Nil(t, pricing.MatchPremium(premiums, "S"))
}

func TestResolveUnitPrice(t *testing.T) {
	pct := pricing.Tier{MinQty: 1, Kind: pricing.TierPercentage, Value: d("20")}
	override := pricing.Tier{MinQty: 1, Kind: pricing.TierOverride, Value: d("3.49")}
	premiums := []pricing.Premium{{SizePattern: "XL", Kind: pricing.PremiumPercentage, Value: d("10")}}

	cases := []struct {
		name    string
		list    string
		size    string
		tier    *pricing.Tier
		want    string
		premium bool
	}{
		{name: "no tier", list: "5.99", size: "M", want: "5.99"},
		{name: "percentage tier", list: "10.00", size: "M", tier: &pct, want: "8.00"},
		{name: "percentage tier with premium", list: "10.00", size: "XL", tier: &pct, want: "8.80", premium: true},
		{name: "override replaces list", list: "5.99", size: "S", tier: &override, want: "3.49"},
		{name: "override with premium", list: "5.99", size: "XL", tier: &override, want: "3.84", premium: true},
		{name: "premium without tier", list: "5.00", size: "2XL", want: "5.50", premium: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := pricing.ResolveUnitPrice(d(tc.list), tc.size, tc.tier, premiums)
			require.True(t, d(tc.want).Equal(res.UnitPrice), "got %s", res.UnitPrice)
			require.Equal(t, tc.premium, res.PremiumApplied)
		})
	}
}

func TestResolveUnitPriceClampsAtZero(t *testing.T) {
	steep := pricing.Tier{MinQty: 1, Kind: pricing.TierPercentage, Value: d("150")}
	res := pricing.ResolveUnitPrice(d("10.00"), "M", &steep, nil)
	require.True(t, res.UnitPrice.IsZero())
}

func TestParseKinds(t *testing.T) {
	kind, err := pricing.ParseTierKind("fixed")
	require.NoError(t, err)
	require.Equal(t, pricing.TierOverride, kind)

	kind, err = pricing.ParseTierKind(" Percentage ")
	require.NoError(t, err)
	require.Equal(t, pricing.TierPercentage, kind)

	_, err = pricing.ParseTierKind("bogo")
	require.Error(t, err)

	pk, err := pricing.ParsePremiumKind("absolute_add")
	require.NoError(t, err)
	require.Equal(t, pricing.PremiumAdd, pk)
}

func TestTierLabel(t *testing.T) {
	require.Equal(t, "24–47 units", pricing.Tier{MinQty: 24, MaxQty: pricing.Qty(47)}.Label())
	require.Equal(t, "48+ units", pricing.Tier{MinQty: 48}.Label())
	require.Equal(t, "1 unit", pricing.Tier{MinQty: 1, MaxQty: pricing.Qty(1)}.Label())
}
