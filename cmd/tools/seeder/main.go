package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bulk-pricing/internal/app"
	"github.com/noah-isme/bulk-pricing/internal/config"
	"github.com/noah-isme/bulk-pricing/internal/obs"
	"github.com/noah-isme/bulk-pricing/internal/pricing"
	"github.com/noah-isme/bulk-pricing/internal/rules"
)

// sampleRules mirrors the catalog's launch products: a basic tee with the
// standard 12/24/48 ladder, a hoodie with a flat bulk price, and a cap without
// size premiums.
func sampleRules() []pricing.Rule {
	d := decimal.RequireFromString
	return []pricing.Rule{
		{
			ProductID: "TEE-GILDAN-5000",
			BasePrice: d("5.99"),
			Active:    true,
			Tiers: []pricing.Tier{
				{MinQty: 1, MaxQty: pricing.Qty(11), Kind: pricing.TierPercentage, Value: d("0")},
				{MinQty: 12, MaxQty: pricing.Qty(23), Kind: pricing.TierPercentage, Value: d("15")},
				{MinQty: 24, MaxQty: pricing.Qty(47), Kind: pricing.TierPercentage, Value: d("25")},
				{MinQty: 48, Kind: pricing.TierOverride, Value: d("3.14")},
			},
			Premiums: []pricing.Premium{
				{SizePattern: "2XL", Kind: pricing.PremiumAdd, Value: d("2.00")},
				{SizePattern: "3XL", Kind: pricing.PremiumAdd, Value: d("3.00")},
				{SizePattern: "XL", Kind: pricing.PremiumPercentage, Value: d("5")},
			},
		},
		{
			ProductID: "HOODIE-18500",
			BasePrice: d("18.50"),
			Active:    true,
			Tiers: []pricing.Tier{
				{MinQty: 12, MaxQty: pricing.Qty(35), Kind: pricing.TierPercentage, Value: d("10")},
				{MinQty: 36, Kind: pricing.TierOverride, Value: d("13.75")},
			},
			Premiums: []pricing.Premium{
				{SizePattern: "XXL", Kind: pricing.PremiumAdd, Value: d("2.50")},
			},
		},
		{
			ProductID: "CAP-112",
			BasePrice: d("7.25"),
			Active:    false,
			Tiers: []pricing.Tier{
				{MinQty: 24, Kind: pricing.TierPercentage, Value: d("20")},
			},
		},
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deps, err := app.Open(ctx, cfg, logger, "bulk-pricing-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()
	if err := deps.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	service := deps.RuleService(nil)
	failed := 0
	for _, rule := range sampleRules() {
		saved, err := service.Save(ctx, rules.SaveInput{Rule: rule, Actor: "seeder"})
		if err != nil {
			var verr *pricing.ValidationError
			if errors.As(err, &verr) {
				logger.Error().Strs("violations", verr.Violations).Str("product_id", rule.ProductID).Msg("sample rule rejected")
			} else {
				logger.Error().Err(err).Str("product_id", rule.ProductID).Msg("seed pricing rule")
			}
			failed++
			continue
		}
		logger.Info().Str("product_id", saved.ProductID).Int("version", saved.Version).Int("tiers", len(saved.Tiers)).Msg("pricing rule seeded")
	}
	if failed > 0 {
		os.Exit(1)
	}
	logger.Info().Msg("seeding completed")
}
