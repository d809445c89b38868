package rules

import (
	"context"
	"errors"

	"github.com/noah-isme/bulk-pricing/internal/pricing"
)

var (
	// ErrNotFound is returned when a product has no stored pricing rule.
	ErrNotFound = errors.New("rules: pricing rule not found")
	// ErrVersionConflict is returned when a write names a version that is no longer current.
	ErrVersionConflict = errors.New("rules: pricing rule version conflict")
)

// Store persists pricing rules, at most one per product.
type Store interface {
	Get(ctx context.Context, productID string) (pricing.Rule, error)
	// Upsert replaces the product's rule and bumps its version. A positive
	// ifVersion must equal the stored version.
	Upsert(ctx context.Context, rule pricing.Rule, ifVersion int) (pricing.Rule, error)
	Delete(ctx context.Context, productID string) error
	List(ctx context.Context, limit, offset int) ([]pricing.Rule, int, error)
}
