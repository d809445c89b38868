package pricing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRule is wrapped by every configuration rejection.
var ErrInvalidRule = errors.New("pricing rule invalid")

// ValidationResult reports whether a rule configuration is acceptable.
type ValidationResult struct {
	OK         bool     `json:"ok"`
	Violations []string `json:"violations,omitempty"`
}

// Err converts a failed result into a *ValidationError, or nil when OK.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return &ValidationError{Violations: r.Violations}
}

// ValidationError carries every violation found in a rejected configuration.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return ErrInvalidRule.Error()
	}
	return ErrInvalidRule.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRule }

// Validate checks tier ordering, overlap and bounds along with premium
// well-formedness. Every violation is collected; nothing is repaired.
func Validate(tiers []Tier, premiums []Premium) ValidationResult {
	var violations []string
	add := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	unbounded := 0
	for i, t := range tiers {
		pos := i + 1
		if t.MinQty < 1 {
			add("tier %d: minQty must be at least 1", pos)
		}
		if t.MaxQty != nil && *t.MaxQty < t.MinQty {
			add("tier %d: maxQty must not be less than minQty", pos)
		}
		switch t.Kind {
		case TierPercentage:
			if t.Value.IsNegative() || t.Value.GreaterThan(hundred) {
				add("tier %d: percentage must be between 0 and 100", pos)
			}
		case TierOverride:
			if t.Value.IsNegative() {
				add("tier %d: price must not be negative", pos)
			}
		default:
			add("tier %d: unknown adjustment kind %q", pos, t.Kind)
		}
		if t.Unbounded() {
			unbounded++
			if i != len(tiers)-1 {
				add("tier %d: unbounded tier must be the last tier", pos)
			}
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		switch {
		case t.MinQty <= prev.MinQty:
			add("tier %d: tiers must be sorted ascending by minQty", pos)
		case prev.MaxQty == nil || *prev.MaxQty >= t.MinQty:
			add("tier %d: overlaps tier %d", pos, pos-1)
		}
	}
	if unbounded > 1 {
		add("at most one tier may be unbounded, found %d", unbounded)
	}

	for i, p := range premiums {
		pos := i + 1
		if strings.TrimSpace(p.SizePattern) == "" {
			add("premium %d: sizePattern must not be empty", pos)
		}
		if p.Value.IsNegative() {
			add("premium %d: value must not be negative", pos)
		}
		switch p.Kind {
		case PremiumPercentage, PremiumAdd:
		default:
			add("premium %d: unknown adjustment kind %q", pos, p.Kind)
		}
	}

	if len(violations) > 0 {
		return ValidationResult{OK: false, Violations: violations}
	}
	return ValidationResult{OK: true}
}

// ValidateRule runs Validate and additionally checks rule-level fields.
func ValidateRule(r Rule) ValidationResult {
	res := Validate(r.Tiers, r.Premiums)
	var extra []string
	if strings.TrimSpace(r.ProductID) == "" {
		extra = append(extra, "productId is required")
	}
	if r.BasePrice.IsNegative() {
		extra = append(extra, "basePrice must not be negative")
	}
	if len(extra) == 0 {
		return res
	}
	return ValidationResult{OK: false, Violations: append(res.Violations, extra...)}
}
