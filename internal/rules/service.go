package rules

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/bulk-pricing/internal/lock"
	"github.com/noah-isme/bulk-pricing/internal/obs"
	"github.com/noah-isme/bulk-pricing/internal/pricing"
	"github.com/noah-isme/bulk-pricing/internal/resilience"
)

// LookupStatus explains which rule a lookup produced.
type LookupStatus string

const (
	// StatusFound means the stored, active rule was returned.
	StatusFound LookupStatus = "found"
	// StatusMissing means the product has no rule.
	StatusMissing LookupStatus = "missing"
	// StatusInactive means a rule exists but is switched off.
	StatusInactive LookupStatus = "inactive"
	// StatusDegraded means the rule could not be loaded or was unusable.
	StatusDegraded LookupStatus = "degraded"
)

// Locker serialises writers on a key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Change describes a committed edit. Removed changes carry Version 0.
type Change struct {
	ProductID string
	Version   int
	Actor     string
	Removed   bool
}

// Notifier is told about committed rule changes.
type Notifier interface {
	RuleChanged(ctx context.Context, change Change) error
}

// Service resolves pricing rules for quoting and applies admin edits.
type Service struct {
	store         Store
	cache         *Cache
	breaker       *resilience.Breaker
	locker        Locker
	notifier      Notifier
	lockTTL       time.Duration
	lookupTimeout time.Duration
	logger        zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store         Store
	Cache         *Cache
	Breaker       *resilience.Breaker
	Locker        Locker
	Notifier      Notifier
	LockTTL       time.Duration
	LookupTimeout time.Duration
	Logger        zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget("rule-store")
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = 300 * time.Millisecond
	}
	return &Service{
		store:         cfg.Store,
		cache:         cfg.Cache,
		breaker:       breaker,
		locker:        cfg.Locker,
		notifier:      cfg.Notifier,
		lockTTL:       lockTTL,
		lookupTimeout: timeout,
		logger:        cfg.Logger,
	}
}

// Lookup returns the rule to quote productID with. Anything short of a
// stored, active, valid rule yields a rule without tiers or premiums; the
// status says why. Lookup never fails.
func (s *Service) Lookup(ctx context.Context, productID string) (pricing.Rule, LookupStatus) {
	rule, status := s.lookup(ctx, strings.TrimSpace(productID))
	obs.ObserveRuleLookup(string(status))
	return rule, status
}

func (s *Service) lookup(ctx context.Context, productID string) (pricing.Rule, LookupStatus) {
	if productID == "" {
		return pricing.Rule{}, StatusMissing
	}

	cached, result, err := s.cache.Get(ctx, productID)
	if err != nil {
		obs.ObserveRuleCache("error")
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("rule cache read failed")
	} else {
		obs.ObserveRuleCache(result.String())
		switch result {
		case CacheHit:
			return s.usable(cached)
		case CacheNegative:
			return zeroRule(productID), StatusMissing
		}
	}

	if s.store == nil {
		return zeroRule(productID), StatusDegraded
	}
	var stored pricing.Rule
	notFound := false
	err = s.breaker.Call(ctx, s.lookupTimeout, func(ctx context.Context) error {
		r, err := s.store.Get(ctx, productID)
		if errors.Is(err, ErrNotFound) {
			notFound = true
			return nil
		}
		if err != nil {
			return err
		}
		stored = r
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("rule lookup degraded")
		return zeroRule(productID), StatusDegraded
	}
	if notFound {
		if err := s.cache.SetMissing(ctx, productID); err != nil {
			s.logger.Warn().Err(err).Str("product_id", productID).Msg("rule cache write failed")
		}
		return zeroRule(productID), StatusMissing
	}
	if err := s.cache.SetRule(ctx, stored); err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("rule cache write failed")
	}
	return s.usable(stored)
}

// usable applies the read-side checks shared by cached and stored rules.
func (s *Service) usable(rule pricing.Rule) (pricing.Rule, LookupStatus) {
	if !rule.Active {
		inactive := zeroRule(rule.ProductID)
		inactive.Version = rule.Version
		inactive.BasePrice = rule.BasePrice
		return inactive, StatusInactive
	}
	if res := pricing.Validate(rule.Tiers, rule.Premiums); !res.OK {
		s.logger.Error().
			Str("product_id", rule.ProductID).
			Int("version", rule.Version).
			Strs("violations", res.Violations).
			Msg("stored pricing rule is invalid")
		degraded := zeroRule(rule.ProductID)
		degraded.Version = rule.Version
		degraded.BasePrice = rule.BasePrice
		return degraded, StatusDegraded
	}
	return rule, StatusFound
}

func zeroRule(productID string) pricing.Rule {
	return pricing.Rule{ProductID: productID}
}

// Get returns the stored rule for admin views, bypassing cache and breaker.
func (s *Service) Get(ctx context.Context, productID string) (pricing.Rule, error) {
	return s.store.Get(ctx, strings.TrimSpace(productID))
}

// List pages through stored rules.
func (s *Service) List(ctx context.Context, limit, offset int) ([]pricing.Rule, int, error) {
	return s.store.List(ctx, limit, offset)
}

// SaveInput describes an admin edit.
type SaveInput struct {
	Rule      pricing.Rule
	IfVersion int
	Actor     string
}

// Save validates and persists a rule, then invalidates its cache entry and
// announces the change. Validation failures return *pricing.ValidationError.
func (s *Service) Save(ctx context.Context, in SaveInput) (pricing.Rule, error) {
	rule := in.Rule
	rule.ProductID = strings.TrimSpace(rule.ProductID)
	if res := pricing.ValidateRule(rule); !res.OK {
		obs.ObserveValidationRejection("admin")
		return pricing.Rule{}, res.Err()
	}

	var saved pricing.Rule
	err := s.withRuleLock(ctx, rule.ProductID, func(ctx context.Context) error {
		var err error
		saved, err = s.store.Upsert(ctx, rule, in.IfVersion)
		return err
	})
	if err != nil {
		return pricing.Rule{}, err
	}

	s.afterChange(ctx, Change{ProductID: saved.ProductID, Version: saved.Version, Actor: in.Actor})
	s.logger.Info().
		Str("product_id", saved.ProductID).
		Int("version", saved.Version).
		Int("tiers", len(saved.Tiers)).
		Int("premiums", len(saved.Premiums)).
		Str("actor", in.Actor).
		Msg("pricing rule saved")
	return saved, nil
}

// Remove deletes the rule of productID.
func (s *Service) Remove(ctx context.Context, productID, actor string) error {
	productID = strings.TrimSpace(productID)
	err := s.withRuleLock(ctx, productID, func(ctx context.Context) error {
		return s.store.Delete(ctx, productID)
	})
	if err != nil {
		return err
	}
	s.afterChange(ctx, Change{ProductID: productID, Actor: actor, Removed: true})
	s.logger.Info().Str("product_id", productID).Str("actor", actor).Msg("pricing rule removed")
	return nil
}

// Warm reloads productID from the store into the cache.
func (s *Service) Warm(ctx context.Context, productID string) error {
	rule, err := s.store.Get(ctx, productID)
	if errors.Is(err, ErrNotFound) {
		return s.cache.SetMissing(ctx, productID)
	}
	if err != nil {
		return err
	}
	return s.cache.SetRule(ctx, rule)
}

// BreakerState reports the rule-store breaker state.
func (s *Service) BreakerState() string {
	return s.breaker.State().String()
}

func (s *Service) withRuleLock(ctx context.Context, productID string, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithLock(ctx, lock.RuleKey(productID), s.lockTTL, fn)
}

func (s *Service) afterChange(ctx context.Context, change Change) {
	if err := s.cache.Invalidate(ctx, change.ProductID); err != nil {
		s.logger.Warn().Err(err).Str("product_id", change.ProductID).Msg("rule cache invalidation failed")
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.RuleChanged(ctx, change); err != nil {
		obs.ObserveRuleChangeTask("enqueue", "error")
		s.logger.Warn().Err(err).Str("product_id", change.ProductID).Msg("rule change notification failed")
		return
	}
	obs.ObserveRuleChangeTask("enqueue", "ok")
}
