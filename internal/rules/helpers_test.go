package rules_test

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bulk-pricing/internal/pricing"
	"github.com/noah-isme/bulk-pricing/internal/resilience"
	"github.com/noah-isme/bulk-pricing/internal/rules"
)

type memStore struct {
	mu    sync.Mutex
	rules map[string]pricing.Rule
	gets  int
	err   error
	delay time.Duration
}

func newMemStore(seed ...pricing.Rule) *memStore {
	s := &memStore{rules: map[string]pricing.Rule{}}
	for _, r := range seed {
		s.rules[r.ProductID] = r
	}
	return s
}

func (s *memStore) Get(ctx context.Context, productID string) (pricing.Rule, error) {
	s.mu.Lock()
	s.gets++
	err, delay := s.err, s.delay
	rule, ok := s.rules[productID]
	s.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return pricing.Rule{}, ctx.Err()
		}
	}
	if err != nil {
		return pricing.Rule{}, err
	}
	if !ok {
		return pricing.Rule{}, rules.ErrNotFound
	}
	return rule, nil
}

func (s *memStore) Upsert(_ context.Context, rule pricing.Rule, ifVersion int) (pricing.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.rules[rule.ProductID]
	if ifVersion > 0 && (!ok || current.Version != ifVersion) {
		return pricing.Rule{}, rules.ErrVersionConflict
	}
	if ok {
		rule.ID = current.ID
		rule.Version = current.Version + 1
	} else {
		rule.ID = uuid.New()
		rule.Version = 1
	}
	rule.UpdatedAt = time.Now().UTC()
	s.rules[rule.ProductID] = rule
	return rule, nil
}

func (s *memStore) Delete(_ context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[productID]; !ok {
		return rules.ErrNotFound
	}
	delete(s.rules, productID)
	return nil
}

func (s *memStore) List(_ context.Context, limit, offset int) ([]pricing.Rule, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.rules))
	for id := range s.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := []pricing.Rule{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, s.rules[ids[i]])
	}
	return out, len(ids), nil
}

func (s *memStore) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []string
}

func (n *recordingNotifier) RuleChanged(_ context.Context, change rules.Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change.ProductID+"@"+strconv.Itoa(change.Version))
	return nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// teeRule is the storefront's sample volume rule.
func teeRule(productID string) pricing.Rule {
	return pricing.Rule{
		ProductID: productID,
		Version:   1,
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
		},
	}
}

type fixture struct {
	store    *memStore
	mr       *miniredis.Miniredis
	cache    *rules.Cache
	notifier *recordingNotifier
	service  *rules.Service
}

func newFixture(t *testing.T, store *memStore) fixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	cache := rules.NewCache(client, time.Minute, 10*time.Second)
	notifier := &recordingNotifier{}
	svc := rules.NewService(rules.ServiceConfig{
		Store:         store,
		Cache:         cache,
		Breaker:       resilience.NewBreaker(2, 0.5, time.Minute).WithTarget("rule-store-test"),
		Notifier:      notifier,
		LookupTimeout: 50 * time.Millisecond,
		Logger:        zerolog.Nop(),
	})
	return fixture{store: store, mr: mr, cache: cache, notifier: notifier, service: svc}
}

// busyLocker behaves like a lock held by another editor until the deadline.
type busyLocker struct{}

func (busyLocker) WithLock(context.Context, string, time.Duration, func(context.Context) error) error {
	return context.DeadlineExceeded
}

func newBusyService(store *memStore) *rules.Service {
	return rules.NewService(rules.ServiceConfig{
		Store:   store,
		Breaker: resilience.NewBreaker(2, 0.5, time.Minute).WithTarget("rule-store-test"),
		Locker:  busyLocker{},
		Logger:  zerolog.Nop(),
	})
}
