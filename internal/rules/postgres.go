package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/bulk-pricing/internal/pricing"
)

// PGStore is the PostgreSQL-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPGStore wraps an existing pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, now: time.Now}
}

type ruleRow struct {
	ID        uuid.UUID
	ProductID string
	Version   int
	BasePrice string
	Active    bool
	UpdatedAt time.Time
}

const selectRule = `
	SELECT id, product_id, version, base_price::text, active, updated_at
	FROM pricing_rules`

// Get loads the rule of productID with its tiers in stored order.
func (s *PGStore) Get(ctx context.Context, productID string) (pricing.Rule, error) {
	var row ruleRow
	err := s.pool.QueryRow(ctx, selectRule+` WHERE product_id = $1`, productID).
		Scan(&row.ID, &row.ProductID, &row.Version, &row.BasePrice, &row.Active, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pricing.Rule{}, ErrNotFound
		}
		return pricing.Rule{}, fmt.Errorf("rules: select rule: %w", err)
	}
	rules, err := s.hydrate(ctx, []ruleRow{row})
	if err != nil {
		return pricing.Rule{}, err
	}
	return rules[0], nil
}

// List returns rules ordered by product id together with the total count.
func (s *PGStore) List(ctx context.Context, limit, offset int) ([]pricing.Rule, int, error) {
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, version, base_price::text, active, updated_at, count(*) OVER ()
		FROM pricing_rules
		ORDER BY product_id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("rules: list rules: %w", err)
	}
	total := 0
	found, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ruleRow, error) {
		var r ruleRow
		err := row.Scan(&r.ID, &r.ProductID, &r.Version, &r.BasePrice, &r.Active, &r.UpdatedAt, &total)
		return r, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("rules: scan rules: %w", err)
	}
	if len(found) == 0 {
		return []pricing.Rule{}, s.count(ctx, total), nil
	}
	out, err := s.hydrate(ctx, found)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// count falls back to a separate count when the page is past the end.
func (s *PGStore) count(ctx context.Context, windowTotal int) int {
	if windowTotal > 0 {
		return windowTotal
	}
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM pricing_rules`).Scan(&n); err != nil {
		return 0
	}
	return n
}

type tierRow struct {
	RuleID uuid.UUID
	MinQty int
	MaxQty *int
	Kind   string
	Value  string
}

type premiumRow struct {
	RuleID  uuid.UUID
	Pattern string
	Kind    string
	Value   string
}

func (s *PGStore) hydrate(ctx context.Context, rows []ruleRow) ([]pricing.Rule, error) {
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	tierRows, err := s.pool.Query(ctx, `
		SELECT rule_id, min_qty, max_qty, kind, value::text
		FROM pricing_tiers
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("rules: select tiers: %w", err)
	}
	tiers, err := pgx.CollectRows(tierRows, func(row pgx.CollectableRow) (tierRow, error) {
		var t tierRow
		err := row.Scan(&t.RuleID, &t.MinQty, &t.MaxQty, &t.Kind, &t.Value)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("rules: scan tiers: %w", err)
	}

	premiumRows, err := s.pool.Query(ctx, `
		SELECT rule_id, size_pattern, kind, value::text
		FROM pricing_premiums
		WHERE rule_id = ANY($1)
		ORDER BY rule_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("rules: select premiums: %w", err)
	}
	premiums, err := pgx.CollectRows(premiumRows, func(row pgx.CollectableRow) (premiumRow, error) {
		var p premiumRow
		err := row.Scan(&p.RuleID, &p.Pattern, &p.Kind, &p.Value)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("rules: scan premiums: %w", err)
	}

	byID := make(map[uuid.UUID]*pricing.Rule, len(rows))
	out := make([]pricing.Rule, len(rows))
	for i, r := range rows {
		base, err := decimal.NewFromString(r.BasePrice)
		if err != nil {
			return nil, fmt.Errorf("rules: base price of %s: %w", r.ProductID, err)
		}
		out[i] = pricing.Rule{
			ID:        r.ID,
			ProductID: r.ProductID,
			Version:   r.Version,
			BasePrice: base,
			Active:    r.Active,
			UpdatedAt: r.UpdatedAt.UTC(),
			Tiers:     []pricing.Tier{},
			Premiums:  []pricing.Premium{},
		}
		byID[r.ID] = &out[i]
	}
	for _, t := range tiers {
		rule := byID[t.RuleID]
		value, err := decimal.NewFromString(t.Value)
		if err != nil {
			return nil, fmt.Errorf("rules: tier value of %s: %w", rule.ProductID, err)
		}
		rule.Tiers = append(rule.Tiers, pricing.Tier{
			MinQty: t.MinQty,
			MaxQty: t.MaxQty,
			Kind:   storedTierKind(t.Kind),
			Value:  value,
		})
	}
	for _, p := range premiums {
		rule := byID[p.RuleID]
		value, err := decimal.NewFromString(p.Value)
		if err != nil {
			return nil, fmt.Errorf("rules: premium value of %s: %w", rule.ProductID, err)
		}
		rule.Premiums = append(rule.Premiums, pricing.Premium{
			SizePattern: p.Pattern,
			Kind:        storedPremiumKind(p.Kind),
			Value:       value,
		})
	}
	return out, nil
}

// Unknown stored kinds are kept verbatim so validation on read flags them.
func storedTierKind(raw string) pricing.TierKind {
	if kind, err := pricing.ParseTierKind(raw); err == nil {
		return kind
	}
	return pricing.TierKind(raw)
}

func storedPremiumKind(raw string) pricing.PremiumKind {
	if kind, err := pricing.ParsePremiumKind(raw); err == nil {
		return kind
	}
	return pricing.PremiumKind(raw)
}

// Upsert replaces the rule of rule.ProductID inside one transaction.
func (s *PGStore) Upsert(ctx context.Context, rule pricing.Rule, ifVersion int) (pricing.Rule, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return pricing.Rule{}, fmt.Errorf("rules: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := s.now().UTC()
	var (
		id      uuid.UUID
		current int
	)
	err = tx.QueryRow(ctx, `SELECT id, version FROM pricing_rules WHERE product_id = $1 FOR UPDATE`, rule.ProductID).Scan(&id, &current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if ifVersion > 0 {
			return pricing.Rule{}, ErrVersionConflict
		}
		id = uuid.New()
		_, err = tx.Exec(ctx, `
			INSERT INTO pricing_rules (id, product_id, version, base_price, active, created_at, updated_at)
			VALUES ($1, $2, 1, $3, $4, $5, $5)`,
			id, rule.ProductID, rule.BasePrice.String(), rule.Active, now)
		if err != nil {
			if isUniqueViolation(err) {
				return pricing.Rule{}, ErrVersionConflict
			}
			return pricing.Rule{}, fmt.Errorf("rules: insert rule: %w", err)
		}
		current = 1
	case err != nil:
		return pricing.Rule{}, fmt.Errorf("rules: lock rule: %w", err)
	default:
		if ifVersion > 0 && ifVersion != current {
			return pricing.Rule{}, ErrVersionConflict
		}
		current++
		_, err = tx.Exec(ctx, `
			UPDATE pricing_rules
			SET version = $2, base_price = $3, active = $4, updated_at = $5
			WHERE id = $1`,
			id, current, rule.BasePrice.String(), rule.Active, now)
		if err != nil {
			return pricing.Rule{}, fmt.Errorf("rules: update rule: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM pricing_tiers WHERE rule_id = $1`, id); err != nil {
			return pricing.Rule{}, fmt.Errorf("rules: clear tiers: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM pricing_premiums WHERE rule_id = $1`, id); err != nil {
			return pricing.Rule{}, fmt.Errorf("rules: clear premiums: %w", err)
		}
	}

	batch := &pgx.Batch{}
	for i, t := range rule.Tiers {
		batch.Queue(`
			INSERT INTO pricing_tiers (rule_id, position, min_qty, max_qty, kind, value)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			id, i, t.MinQty, t.MaxQty, string(t.Kind), t.Value.String())
	}
	for i, p := range rule.Premiums {
		batch.Queue(`
			INSERT INTO pricing_premiums (rule_id, position, size_pattern, kind, value)
			VALUES ($1, $2, $3, $4, $5)`,
			id, i, p.SizePattern, string(p.Kind), p.Value.String())
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return pricing.Rule{}, fmt.Errorf("rules: insert adjustments: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return pricing.Rule{}, fmt.Errorf("rules: commit: %w", err)
	}

	saved := rule
	saved.ID = id
	saved.Version = current
	saved.UpdatedAt = now
	return saved, nil
}

// Delete removes the rule of productID; tiers and premiums cascade.
func (s *PGStore) Delete(ctx context.Context, productID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pricing_rules WHERE product_id = $1`, productID)
	if err != nil {
		return fmt.Errorf("rules: delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
