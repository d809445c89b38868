package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps entries in pricing_rule_activity.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps a pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Insert stores entry. Re-delivered tasks carry the same ID and are ignored.
func (s *PGStore) Insert(ctx context.Context, entry Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pricing_rule_activity (id, product_id, version, action, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.ProductID, entry.Version, string(entry.Action), entry.Actor, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

type entryRow struct {
	ID        uuid.UUID
	ProductID string
	Version   int
	Action    string
	Actor     string
	CreatedAt time.Time
	Total     int
}

// List returns entries newest first.
func (s *PGStore) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, version, action, actor, created_at, count(*) OVER () AS total
		FROM pricing_rule_activity
		WHERE $1 = '' OR product_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		filter.ProductID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list: %w", err)
	}
	collected, err := pgx.CollectRows(rows, pgx.RowToStructByPos[entryRow])
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list: %w", err)
	}
	entries := make([]Entry, 0, len(collected))
	total := 0
	for _, row := range collected {
		total = row.Total
		entries = append(entries, Entry{
			ID:        row.ID,
			ProductID: row.ProductID,
			Version:   row.Version,
			Action:    Action(row.Action),
			Actor:     row.Actor,
			CreatedAt: row.CreatedAt,
		})
	}
	return entries, total, nil
}
