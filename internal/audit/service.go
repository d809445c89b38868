// Package audit keeps the history of pricing rule edits.
package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action names what happened to a rule.
type Action string

const (
	ActionSaved   Action = "rule.saved"
	ActionRemoved Action = "rule.removed"
)

// SystemActor is recorded when an edit carries no authenticated subject.
const SystemActor = "system"

const maxActorLen = 200

// ErrStoreNotConfigured is returned by a Service without a Store.
var ErrStoreNotConfigured = errors.New("audit: store not configured")

// Entry is one recorded rule edit.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	ProductID string    `json:"productId"`
	Version   int       `json:"version"`
	Action    Action    `json:"action"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows List. An empty ProductID lists every product.
type Filter struct {
	ProductID string
	Limit     int
	Offset    int
}

// Store persists entries.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, int, error)
}

// Service records and lists rule activity.
type Service struct {
	Store   Store
	Enabled bool
	Now     func() time.Time
}

// Record normalises and stores an entry. Disabled services drop entries.
func (s Service) Record(ctx context.Context, entry Entry) error {
	if !s.Enabled {
		return nil
	}
	if s.Store == nil {
		return ErrStoreNotConfigured
	}
	entry.ProductID = strings.TrimSpace(entry.ProductID)
	if entry.ProductID == "" {
		return errors.New("audit: product id is required")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Actor = normalizeActor(entry.Actor)
	if entry.Action == "" {
		entry.Action = ActionSaved
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	return s.Store.Insert(ctx, entry)
}

// List returns entries newest first with the total matching count.
func (s Service) List(ctx context.Context, filter Filter) ([]Entry, int, error) {
	if s.Store == nil {
		return nil, 0, ErrStoreNotConfigured
	}
	filter.ProductID = strings.TrimSpace(filter.ProductID)
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.Store.List(ctx, filter)
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return SystemActor
	}
	if len(actor) > maxActorLen {
		actor = actor[:maxActorLen]
	}
	return actor
}
