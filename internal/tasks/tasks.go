// Package tasks carries background work triggered by pricing rule edits.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bulk-pricing/internal/audit"
	"github.com/noah-isme/bulk-pricing/internal/obs"
	"github.com/noah-isme/bulk-pricing/internal/rules"
)

// TypeRuleChanged is emitted after a rule is saved or removed.
const TypeRuleChanged = "pricing:rule_changed"

// RuleChangedPayload identifies the committed rule version. Removed changes
// carry version 0.
type RuleChangedPayload struct {
	ProductID string `json:"productId"`
	Version   int    `json:"version"`
	Actor     string `json:"actor,omitempty"`
	Removed   bool   `json:"removed,omitempty"`
}

// NewRuleChangedTask builds the task for a committed change.
func NewRuleChangedTask(change rules.Change) (*asynq.Task, error) {
	productID := strings.TrimSpace(change.ProductID)
	if productID == "" {
		return nil, errors.New("tasks: product id is required")
	}
	payload, err := json.Marshal(RuleChangedPayload{
		ProductID: productID,
		Version:   change.Version,
		Actor:     strings.TrimSpace(change.Actor),
		Removed:   change.Removed,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRuleChanged, payload), nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes rule-change tasks.
type Enqueuer struct {
	client   enqueuer
	queue    string
	maxRetry int
	timeout  time.Duration
}

// NewEnqueuer wraps an asynq client.
func NewEnqueuer(client *asynq.Client, queue string) *Enqueuer {
	return newEnqueuer(client, queue)
}

func newEnqueuer(client enqueuer, queue string) *Enqueuer {
	if strings.TrimSpace(queue) == "" {
		queue = "pricing"
	}
	return &Enqueuer{client: client, queue: queue, maxRetry: 5, timeout: time.Minute}
}

// RuleChanged enqueues a rule-change task. A task for the same product
// version that is still queued counts as success.
func (e *Enqueuer) RuleChanged(ctx context.Context, change rules.Change) error {
	task, err := NewRuleChangedTask(change)
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(e.queue),
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
		asynq.TaskID(taskID(change)),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("tasks: enqueue %s: %w", TypeRuleChanged, err)
	}
	return nil
}

func taskID(change rules.Change) string {
	id := strings.TrimSpace(change.ProductID) + ":" + strconv.Itoa(change.Version)
	if change.Removed {
		id += ":removed"
	}
	return id
}

// Warmer reloads a product's rule into the cache.
type Warmer interface {
	Warm(ctx context.Context, productID string) error
}

// ActivityRecorder stores the history of rule edits.
type ActivityRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

// RuleChangedHandler re-warms the rule cache and records the change. Activity
// is optional.
type RuleChangedHandler struct {
	Warmer   Warmer
	Activity ActivityRecorder
	Logger   zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h RuleChangedHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload RuleChangedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || strings.TrimSpace(payload.ProductID) == "" {
		obs.ObserveRuleChangeTask("process", "invalid")
		h.Logger.Error().Err(err).Bytes("payload", t.Payload()).Msg("discarding malformed rule change task")
		return fmt.Errorf("tasks: malformed payload: %w", asynq.SkipRetry)
	}
	if err := h.Warmer.Warm(ctx, payload.ProductID); err != nil {
		obs.ObserveRuleChangeTask("process", "error")
		return fmt.Errorf("tasks: warm %s: %w", payload.ProductID, err)
	}
	if h.Activity != nil {
		if err := h.Activity.Record(ctx, activityEntry(ctx, payload)); err != nil {
			obs.ObserveRuleChangeTask("process", "error")
			return fmt.Errorf("tasks: record activity for %s: %w", payload.ProductID, err)
		}
	}
	obs.ObserveRuleChangeTask("process", "ok")
	evt := h.Logger.Info().Str("product_id", payload.ProductID).Int("version", payload.Version).Str("actor", payload.Actor)
	if payload.Removed {
		evt.Msg("pricing rule removed")
	} else {
		evt.Msg("pricing rule changed")
	}
	return nil
}

// activityEntry derives a stable entry ID from the task so redelivered tasks
// do not duplicate history.
func activityEntry(ctx context.Context, payload RuleChangedPayload) audit.Entry {
	action := audit.ActionSaved
	if payload.Removed {
		action = audit.ActionRemoved
	}
	entry := audit.Entry{
		ProductID: payload.ProductID,
		Version:   payload.Version,
		Action:    action,
		Actor:     payload.Actor,
	}
	if id, ok := asynq.GetTaskID(ctx); ok && id != "" {
		entry.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(TypeRuleChanged+"/"+id))
	}
	return entry
}

// NewServeMux routes task types to their handlers.
func NewServeMux(ruleChanged RuleChangedHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeRuleChanged, ruleChanged)
	return mux
}
