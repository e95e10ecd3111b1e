package settle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wordforge/wordforge/internal/notify"
	"github.com/wordforge/wordforge/internal/store"
	"github.com/wordforge/wordforge/internal/worker"
	"github.com/wordforge/wordforge/pkg/models"
)

// Engine reconciles batches against the state their units have reached.
// It holds no state of its own: every method is a stateless pass over the
// store and is safe to invoke concurrently with itself or the dispatcher.
type Engine struct {
	store     store.Store
	worker    worker.Client
	notifier  notify.Notifier
	staleness time.Duration
	now       func() time.Time
}

// NewEngine creates a settlement engine. staleness is the minimum idle time
// before a batch is eligible for escalation or forced completion.
func NewEngine(st store.Store, wk worker.Client, nt notify.Notifier, staleness time.Duration) *Engine {
	return &Engine{
		store:     st,
		worker:    wk,
		notifier:  nt,
		staleness: staleness,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SettleStale runs the escalation/timeout path: it picks the single oldest
// open, started batch that has been untouched for a full staleness window
// and applies whatever transition it has earned. One batch per invocation
// keeps the pass inside the trigger's wall-clock budget.
func (e *Engine) SettleStale(ctx context.Context) error {
	cutoff := e.now().Add(-e.staleness)
	batch, err := e.store.OldestStaleBatch(ctx, cutoff)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select stale batch: %w", err)
	}
	return e.settle(ctx, batch, false)
}

// SweepReady runs the fast completion path over every open, started batch:
// a batch whose units all have content closes immediately, without waiting
// out the staleness window. Per-batch failures are logged and do not stop
// the sweep.
func (e *Engine) SweepReady(ctx context.Context) error {
	batches, err := e.store.ListStartedBatches(ctx)
	if err != nil {
		return fmt.Errorf("list started batches: %w", err)
	}
	for _, batch := range batches {
		if err := e.settle(ctx, batch, true); err != nil {
			slog.Error("fast-path settlement failed", "batch_id", batch.ID, "error", err)
		}
	}
	return nil
}

// CheckCompletion runs the fast completion path for one batch. The
// dispatcher calls this for every batch it touched so short batches whose
// units were all ready at dispatch time close without a separate trigger.
func (e *Engine) CheckCompletion(ctx context.Context, batchID uuid.UUID) error {
	batch, err := e.store.GetBatch(ctx, batchID)
	if err != nil {
		return fmt.Errorf("get batch: %w", err)
	}
	return e.settle(ctx, batch, true)
}

// settle evaluates one batch and applies the resulting transition. With
// fastOnly set, only the two closing-without-failure transitions act; the
// escalation and forced-completion branches are reserved for the
// staleness-gated path.
func (e *Engine) settle(ctx context.Context, batch *models.Batch, fastOnly bool) error {
	units, err := e.store.ListUnitsByBatch(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("list units: %w", err)
	}
	workset, err := e.store.BatchWorkset(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("load workset: %w", err)
	}

	d := Decide(e.now(), batch, units, workset)
	if d.Kind == Wait {
		return nil
	}
	if fastOnly && d.Kind != CloseVacuous && d.Kind != CloseComplete {
		return nil
	}

	if d.Kind == CloseVacuous {
		// The workset join can hide a tracker whose unit row is unreadable;
		// never declare the batch drained while the tracker table disagrees.
		trackers, err := e.store.CountTrackers(ctx, batch.ID)
		if err != nil {
			return fmt.Errorf("count trackers: %w", err)
		}
		if trackers > 0 {
			slog.Warn("empty workset but trackers remain, not closing",
				"batch_id", batch.ID, "trackers", trackers)
			return nil
		}
	}

	escalated, err := e.store.ApplySettlement(ctx, d.Settlement)
	if err != nil {
		return fmt.Errorf("apply settlement: %w", err)
	}

	slog.Info("batch settled",
		"batch_id", batch.ID,
		"kind", kindName(d.Kind),
		"completed", d.Settlement.CompletedCount,
		"pending", d.Settlement.PendingCount,
		"failed", d.Settlement.FailedCount,
		"escalated", len(escalated),
	)

	// Post-commit side effects. The retry gate is already durable, so a
	// crash here loses at most one re-dispatch, which the next staleness
	// window converts into a forced completion and refund. Only trackers
	// whose retry flag this settlement flipped are re-dispatched; a
	// concurrent settlement that escalated the same trackers first owns
	// their worker calls.
	flipped := make(map[uuid.UUID]bool, len(escalated))
	for _, id := range escalated {
		flipped[id] = true
	}
	for _, tu := range d.Redispatch {
		if !flipped[tu.Tracker.ID] {
			continue
		}
		req := worker.Request{
			UnitID:       tu.Unit.ID,
			BatchID:      tu.Unit.BatchID,
			UserID:       tu.Unit.UserID,
			Keyword:      tu.Unit.Keyword,
			Tier:         tu.Unit.Tier,
			WordLimit:    batch.WordLimit,
			Instructions: batch.Instructions,
		}
		if err := e.worker.Dispatch(ctx, req); err != nil {
			slog.Error("escalation dispatch failed", "unit_id", tu.Unit.ID, "error", err)
		}
	}

	e.notifyOutcome(ctx, batch, d)
	return nil
}

// notifyOutcome sends the email matching the applied transition. Failures
// are logged and swallowed; notifications never affect settlement state.
func (e *Engine) notifyOutcome(ctx context.Context, batch *models.Batch, d Decision) {
	user, err := e.store.GetUser(ctx, batch.UserID)
	if err != nil {
		slog.Error("load user for notification", "user_id", batch.UserID, "error", err)
		return
	}

	counts := models.Counts{
		Total:     batch.TotalUnits,
		Completed: d.Settlement.CompletedCount,
		Pending:   d.Settlement.PendingCount,
		Failed:    d.Settlement.FailedCount,
	}

	switch d.Kind {
	case CloseComplete:
		if err := e.notifier.BatchComplete(ctx, user.Email, batch.ID, counts); err != nil {
			slog.Error("completion notice failed", "batch_id", batch.ID, "error", err)
		}
	case Partial:
		if err := e.notifier.BatchPartial(ctx, user.Email, batch.ID, counts); err != nil {
			slog.Error("partial notice failed", "batch_id", batch.ID, "error", err)
		}
	case Escalate:
		if err := e.notifier.BatchDelayed(ctx, user.Email, batch.ID, counts); err != nil {
			slog.Error("delay notice failed", "batch_id", batch.ID, "error", err)
		}
	case ForceClose:
		// The final notice and the refund notice are independent; one
		// failing must not suppress the other.
		if err := e.notifier.BatchFinal(ctx, user.Email, batch.ID, counts); err != nil {
			slog.Error("final notice failed", "batch_id", batch.ID, "error", err)
		}
		if d.Settlement.Refund != nil {
			if err := e.notifier.RefundIssued(ctx, user.Email, batch.ID, d.Settlement.Refund.Amount); err != nil {
				slog.Error("refund notice failed", "batch_id", batch.ID, "error", err)
			}
		}
	}
}

func kindName(k Kind) string {
	switch k {
	case CloseVacuous:
		return "close_vacuous"
	case CloseComplete:
		return "close_complete"
	case ForceClose:
		return "force_close"
	case Partial:
		return "partial"
	case Escalate:
		return "escalate"
	default:
		return "wait"
	}
}
