// Package dispatch sends first-time generation requests to the worker
// network. Each run is one stateless trigger invocation: it claims a small
// slice of undispatched units, fires the accept-only calls, and hands the
// touched batches to the settlement engine's completion check.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wordforge/wordforge/internal/store"
	"github.com/wordforge/wordforge/internal/worker"
)

// CompletionChecker is the slice of the settlement engine the dispatcher
// needs: the fast-path close for batches it just finished dispatching.
type CompletionChecker interface {
	CheckCompletion(ctx context.Context, batchID uuid.UUID) error
}

// Dispatcher picks undispatched units and sends their first worker call.
type Dispatcher struct {
	store     store.Store
	worker    worker.Client
	completer CompletionChecker
	batchSize int
	now       func() time.Time
}

// New creates a Dispatcher. batchSize bounds the units claimed per run so
// one invocation fits the external trigger's wall-clock budget.
func New(st store.Store, wk worker.Client, completer CompletionChecker, batchSize int) *Dispatcher {
	return &Dispatcher{
		store:     st,
		worker:    wk,
		completer: completer,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run processes one trigger invocation. Claiming a unit is a compare-and-set
// on request_process, written before the worker call: an invocation that
// loses the claim race skips the unit, so each unit's first dispatch is sent
// at most once. A synchronously rejected call releases the claim so the unit
// is retried on a later run.
func (d *Dispatcher) Run(ctx context.Context) error {
	units, err := d.store.SelectUndispatchedUnits(ctx, d.batchSize)
	if err != nil {
		return fmt.Errorf("select undispatched units: %w", err)
	}
	if len(units) == 0 {
		return nil
	}

	touched := make(map[uuid.UUID]bool)
	for _, u := range units {
		claimed, err := d.store.SetUnitDispatched(ctx, u.ID, true)
		if err != nil {
			slog.Error("claim unit for dispatch", "unit_id", u.ID, "error", err)
			continue
		}
		if !claimed {
			// An overlapping invocation claimed the unit between our select
			// and this write; it owns the worker call.
			continue
		}

		batch, err := d.store.GetBatch(ctx, u.BatchID)
		if err != nil {
			// Without the batch row the request would silently drop the word
			// limit and instructions; release the unit so a later pass sends
			// it whole.
			slog.Error("load batch for dispatch, releasing unit",
				"batch_id", u.BatchID, "unit_id", u.ID, "error", err)
			d.release(ctx, u.ID)
			continue
		}

		req := worker.Request{
			UnitID:       u.ID,
			BatchID:      u.BatchID,
			UserID:       u.UserID,
			Keyword:      u.Keyword,
			Tier:         u.Tier,
			WordLimit:    batch.WordLimit,
			Instructions: batch.Instructions,
		}
		if err := d.worker.Dispatch(ctx, req); err != nil {
			// The accept call was rejected outright; release the unit so a
			// later invocation retries it. This never surfaces to the user.
			slog.Warn("worker rejected dispatch, releasing unit",
				"unit_id", u.ID, "keyword", u.Keyword, "error", err)
			d.release(ctx, u.ID)
			continue
		}

		touched[u.BatchID] = true
		slog.Info("unit dispatched", "unit_id", u.ID, "batch_id", u.BatchID, "tier", u.Tier)
	}

	now := d.now()
	for batchID := range touched {
		// The dispatch phase for a batch ends when nothing is left to send;
		// only then does it become eligible for settlement.
		remaining, err := d.store.CountUndispatchedUnits(ctx, batchID)
		if err != nil {
			slog.Error("count undispatched units", "batch_id", batchID, "error", err)
			continue
		}
		if remaining == 0 {
			if err := d.store.MarkBatchStarted(ctx, batchID, now); err != nil {
				slog.Error("mark batch started", "batch_id", batchID, "error", err)
				continue
			}
		}
		// Short batches whose units are all ready can close right away
		// instead of waiting for the next settlement trigger.
		if err := d.completer.CheckCompletion(ctx, batchID); err != nil {
			slog.Error("completion check after dispatch", "batch_id", batchID, "error", err)
		}
	}
	return nil
}

// release returns a claimed unit to the undispatched pool. The conditional
// write means a release can never undo a claim this invocation does not hold.
func (d *Dispatcher) release(ctx context.Context, unitID uuid.UUID) {
	if _, err := d.store.SetUnitDispatched(ctx, unitID, false); err != nil {
		slog.Error("release unit", "unit_id", unitID, "error", err)
	}
}
