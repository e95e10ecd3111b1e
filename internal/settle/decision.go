// Package settle is the batch convergence state machine. It derives every
// transition from the datastore alone: content presence is the only success
// signal, and staleness plus retry exhaustion is the only failure signal.
// No return value from the worker network is ever trusted.
package settle

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wordforge/wordforge/internal/store"
	"github.com/wordforge/wordforge/pkg/models"
)

// Kind classifies the transition chosen for a batch.
type Kind int

const (
	// Wait: nothing to do this pass; the batch keeps waiting for content
	// or for the next staleness window.
	Wait Kind = iota
	// CloseVacuous: no trackers remain, the batch is vacuously done.
	CloseVacuous
	// CloseComplete: every unit has content; close fully completed.
	CloseComplete
	// ForceClose: every not-ready unit has burned its one retry; fail them,
	// refund their cost, close the batch.
	ForceClose
	// Partial: complete the ready units, escalate the rest.
	Partial
	// Escalate: nothing ready yet; send the one permitted re-dispatch for
	// units that have not been retried.
	Escalate
)

// Decision is the full outcome of evaluating one batch: the atomic
// settlement to apply, the units to re-dispatch after commit, and which
// notification to send. Evaluation is pure; Apply-side effects live in the
// Engine.
type Decision struct {
	Kind       Kind
	Settlement store.Settlement
	Redispatch []models.TrackedUnit
}

// Decide evaluates a batch against its units and its tracker-joined work
// set. Transitions are mutually exclusive and checked in priority order;
// calling Decide again on the resulting state yields Wait or CloseVacuous,
// which is what makes every trigger invocation safe to replay.
func Decide(now time.Time, batch *models.Batch, units []*models.GenerationUnit, workset []models.TrackedUnit) Decision {
	if batch.Status == models.BatchStatusClosed {
		return Decision{Kind: Wait}
	}

	// No trackers left: every unit's outcome was already decided.
	if len(workset) == 0 {
		return Decision{
			Kind: CloseVacuous,
			Settlement: store.Settlement{
				BatchID:        batch.ID,
				Close:          true,
				CompletedCount: batch.TotalUnits,
				PendingCount:   0,
				FailedCount:    batch.FailedCount,
				Touch:          true,
				Now:            now,
			},
		}
	}

	// Fast path: every unit of the batch has content, including units whose
	// trackers were already resolved by an earlier partial pass.
	if len(units) > 0 && allReady(units) {
		s := store.Settlement{
			BatchID:        batch.ID,
			Close:          true,
			CompletedCount: batch.TotalUnits,
			PendingCount:   0,
			FailedCount:    0,
			Touch:          true,
			Now:            now,
		}
		for _, u := range units {
			s.CompleteUnitIDs = append(s.CompleteUnitIDs, u.ID)
		}
		for _, tu := range workset {
			s.DeleteTrackerIDs = append(s.DeleteTrackerIDs, tu.Tracker.ID)
		}
		return Decision{Kind: CloseComplete, Settlement: s}
	}

	var ready, notReady []models.TrackedUnit
	for _, tu := range workset {
		if tu.Ready() {
			ready = append(ready, tu)
		} else {
			notReady = append(notReady, tu)
		}
	}

	allRetried := len(notReady) > 0
	for _, tu := range notReady {
		if !tu.Tracker.RetryAttempted {
			allRetried = false
			break
		}
	}

	// Forced completion: the not-ready units were already retried once and
	// still produced nothing after a full staleness window. They are
	// permanently failed and their cost is refunded.
	if allRetried {
		s := store.Settlement{
			BatchID:        batch.ID,
			Close:          true,
			CompletedCount: batch.CompletedCount + len(ready),
			PendingCount:   0,
			FailedCount:    batch.FailedCount + len(notReady),
			Touch:          true,
			Now:            now,
		}
		for _, tu := range ready {
			s.CompleteUnitIDs = append(s.CompleteUnitIDs, tu.Unit.ID)
		}
		for _, tu := range notReady {
			s.FailUnitIDs = append(s.FailUnitIDs, tu.Unit.ID)
		}
		for _, tu := range workset {
			s.DeleteTrackerIDs = append(s.DeleteTrackerIDs, tu.Tracker.ID)
		}
		// All failed units in a batch share one tier by construction.
		failedTier := notReady[0].Unit.Tier
		s.Refund = &store.Refund{
			UserID: batch.UserID,
			Amount: failedTier.Cost().Mul(intDecimal(len(notReady))).Round(1),
		}
		return Decision{Kind: ForceClose, Settlement: s}
	}

	// Some ready, some not: bank the ready units, escalate the rest.
	if len(ready) > 0 && len(notReady) > 0 {
		s := store.Settlement{
			BatchID:        batch.ID,
			CompletedCount: batch.CompletedCount + len(ready),
			PendingCount:   len(notReady),
			FailedCount:    batch.FailedCount,
			Now:            now,
		}
		for _, tu := range ready {
			s.CompleteUnitIDs = append(s.CompleteUnitIDs, tu.Unit.ID)
			s.DeleteTrackerIDs = append(s.DeleteTrackerIDs, tu.Tracker.ID)
		}
		var redispatch []models.TrackedUnit
		for _, tu := range notReady {
			if !tu.Tracker.RetryAttempted {
				s.EscalateTrackerIDs = append(s.EscalateTrackerIDs, tu.Tracker.ID)
				redispatch = append(redispatch, tu)
			}
		}
		// Escalation resets the staleness clock, giving the retried units a
		// fresh window before forced completion.
		s.Touch = len(s.EscalateTrackerIDs) > 0
		return Decision{Kind: Partial, Settlement: s, Redispatch: redispatch}
	}

	// Nothing ready: escalate whatever has not been retried yet. If every
	// tracker is already escalated we would have taken the forced-completion
	// branch above, so there is always at least one here.
	if len(notReady) > 0 {
		s := store.Settlement{
			BatchID:        batch.ID,
			CompletedCount: batch.CompletedCount,
			PendingCount:   len(notReady),
			FailedCount:    batch.FailedCount,
			Now:            now,
		}
		var redispatch []models.TrackedUnit
		for _, tu := range notReady {
			if !tu.Tracker.RetryAttempted {
				s.EscalateTrackerIDs = append(s.EscalateTrackerIDs, tu.Tracker.ID)
				redispatch = append(redispatch, tu)
			}
		}
		s.Touch = len(s.EscalateTrackerIDs) > 0
		return Decision{Kind: Escalate, Settlement: s, Redispatch: redispatch}
	}

	// Ready units remain tracked but other units of the batch lack content;
	// the fast path will close the batch once they deliver.
	return Decision{Kind: Wait}
}

func intDecimal(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

func allReady(units []*models.GenerationUnit) bool {
	for _, u := range units {
		if !u.Ready() {
			return false
		}
	}
	return true
}
