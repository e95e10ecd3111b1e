package models

import (
	"time"

	"github.com/google/uuid"
)

// DispatchTracker marks a generation unit as in flight. One tracker is
// created per unit at batch creation and deleted once the unit's outcome is
// decided; its presence is the sole signal that a unit is still pending.
// RetryAttempted gates the single permitted escalation re-dispatch.
type DispatchTracker struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	BatchID        uuid.UUID `db:"batch_id"        json:"batch_id"`
	UserID         uuid.UUID `db:"user_id"         json:"user_id"`
	UnitID         uuid.UUID `db:"unit_id"         json:"unit_id"`
	Keyword        string    `db:"keyword"         json:"keyword"`
	RetryAttempted bool      `db:"retry_attempted" json:"retry_attempted"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}

// TrackedUnit is a dispatch tracker joined with its generation unit, the
// working set the settlement engine partitions into ready and not-ready.
type TrackedUnit struct {
	Unit    GenerationUnit
	Tracker DispatchTracker
}

func (tu TrackedUnit) Ready() bool { return tu.Unit.Ready() }
