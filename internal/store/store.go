package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wordforge/wordforge/pkg/models"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicateKey      = errors.New("duplicate key violation")
	ErrInsufficientFunds = errors.New("insufficient credit balance")
)

// Store is the data access interface. All database operations go through
// here; every multi-row mutation (batch creation, settlement) is applied as
// a single transaction so concurrent trigger invocations only ever observe
// complete transitions.
type Store interface {
	Ping(ctx context.Context) error

	// Users and credit ledger.
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	// AdjustBalance applies balance = round1(balance + delta) to one bucket
	// under a row lock. A negative delta that would overdraw the bucket
	// fails with ErrInsufficientFunds and leaves the row untouched.
	AdjustBalance(ctx context.Context, userID uuid.UUID, bucket models.CreditBucket, delta decimal.Decimal) (decimal.Decimal, error)

	// API keys.
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error

	// Batches.
	CreateBatch(ctx context.Context, creation BatchCreation) error
	GetBatch(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	ListBatchesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Batch, error)
	// OldestStaleBatch returns the open, started batch untouched since
	// before the cutoff, oldest updated_at first, or ErrNotFound.
	OldestStaleBatch(ctx context.Context, before time.Time) (*models.Batch, error)
	ListStartedBatches(ctx context.Context) ([]*models.Batch, error)
	MarkBatchStarted(ctx context.Context, id uuid.UUID, now time.Time) error

	// Generation units.
	GetUnit(ctx context.Context, id uuid.UUID) (*models.GenerationUnit, error)
	ListUnitsByBatch(ctx context.Context, batchID uuid.UUID) ([]*models.GenerationUnit, error)
	// SelectUndispatchedUnits returns up to limit pending units whose first
	// dispatch has not been attempted, oldest first.
	SelectUndispatchedUnits(ctx context.Context, limit int) ([]*models.GenerationUnit, error)
	CountUndispatchedUnits(ctx context.Context, batchID uuid.UUID) (int, error)
	// SetUnitDispatched compare-and-sets the first-dispatch flag. It reports
	// whether this call flipped the flag; false means another invocation got
	// there first (or the unit does not exist) and the caller must not send
	// the worker call.
	SetUnitDispatched(ctx context.Context, id uuid.UUID, dispatched bool) (bool, error)
	// SetUnitContent is the worker's out-of-band write path.
	SetUnitContent(ctx context.Context, id uuid.UUID, content UnitContent) error

	// Dispatch trackers joined with their units: the settlement work set.
	BatchWorkset(ctx context.Context, batchID uuid.UUID) ([]models.TrackedUnit, error)
	CountTrackers(ctx context.Context, batchID uuid.UUID) (int, error)

	// ApplySettlement applies one settlement transition atomically and
	// returns the tracker IDs whose retry flag this call flipped; only those
	// escalations belong to the caller to re-dispatch. A close-type
	// settlement against an already closed batch is a no-op.
	ApplySettlement(ctx context.Context, s Settlement) ([]uuid.UUID, error)
}

// BatchCreation is everything written when a batch is submitted: the batch
// row, its units and trackers, and the creation-time debit. All of it
// commits or none of it does.
type BatchCreation struct {
	Batch    *models.Batch
	Units    []*models.GenerationUnit
	Trackers []*models.DispatchTracker
	Debit    *LedgerChange
}

// LedgerChange is a single-bucket balance mutation attached to a larger
// transaction.
type LedgerChange struct {
	UserID uuid.UUID
	Bucket models.CreditBucket
	Amount decimal.Decimal
}

// Settlement is the full effect of one settlement-engine transition on a
// batch. Counts are absolute target values, not deltas, so re-applying a
// settlement cannot double-count.
type Settlement struct {
	BatchID        uuid.UUID
	Close          bool
	CompletedCount int
	PendingCount   int
	FailedCount    int
	// Touch bumps updated_at, resetting the staleness clock for escalated
	// units. Close-type settlements always touch.
	Touch bool
	Now   time.Time

	CompleteUnitIDs    []uuid.UUID
	FailUnitIDs        []uuid.UUID
	DeleteTrackerIDs   []uuid.UUID
	EscalateTrackerIDs []uuid.UUID

	// Refund, when set, credits the user's priority bucket inside the same
	// transaction. The bucket is resolved under the user row lock.
	Refund *Refund
}

// Refund returns failed-unit credits to whichever bucket the user's plan
// sizes select at apply time.
type Refund struct {
	UserID uuid.UUID
	Amount decimal.Decimal
}

// UnitContent carries the fields the external worker delivers for a unit.
type UnitContent struct {
	Content         string
	MetaTitle       *string
	MetaDescription *string
	ImageURL        *string
}
