// Package batchsvc creates article batches: it prices the keywords,
// pre-checks and debits the user's priority credit bucket, and writes the
// batch, its generation units, and their dispatch trackers in one
// transaction. Dispatch itself happens on the next trigger invocation.
package batchsvc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wordforge/wordforge/internal/ledger"
	"github.com/wordforge/wordforge/internal/store"
	"github.com/wordforge/wordforge/pkg/models"
)

// MaxKeywordsPerBatch bounds a single submission.
const MaxKeywordsPerBatch = 100

var (
	ErrNoKeywords        = errors.New("at least one keyword is required")
	ErrTooManyKeywords   = errors.New("too many keywords in one batch")
	ErrInvalidTier       = errors.New("unknown tier")
	ErrInsufficientFunds = store.ErrInsufficientFunds
)

// CreateParams is a validated batch submission.
type CreateParams struct {
	UserID       uuid.UUID
	Keywords     []string
	Tier         models.Tier
	WordLimit    int
	Instructions string
}

// Service handles batch submission.
type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the submission, verifies the priority bucket can cover
// the cost, and creates batch + units + trackers with the debit in a single
// transaction. Over-budget submissions are rejected outright; the refund
// path only ever compensates generation failures, never debt.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Batch, error) {
	keywords := cleanKeywords(params.Keywords)
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	if len(keywords) > MaxKeywordsPerBatch {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrTooManyKeywords, len(keywords), MaxKeywordsPerBatch)
	}
	if !params.Tier.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, params.Tier)
	}

	user, err := s.store.GetUser(ctx, params.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	cost := ledger.BatchCost(params.Tier, len(keywords))
	bucket := user.PriorityBucket()
	if user.Balance(bucket).LessThan(cost) {
		return nil, fmt.Errorf("%w: need %s, %s bucket has %s",
			ErrInsufficientFunds, cost, bucket, user.Balance(bucket))
	}

	now := s.now()
	batch := &models.Batch{
		ID:           uuid.New(),
		UserID:       user.ID,
		Tier:         params.Tier,
		TotalUnits:   len(keywords),
		PendingCount: len(keywords),
		Status:       models.BatchStatusOpen,
		WordLimit:    params.WordLimit,
		Instructions: params.Instructions,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	units := make([]*models.GenerationUnit, 0, len(keywords))
	trackers := make([]*models.DispatchTracker, 0, len(keywords))
	for _, kw := range keywords {
		unit := &models.GenerationUnit{
			ID:        uuid.New(),
			BatchID:   batch.ID,
			UserID:    user.ID,
			Keyword:   kw,
			Tier:      params.Tier,
			Status:    models.UnitStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		units = append(units, unit)
		trackers = append(trackers, &models.DispatchTracker{
			ID:        uuid.New(),
			BatchID:   batch.ID,
			UserID:    user.ID,
			UnitID:    unit.ID,
			Keyword:   kw,
			CreatedAt: now,
		})
	}

	creation := store.BatchCreation{
		Batch:    batch,
		Units:    units,
		Trackers: trackers,
		Debit: &store.LedgerChange{
			UserID: user.ID,
			Bucket: bucket,
			Amount: cost,
		},
	}
	if err := s.store.CreateBatch(ctx, creation); err != nil {
		// The balance is re-checked under the row lock; a race with another
		// submission can still surface insufficient funds here.
		if errors.Is(err, store.ErrInsufficientFunds) {
			return nil, err
		}
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return batch, nil
}

func cleanKeywords(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, kw := range raw {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}
