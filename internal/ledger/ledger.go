// Package ledger wraps the three per-user credit buckets. A batch always
// settles against exactly one bucket, chosen by plan priority, and every
// balance mutation rounds to one decimal place after the arithmetic so
// fractional tier costs cannot accumulate drift.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wordforge/wordforge/internal/store"
	"github.com/wordforge/wordforge/pkg/models"
)

// ErrInsufficientFunds mirrors the store sentinel for callers that only
// import this package.
var ErrInsufficientFunds = store.ErrInsufficientFunds

// BatchCost prices n units of the given tier, rounded to one decimal.
func BatchCost(tier models.Tier, n int) decimal.Decimal {
	return tier.Cost().Mul(decimal.NewFromInt(int64(n))).Round(1)
}

// Service exposes debit and refund over the store's row-locked balance
// arithmetic.
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Debit removes amount from one bucket. Fails with ErrInsufficientFunds if
// the bucket cannot cover it.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, bucket models.CreditBucket, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("debit amount must be non-negative, got %s", amount)
	}
	if _, err := s.store.AdjustBalance(ctx, userID, bucket, amount.Neg()); err != nil {
		return fmt.Errorf("debit %s from %s bucket: %w", amount, bucket, err)
	}
	return nil
}

// Refund returns amount to the user's priority bucket and reports which
// bucket received it.
func (s *Service) Refund(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (models.CreditBucket, error) {
	if amount.IsNegative() {
		return "", fmt.Errorf("refund amount must be non-negative, got %s", amount)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user for refund: %w", err)
	}
	bucket := user.PriorityBucket()
	if _, err := s.store.AdjustBalance(ctx, userID, bucket, amount); err != nil {
		return "", fmt.Errorf("refund %s to %s bucket: %w", amount, bucket, err)
	}
	return bucket, nil
}
