package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditBucket identifies one of the three independently drawn balance
// buckets on a user.
type CreditBucket string

const (
	BucketRecurring CreditBucket = "recurring"
	BucketOneTime   CreditBucket = "onetime"
	BucketFree      CreditBucket = "free"
)

// User is the credit-ledger subset of an account. Balances carry one
// decimal place; every mutation re-rounds after the arithmetic.
type User struct {
	ID               uuid.UUID       `db:"id"                 json:"id"`
	Email            string          `db:"email"              json:"email"`
	RecurringBalance decimal.Decimal `db:"recurring_balance"  json:"recurring_balance"`
	OneTimeBalance   decimal.Decimal `db:"onetime_balance"    json:"onetime_balance"`
	FreeBalance      decimal.Decimal `db:"free_balance"       json:"free_balance"`
	RecurringPlan    int             `db:"recurring_plan"     json:"recurring_plan"`
	LifetimePlan     int             `db:"lifetime_plan"      json:"lifetime_plan"`
	CreatedAt        time.Time       `db:"created_at"         json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"         json:"updated_at"`
}

// PriorityBucket picks the bucket a batch debits from and refunds to:
// recurring if the user is on a recurring plan, else one-time if on a
// lifetime plan, else free. A batch always settles against exactly one
// bucket.
func (u *User) PriorityBucket() CreditBucket {
	switch {
	case u.RecurringPlan > 0:
		return BucketRecurring
	case u.LifetimePlan > 0:
		return BucketOneTime
	default:
		return BucketFree
	}
}

// Balance returns the current balance of the given bucket.
func (u *User) Balance(bucket CreditBucket) decimal.Decimal {
	switch bucket {
	case BucketRecurring:
		return u.RecurringBalance
	case BucketOneTime:
		return u.OneTimeBalance
	default:
		return u.FreeBalance
	}
}
