package ledger_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordforge/wordforge/internal/ledger"
	"github.com/wordforge/wordforge/internal/store/mock"
	"github.com/wordforge/wordforge/pkg/models"
)

func TestBatchCost(t *testing.T) {
	cases := []struct {
		tier models.Tier
		n    int
		want string
	}{
		{models.TierLite, 1, "0.1"},
		{models.TierLite, 3, "0.3"},
		{models.TierLite, 25, "2.5"},
		{models.TierCore, 10, "10"},
		{models.TierPro, 7, "14"},
	}
	for _, tc := range cases {
		got := ledger.BatchCost(tc.tier, tc.n)
		assert.Equal(t, tc.want, got.String(), "%s x %d", tc.tier, tc.n)
	}
}

func seedUser(t *testing.T, st *mock.Store, user *models.User) {
	t.Helper()
	require.NoError(t, st.CreateUser(context.Background(), user))
}

func TestService_Debit(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	user := &models.User{ID: uuid.New(), FreeBalance: decimal.NewFromInt(5)}
	seedUser(t, st, user)

	svc := ledger.NewService(st)
	require.NoError(t, svc.Debit(ctx, user.ID, models.BucketFree, decimal.RequireFromString("2.5")))

	got, err := st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "2.5", got.FreeBalance.String())
}

func TestService_Debit_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	st := mock.New()
	user := &models.User{ID: uuid.New(), FreeBalance: decimal.RequireFromString("0.2")}
	seedUser(t, st, user)

	svc := ledger.NewService(st)
	err := svc.Debit(ctx, user.ID, models.BucketFree, decimal.NewFromInt(1))
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	// The failed debit leaves the balance untouched.
	got, err := st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.2", got.FreeBalance.String())
}

func TestService_Debit_RejectsNegativeAmount(t *testing.T) {
	svc := ledger.NewService(mock.New())
	err := svc.Debit(context.Background(), uuid.New(), models.BucketFree, decimal.NewFromInt(-1))
	require.Error(t, err)
}

func TestService_Refund_PriorityBucket(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		user models.User
		want models.CreditBucket
	}{
		{
			name: "recurring plan wins",
			user: models.User{RecurringPlan: 10, LifetimePlan: 5},
			want: models.BucketRecurring,
		},
		{
			name: "lifetime plan next",
			user: models.User{LifetimePlan: 5},
			want: models.BucketOneTime,
		},
		{
			name: "free fallback",
			user: models.User{},
			want: models.BucketFree,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := mock.New()
			user := tc.user
			user.ID = uuid.New()
			seedUser(t, st, &user)

			svc := ledger.NewService(st)
			bucket, err := svc.Refund(ctx, user.ID, decimal.RequireFromString("1.5"))
			require.NoError(t, err)
			assert.Equal(t, tc.want, bucket)

			got, err := st.GetUser(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, "1.5", got.Balance(tc.want).String())
		})
	}
}

func TestRepeatedFractionalDebitsDoNotDrift(t *testing.T) {
	// 50 lite debits of 0.1 from a balance of 5.0 must land exactly on zero.
	ctx := context.Background()
	st := mock.New()
	user := &models.User{ID: uuid.New(), FreeBalance: decimal.NewFromInt(5)}
	seedUser(t, st, user)

	svc := ledger.NewService(st)
	cost := models.TierLite.Cost()
	for i := 0; i < 50; i++ {
		require.NoError(t, svc.Debit(ctx, user.ID, models.BucketFree, cost))
	}

	got, err := st.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.FreeBalance.IsZero(), "expected zero, got %s", got.FreeBalance)

	err = svc.Debit(ctx, user.ID, models.BucketFree, cost)
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}
