// Package notify sends batch status emails through a mail-delivery
// service. Notifications are best effort: failures are logged by callers
// and never retried, and they never block or roll back a settlement.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wordforge/wordforge/pkg/models"
)

// Notifier is the interface for batch status notifications.
type Notifier interface {
	// BatchComplete: every unit produced content.
	BatchComplete(ctx context.Context, email string, batchID uuid.UUID, counts models.Counts) error
	// BatchPartial: some units completed, the rest were escalated.
	BatchPartial(ctx context.Context, email string, batchID uuid.UUID, counts models.Counts) error
	// BatchDelayed: nothing ready yet, units escalated for one retry.
	BatchDelayed(ctx context.Context, email string, batchID uuid.UUID, counts models.Counts) error
	// BatchFinal: the batch was force-closed with permanent failures.
	BatchFinal(ctx context.Context, email string, batchID uuid.UUID, counts models.Counts) error
	// RefundIssued: credits were returned for failed units.
	RefundIssued(ctx context.Context, email string, batchID uuid.UUID, amount decimal.Decimal) error
}

// Nop is a Notifier that does nothing, used in tests and when no mailer is
// configured.
type Nop struct{}

func (Nop) BatchComplete(context.Context, string, uuid.UUID, models.Counts) error { return nil }
func (Nop) BatchPartial(context.Context, string, uuid.UUID, models.Counts) error  { return nil }
func (Nop) BatchDelayed(context.Context, string, uuid.UUID, models.Counts) error  { return nil }
func (Nop) BatchFinal(context.Context, string, uuid.UUID, models.Counts) error    { return nil }
func (Nop) RefundIssued(context.Context, string, uuid.UUID, decimal.Decimal) error {
	return nil
}

var _ Notifier = Nop{}
