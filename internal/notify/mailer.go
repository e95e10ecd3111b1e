package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wordforge/wordforge/pkg/models"
)

var ErrMailerUnavailable = errors.New("mailer unavailable")

// Mailer implements Notifier against an HTTP mail-delivery service.
type Mailer struct {
	url    string
	from   string
	client *http.Client
}

// NewMailer creates a Mailer posting to the given delivery endpoint.
func NewMailer(url, from string, timeout time.Duration) *Mailer {
	return &Mailer{
		url:    url,
		from:   from,
		client: &http.Client{Timeout: timeout},
	}
}

type message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (m *Mailer) send(ctx context.Context, msg message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMailerUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrMailerUnavailable, resp.StatusCode)
	}
	return nil
}

func countTable(c models.Counts) string {
	return fmt.Sprintf("Total: %d\nCompleted: %d\nPending: %d\nFailed: %d",
		c.Total, c.Completed, c.Pending, c.Failed)
}

func (m *Mailer) BatchComplete(ctx context.Context, email string, batchID uuid.UUID, c models.Counts) error {
	return m.send(ctx, message{
		From:    m.from,
		To:      email,
		Subject: "Your article batch is ready",
		Body: fmt.Sprintf("All articles in batch %s have been generated.\n\n%s",
			batchID, countTable(c)),
	})
}

func (m *Mailer) BatchPartial(ctx context.Context, email string, batchID uuid.UUID, c models.Counts) error {
	return m.send(ctx, message{
		From:    m.from,
		To:      email,
		Subject: "Your article batch is partially ready",
		Body: fmt.Sprintf("Some articles in batch %s are ready; the rest are still being generated.\n\n%s",
			batchID, countTable(c)),
	})
}

func (m *Mailer) BatchDelayed(ctx context.Context, email string, batchID uuid.UUID, c models.Counts) error {
	return m.send(ctx, message{
		From:    m.from,
		To:      email,
		Subject: "Your article batch is taking longer than expected",
		Body: fmt.Sprintf("Batch %s is taking longer than usual. We have re-queued the remaining articles.\n\n%s",
			batchID, countTable(c)),
	})
}

func (m *Mailer) BatchFinal(ctx context.Context, email string, batchID uuid.UUID, c models.Counts) error {
	return m.send(ctx, message{
		From:    m.from,
		To:      email,
		Subject: "Your article batch has finished",
		Body: fmt.Sprintf("Batch %s has finished processing.\n\n%s",
			batchID, countTable(c)),
	})
}

func (m *Mailer) RefundIssued(ctx context.Context, email string, batchID uuid.UUID, amount decimal.Decimal) error {
	return m.send(ctx, message{
		From:    m.from,
		To:      email,
		Subject: "Credits refunded",
		Body: fmt.Sprintf("%s credits were returned to your account for articles in batch %s that could not be generated.",
			amount.StringFixed(1), batchID),
	})
}

var _ Notifier = (*Mailer)(nil)
