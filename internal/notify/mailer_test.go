package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wordforge/wordforge/internal/notify"
	"github.com/wordforge/wordforge/pkg/models"
)

type sentMail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func mailServer(t *testing.T, got *sentMail) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMailer_BatchComplete(t *testing.T) {
	var got sentMail
	srv := mailServer(t, &got)
	defer srv.Close()

	m := notify.NewMailer(srv.URL, "noreply@wordforge.io", 5*time.Second)
	batchID := uuid.New()
	counts := models.Counts{Total: 3, Completed: 3}

	require.NoError(t, m.BatchComplete(context.Background(), "writer@example.com", batchID, counts))

	assert.Equal(t, "noreply@wordforge.io", got.From)
	assert.Equal(t, "writer@example.com", got.To)
	assert.Contains(t, got.Subject, "ready")
	assert.Contains(t, got.Body, batchID.String())
	assert.Contains(t, got.Body, "Completed: 3")
}

func TestMailer_RefundIssuedFormatsAmount(t *testing.T) {
	var got sentMail
	srv := mailServer(t, &got)
	defer srv.Close()

	m := notify.NewMailer(srv.URL, "noreply@wordforge.io", 5*time.Second)
	amount := decimal.RequireFromString("0.3")

	require.NoError(t, m.RefundIssued(context.Background(), "writer@example.com", uuid.New(), amount))
	assert.Contains(t, got.Body, "0.3 credits")
}

func TestMailer_DeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	m := notify.NewMailer(srv.URL, "noreply@wordforge.io", 5*time.Second)
	err := m.BatchFinal(context.Background(), "writer@example.com", uuid.New(), models.Counts{})
	require.ErrorIs(t, err, notify.ErrMailerUnavailable)
}

func TestNop_SwallowsEverything(t *testing.T) {
	var n notify.Notifier = notify.Nop{}
	ctx := context.Background()
	id := uuid.New()

	assert.NoError(t, n.BatchComplete(ctx, "a@b.c", id, models.Counts{}))
	assert.NoError(t, n.BatchPartial(ctx, "a@b.c", id, models.Counts{}))
	assert.NoError(t, n.BatchDelayed(ctx, "a@b.c", id, models.Counts{}))
	assert.NoError(t, n.BatchFinal(ctx, "a@b.c", id, models.Counts{}))
	assert.NoError(t, n.RefundIssued(ctx, "a@b.c", id, decimal.Zero))
}
