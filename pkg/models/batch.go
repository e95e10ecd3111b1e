package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	BatchStatusOpen   = "open"
	BatchStatusClosed = "closed"
)

// Batch aggregates the generation units submitted together. While a batch
// is open, completed + failed + pending always equals total, and pending
// equals the number of live dispatch trackers.
type Batch struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	UserID         uuid.UUID `db:"user_id"         json:"user_id"`
	Tier           Tier      `db:"tier"            json:"tier"`
	TotalUnits     int       `db:"total_units"     json:"total_units"`
	CompletedCount int       `db:"completed_count" json:"completed_count"`
	PendingCount   int       `db:"pending_count"   json:"pending_count"`
	FailedCount    int       `db:"failed_count"    json:"failed_count"`
	Status         string    `db:"status"          json:"status"`
	StartProcess   bool      `db:"start_process"   json:"start_process"`
	WordLimit      int       `db:"word_limit"      json:"word_limit,omitempty"`
	Instructions   string    `db:"instructions"    json:"instructions,omitempty"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}

// Counts is the rollup reported to users and notifications.
type Counts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Failed    int `json:"failed"`
}

func (b *Batch) Counts() Counts {
	return Counts{
		Total:     b.TotalUnits,
		Completed: b.CompletedCount,
		Pending:   b.PendingCount,
		Failed:    b.FailedCount,
	}
}
