package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	UnitStatusPending  = "pending"
	UnitStatusComplete = "complete"
	UnitStatusFailed   = "failed"
)

// GenerationUnit is one keyword's article request and its eventual output.
// The dispatcher flips RequestProcess before the first worker call; the
// worker writes Content (and the meta fields) out of band; settlement is
// the only writer of Status.
type GenerationUnit struct {
	ID              uuid.UUID `db:"id"               json:"id"`
	BatchID         uuid.UUID `db:"batch_id"         json:"batch_id"`
	UserID          uuid.UUID `db:"user_id"          json:"user_id"`
	Keyword         string    `db:"keyword"          json:"keyword"`
	Tier            Tier      `db:"tier"             json:"tier"`
	Content         *string   `db:"content"          json:"content,omitempty"`
	MetaTitle       *string   `db:"meta_title"       json:"meta_title,omitempty"`
	MetaDescription *string   `db:"meta_description" json:"meta_description,omitempty"`
	ImageURL        *string   `db:"image_url"        json:"image_url,omitempty"`
	RequestProcess  bool      `db:"request_process"  json:"request_process"`
	Status          string    `db:"status"           json:"status"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updated_at"`
}

// Ready reports whether the worker has delivered content for this unit.
// Content presence is the only success signal the settlement engine trusts.
func (u *GenerationUnit) Ready() bool {
	return u.Content != nil && *u.Content != ""
}
