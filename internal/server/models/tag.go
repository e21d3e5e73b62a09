package models

import "time"

// Tag is a user-defined label. Name is unique per identity (case-sensitive)
// and stored in plaintext: tags index otherwise-opaque records, so their
// names must stay searchable.
type Tag struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"-"`
	Name       string    `json:"name"`
	Color      string    `json:"color,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
