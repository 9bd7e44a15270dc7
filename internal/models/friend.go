package models

import (
	"time"

	"github.com/google/uuid"
)

// Friend is one directed edge of a friendship as stored in Postgres.
// Acceptance creates the edge in both directions; removal, pinning,
// memo and ordering act on a single direction only.
type Friend struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FriendID  uuid.UUID `json:"friend_id"`
	Pinned    bool      `json:"pinned"`
	SortOrder int       `json:"order"`
	Memo      string    `json:"memo,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendEntry is the list-level view of a contact. Real friends, guest
// friends and the built-in sample contacts all reduce to this shape,
// so the ordering engine and handlers work on one type. The ID is a
// string because sample entries use fixed non-UUID ids.
type FriendEntry struct {
	ID        string      `json:"id"`
	Pinned    bool        `json:"pinned"`
	Order     int         `json:"order"`
	Memo      string      `json:"memo,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	Card      ContactCard `json:"friend_profile"`
}

// Entry converts a stored edge plus the counterpart's profile into the
// list view.
func (f *Friend) Entry(p *Profile) FriendEntry {
	return FriendEntry{
		ID:        f.ID.String(),
		Pinned:    f.Pinned,
		Order:     f.SortOrder,
		Memo:      f.Memo,
		CreatedAt: f.CreatedAt,
		Card:      p.Card(),
	}
}
