package models

import "time"

// GuestProfile is the guest user's own card. It lives only in the
// embedded store and carries no account identifiers.
type GuestProfile struct {
	ContactCard
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GuestFriend is a flattened friend record for guest mode: the edge
// fields and the contact card in one row, since there is no directory
// to join against.
type GuestFriend struct {
	ID           string    `json:"id"`
	Nickname     string    `json:"nickname"`
	Organization string    `json:"organization,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	PublicEmail  string    `json:"public_email,omitempty"`
	Status       Status    `json:"status"`
	Note         string    `json:"note,omitempty"`
	FriendCode   string    `json:"friend_code"`
	Pinned       bool      `json:"pinned"`
	Order        int       `json:"order"`
	Memo         string    `json:"memo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (g *GuestFriend) Card() ContactCard {
	return ContactCard{
		Nickname:     g.Nickname,
		Organization: g.Organization,
		Phone:        g.Phone,
		PublicEmail:  g.PublicEmail,
		Status:       g.Status,
		Note:         g.Note,
		FriendCode:   g.FriendCode,
	}
}

func (g *GuestFriend) Entry() FriendEntry {
	return FriendEntry{
		ID:        g.ID,
		Pinned:    g.Pinned,
		Order:     g.Order,
		Memo:      g.Memo,
		CreatedAt: g.CreatedAt,
		Card:      g.Card(),
	}
}
