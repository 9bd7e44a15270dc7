package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is a user's availability for phone contact.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
	StatusEmergency   Status = "emergency"
)

// Label returns the display label shown in the friend list. The list
// search matches against these, so they stay in sync with the UI copy.
func (s Status) Label() string {
	switch s {
	case StatusAvailable:
		return "対応可"
	case StatusUnavailable:
		return "不可"
	case StatusEmergency:
		return "緊急のみ"
	default:
		return string(s)
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusUnavailable, StatusEmergency:
		return true
	}
	return false
}

// Profile is the directory record for a registered user.
type Profile struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	Nickname     string    `json:"nickname"`
	Organization string    `json:"organization,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	PublicEmail  string    `json:"public_email,omitempty"`
	Status       Status    `json:"status"`
	Note         string    `json:"note,omitempty"`
	FriendCode   string    `json:"friend_code"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ContactCard is the display-level view of a contact. Both real
// profiles and guest/sample friends reduce to this one shape, so view
// code never needs to know which kind of record it came from.
type ContactCard struct {
	Nickname     string `json:"nickname"`
	Organization string `json:"organization,omitempty"`
	Phone        string `json:"phone,omitempty"`
	PublicEmail  string `json:"public_email,omitempty"`
	Status       Status `json:"status"`
	Note         string `json:"note,omitempty"`
	FriendCode   string `json:"friend_code"`
}

func (p *Profile) Card() ContactCard {
	return ContactCard{
		Nickname:     p.Nickname,
		Organization: p.Organization,
		Phone:        p.Phone,
		PublicEmail:  p.PublicEmail,
		Status:       p.Status,
		Note:         p.Note,
		FriendCode:   p.FriendCode,
	}
}

// ProfileParams carries the editable profile fields through create and
// update paths.
type ProfileParams struct {
	Username     string `json:"username"`
	Nickname     string `json:"nickname"`
	Organization string `json:"organization"`
	Phone        string `json:"phone"`
	PublicEmail  string `json:"public_email"`
	Status       Status `json:"status"`
	Note         string `json:"note"`
}
