package models

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// FriendRequest records one attempt to establish a friendship.
// Requests are never deleted; resolved rows stay as history and as the
// duplicate guard for later sends.
type FriendRequest struct {
	ID         uuid.UUID     `json:"id"`
	FromUserID uuid.UUID     `json:"from_user_id"`
	ToUserID   uuid.UUID     `json:"to_user_id"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// PendingRequest is an incoming request joined with the sender's
// profile, as shown on the requests screen.
type PendingRequest struct {
	FriendRequest
	FromProfile ContactCard `json:"from_profile"`
}
