package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/KOSOTSU-dev/tel-plus/internal/gateway"
	"github.com/KOSOTSU-dev/tel-plus/internal/models"
)

const (
	sessionCookieName = "session"
	guestCookieName   = "guest_session"
)

type contextKey string

const (
	userContextKey  contextKey = "user"
	guestContextKey contextKey = "guest_session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

func SetGuestInContext(ctx context.Context, guestSessionID string) context.Context {
	return context.WithValue(ctx, guestContextKey, guestSessionID)
}

func GetGuestFromContext(ctx context.Context) string {
	guestID, _ := ctx.Value(guestContextKey).(string)
	return guestID
}

// SessionFromContext builds the explicit gateway session for the
// caller. A logged-in user wins over a stale guest cookie.
func SessionFromContext(ctx context.Context) (gateway.Session, bool) {
	if user := GetUserFromContext(ctx); user != nil {
		return gateway.RemoteSession(user.ID), true
	}
	if guestID := GetGuestFromContext(ctx); guestID != "" {
		return gateway.GuestSession(guestID), true
	}
	return gateway.Session{}, false
}
