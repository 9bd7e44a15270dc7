package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/KOSOTSU-dev/tel-plus/internal/friendlist"
	"github.com/KOSOTSU-dev/tel-plus/internal/gateway"
	"github.com/KOSOTSU-dev/tel-plus/internal/logging"
	"github.com/KOSOTSU-dev/tel-plus/internal/models"
	"github.com/KOSOTSU-dev/tel-plus/internal/services"
)

type FriendHandler struct {
	gw *gateway.Gateway
}

func NewFriendHandler(gw *gateway.Gateway) *FriendHandler {
	return &FriendHandler{gw: gw}
}

type FriendListResponse struct {
	Friends []models.FriendEntry `json:"friends"`
}

type SendRequestRequest struct {
	ToUserID string `json:"to_user_id"`
}

type PendingRequestsResponse struct {
	Requests []models.PendingRequest `json:"requests"`
}

type PinRequest struct {
	Pinned bool `json:"pinned"`
}

type MemoRequest struct {
	Memo string `json:"memo"`
}

type ReorderRequest struct {
	ID      string `json:"id"`
	ToIndex int    `json:"to_index"`
}

// ReorderResponse reports a best-effort reorder. Reload tells the
// client its local copy can no longer be trusted.
type ReorderResponse struct {
	Friends []models.FriendEntry `json:"friends"`
	Failed  []string             `json:"failed,omitempty"`
	Reload  bool                 `json:"reload"`
}

type AddGuestFriendRequest struct {
	models.ContactCard
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friends, err := h.gw.ListFriends(r.Context(), sess, r.URL.Query().Get("q"))
	if err != nil {
		logging.Error("listing friends failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, FriendListResponse{Friends: friends})
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	toUserID, err := uuid.Parse(req.ToUserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	request, err := h.gw.SendRequest(r.Context(), sess, toUserID)
	switch {
	case errors.Is(err, gateway.ErrRemoteOnly):
		writeError(w, http.StatusForbidden, "Friend requests require an account")
	case errors.Is(err, services.ErrSelfRequest):
		writeError(w, http.StatusBadRequest, "Cannot send a request to yourself")
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrAlreadyFriends):
		writeError(w, http.StatusConflict, "Already friends")
	case errors.Is(err, services.ErrAlreadyRequested):
		writeError(w, http.StatusConflict, "Request already sent")
	case err != nil:
		logging.Error("sending friend request failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusCreated, request)
	}
}

func (h *FriendHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requests, err := h.gw.ListPendingRequests(r.Context(), sess)
	if errors.Is(err, gateway.ErrRemoteOnly) {
		writeJSON(w, http.StatusOK, PendingRequestsResponse{Requests: []models.PendingRequest{}})
		return
	}
	if err != nil {
		logging.Error("listing friend requests failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, PendingRequestsResponse{Requests: requests})
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.gw.AcceptRequest, "Request accepted")
}

func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.gw.RejectRequest, "Request rejected")
}

func (h *FriendHandler) resolveRequest(w http.ResponseWriter, r *http.Request, resolve func(context.Context, gateway.Session, uuid.UUID) error, message string) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	err = resolve(r.Context(), sess, requestID)
	switch {
	case errors.Is(err, gateway.ErrRemoteOnly):
		writeError(w, http.StatusForbidden, "Friend requests require an account")
	case errors.Is(err, services.ErrRequestNotFound):
		writeError(w, http.StatusNotFound, "Request not found")
	case errors.Is(err, services.ErrRequestResolved):
		writeError(w, http.StatusConflict, "Request already resolved")
	case err != nil:
		logging.Error("resolving friend request failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, MessageResponse{Message: message})
	}
}

func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	err := h.gw.RemoveFriend(r.Context(), sess, r.PathValue("id"))
	if errors.Is(err, services.ErrFriendNotFound) {
		writeError(w, http.StatusNotFound, "Friend not found")
		return
	}
	if err != nil {
		logging.Error("removing friend failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend removed"})
}

func (h *FriendHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req PinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.gw.SetPinned(r.Context(), sess, r.PathValue("id"), req.Pinned)
	if errors.Is(err, services.ErrFriendNotFound) {
		writeError(w, http.StatusNotFound, "Friend not found")
		return
	}
	if err != nil {
		logging.Error("updating pin failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Pin updated"})
}

func (h *FriendHandler) UpdateMemo(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req MemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.gw.UpdateMemo(r.Context(), sess, r.PathValue("id"), req.Memo)
	if errors.Is(err, services.ErrFriendNotFound) {
		writeError(w, http.StatusNotFound, "Friend not found")
		return
	}
	if err != nil {
		logging.Error("updating memo failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Memo updated"})
}

func (h *FriendHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Friend ID is required")
		return
	}

	outcome, err := h.gw.Reorder(r.Context(), sess, req.ID, req.ToIndex)
	switch {
	case errors.Is(err, friendlist.ErrEntryPinned):
		writeError(w, http.StatusBadRequest, "Pinned friends cannot be reordered")
	case errors.Is(err, friendlist.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "Friend not found")
	case err != nil:
		logging.Error("reordering friends failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, ReorderResponse{
			Friends: outcome.Entries,
			Failed:  outcome.Failed,
			Reload:  len(outcome.Failed) > 0,
		})
	}
}

// AddGuestFriend appends a hand-entered contact in guest mode.
func (h *FriendHandler) AddGuestFriend(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req AddGuestFriendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	friend, err := h.gw.AddGuestFriend(r.Context(), sess, req.ContactCard)
	switch {
	case errors.Is(err, gateway.ErrGuestOnly):
		writeError(w, http.StatusForbidden, "Only available in guest mode")
	case errors.Is(err, services.ErrInvalidNickname) || errors.Is(err, services.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		logging.Error("adding guest friend failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusCreated, friend)
	}
}
