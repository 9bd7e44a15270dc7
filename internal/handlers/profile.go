package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KOSOTSU-dev/tel-plus/internal/gateway"
	"github.com/KOSOTSU-dev/tel-plus/internal/logging"
	"github.com/KOSOTSU-dev/tel-plus/internal/models"
	"github.com/KOSOTSU-dev/tel-plus/internal/services"
)

type ProfileHandler struct {
	gw *gateway.Gateway
}

func NewProfileHandler(gw *gateway.Gateway) *ProfileHandler {
	return &ProfileHandler{gw: gw}
}

// LookupResponse is the friend-code search result. A miss is a normal
// outcome, not an error status.
type LookupResponse struct {
	Found   bool                `json:"found"`
	Profile *models.ContactCard `json:"profile,omitempty"`
	UserID  string              `json:"user_id,omitempty"`
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := h.gw.GetProfile(r.Context(), sess)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not set up yet")
		return
	}
	if err != nil {
		logging.Error("getting profile failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var params models.ProfileParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	profile, err := h.gw.SaveProfile(r.Context(), sess, params)
	if errors.Is(err, services.ErrInvalidNickname) || errors.Is(err, services.ErrInvalidStatus) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not set up yet")
		return
	}
	if err != nil {
		logging.Error("saving profile failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// Lookup resolves a friend code typed by the user. Case does not
// matter; the code is upper-cased before matching.
func (h *ProfileHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	code := r.URL.Query().Get("code")
	if len(code) != 6 {
		writeError(w, http.StatusBadRequest, "Friend code must be 6 characters")
		return
	}

	profile, err := h.gw.LookupByCode(r.Context(), sess, code)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeJSON(w, http.StatusOK, LookupResponse{Found: false})
		return
	}
	if errors.Is(err, gateway.ErrRemoteOnly) {
		writeError(w, http.StatusForbidden, "Friend search requires an account")
		return
	}
	if err != nil {
		logging.Error("friend code lookup failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	card := profile.Card()
	writeJSON(w, http.StatusOK, LookupResponse{Found: true, Profile: &card, UserID: profile.UserID.String()})
}

type ContactFieldsPrefRequest struct {
	Collapsed bool `json:"collapsed"`
}

func (h *ProfileHandler) GetContactFieldsPref(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	collapsed, err := h.gw.ContactFieldsCollapsed(r.Context(), sess)
	if err != nil {
		logging.Error("getting contact fields pref failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, ContactFieldsPrefRequest{Collapsed: collapsed})
}

func (h *ProfileHandler) SetContactFieldsPref(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ContactFieldsPrefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.gw.SetContactFieldsCollapsed(r.Context(), sess, req.Collapsed); err != nil {
		logging.Error("saving contact fields pref failed", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, req)
}
