// Package gateway routes every data operation to the right backing
// store for the caller's session: Postgres for account holders, the
// embedded guest store for guests, and the guest store's override keys
// for the built-in sample contacts in either mode. Sample entries are
// never part of a Postgres write.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KOSOTSU-dev/tel-plus/internal/friendlist"
	"github.com/KOSOTSU-dev/tel-plus/internal/guest"
	"github.com/KOSOTSU-dev/tel-plus/internal/models"
	"github.com/KOSOTSU-dev/tel-plus/internal/services"
)

var (
	ErrRemoteOnly = errors.New("operation requires an account")
	ErrGuestOnly  = errors.New("operation is only available in guest mode")
)

type Mode string

const (
	ModeRemote Mode = "remote"
	ModeGuest  Mode = "guest"
)

// Session carries the caller's mode explicitly. Every gateway call
// takes one; there is no ambient mode flag to fall out of sync.
type Session struct {
	Mode    Mode
	UserID  uuid.UUID
	GuestID string
}

func RemoteSession(userID uuid.UUID) Session {
	return Session{Mode: ModeRemote, UserID: userID}
}

func GuestSession(guestID string) Session {
	return Session{Mode: ModeGuest, GuestID: guestID}
}

type Gateway struct {
	profiles *services.ProfileService
	friends  *services.FriendService
	requests *services.FriendRequestService
	store    *guest.Store
}

func New(profiles *services.ProfileService, friends *services.FriendService, requests *services.FriendRequestService, store *guest.Store) *Gateway {
	return &Gateway{profiles: profiles, friends: friends, requests: requests, store: store}
}

func (g *Gateway) sampleScope(sess Session) guest.Scope {
	if sess.Mode == ModeGuest {
		return guest.GuestScope(sess.GuestID)
	}
	return guest.UserScope(sess.UserID)
}

// StartGuest opens a fresh guest session seeded with the default
// profile and the three sample contacts.
func (g *Gateway) StartGuest(ctx context.Context) (string, error) {
	sessionID, err := guest.NewSessionID()
	if err != nil {
		return "", err
	}
	if _, _, err := g.store.Seed(sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}

// EndGuest wipes the session's keys. There is no way back afterwards.
func (g *Gateway) EndGuest(ctx context.Context, sess Session) error {
	if sess.Mode != ModeGuest {
		return ErrGuestOnly
	}
	return g.store.Wipe(sess.GuestID)
}

// ProfileView is the mode-independent shape of the caller's own card.
type ProfileView struct {
	models.ContactCard
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (g *Gateway) GetProfile(ctx context.Context, sess Session) (*ProfileView, error) {
	if sess.Mode == ModeGuest {
		profile, ok, err := g.store.Profile(sess.GuestID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, services.ErrProfileNotFound
		}
		return &ProfileView{ContactCard: profile.ContactCard, CreatedAt: profile.CreatedAt, UpdatedAt: profile.UpdatedAt}, nil
	}

	profile, err := g.profiles.GetByUserID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return &ProfileView{ContactCard: profile.Card(), CreatedAt: profile.CreatedAt, UpdatedAt: profile.UpdatedAt}, nil
}

// SaveProfile updates the caller's card, creating it on first edit.
// Guest saves keep the seeded friend code.
func (g *Gateway) SaveProfile(ctx context.Context, sess Session, params models.ProfileParams) (*ProfileView, error) {
	if sess.Mode == ModeGuest {
		if err := services.ValidateProfileParams(params); err != nil {
			return nil, err
		}

		existing, ok, err := g.store.Profile(sess.GuestID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, services.ErrProfileNotFound
		}

		now := time.Now().UTC()
		existing.Nickname = params.Nickname
		existing.Organization = params.Organization
		existing.Phone = params.Phone
		existing.PublicEmail = params.PublicEmail
		existing.Status = params.Status
		existing.Note = params.Note
		existing.UpdatedAt = now
		if err := g.store.SetProfile(sess.GuestID, existing); err != nil {
			return nil, err
		}
		return &ProfileView{ContactCard: existing.ContactCard, CreatedAt: existing.CreatedAt, UpdatedAt: existing.UpdatedAt}, nil
	}

	profile, err := g.profiles.Save(ctx, sess.UserID, params)
	if err != nil {
		return nil, err
	}
	return &ProfileView{ContactCard: profile.Card(), CreatedAt: profile.CreatedAt, UpdatedAt: profile.UpdatedAt}, nil
}

// ListFriends returns the display list: filtered, pinned section
// first. A remote user with no real friends sees the sample contacts,
// with their locally persisted overrides applied.
func (g *Gateway) ListFriends(ctx context.Context, sess Session, query string) ([]models.FriendEntry, error) {
	entries, err := g.loadEntries(ctx, sess)
	if err != nil {
		return nil, err
	}
	return friendlist.Sort(friendlist.Filter(entries, query)), nil
}

// loadEntries returns the unfiltered, unsorted list backing every
// list-shaped operation for this session.
func (g *Gateway) loadEntries(ctx context.Context, sess Session) ([]models.FriendEntry, error) {
	if sess.Mode == ModeGuest {
		friends, _, err := g.store.Friends(sess.GuestID)
		if err != nil {
			return nil, err
		}
		entries := make([]models.FriendEntry, 0, len(friends))
		for i := range friends {
			entries = append(entries, friends[i].Entry())
		}
		return entries, nil
	}

	entries, err := g.friends.List(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return entries, nil
	}

	overrides, err := g.store.SampleOverrides(guest.UserScope(sess.UserID))
	if err != nil {
		return nil, err
	}
	return friendlist.ApplyOverrides(friendlist.DefaultSamples(time.Now().UTC()), overrides), nil
}

// AddGuestFriend appends a hand-entered contact to a guest's list.
func (g *Gateway) AddGuestFriend(ctx context.Context, sess Session, card models.ContactCard) (*models.GuestFriend, error) {
	if sess.Mode != ModeGuest {
		return nil, ErrGuestOnly
	}
	if err := services.ValidateProfileParams(models.ProfileParams{Nickname: card.Nickname, Status: card.Status}); err != nil {
		return nil, err
	}

	friends, _, err := g.store.Friends(sess.GuestID)
	if err != nil {
		return nil, err
	}

	friend := models.GuestFriend{
		ID:           uuid.NewString(),
		Nickname:     card.Nickname,
		Organization: card.Organization,
		Phone:        card.Phone,
		PublicEmail:  card.PublicEmail,
		Status:       card.Status,
		Note:         card.Note,
		FriendCode:   card.FriendCode,
		Order:        len(friends),
		CreatedAt:    time.Now().UTC(),
	}
	friends = append(friends, friend)
	if err := g.store.SetFriends(sess.GuestID, friends); err != nil {
		return nil, err
	}
	return &friend, nil
}

// RemoveFriend removes one entry from the caller's list. Removing a
// sample contact in remote mode succeeds without persisting anything:
// samples are display-only there and come back on the next empty-list
// load.
func (g *Gateway) RemoveFriend(ctx context.Context, sess Session, id string) error {
	if sess.Mode == ModeGuest {
		return g.mutateGuestFriends(sess, id, func(friends []models.GuestFriend, i int) []models.GuestFriend {
			return append(friends[:i], friends[i+1:]...)
		})
	}

	if friendlist.IsSampleID(id) {
		return nil
	}
	rowID, err := uuid.Parse(id)
	if err != nil {
		return services.ErrFriendNotFound
	}
	return g.friends.Remove(ctx, sess.UserID, rowID)
}

// SetPinned flips one entry's pin flag; the stored order is untouched.
func (g *Gateway) SetPinned(ctx context.Context, sess Session, id string, pinned bool) error {
	if sess.Mode == ModeGuest {
		return g.mutateGuestFriends(sess, id, func(friends []models.GuestFriend, i int) []models.GuestFriend {
			friends[i].Pinned = pinned
			return friends
		})
	}

	if friendlist.IsSampleID(id) {
		return g.mutateSample(ctx, sess, id, func(e *models.FriendEntry) {
			e.Pinned = pinned
		})
	}
	rowID, err := uuid.Parse(id)
	if err != nil {
		return services.ErrFriendNotFound
	}
	return g.friends.SetPinned(ctx, sess.UserID, rowID, pinned)
}

func (g *Gateway) UpdateMemo(ctx context.Context, sess Session, id, memo string) error {
	if sess.Mode == ModeGuest {
		return g.mutateGuestFriends(sess, id, func(friends []models.GuestFriend, i int) []models.GuestFriend {
			friends[i].Memo = memo
			return friends
		})
	}

	if friendlist.IsSampleID(id) {
		return g.mutateSample(ctx, sess, id, func(e *models.FriendEntry) {
			e.Memo = memo
		})
	}
	rowID, err := uuid.Parse(id)
	if err != nil {
		return services.ErrFriendNotFound
	}
	return g.friends.UpdateMemo(ctx, sess.UserID, rowID, memo)
}

func (g *Gateway) mutateGuestFriends(sess Session, id string, mutate func([]models.GuestFriend, int) []models.GuestFriend) error {
	friends, _, err := g.store.Friends(sess.GuestID)
	if err != nil {
		return err
	}
	for i := range friends {
		if friends[i].ID == id {
			return g.store.SetFriends(sess.GuestID, mutate(friends, i))
		}
	}
	return services.ErrFriendNotFound
}

// mutateSample edits one sample contact's list state and persists the
// whole override set for the user.
func (g *Gateway) mutateSample(ctx context.Context, sess Session, id string, mutate func(*models.FriendEntry)) error {
	overrides, err := g.store.SampleOverrides(guest.UserScope(sess.UserID))
	if err != nil {
		return err
	}
	samples := friendlist.ApplyOverrides(friendlist.DefaultSamples(time.Now().UTC()), overrides)

	found := false
	for i := range samples {
		if samples[i].ID == id {
			mutate(&samples[i])
			found = true
			break
		}
	}
	if !found {
		return services.ErrFriendNotFound
	}
	return g.store.SetSampleOverrides(guest.UserScope(sess.UserID), friendlist.OverridesFrom(samples))
}

// ReorderOutcome reports a best-effort reorder. Entries is the new
// display list; Failed names the rows whose order did not persist. A
// non-empty Failed means the client should reload rather than trust
// its local copy.
type ReorderOutcome struct {
	Entries []models.FriendEntry `json:"friends"`
	Failed  []string             `json:"failed,omitempty"`
}

// Reorder moves one unpinned entry to a new position and renumbers the
// unpinned section densely. Sample rows persist to the override cache,
// real rows to Postgres as a per-row batch; the two never mix in one
// write.
func (g *Gateway) Reorder(ctx context.Context, sess Session, movedID string, toIndex int) (*ReorderOutcome, error) {
	entries, err := g.loadEntries(ctx, sess)
	if err != nil {
		return nil, err
	}

	reordered, err := friendlist.Reorder(entries, movedID, toIndex)
	if err != nil {
		return nil, err
	}

	if sess.Mode == ModeGuest {
		friends, _, err := g.store.Friends(sess.GuestID)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]models.FriendEntry, len(reordered))
		for _, e := range reordered {
			byID[e.ID] = e
		}
		for i := range friends {
			if e, ok := byID[friends[i].ID]; ok {
				friends[i].Order = e.Order
			}
		}
		if err := g.store.SetFriends(sess.GuestID, friends); err != nil {
			return nil, err
		}
		return &ReorderOutcome{Entries: reordered}, nil
	}

	var items []services.ReorderItem
	hasSamples := false
	for _, e := range reordered {
		if friendlist.IsSampleID(e.ID) {
			hasSamples = true
			continue
		}
		if e.Pinned {
			continue
		}
		rowID, err := uuid.Parse(e.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected friend id %q", e.ID)
		}
		items = append(items, services.ReorderItem{ID: rowID, Order: e.Order})
	}

	if hasSamples {
		if err := g.store.SetSampleOverrides(guest.UserScope(sess.UserID), friendlist.OverridesFrom(reordered)); err != nil {
			return nil, err
		}
	}

	outcome := &ReorderOutcome{Entries: reordered}
	if len(items) > 0 {
		for _, result := range g.friends.Reorder(ctx, sess.UserID, items) {
			if result.Err != nil {
				outcome.Failed = append(outcome.Failed, result.ID.String())
			}
		}
	}
	return outcome, nil
}

// Friend request operations pass through to the directory and are
// meaningless without an account.

func (g *Gateway) SendRequest(ctx context.Context, sess Session, toUserID uuid.UUID) (*models.FriendRequest, error) {
	if sess.Mode != ModeRemote {
		return nil, ErrRemoteOnly
	}
	return g.requests.Send(ctx, sess.UserID, toUserID)
}

func (g *Gateway) ListPendingRequests(ctx context.Context, sess Session) ([]models.PendingRequest, error) {
	if sess.Mode != ModeRemote {
		return nil, ErrRemoteOnly
	}
	return g.requests.ListPending(ctx, sess.UserID)
}

func (g *Gateway) AcceptRequest(ctx context.Context, sess Session, requestID uuid.UUID) error {
	if sess.Mode != ModeRemote {
		return ErrRemoteOnly
	}
	return g.requests.Accept(ctx, sess.UserID, requestID)
}

func (g *Gateway) RejectRequest(ctx context.Context, sess Session, requestID uuid.UUID) error {
	if sess.Mode != ModeRemote {
		return ErrRemoteOnly
	}
	return g.requests.Reject(ctx, sess.UserID, requestID)
}

// LookupByCode resolves a friend code to a profile. Guests have no
// directory to search.
func (g *Gateway) LookupByCode(ctx context.Context, sess Session, code string) (*models.Profile, error) {
	if sess.Mode != ModeRemote {
		return nil, ErrRemoteOnly
	}
	return g.profiles.GetByFriendCode(ctx, code)
}

// ContactFieldsCollapsed reads the profile-form preference for either
// mode; it always lives in the embedded store.
func (g *Gateway) ContactFieldsCollapsed(ctx context.Context, sess Session) (bool, error) {
	return g.store.ContactFieldsCollapsed(g.sampleScope(sess))
}

func (g *Gateway) SetContactFieldsCollapsed(ctx context.Context, sess Session, collapsed bool) error {
	return g.store.SetContactFieldsCollapsed(g.sampleScope(sess), collapsed)
}
