package guest

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/KOSOTSU-dev/tel-plus/internal/friendlist"
	"github.com/KOSOTSU-dev/tel-plus/internal/models"
)

// Scope namespaces keys by their owner: a guest session or a
// registered user. Sample-contact overrides exist in both worlds,
// guest profile and friends only in the guest one.
type Scope string

func GuestScope(sessionID string) Scope {
	return Scope("guest:" + sessionID)
}

func UserScope(userID uuid.UUID) Scope {
	return Scope("user:" + userID.String())
}

func (sc Scope) key(part string) string {
	return string(sc) + ":" + part
}

const (
	keyProfile   = "profile"
	keyFriends   = "friends"
	keySamples   = "samples"
	keyCollapsed = "contact_fields_collapsed"
)

// Profile returns the guest's own card. ok is false for a session
// that has not been seeded.
func (s *Store) Profile(sessionID string) (*models.GuestProfile, bool, error) {
	profile := &models.GuestProfile{}
	ok, err := s.getJSON(GuestScope(sessionID).key(keyProfile), profile)
	if err != nil || !ok {
		return nil, false, err
	}
	return profile, true, nil
}

func (s *Store) SetProfile(sessionID string, profile *models.GuestProfile) error {
	return s.setJSON(GuestScope(sessionID).key(keyProfile), profile)
}

func (s *Store) Friends(sessionID string) ([]models.GuestFriend, bool, error) {
	var friends []models.GuestFriend
	ok, err := s.getJSON(GuestScope(sessionID).key(keyFriends), &friends)
	if err != nil || !ok {
		return nil, false, err
	}
	return friends, true, nil
}

func (s *Store) SetFriends(sessionID string, friends []models.GuestFriend) error {
	return s.setJSON(GuestScope(sessionID).key(keyFriends), friends)
}

func (s *Store) SampleOverrides(scope Scope) ([]friendlist.SampleOverride, error) {
	var overrides []friendlist.SampleOverride
	if _, err := s.getJSON(scope.key(keySamples), &overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}

func (s *Store) SetSampleOverrides(scope Scope, overrides []friendlist.SampleOverride) error {
	return s.setJSON(scope.key(keySamples), overrides)
}

// ContactFieldsCollapsed returns the profile-form UI preference;
// missing means expanded.
func (s *Store) ContactFieldsCollapsed(scope Scope) (bool, error) {
	var collapsed bool
	if _, err := s.getJSON(scope.key(keyCollapsed), &collapsed); err != nil {
		return false, err
	}
	return collapsed, nil
}

func (s *Store) SetContactFieldsCollapsed(scope Scope, collapsed bool) error {
	return s.setJSON(scope.key(keyCollapsed), collapsed)
}

// Seed initializes a fresh guest session with a default profile and
// the three sample contacts as regular guest friends.
func (s *Store) Seed(sessionID string) (*models.GuestProfile, []models.GuestFriend, error) {
	now := time.Now().UTC()

	code, err := generateFriendCode()
	if err != nil {
		return nil, nil, err
	}

	profile := &models.GuestProfile{
		ContactCard: models.ContactCard{
			Nickname:   "ゲスト",
			Status:     models.StatusAvailable,
			Note:       "30分ご対応可能",
			FriendCode: code,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.SetProfile(sessionID, profile); err != nil {
		return nil, nil, err
	}

	friends := make([]models.GuestFriend, 0, 3)
	for _, sample := range friendlist.DefaultSamples(now) {
		friends = append(friends, models.GuestFriend{
			ID:           sample.ID,
			Nickname:     sample.Card.Nickname,
			Organization: sample.Card.Organization,
			Status:       sample.Card.Status,
			Note:         sample.Card.Note,
			FriendCode:   sample.Card.FriendCode,
			Pinned:       sample.Pinned,
			Order:        sample.Order,
			CreatedAt:    now,
		})
	}
	if err := s.SetFriends(sessionID, friends); err != nil {
		return nil, nil, err
	}

	return profile, friends, nil
}

// Wipe destroys every key of a guest session. Guest logout is
// destructive: the session cannot be resumed afterwards.
func (s *Store) Wipe(sessionID string) error {
	return s.deletePrefix(string(GuestScope(sessionID)) + ":")
}

// NewSessionID mints the opaque id handed to a guest in a cookie.
func NewSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating guest session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

const friendCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func generateFriendCode() (string, error) {
	code := make([]byte, 6)
	max := big.NewInt(int64(len(friendCodeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating friend code: %w", err)
		}
		code[i] = friendCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}
