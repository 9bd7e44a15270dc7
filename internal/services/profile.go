package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/KOSOTSU-dev/tel-plus/internal/models"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrInvalidNickname     = errors.New("nickname must be 1-11 characters")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrFriendCodeExhausted = errors.New("could not allocate a unique friend code")
)

const (
	friendCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	friendCodeLength   = 6
	friendCodeRetries  = 3
	nicknameMaxLength  = 11
)

const profileColumns = `id, user_id, username, nickname, organization, phone, public_email, status, note, friend_code, created_at, updated_at`

// ValidateProfileParams applies the shared edit rules. The gateway
// runs it for guest saves too, so both modes enforce the same limits.
func ValidateProfileParams(params models.ProfileParams) error {
	nickname := strings.TrimSpace(params.Nickname)
	if n := utf8.RuneCountInString(nickname); n < 1 || n > nicknameMaxLength {
		return ErrInvalidNickname
	}
	if !params.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

type ProfileService struct {
	db DBConn
}

func NewProfileService(db DBConn) *ProfileService {
	return &ProfileService{db: db}
}

func (s *ProfileService) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile := &models.Profile{}
	err := scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`,
		userID,
	), profile)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile by user id: %w", err)
	}
	return profile, nil
}

// GetByFriendCode looks up a profile by its share code. Input is
// upper-cased before matching so codes can be typed in either case.
func (s *ProfileService) GetByFriendCode(ctx context.Context, code string) (*models.Profile, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	profile := &models.Profile{}
	err := scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE friend_code = $1`,
		code,
	), profile)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile by friend code: %w", err)
	}
	return profile, nil
}

// Save updates the caller's profile, creating it on first edit. A new
// profile gets a fresh friend code, regenerated up to three times if
// it collides with an existing one.
func (s *ProfileService) Save(ctx context.Context, userID uuid.UUID, params models.ProfileParams) (*models.Profile, error) {
	params.Nickname = strings.TrimSpace(params.Nickname)
	if err := ValidateProfileParams(params); err != nil {
		return nil, err
	}

	profile := &models.Profile{}
	err := scanProfile(s.db.QueryRow(ctx,
		`UPDATE profiles
		 SET username = COALESCE(NULLIF($1, ''), username), nickname = $2,
		     organization = $3, phone = $4, public_email = $5,
		     status = $6, note = $7, updated_at = NOW()
		 WHERE user_id = $8
		 RETURNING `+profileColumns,
		strings.TrimSpace(params.Username), params.Nickname, params.Organization,
		params.Phone, params.PublicEmail, params.Status, params.Note, userID,
	), profile)

	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	return s.create(ctx, userID, params)
}

func (s *ProfileService) create(ctx context.Context, userID uuid.UUID, params models.ProfileParams) (*models.Profile, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		derived, err := s.defaultUsername(ctx, userID)
		if err != nil {
			return nil, err
		}
		username = derived
	}

	for attempt := 0; attempt < friendCodeRetries; attempt++ {
		code, err := generateFriendCode()
		if err != nil {
			return nil, err
		}

		profile := &models.Profile{}
		err = scanProfile(s.db.QueryRow(ctx,
			`INSERT INTO profiles (user_id, username, nickname, organization, phone, public_email, status, note, friend_code)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING `+profileColumns,
			userID, username, params.Nickname, params.Organization, params.Phone,
			params.PublicEmail, params.Status, params.Note, code,
		), profile)

		if err == nil {
			return profile, nil
		}
		if isUniqueViolation(err) {
			continue
		}
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	return nil, ErrFriendCodeExhausted
}

// defaultUsername derives a new profile's display name from signup
// metadata, falling back to the local part of the account email.
func (s *ProfileService) defaultUsername(ctx context.Context, userID uuid.UUID) (string, error) {
	var username, email string
	err := s.db.QueryRow(ctx,
		`SELECT username, email FROM users WHERE id = $1`,
		userID,
	).Scan(&username, &email)
	if err != nil {
		return "", fmt.Errorf("loading signup metadata: %w", err)
	}
	if username != "" {
		return username, nil
	}
	return strings.SplitN(email, "@", 2)[0], nil
}

func scanProfile(row Row, p *models.Profile) error {
	return row.Scan(
		&p.ID, &p.UserID, &p.Username, &p.Nickname, &p.Organization,
		&p.Phone, &p.PublicEmail, &p.Status, &p.Note, &p.FriendCode,
		&p.CreatedAt, &p.UpdatedAt,
	)
}

func generateFriendCode() (string, error) {
	code := make([]byte, friendCodeLength)
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
