package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/KOSOTSU-dev/tel-plus/internal/logging"
	"github.com/KOSOTSU-dev/tel-plus/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const (
	sessionKeyPrefix = "session:"
	verifyKeyPrefix  = "verify:"
	sessionTTL       = 30 * 24 * time.Hour
	verifyTokenTTL   = 24 * time.Hour
)

type AuthService struct {
	users *UserService
	redis RedisClient
	email *EmailService
}

func NewAuthService(users *UserService, redisClient RedisClient, email *EmailService) *AuthService {
	return &AuthService{users: users, redis: redisClient, email: email}
}

// Register creates an account. The optional username is signup
// metadata only; it becomes the profile's initial display name when
// the profile is first created.
func (s *AuthService) Register(ctx context.Context, email, password, username string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") || len(email) < 3 {
		return nil, ErrInvalidEmail
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.users.Create(ctx, models.CreateUserParams{
		Email:        email,
		Username:     strings.TrimSpace(username),
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, err
	}

	// Verification delivery failing should not undo registration; the
	// user can request a resend.
	if err := s.sendVerification(ctx, user); err != nil {
		logging.Warn("sending verification email failed", map[string]interface{}{
			"user_id": user.ID.String(),
			"error":   err.Error(),
		})
	}

	return user, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) error {
	token, err := generateToken()
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, verifyKeyPrefix+token, user.ID.String(), verifyTokenTTL); err != nil {
		return fmt.Errorf("storing verification token: %w", err)
	}
	return s.email.SendVerificationEmail(ctx, user.Email, token)
}

func (s *AuthService) ResendVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return nil
	}
	return s.sendVerification(ctx, user)
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	raw, err := s.redis.Get(ctx, verifyKeyPrefix+token)
	if errors.Is(err, redis.Nil) {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("looking up verification token: %w", err)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return ErrInvalidToken
	}

	if err := s.users.MarkEmailVerified(ctx, userID); err != nil {
		return err
	}
	return s.redis.Del(ctx, verifyKeyPrefix+token)
}

// Login checks credentials and opens a session. It returns the same
// error for an unknown email and a wrong password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	sessionID, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, sessionID, nil
}

func (s *AuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	sessionID, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, sessionKeyPrefix+sessionID, userID.String(), sessionTTL); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return sessionID, nil
}

func (s *AuthService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.redis.Del(ctx, sessionKeyPrefix+sessionID)
}

func (s *AuthService) UserFromSession(ctx context.Context, sessionID string) (*models.User, error) {
	raw, err := s.redis.Get(ctx, sessionKeyPrefix+sessionID)
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	return s.users.GetByID(ctx, userID)
}

// ChangePassword re-authenticates with the current password before
// accepting the new one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}
	if len(newPassword) < 8 {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

// ChangeEmail re-authenticates with the current password, swaps the
// address and sends a fresh verification mail to it.
func (s *AuthService) ChangeEmail(ctx context.Context, userID uuid.UUID, currentPassword, newEmail string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrInvalidCredentials
	}

	newEmail = strings.TrimSpace(strings.ToLower(newEmail))
	if !strings.Contains(newEmail, "@") || len(newEmail) < 3 {
		return ErrInvalidEmail
	}

	if err := s.users.UpdateEmail(ctx, userID, newEmail); err != nil {
		return err
	}

	user.Email = newEmail
	if err := s.sendVerification(ctx, user); err != nil {
		logging.Warn("sending verification email failed", map[string]interface{}{
			"user_id": userID.String(),
			"error":   err.Error(),
		})
	}
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
