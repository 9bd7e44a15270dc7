package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/KOSOTSU-dev/tel-plus/internal/models"
)

func userRow(id uuid.UUID, email, username string) Row {
	now := time.Now()
	return rowFromValues(id, email, username, "hash", false, nil, now, now)
}

func TestUserService_Create_EmailExists(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(true)
		},
	}

	service := NewUserService(db)
	_, err := service.Create(context.Background(), models.CreateUserParams{Email: "a@b.c", PasswordHash: "hash"})
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestUserService_Create_RaceFallsBackToUniqueIndex(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "SELECT EXISTS") {
				return rowFromValues(false)
			}
			return fakeRow{scanFunc: func(dest ...any) error {
				return &pgconn.PgError{Code: "23505"}
			}}
		},
	}

	service := NewUserService(db)
	_, err := service.Create(context.Background(), models.CreateUserParams{Email: "a@b.c", PasswordHash: "hash"})
	if !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestUserService_Create_Success(t *testing.T) {
	id := uuid.New()
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "SELECT EXISTS") {
				return rowFromValues(false)
			}
			return userRow(id, args[0].(string), args[1].(string))
		},
	}

	service := NewUserService(db)
	user, err := service.Create(context.Background(), models.CreateUserParams{Email: "a@b.c", Username: "tanaka", PasswordHash: "hash"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != id || user.Email != "a@b.c" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.Username != "tanaka" {
		t.Fatalf("expected signup username stored, got %q", user.Username)
	}
	if user.EmailVerified {
		t.Fatal("new user should not be verified")
	}
}

func TestUserService_GetByID_NotFound(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	service := NewUserService(db)
	_, err := service.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_UpdatePassword_NotFound(t *testing.T) {
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return fakeCommandTag{rowsAffected: 0}, nil
		},
	}

	service := NewUserService(db)
	if err := service.UpdatePassword(context.Background(), uuid.New(), "newhash"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_UpdateEmail_ClearsVerifiedFlag(t *testing.T) {
	var gotSQL string
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			gotSQL = sql
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}

	service := NewUserService(db)
	if err := service.UpdateEmail(context.Background(), uuid.New(), "new@b.c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotSQL, "email_verified = false") {
		t.Fatalf("expected verified flag reset, got %q", gotSQL)
	}
}

func TestUserService_UpdateEmail_Conflict(t *testing.T) {
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return nil, &pgconn.PgError{Code: "23505"}
		},
	}

	service := NewUserService(db)
	if err := service.UpdateEmail(context.Background(), uuid.New(), "taken@b.c"); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}
