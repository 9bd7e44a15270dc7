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

func profileRow(id, userID uuid.UUID, nickname, code string) Row {
	now := time.Now()
	return rowFromValues(
		id, userID, "", nickname, "", "", "",
		string(models.StatusAvailable), "", code, now, now,
	)
}

func TestValidateProfileParams(t *testing.T) {
	valid := models.ProfileParams{Nickname: "田中", Status: models.StatusAvailable}
	if err := ValidateProfileParams(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	empty := models.ProfileParams{Nickname: "   ", Status: models.StatusAvailable}
	if err := ValidateProfileParams(empty); !errors.Is(err, ErrInvalidNickname) {
		t.Fatalf("expected ErrInvalidNickname, got %v", err)
	}

	long := models.ProfileParams{Nickname: strings.Repeat("あ", 12), Status: models.StatusAvailable}
	if err := ValidateProfileParams(long); !errors.Is(err, ErrInvalidNickname) {
		t.Fatalf("expected ErrInvalidNickname for 12 runes, got %v", err)
	}

	eleven := models.ProfileParams{Nickname: strings.Repeat("あ", 11), Status: models.StatusEmergency}
	if err := ValidateProfileParams(eleven); err != nil {
		t.Fatalf("expected 11 runes to pass, got %v", err)
	}

	badStatus := models.ProfileParams{Nickname: "田中", Status: "busy"}
	if err := ValidateProfileParams(badStatus); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestProfileService_GetByUserID_NotFound(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}

	service := NewProfileService(db)
	_, err := service.GetByUserID(context.Background(), uuid.New())
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestProfileService_GetByFriendCode_NormalizesInput(t *testing.T) {
	var gotCode string
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			gotCode = args[0].(string)
			return profileRow(uuid.New(), uuid.New(), "田中", gotCode)
		},
	}

	service := NewProfileService(db)
	profile, err := service.GetByFriendCode(context.Background(), "  ab12cd ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotCode != "AB12CD" {
		t.Fatalf("expected query with AB12CD, got %q", gotCode)
	}
	if profile.Nickname != "田中" {
		t.Fatalf("unexpected nickname %q", profile.Nickname)
	}
}

func TestProfileService_Save_UpdatesExisting(t *testing.T) {
	userID := uuid.New()
	var gotSQL string
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			gotSQL = sql
			return profileRow(uuid.New(), userID, args[1].(string), "AAAAAA")
		},
	}

	service := NewProfileService(db)
	profile, err := service.Save(context.Background(), userID, models.ProfileParams{
		Nickname: "  田中  ",
		Status:   models.StatusUnavailable,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotSQL, "UPDATE profiles") {
		t.Fatalf("expected update, got %q", gotSQL)
	}
	// A blank username in the form must not wipe the stored one.
	if !strings.Contains(gotSQL, `NULLIF($1, '')`) {
		t.Fatalf("expected username to keep its value on blank input, got %q", gotSQL)
	}
	if profile.Nickname != "田中" {
		t.Fatalf("expected trimmed nickname, got %q", profile.Nickname)
	}
}

func TestProfileService_Save_CreatesOnFirstEdit(t *testing.T) {
	userID := uuid.New()
	var calls int
	var createdCode, createdUsername string
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			calls++
			if strings.Contains(sql, "UPDATE profiles") {
				return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
			}
			if strings.Contains(sql, "FROM users") {
				return rowFromValues("", "tanaka@example.com")
			}
			createdUsername = args[1].(string)
			createdCode = args[8].(string)
			return profileRow(uuid.New(), userID, args[2].(string), createdCode)
		},
	}

	service := NewProfileService(db)
	profile, err := service.Save(context.Background(), userID, models.ProfileParams{
		Nickname: "田中",
		Status:   models.StatusAvailable,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected update, metadata load, insert; got %d calls", calls)
	}
	if createdUsername != "tanaka" {
		t.Fatalf("expected username from email local part, got %q", createdUsername)
	}
	if len(createdCode) != 6 {
		t.Fatalf("expected 6-char friend code, got %q", createdCode)
	}
	for _, c := range createdCode {
		if !strings.ContainsRune(friendCodeAlphabet, c) {
			t.Fatalf("friend code %q contains %q outside alphabet", createdCode, c)
		}
	}
	if profile.FriendCode != createdCode {
		t.Fatalf("expected returned code %q, got %q", createdCode, profile.FriendCode)
	}
}

func TestProfileService_Save_CreateUsesSignupUsername(t *testing.T) {
	userID := uuid.New()
	var createdUsername string
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "UPDATE profiles") {
				return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
			}
			if strings.Contains(sql, "FROM users") {
				return rowFromValues("suzuki", "suzuki99@example.com")
			}
			createdUsername = args[1].(string)
			return profileRow(uuid.New(), userID, args[2].(string), args[8].(string))
		},
	}

	service := NewProfileService(db)
	if _, err := service.Save(context.Background(), userID, models.ProfileParams{
		Nickname: "鈴木",
		Status:   models.StatusAvailable,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createdUsername != "suzuki" {
		t.Fatalf("expected signup username to win over email, got %q", createdUsername)
	}
}

func TestProfileService_Save_CreateKeepsExplicitUsername(t *testing.T) {
	userID := uuid.New()
	var createdUsername string
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "UPDATE profiles") {
				return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
			}
			if strings.Contains(sql, "FROM users") {
				t.Fatal("explicit username needs no metadata lookup")
			}
			createdUsername = args[1].(string)
			return profileRow(uuid.New(), userID, args[2].(string), args[8].(string))
		},
	}

	service := NewProfileService(db)
	if _, err := service.Save(context.Background(), userID, models.ProfileParams{
		Username: "sato",
		Nickname: "佐藤",
		Status:   models.StatusAvailable,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if createdUsername != "sato" {
		t.Fatalf("expected explicit username, got %q", createdUsername)
	}
}

func TestProfileService_Save_RetriesOnCodeCollision(t *testing.T) {
	userID := uuid.New()
	inserts := 0
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "UPDATE profiles") {
				return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
			}
			if strings.Contains(sql, "FROM users") {
				return rowFromValues("", "tanaka@example.com")
			}
			inserts++
			if inserts == 1 {
				return fakeRow{scanFunc: func(dest ...any) error {
					return &pgconn.PgError{Code: "23505"}
				}}
			}
			return profileRow(uuid.New(), userID, "田中", args[8].(string))
		},
	}

	service := NewProfileService(db)
	if _, err := service.Save(context.Background(), userID, models.ProfileParams{
		Nickname: "田中",
		Status:   models.StatusAvailable,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inserts != 2 {
		t.Fatalf("expected retry after collision, got %d inserts", inserts)
	}
}

func TestProfileService_Save_GivesUpAfterRetries(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "UPDATE profiles") {
				return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
			}
			if strings.Contains(sql, "FROM users") {
				return rowFromValues("", "tanaka@example.com")
			}
			return fakeRow{scanFunc: func(dest ...any) error {
				return &pgconn.PgError{Code: "23505"}
			}}
		},
	}

	service := NewProfileService(db)
	_, err := service.Save(context.Background(), uuid.New(), models.ProfileParams{
		Nickname: "田中",
		Status:   models.StatusAvailable,
	})
	if !errors.Is(err, ErrFriendCodeExhausted) {
		t.Fatalf("expected ErrFriendCodeExhausted, got %v", err)
	}
}

func TestProfileService_Save_RejectsInvalidParams(t *testing.T) {
	service := NewProfileService(&fakeDB{})
	_, err := service.Save(context.Background(), uuid.New(), models.ProfileParams{
		Nickname: "",
		Status:   models.StatusAvailable,
	})
	if !errors.Is(err, ErrInvalidNickname) {
		t.Fatalf("expected ErrInvalidNickname, got %v", err)
	}
}

func TestGenerateFriendCode_Shape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		code, err := generateFriendCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != friendCodeLength {
			t.Fatalf("expected length %d, got %q", friendCodeLength, code)
		}
		if code != strings.ToUpper(code) {
			t.Fatalf("expected uppercase code, got %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected distinct codes across generations")
	}
}
