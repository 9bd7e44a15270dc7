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

func TestFriendRequestService_Send_RejectsSelf(t *testing.T) {
	service := NewFriendRequestService(&fakeDB{}, &recordNotifier{})
	id := uuid.New()
	_, err := service.Send(context.Background(), id, id)
	if !errors.Is(err, ErrSelfRequest) {
		t.Fatalf("expected ErrSelfRequest, got %v", err)
	}
}

func TestFriendRequestService_Send_AlreadyFriends(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "FROM friend_requests") {
				return rowFromValues(false)
			}
			if strings.Contains(sql, "FROM friends") {
				return rowFromValues(true)
			}
			t.Fatalf("unexpected query %q", sql)
			return nil
		},
	}

	service := NewFriendRequestService(db, &recordNotifier{})
	_, err := service.Send(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrAlreadyFriends) {
		t.Fatalf("expected ErrAlreadyFriends, got %v", err)
	}
}

func TestFriendRequestService_Send_DuplicateBlockedRegardlessOfStatus(t *testing.T) {
	var requestGuardSQL string
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "FROM friend_requests") {
				requestGuardSQL = sql
				return rowFromValues(true)
			}
			t.Fatalf("unexpected query %q", sql)
			return nil
		},
	}

	service := NewFriendRequestService(db, &recordNotifier{})
	_, err := service.Send(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrAlreadyRequested) {
		t.Fatalf("expected ErrAlreadyRequested, got %v", err)
	}
	// A resolved request still blocks a new one; the guard must not
	// narrow by status.
	if strings.Contains(requestGuardSQL, "status") {
		t.Fatalf("duplicate guard must ignore status: %q", requestGuardSQL)
	}
}

func TestFriendRequestService_Send_RequestHistoryWinsOverFriendship(t *testing.T) {
	// After an accept, both the resolved request and the friendship
	// rows exist. A re-send reports the request, so the guards have to
	// run in that order.
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return rowFromValues(true)
		},
	}

	service := NewFriendRequestService(db, &recordNotifier{})
	_, err := service.Send(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrAlreadyRequested) {
		t.Fatalf("expected ErrAlreadyRequested, got %v", err)
	}
}

func TestFriendRequestService_Send_CreatesAndNotifiesRecipient(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	requestID := uuid.New()
	notifier := &recordNotifier{}

	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "SELECT EXISTS") {
				return rowFromValues(false)
			}
			return rowFromValues(requestID, from, to, "pending", time.Now())
		},
	}

	service := NewFriendRequestService(db, notifier)
	request, err := service.Send(context.Background(), from, to)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if request.ID != requestID || request.Status != models.RequestStatusPending {
		t.Fatalf("unexpected request: %+v", request)
	}
	if notifier.count(to, EventRequestsChanged) != 1 {
		t.Fatalf("expected recipient notification, got %v", notifier.events)
	}
	if notifier.count(from, EventRequestsChanged) != 0 {
		t.Fatalf("sender should not be notified, got %v", notifier.events)
	}
}

func TestFriendRequestService_Send_InsertRaceMapsToAlreadyRequested(t *testing.T) {
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

	service := NewFriendRequestService(db, &recordNotifier{})
	_, err := service.Send(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrAlreadyRequested) {
		t.Fatalf("expected ErrAlreadyRequested, got %v", err)
	}
}

func TestFriendRequestService_Send_UnknownRecipient(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "SELECT EXISTS") {
				return rowFromValues(false)
			}
			return fakeRow{scanFunc: func(dest ...any) error {
				return &pgconn.PgError{Code: "23503"}
			}}
		},
	}

	service := NewFriendRequestService(db, &recordNotifier{})
	_, err := service.Send(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestFriendRequestService_ListPending_ScansSenderProfile(t *testing.T) {
	userID := uuid.New()
	requestID := uuid.New()
	from := uuid.New()
	now := time.Now()

	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			if !strings.Contains(sql, "r.status = 'pending'") {
				t.Fatalf("expected pending filter, got %q", sql)
			}
			return &fakeRows{rows: [][]any{
				{requestID, from, userID, "pending", now, "田中", "", "", "", "available", "", "AAAAAA"},
			}}, nil
		},
	}

	service := NewFriendRequestService(db, &recordNotifier{})
	requests, err := service.ListPending(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	r := requests[0]
	if r.FromUserID != from || r.FromProfile.Nickname != "田中" {
		t.Fatalf("unexpected request: %+v", r)
	}
}

func TestFriendRequestService_ListPending_EmptyOnUnmigratedSchema(t *testing.T) {
	db := &fakeDB{
		QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
			return nil, &pgconn.PgError{Code: "42P01"}
		},
	}

	service := NewFriendRequestService(db, &recordNotifier{})
	requests, err := service.ListPending(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("expected empty list, got %d", len(requests))
	}
}

// acceptTx scripts one transaction for Accept tests: the request load,
// the pair locks, the status update and both edge inserts.
func acceptTx(t *testing.T, requestID, from, to uuid.UUID, status string, state *acceptState) *fakeTx {
	t.Helper()
	return &fakeTx{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if strings.Contains(sql, "FROM friend_requests") {
				if status == "" {
					return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
				}
				return rowFromValues(requestID, from, to, status, time.Now())
			}
			if strings.Contains(sql, "FOR UPDATE") {
				state.locks = append(state.locks, args[0].(uuid.UUID))
				return rowFromValues(args[0])
			}
			t.Fatalf("unexpected QueryRow %q", sql)
			return nil
		},
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			if strings.Contains(sql, "UPDATE friend_requests") {
				state.statusUpdates++
				return fakeCommandTag{rowsAffected: 1}, nil
			}
			if strings.Contains(sql, "INSERT INTO friends") {
				if !strings.Contains(sql, "ON CONFLICT (user_id, friend_id) DO NOTHING") {
					t.Errorf("edge insert must be idempotent: %q", sql)
				}
				state.edges = append(state.edges, [2]uuid.UUID{args[0].(uuid.UUID), args[1].(uuid.UUID)})
				return fakeCommandTag{rowsAffected: 1}, nil
			}
			t.Fatalf("unexpected Exec %q", sql)
			return nil, nil
		},
		CommitFunc: func(ctx context.Context) error {
			state.committed = true
			return nil
		},
	}
}

type acceptState struct {
	locks         []uuid.UUID
	statusUpdates int
	edges         [][2]uuid.UUID
	committed     bool
}

func TestFriendRequestService_Accept_CreatesBothEdges(t *testing.T) {
	requestID := uuid.New()
	from := uuid.New()
	to := uuid.New()
	notifier := &recordNotifier{}
	state := &acceptState{}

	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return acceptTx(t, requestID, from, to, "pending", state), nil
		},
	}

	service := NewFriendRequestService(db, notifier)
	if err := service.Accept(context.Background(), to, requestID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !state.committed {
		t.Fatal("expected transaction commit")
	}
	if state.statusUpdates != 1 {
		t.Fatalf("expected one status update, got %d", state.statusUpdates)
	}
	if len(state.locks) != 2 {
		t.Fatalf("expected both users locked, got %v", state.locks)
	}
	if len(state.edges) != 2 {
		t.Fatalf("expected two edges, got %v", state.edges)
	}
	if state.edges[0] != [2]uuid.UUID{to, from} || state.edges[1] != [2]uuid.UUID{from, to} {
		t.Fatalf("unexpected edge directions: %v", state.edges)
	}
	if notifier.count(from, EventFriendsChanged) != 1 || notifier.count(to, EventFriendsChanged) != 1 {
		t.Fatalf("expected both sides notified, got %v", notifier.events)
	}
	if notifier.count(to, EventRequestsChanged) != 1 {
		t.Fatalf("expected recipient requests_changed, got %v", notifier.events)
	}
}

func TestFriendRequestService_Accept_RetryIsIdempotent(t *testing.T) {
	requestID := uuid.New()
	from := uuid.New()
	to := uuid.New()
	state := &acceptState{}

	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return acceptTx(t, requestID, from, to, "accepted", state), nil
		},
	}

	service := NewFriendRequestService(db, &recordNotifier{})
	if err := service.Accept(context.Background(), to, requestID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.statusUpdates != 0 {
		t.Fatal("accepted request needs no status update")
	}
	if len(state.edges) != 2 {
		t.Fatalf("retry must still ensure both edges, got %v", state.edges)
	}
}

func TestFriendRequestService_Accept_NotFound(t *testing.T) {
	state := &acceptState{}
	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return acceptTx(t, uuid.Nil, uuid.Nil, uuid.Nil, "", state), nil
		},
	}

	service := NewFriendRequestService(db, &recordNotifier{})
	err := service.Accept(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
	if state.committed {
		t.Fatal("nothing to commit for a missing request")
	}
}

func TestFriendRequestService_Accept_RejectedIsResolved(t *testing.T) {
	requestID := uuid.New()
	state := &acceptState{}
	db := &fakeDB{
		BeginFunc: func(ctx context.Context) (Tx, error) {
			return acceptTx(t, requestID, uuid.New(), uuid.New(), "rejected", state), nil
		},
	}

	service := NewFriendRequestService(db, &recordNotifier{})
	err := service.Accept(context.Background(), uuid.New(), requestID)
	if !errors.Is(err, ErrRequestResolved) {
		t.Fatalf("expected ErrRequestResolved, got %v", err)
	}
	if len(state.edges) != 0 {
		t.Fatalf("rejected request must not create edges, got %v", state.edges)
	}
}

func TestFriendRequestService_Reject(t *testing.T) {
	userID := uuid.New()
	notifier := &recordNotifier{}
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			if !strings.Contains(sql, "status = 'pending'") {
				t.Fatalf("reject must only touch pending rows: %q", sql)
			}
			return fakeCommandTag{rowsAffected: 1}, nil
		},
	}

	service := NewFriendRequestService(db, notifier)
	if err := service.Reject(context.Background(), userID, uuid.New()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notifier.count(userID, EventRequestsChanged) != 1 {
		t.Fatalf("expected requests_changed, got %v", notifier.events)
	}
}

func TestFriendRequestService_Reject_NotFound(t *testing.T) {
	db := &fakeDB{
		ExecFunc: func(ctx context.Context, sql string, args ...any) (CommandTag, error) {
			return fakeCommandTag{rowsAffected: 0}, nil
		},
	}

	service := NewFriendRequestService(db, &recordNotifier{})
	if err := service.Reject(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}
