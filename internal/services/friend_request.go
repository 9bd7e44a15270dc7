package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/KOSOTSU-dev/tel-plus/internal/models"
)

var (
	ErrSelfRequest      = errors.New("cannot send a friend request to yourself")
	ErrAlreadyFriends   = errors.New("already friends")
	ErrAlreadyRequested = errors.New("friend request already sent")
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrRequestResolved  = errors.New("friend request already resolved")
)

type FriendRequestService struct {
	db       DB
	notifier ChangeNotifier
}

func NewFriendRequestService(db DB, notifier ChangeNotifier) *FriendRequestService {
	return &FriendRequestService{db: db, notifier: notifier}
}

// Send creates a pending request from one user to another. A request
// in any prior state blocks re-sending: resolved rows stay as history,
// and the duplicate guard below deliberately ignores status.
func (s *FriendRequestService) Send(ctx context.Context, fromUserID, toUserID uuid.UUID) (*models.FriendRequest, error) {
	if fromUserID == toUserID {
		return nil, ErrSelfRequest
	}

	// The request guard runs before the friendship guard: after an
	// accept both rows exist, and a re-send should surface the request
	// history, not the friendship.
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM friend_requests WHERE from_user_id = $1 AND to_user_id = $2)`,
		fromUserID, toUserID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking existing request: %w", err)
	}
	if exists {
		return nil, ErrAlreadyRequested
	}

	err = s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM friends WHERE user_id = $1 AND friend_id = $2)`,
		fromUserID, toUserID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking existing friendship: %w", err)
	}
	if exists {
		return nil, ErrAlreadyFriends
	}

	request := &models.FriendRequest{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO friend_requests (from_user_id, to_user_id, status)
		 VALUES ($1, $2, 'pending')
		 RETURNING id, from_user_id, to_user_id, status, created_at`,
		fromUserID, toUserID,
	).Scan(&request.ID, &request.FromUserID, &request.ToUserID, &request.Status, &request.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyRequested
		}
		if isForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("creating friend request: %w", err)
	}

	s.notifier.Notify(ctx, toUserID, EventRequestsChanged)
	return request, nil
}

// ListPending returns incoming pending requests joined with the
// sender's profile. An unmigrated schema degrades to an empty list.
func (s *FriendRequestService) ListPending(ctx context.Context, userID uuid.UUID) ([]models.PendingRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT r.id, r.from_user_id, r.to_user_id, r.status, r.created_at,
		        p.nickname, p.organization, p.phone, p.public_email, p.status, p.note, p.friend_code
		 FROM friend_requests r
		 JOIN profiles p ON p.user_id = r.from_user_id
		 WHERE r.to_user_id = $1 AND r.status = 'pending'
		 ORDER BY r.created_at DESC`,
		userID,
	)
	if err != nil {
		if isUndefinedTable(err) {
			return []models.PendingRequest{}, nil
		}
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}
	defer rows.Close()

	requests := []models.PendingRequest{}
	for rows.Next() {
		var r models.PendingRequest
		err := rows.Scan(
			&r.ID, &r.FromUserID, &r.ToUserID, &r.Status, &r.CreatedAt,
			&r.FromProfile.Nickname, &r.FromProfile.Organization, &r.FromProfile.Phone,
			&r.FromProfile.PublicEmail, &r.FromProfile.Status, &r.FromProfile.Note,
			&r.FromProfile.FriendCode,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning pending request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending requests: %w", err)
	}
	return requests, nil
}

// Accept resolves a pending request addressed to userID and creates
// the friend edge in both directions, each appended at the end of its
// owner's list. The whole resolution runs in one transaction holding
// row locks on both users, so a concurrent or repeated accept
// converges on both edges existing exactly once.
func (s *FriendRequestService) Accept(ctx context.Context, userID, requestID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	request := &models.FriendRequest{}
	err = tx.QueryRow(ctx,
		`SELECT id, from_user_id, to_user_id, status, created_at
		 FROM friend_requests WHERE id = $1 AND to_user_id = $2`,
		requestID, userID,
	).Scan(&request.ID, &request.FromUserID, &request.ToUserID, &request.Status, &request.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("loading friend request: %w", err)
	}

	if request.Status == models.RequestStatusRejected {
		return ErrRequestResolved
	}

	if err := lockUserPairForUpdate(ctx, tx, request.FromUserID, request.ToUserID); err != nil {
		return err
	}

	if request.Status == models.RequestStatusPending {
		_, err = tx.Exec(ctx,
			`UPDATE friend_requests SET status = 'accepted' WHERE id = $1 AND status = 'pending'`,
			requestID,
		)
		if err != nil {
			return fmt.Errorf("accepting friend request: %w", err)
		}
	}

	if err := insertEdge(ctx, tx, request.ToUserID, request.FromUserID); err != nil {
		return err
	}
	if err := insertEdge(ctx, tx, request.FromUserID, request.ToUserID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing accept: %w", err)
	}

	s.notifier.Notify(ctx, request.FromUserID, EventFriendsChanged)
	s.notifier.Notify(ctx, request.ToUserID, EventFriendsChanged)
	s.notifier.Notify(ctx, request.ToUserID, EventRequestsChanged)
	return nil
}

func insertEdge(ctx context.Context, q DBConn, ownerID, friendID uuid.UUID) error {
	_, err := q.Exec(ctx,
		`INSERT INTO friends (user_id, friend_id, pinned, sort_order, memo)
		 SELECT $1, $2, false, COALESCE(MAX(sort_order) + 1, 0), ''
		 FROM friends WHERE user_id = $1
		 ON CONFLICT (user_id, friend_id) DO NOTHING`,
		ownerID, friendID,
	)
	if err != nil {
		return fmt.Errorf("inserting friend edge: %w", err)
	}
	return nil
}

// Reject resolves a pending request without creating any edges.
func (s *FriendRequestService) Reject(ctx context.Context, userID, requestID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`UPDATE friend_requests SET status = 'rejected'
		 WHERE id = $1 AND to_user_id = $2 AND status = 'pending'`,
		requestID, userID,
	)
	if err != nil {
		return fmt.Errorf("rejecting friend request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotFound
	}

	s.notifier.Notify(ctx, userID, EventRequestsChanged)
	return nil
}
