package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/KOSOTSU-dev/tel-plus/internal/models"
)

var (
	ErrFriendNotFound = errors.New("friend not found")
)

type FriendService struct {
	db       DBConn
	notifier ChangeNotifier
}

func NewFriendService(db DBConn, notifier ChangeNotifier) *FriendService {
	return &FriendService{db: db, notifier: notifier}
}

// List returns the caller's friends joined with each counterpart's
// profile, pinned entries first, then by list order. An unmigrated
// schema degrades to an empty list.
func (s *FriendService) List(ctx context.Context, userID uuid.UUID) ([]models.FriendEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.id, f.pinned, f.sort_order, f.memo, f.created_at,
		        p.nickname, p.organization, p.phone, p.public_email, p.status, p.note, p.friend_code
		 FROM friends f
		 JOIN profiles p ON p.user_id = f.friend_id
		 WHERE f.user_id = $1
		 ORDER BY f.pinned DESC, f.sort_order ASC`,
		userID,
	)
	if err != nil {
		if isUndefinedTable(err) {
			return []models.FriendEntry{}, nil
		}
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	entries := []models.FriendEntry{}
	for rows.Next() {
		var e models.FriendEntry
		err := rows.Scan(
			&e.ID, &e.Pinned, &e.Order, &e.Memo, &e.CreatedAt,
			&e.Card.Nickname, &e.Card.Organization, &e.Card.Phone,
			&e.Card.PublicEmail, &e.Card.Status, &e.Card.Note, &e.Card.FriendCode,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friends: %w", err)
	}
	return entries, nil
}

// Remove deletes one direction of a friendship. The counterpart keeps
// their own edge.
func (s *FriendService) Remove(ctx context.Context, userID, friendRowID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM friends WHERE id = $1 AND user_id = $2`,
		friendRowID, userID,
	)
	if err != nil {
		return fmt.Errorf("removing friend: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFriendNotFound
	}

	s.notifier.Notify(ctx, userID, EventFriendsChanged)
	return nil
}

// SetPinned flips the pin flag only. The stored order is left alone so
// unpinning drops the entry back into its old slot.
func (s *FriendService) SetPinned(ctx context.Context, userID, friendRowID uuid.UUID, pinned bool) error {
	result, err := s.db.Exec(ctx,
		`UPDATE friends SET pinned = $1 WHERE id = $2 AND user_id = $3`,
		pinned, friendRowID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating pin: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFriendNotFound
	}

	s.notifier.Notify(ctx, userID, EventFriendsChanged)
	return nil
}

func (s *FriendService) UpdateMemo(ctx context.Context, userID, friendRowID uuid.UUID, memo string) error {
	result, err := s.db.Exec(ctx,
		`UPDATE friends SET memo = $1 WHERE id = $2 AND user_id = $3`,
		memo, friendRowID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating memo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFriendNotFound
	}

	s.notifier.Notify(ctx, userID, EventFriendsChanged)
	return nil
}

type ReorderItem struct {
	ID    uuid.UUID
	Order int
}

type ReorderResult struct {
	ID  uuid.UUID
	Err error
}

// Reorder persists new orders for unpinned entries as a best-effort
// concurrent batch: every item is attempted, each result is reported
// individually, and nothing is rolled back. On any failure the caller
// is expected to reload the list rather than trust its local copy.
func (s *FriendService) Reorder(ctx context.Context, userID uuid.UUID, items []ReorderItem) []ReorderResult {
	results := make([]ReorderResult, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item ReorderItem) {
			defer wg.Done()
			results[i] = ReorderResult{ID: item.ID, Err: s.reorderOne(ctx, userID, item)}
		}(i, item)
	}
	wg.Wait()

	s.notifier.Notify(ctx, userID, EventFriendsChanged)
	return results
}

func (s *FriendService) reorderOne(ctx context.Context, userID uuid.UUID, item ReorderItem) error {
	result, err := s.db.Exec(ctx,
		`UPDATE friends SET sort_order = $1 WHERE id = $2 AND user_id = $3 AND pinned = false`,
		item.Order, item.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFriendNotFound
	}
	return nil
}
