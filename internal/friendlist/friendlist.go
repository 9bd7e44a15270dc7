// Package friendlist holds the pure display logic for the friend list:
// filtering, pinned/unpinned partitioning and drag-reorder renumbering.
// It has no storage dependencies; the gateway decides where the result
// is persisted.
package friendlist

import (
	"errors"
	"sort"
	"strings"

	"github.com/KOSOTSU-dev/tel-plus/internal/models"
)

var (
	ErrEntryNotFound = errors.New("entry not found in list")
	ErrEntryPinned   = errors.New("pinned entries cannot be reordered")
)

// Filter keeps entries whose nickname or localized status label
// contains the query, case-insensitively. A blank query keeps
// everything. Filtering happens before partitioning, matching the
// search box sitting above both sections of the list.
func Filter(entries []models.FriendEntry, query string) []models.FriendEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return entries
	}

	filtered := make([]models.FriendEntry, 0, len(entries))
	for _, e := range entries {
		nickname := strings.ToLower(e.Card.Nickname)
		label := strings.ToLower(e.Card.Status.Label())
		if strings.Contains(nickname, query) || strings.Contains(label, query) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Partition splits entries into the pinned and unpinned sections, each
// sorted by stored order. The sort is stable so equal orders keep
// their incoming relative position.
func Partition(entries []models.FriendEntry) (pinned, unpinned []models.FriendEntry) {
	for _, e := range entries {
		if e.Pinned {
			pinned = append(pinned, e)
		} else {
			unpinned = append(unpinned, e)
		}
	}
	sort.SliceStable(pinned, func(i, j int) bool { return pinned[i].Order < pinned[j].Order })
	sort.SliceStable(unpinned, func(i, j int) bool { return unpinned[i].Order < unpinned[j].Order })
	return pinned, unpinned
}

// Sort returns the full display order: pinned section first, then
// unpinned, each by stored order.
func Sort(entries []models.FriendEntry) []models.FriendEntry {
	pinned, unpinned := Partition(entries)
	return append(pinned, unpinned...)
}

// Reorder moves the entry with movedID to toIndex within the unpinned
// section and renumbers that whole section densely from zero. Pinned
// entries are returned untouched, keeping their stored orders. The
// result is the full list in display order; every unpinned entry may
// have a new Order and all of them need persisting.
func Reorder(entries []models.FriendEntry, movedID string, toIndex int) ([]models.FriendEntry, error) {
	pinned, unpinned := Partition(entries)

	from := -1
	for i, e := range unpinned {
		if e.ID == movedID {
			from = i
			break
		}
	}
	if from == -1 {
		for _, e := range pinned {
			if e.ID == movedID {
				return nil, ErrEntryPinned
			}
		}
		return nil, ErrEntryNotFound
	}

	if toIndex < 0 {
		toIndex = 0
	}
	if toIndex >= len(unpinned) {
		toIndex = len(unpinned) - 1
	}

	moved := unpinned[from]
	unpinned = append(unpinned[:from], unpinned[from+1:]...)
	unpinned = append(unpinned[:toIndex], append([]models.FriendEntry{moved}, unpinned[toIndex:]...)...)

	for i := range unpinned {
		unpinned[i].Order = i
	}

	return append(pinned, unpinned...), nil
}

// Renumber assigns dense orders within each section without changing
// the current sequence. Used after deletions leave gaps.
func Renumber(entries []models.FriendEntry) []models.FriendEntry {
	pinned, unpinned := Partition(entries)
	for i := range pinned {
		pinned[i].Order = i
	}
	for i := range unpinned {
		unpinned[i].Order = i
	}
	return append(pinned, unpinned...)
}
