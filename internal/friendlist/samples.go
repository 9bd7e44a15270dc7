package friendlist

import (
	"strings"
	"time"

	"github.com/KOSOTSU-dev/tel-plus/internal/models"
)

const samplePrefix = "sample"

// IsSampleID reports whether an entry id belongs to a built-in sample
// contact rather than a stored friend.
func IsSampleID(id string) bool {
	return strings.HasPrefix(id, samplePrefix)
}

// SampleOverride is the locally persisted state of one sample contact.
// Only the list-edge fields can change; the card itself is fixed.
type SampleOverride struct {
	ID     string `json:"id"`
	Pinned bool   `json:"pinned"`
	Order  int    `json:"order"`
	Memo   string `json:"memo,omitempty"`
}

// DefaultSamples returns the three built-in contacts shown to users
// with no real friends. They exist only for display and are never
// written to the directory.
func DefaultSamples(now time.Time) []models.FriendEntry {
	return []models.FriendEntry{
		{
			ID:        "sample1",
			Pinned:    true,
			Order:     0,
			CreatedAt: now,
			Card: models.ContactCard{
				Nickname:     "田中",
				Organization: "サンプル",
				Status:       models.StatusAvailable,
				Note:         "30分ご対応可能",
				FriendCode:   "TANAKA01",
			},
		},
		{
			ID:        "sample2",
			Pinned:    false,
			Order:     1,
			CreatedAt: now,
			Card: models.ContactCard{
				Nickname:     "佐藤",
				Organization: "サンプル",
				Status:       models.StatusUnavailable,
				Note:         "会議中",
				FriendCode:   "SATO01",
			},
		},
		{
			ID:        "sample3",
			Pinned:    false,
			Order:     2,
			CreatedAt: now,
			Card: models.ContactCard{
				Nickname:     "鈴木",
				Organization: "サンプル",
				Status:       models.StatusEmergency,
				Note:         "緊急のみ",
				FriendCode:   "SUZUKI01",
			},
		},
	}
}

// ApplyOverrides merges persisted sample state onto the defaults.
// Overrides for unknown ids are ignored.
func ApplyOverrides(samples []models.FriendEntry, overrides []SampleOverride) []models.FriendEntry {
	byID := make(map[string]SampleOverride, len(overrides))
	for _, o := range overrides {
		byID[o.ID] = o
	}

	merged := make([]models.FriendEntry, len(samples))
	for i, s := range samples {
		if o, ok := byID[s.ID]; ok {
			s.Pinned = o.Pinned
			s.Order = o.Order
			s.Memo = o.Memo
		}
		merged[i] = s
	}
	return merged
}

// OverridesFrom captures the persistable state of the sample entries
// in a list.
func OverridesFrom(entries []models.FriendEntry) []SampleOverride {
	overrides := []SampleOverride{}
	for _, e := range entries {
		if IsSampleID(e.ID) {
			overrides = append(overrides, SampleOverride{
				ID:     e.ID,
				Pinned: e.Pinned,
				Order:  e.Order,
				Memo:   e.Memo,
			})
		}
	}
	return overrides
}
