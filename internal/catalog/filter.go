package catalog

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/ibrbtv/backend/internal/models"
)

// Upcoming returns videos scheduled after now plus videos acknowledged in this
// session. Acknowledged videos that are already available come first, then
// the rest by soonest release. The live video is never listed.
func Upcoming(videos []models.Video, acknowledged map[string]struct{}, now time.Time) []UpcomingEntry {
	entries := make([]UpcomingEntry, 0)
	for _, v := range videos {
		if v.IsLive {
			continue
		}
		_, acked := acknowledged[v.ID]
		future := v.IsScheduledAfter(now)
		if !future && !acked {
			continue
		}

		entry := UpcomingEntry{Video: v, Available: !future}
		if future {
			remaining, label, _ := Countdown(*v.ScheduledAt, now)
			entry.StartsIn = remaining
			entry.StartsInSeconds = int64(remaining / time.Second)
			entry.Countdown = label
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Available != b.Available {
			return a.Available
		}
		return scheduledBefore(a.Video, b.Video)
	})
	return entries
}

func scheduledBefore(a, b models.Video) bool {
	switch {
	case a.ScheduledAt == nil && b.ScheduledAt == nil:
		return false
	case a.ScheduledAt == nil:
		return true
	case b.ScheduledAt == nil:
		return false
	}
	return a.ScheduledAt.Before(*b.ScheduledAt)
}

// Filter returns the browsable catalog: videos that are neither live nor in
// the upcoming set, narrowed by category and title search. With no category
// and no search the result is shuffled deterministically by seed and id set;
// otherwise store order is kept.
func Filter(videos []models.Video, upcoming map[string]struct{}, category, search string, seed uint64) []models.Video {
	if category == "" {
		category = AllCategories
	}
	search = strings.TrimSpace(search)

	out := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		if v.IsLive {
			continue
		}
		if _, ok := upcoming[v.ID]; ok {
			continue
		}
		if category != AllCategories && v.Category != category {
			continue
		}
		if !matchesSearch(v.Title, search) {
			continue
		}
		out = append(out, v)
	}

	if category == AllCategories && search == "" {
		Shuffle(out, seed)
	}
	return out
}

func matchesSearch(title, search string) bool {
	search = strings.TrimSpace(search)
	if search == "" {
		return true
	}
	fold := cases.Fold()
	return strings.Contains(fold.String(title), fold.String(search))
}
