package unify

import (
	"sort"
	"strings"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// Sort orders unified tasks for display, in place. The order is total and
// deterministic:
//
//  1. pinned before unpinned
//  2. working status "active" before everything else
//  3. due date ascending, tasks without a due date last
//  4. title, case-insensitive
//  5. external task ID as the final tiebreak
//
// Sorting is stable and idempotent; callers may re-sort freely.
func Sort(tasks []domain.UnifiedTask) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return less(&tasks[i], &tasks[j])
	})
}

func less(a, b *domain.UnifiedTask) bool {
	if pa, pb := pinned(a), pinned(b); pa != pb {
		return pa
	}
	if aa, ab := active(a), active(b); aa != ab {
		return aa
	}

	ad, bd := a.Task.DueDateTimeUTC, b.Task.DueDateTimeUTC
	switch {
	case ad != nil && bd == nil:
		return true
	case ad == nil && bd != nil:
		return false
	case ad != nil && bd != nil && !ad.Equal(*bd):
		return ad.Before(*bd)
	}

	at, bt := strings.ToLower(a.Task.Title), strings.ToLower(b.Task.Title)
	if at != bt {
		return at < bt
	}

	return a.Task.ExternalTaskID < b.Task.ExternalTaskID
}

func pinned(t *domain.UnifiedTask) bool {
	return t.Overlay != nil && t.Overlay.Pinned
}

func active(t *domain.UnifiedTask) bool {
	return t.Overlay != nil && t.Overlay.IsActive()
}
