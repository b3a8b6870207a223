// Package unify implements the pure merge and ordering rules for unified
// tasks. Both operations are deterministic functions of their inputs: fetch
// completion order never affects the output.
package unify

import (
	"github.com/phrazzld/taskboard-api/internal/domain"
)

// Result carries the merged task list plus the informational overlay counts
// surfaced in response metadata.
type Result struct {
	Tasks []domain.UnifiedTask

	// OverlayMatchedCount is the number of overlays that attached to an
	// external task in this merge.
	OverlayMatchedCount int

	// OverlayOrphanCount is the number of overlays whose key matched no
	// external task. Orphans are counted, never dropped or deleted; the sync
	// job is what eventually marks their rows missing.
	OverlayOrphanCount int
}

// Merge joins external tasks with overlay rows by task key. Each task gets
// the overlay sharing its key attached, if one exists. Tasks that cannot
// produce a key are passed through without an overlay; adapters filter those
// out upstream, so this is purely defensive against malformed input.
func Merge(tasks []domain.ExternalTask, byKey map[domain.TaskKey]*domain.Overlay) Result {
	unified := make([]domain.UnifiedTask, 0, len(tasks))
	matched := make(map[domain.TaskKey]struct{}, len(byKey))

	for _, task := range tasks {
		ut := domain.UnifiedTask{Task: task}
		if key, err := task.Key(); err == nil {
			if ov, ok := byKey[key]; ok {
				ut.Overlay = ov
				matched[key] = struct{}{}
			}
		}
		unified = append(unified, ut)
	}

	return Result{
		Tasks:               unified,
		OverlayMatchedCount: len(matched),
		OverlayOrphanCount:  len(byKey) - len(matched),
	}
}
