package service

import (
	"net/http"
	"time"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// Meta carries the build metadata returned alongside every derived view.
type Meta struct {
	GeneratedAt time.Time `json:"generated_at"`

	// Partial is set when any source (a provider or the overlay listing)
	// failed during the build and the result carries degraded data.
	Partial bool `json:"partial"`

	// ProviderErrors maps the failed source ("todo", "planner", "overlay")
	// to a short error description. Empty when the build was clean.
	ProviderErrors map[string]string `json:"provider_errors,omitempty"`

	TodoCount           int `json:"todo_count"`
	PlannerCount        int `json:"planner_count"`
	OverlayMatchedCount int `json:"overlay_matched_count"`
	OverlayOrphanCount  int `json:"overlay_orphan_count"`
}

// UnifiedResult is the cached unit for the unified task view.
type UnifiedResult struct {
	Tasks []domain.UnifiedTask `json:"tasks"`
	Meta  Meta                 `json:"meta"`
}

// ProviderCounts summarizes one provider's overlay rows for the user:
// how many exist in total and how many of those are pinned.
type ProviderCounts struct {
	Pinned int `json:"pinned"`
	Total  int `json:"total"`
}

// WhiteboardResult is the cached unit for the pinned whiteboard view.
type WhiteboardResult struct {
	Tasks []domain.UnifiedTask `json:"tasks"`
	Meta  Meta                 `json:"meta"`

	// Providers breaks down pinned vs total overlay rows per provider.
	Providers map[string]ProviderCounts `json:"providers"`

	// SyncStale is set when pinned overlays exist but none has been
	// synchronized within the staleness window.
	SyncStale bool `json:"sync_stale"`
}

// SyncCounts tallies what one synchronization run did.
type SyncCounts struct {
	// Scanned is how many pinned overlays the run considered.
	Scanned int `json:"scanned"`

	// Matched is how many pinned overlays were found live at their provider.
	Matched int `json:"matched"`

	// TitlesBackfilled is how many auto-generated titles were replaced with
	// the live provider title.
	TitlesBackfilled int `json:"titles_backfilled"`

	// UnpinnedMissing is how many overlays were marked missing and unpinned.
	UnpinnedMissing int `json:"unpinned_missing"`

	// Skipped is how many overlays were left untouched because their
	// provider's fetch failed in this run.
	Skipped int `json:"skipped"`

	// Failed is how many individual row patches errored.
	Failed int `json:"failed"`
}

// Sync run states reported to callers.
const (
	SyncStateCompleted      = "completed"
	SyncStateAlreadyRunning = "already_running"
	SyncStateCooldown       = "cooldown"
)

// SyncOutcome is the result of one SyncWhiteboard call. StatusCode follows
// the operation contract: 200 completed, 202 skipped (already running or
// cooling down), 207 completed with partial provider failure.
type SyncOutcome struct {
	StatusCode int    `json:"status_code"`
	State      string `json:"state"`

	// NextAllowedAt is set only on cooldown skips.
	NextAllowedAt *time.Time `json:"next_allowed_at,omitempty"`

	Counts         SyncCounts        `json:"counts"`
	ProviderErrors map[string]string `json:"provider_errors,omitempty"`
	FinishedAt     *time.Time        `json:"finished_at,omitempty"`
}

func skippedOutcome(state string, nextAllowedAt *time.Time) *SyncOutcome {
	return &SyncOutcome{
		StatusCode:    http.StatusAccepted,
		State:         state,
		NextAllowedAt: nextAllowedAt,
	}
}
