package domain

import (
	"time"
)

// Working status values the behavior rules special-case. The field itself is
// free-form at the store; anything else passes through untouched.
const (
	WorkingStatusActive = "active"
	WorkingStatusParked = "parked"
)

// ExternalState records the sync job's last verdict on whether the overlay's
// external task still exists at its provider.
type ExternalState string

const (
	// ExternalStateOK means the task was found live at its provider during
	// the last whiteboard synchronization.
	ExternalStateOK ExternalState = "ok"

	// ExternalStateMissing means the provider no longer returns the task.
	// The row is kept (never deleted) but force-unpinned.
	ExternalStateMissing ExternalState = "missing"
)

// Layout is the typed form of an overlay's whiteboard placement. It is
// persisted as an opaque JSON blob at the storage boundary; a nil Layout
// means "not placed on the board".
type Layout struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
	Z float64 `json:"z"`
}

// Category is the typed form of an overlay's category blob: a label plus the
// optional containing box on the whiteboard.
type Category struct {
	Label string `json:"label"`
	Box   string `json:"box,omitempty"`
}

// Overlay is the locally-owned annotation for one external task, scoped to
// exactly one user. At most one overlay exists per (UserUPN, TaskKey);
// the store enforces this by lookup-before-create. Overlays are created on
// the first overlay write for a task, mutated by later writes and by the
// sync job, and never deleted.
type Overlay struct {
	ItemID         string   `json:"item_id"`
	UserUPN        string   `json:"user_upn"`
	Provider       Provider `json:"provider"`
	ExternalTaskID string   `json:"external_task_id"`

	// Title is a cached copy of the external title and may drift; the sync
	// job backfills it when it still looks auto-generated.
	Title string `json:"title"`

	WorkingStatus   string     `json:"working_status,omitempty"`
	WorkType        string     `json:"work_type,omitempty"`
	Tags            []string   `json:"tags"`
	ActiveStartedAt *time.Time `json:"active_started_at,omitempty"`
	LastWorkedAt    *time.Time `json:"last_worked_at,omitempty"`
	Energy          string     `json:"energy,omitempty"`
	EffortMinutes   *float64   `json:"effort_minutes,omitempty"`
	Impact          string     `json:"impact,omitempty"`
	OverlayNotes    string     `json:"overlay_notes,omitempty"`
	Pinned          bool       `json:"pinned"`
	Layout          *Layout    `json:"layout,omitempty"`
	Category        *Category  `json:"category,omitempty"`

	// Fields below are assigned by the whiteboard sync job.
	ExternalState        ExternalState `json:"external_state,omitempty"`
	LastKnownDueDateUTC  *time.Time    `json:"last_known_due_date_utc,omitempty"`
	LastKnownCompleted   bool          `json:"last_known_completed"`
	LastExternalSyncAt   *time.Time    `json:"last_external_sync_at,omitempty"`
	LastOverlayUpdatedAt *time.Time    `json:"last_overlay_updated_at,omitempty"`
}

// Key returns the overlay's join key.
func (o *Overlay) Key() (TaskKey, error) {
	return NewTaskKey(o.Provider, o.ExternalTaskID)
}

// IsActive reports whether the overlay's working status is the canonical
// "active" value.
func (o *Overlay) IsActive() bool {
	return o.WorkingStatus == WorkingStatusActive
}

// TitleLooksAutoGenerated reports whether the overlay title was likely never
// set by a human: empty, equal to the raw external task ID, or shaped like an
// opaque provider ID (no whitespace and at least 28 characters). Such titles
// are eligible for backfill from the live provider title during sync.
func (o *Overlay) TitleLooksAutoGenerated() bool {
	title := o.Title
	if title == "" || title == o.ExternalTaskID {
		return true
	}
	if len(title) >= 28 && !containsWhitespace(title) {
		return true
	}
	return false
}

func containsWhitespace(s string) bool {
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return true
		}
	}
	return false
}
