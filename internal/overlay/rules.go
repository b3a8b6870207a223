package overlay

import (
	"time"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// ApplyRules runs the overlay behavior rules over an incoming patch before
// persistence and returns the adjusted patch; the input is not modified.
// This isolates "what happens when you press Start/Stop" in one pure,
// independently testable place.
//
// Setting workingStatus to "active" always stamps lastWorkedAt, and stamps
// activeStartedAt too unless one already exists on the stored overlay or is
// supplied in the patch (a supplied value is normalized to a canonical
// instant, not overwritten). Setting workingStatus to "parked" stamps
// lastWorkedAt only. Everything else passes through unchanged.
func ApplyRules(existing *domain.Overlay, patch Fields, now time.Time) Fields {
	out := make(Fields, len(patch)+2)
	for k, v := range patch {
		out[k] = v
	}

	status, _ := patch[FieldWorkingStatus].(string)
	switch status {
	case domain.WorkingStatusActive:
		out[FieldLastWorkedAt] = now.UTC()
		if supplied, ok := patch[FieldActiveStartedAt]; ok {
			if ts := coerceTime(supplied); ts != nil {
				out[FieldActiveStartedAt] = ts.UTC()
			}
		} else if existing == nil || existing.ActiveStartedAt == nil {
			out[FieldActiveStartedAt] = now.UTC()
		}
	case domain.WorkingStatusParked:
		out[FieldLastWorkedAt] = now.UTC()
	}

	return out
}
