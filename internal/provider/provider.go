// Package provider contains the adapters that fetch and normalize external
// task lists from the two upstream providers into the common ExternalTask
// shape. Adapters run independently; failure of one never fails the other,
// and the orchestration service decides how to degrade.
package provider

import (
	"context"
	"strings"
	"time"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

// Adapter fetches every open-or-completed task a provider knows about for
// the authenticated user, normalized and filtered to tasks with a non-empty
// external ID.
type Adapter interface {
	Name() domain.Provider
	FetchTasks(ctx context.Context) ([]domain.ExternalTask, error)
}

// dateTimeZone is the provider wire shape for zoned timestamps.
type dateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// utc converts a provider timestamp to a UTC instant. The provider emits
// second or sub-second precision without an offset; the timeZone field is
// effectively always UTC for this tenant, so anything else is treated as UTC
// as well.
func (d *dateTimeZone) utc() *time.Time {
	if d == nil || strings.TrimSpace(d.DateTime) == "" {
		return nil
	}
	return parseInstant(d.DateTime)
}

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

func parseInstant(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range instantLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			utc := ts.UTC()
			return &utc
		}
	}
	return nil
}
