package domain

import (
	"strings"
	"time"
)

// Provider identifies one of the two upstream task providers.
type Provider string

const (
	// ProviderTodo is the to-do list provider (container-per-list model).
	ProviderTodo Provider = "todo"

	// ProviderPlanner is the planner provider (plan/bucket model).
	ProviderPlanner Provider = "planner"
)

// KnownProviders lists every provider this system aggregates, in a fixed
// order used for deterministic per-provider reporting.
var KnownProviders = []Provider{ProviderTodo, ProviderPlanner}

// ParseProvider validates a raw provider string and returns the typed value.
// Returns ErrUnknownProvider for anything other than the two known providers.
func ParseProvider(raw string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(raw))) {
	case ProviderTodo:
		return ProviderTodo, nil
	case ProviderPlanner:
		return ProviderPlanner, nil
	default:
		return "", ErrUnknownProvider
	}
}

// TaskKey is the stable join key between an external task and its overlay:
// "<provider>|<externalTaskId>". It is a total function of its two inputs and
// the sole key used when merging provider data with overlay rows.
type TaskKey string

// NewTaskKey builds a TaskKey from a provider and an external task ID.
// Construction fails for an unknown provider or a blank task ID.
func NewTaskKey(provider Provider, externalTaskID string) (TaskKey, error) {
	if provider != ProviderTodo && provider != ProviderPlanner {
		return "", ErrUnknownProvider
	}
	if strings.TrimSpace(externalTaskID) == "" {
		return "", ErrEmptyTaskID
	}
	return TaskKey(string(provider) + "|" + externalTaskID), nil
}

// ExternalTask is one task as reported by one provider. It is owned by the
// provider and read-only here; instances live only for the duration of a
// fetch/merge cycle.
type ExternalTask struct {
	Provider             Provider   `json:"provider"`
	ExternalTaskID       string     `json:"external_task_id"`
	ExternalContainerID  string     `json:"external_container_id"`
	Title                string     `json:"title"`
	DueDateTimeUTC       *time.Time `json:"due_date_time_utc,omitempty"`
	IsCompleted          bool       `json:"is_completed"`
	CompletedDateTimeUTC *time.Time `json:"completed_date_time_utc,omitempty"`
}

// Key returns the task's join key. Fails if the task carries an unknown
// provider or an empty ID; adapters filter such tasks out before they reach
// the merge stage.
func (t *ExternalTask) Key() (TaskKey, error) {
	return NewTaskKey(t.Provider, t.ExternalTaskID)
}

// UnifiedTask is an external task with its overlay attached, if one exists
// for the task's key. Unified tasks are cache-resident only and never
// persisted.
type UnifiedTask struct {
	Task    ExternalTask `json:"task"`
	Overlay *Overlay     `json:"overlay,omitempty"`
}

// NormalizeUPN canonicalizes a user principal name for use as a cache and
// scope key: trimmed and lower-cased.
func NormalizeUPN(upn string) string {
	return strings.ToLower(strings.TrimSpace(upn))
}
