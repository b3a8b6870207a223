package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/remote"
)

// PlannerAdapter fetches tasks from the planner provider via one paginated
// listing across all plans the user belongs to.
type PlannerAdapter struct {
	client  *remote.Client
	baseURL string
	logger  *slog.Logger
}

// NewPlannerAdapter creates the planner adapter.
func NewPlannerAdapter(client *remote.Client, baseURL string, logger *slog.Logger) *PlannerAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlannerAdapter{
		client:  client,
		baseURL: baseURL,
		logger:  logger.With(slog.String("component", "planner_adapter")),
	}
}

// Name implements Adapter.
func (a *PlannerAdapter) Name() domain.Provider {
	return domain.ProviderPlanner
}

type plannerTask struct {
	ID                string `json:"id"`
	PlanID            string `json:"planId"`
	Title             string `json:"title"`
	PercentComplete   int    `json:"percentComplete"`
	DueDateTime       string `json:"dueDateTime"`
	CompletedDateTime string `json:"completedDateTime"`
}

// FetchTasks implements Adapter.
func (a *PlannerAdapter) FetchTasks(ctx context.Context) ([]domain.ExternalTask, error) {
	rawTasks, err := a.client.GetAllPages(ctx, a.baseURL+"/me/planner/tasks")
	if err != nil {
		return nil, fmt.Errorf("failed to list planner tasks: %w", err)
	}

	tasks := make([]domain.ExternalTask, 0, len(rawTasks))
	for _, raw := range rawTasks {
		var pt plannerTask
		if err := json.Unmarshal(raw, &pt); err != nil {
			return nil, fmt.Errorf("failed to decode planner task: %w", err)
		}
		if pt.ID == "" {
			continue
		}

		completedAt := parseInstant(pt.CompletedDateTime)
		tasks = append(tasks, domain.ExternalTask{
			Provider:             domain.ProviderPlanner,
			ExternalTaskID:       pt.ID,
			ExternalContainerID:  pt.PlanID,
			Title:                pt.Title,
			DueDateTimeUTC:       parseInstant(pt.DueDateTime),
			IsCompleted:          pt.PercentComplete >= 100 || completedAt != nil,
			CompletedDateTimeUTC: completedAt,
		})
	}

	a.logger.Debug("fetched planner tasks", slog.Int("tasks", len(tasks)))
	return tasks, nil
}
