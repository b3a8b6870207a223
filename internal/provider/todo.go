package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/remote"
)

// TodoAdapter fetches tasks from the to-do provider: one listing of task
// containers, then one task listing per container, fetched with bounded
// parallelism.
type TodoAdapter struct {
	client      *remote.Client
	baseURL     string
	concurrency int
	logger      *slog.Logger
}

// NewTodoAdapter creates the todo adapter. concurrency bounds how many
// container task listings run at once; values below 1 fall back to 4.
func NewTodoAdapter(client *remote.Client, baseURL string, concurrency int, logger *slog.Logger) *TodoAdapter {
	if concurrency < 1 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TodoAdapter{
		client:      client,
		baseURL:     baseURL,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "todo_adapter")),
	}
}

// Name implements Adapter.
func (a *TodoAdapter) Name() domain.Provider {
	return domain.ProviderTodo
}

type todoList struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type todoTask struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Status            string        `json:"status"`
	DueDateTime       *dateTimeZone `json:"dueDateTime"`
	CompletedDateTime *dateTimeZone `json:"completedDateTime"`
}

// FetchTasks implements Adapter. A failure fetching any container fails the
// whole adapter call; partial container results are not reported as success.
func (a *TodoAdapter) FetchTasks(ctx context.Context) ([]domain.ExternalTask, error) {
	rawLists, err := a.client.GetAllPages(ctx, a.baseURL+"/me/todo/lists")
	if err != nil {
		return nil, fmt.Errorf("failed to list todo containers: %w", err)
	}

	lists := make([]todoList, 0, len(rawLists))
	for _, raw := range rawLists {
		var l todoList
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("failed to decode todo container: %w", err)
		}
		if l.ID != "" {
			lists = append(lists, l)
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, a.concurrency)
		tasks    []domain.ExternalTask
		firstErr error
	)

	for _, list := range lists {
		wg.Add(1)
		go func(list todoList) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			containerTasks, err := a.fetchContainer(ctx, list)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			tasks = append(tasks, containerTasks...)
		}(list)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	a.logger.Debug("fetched todo tasks",
		slog.Int("containers", len(lists)),
		slog.Int("tasks", len(tasks)))
	return tasks, nil
}

func (a *TodoAdapter) fetchContainer(ctx context.Context, list todoList) ([]domain.ExternalTask, error) {
	url := fmt.Sprintf("%s/me/todo/lists/%s/tasks", a.baseURL, list.ID)
	rawTasks, err := a.client.GetAllPages(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for container %s: %w", list.ID, err)
	}

	tasks := make([]domain.ExternalTask, 0, len(rawTasks))
	for _, raw := range rawTasks {
		var tt todoTask
		if err := json.Unmarshal(raw, &tt); err != nil {
			return nil, fmt.Errorf("failed to decode todo task in container %s: %w", list.ID, err)
		}
		if tt.ID == "" {
			continue
		}

		completedAt := tt.CompletedDateTime.utc()
		tasks = append(tasks, domain.ExternalTask{
			Provider:             domain.ProviderTodo,
			ExternalTaskID:       tt.ID,
			ExternalContainerID:  list.ID,
			Title:                tt.Title,
			DueDateTimeUTC:       tt.DueDateTime.utc(),
			IsCompleted:          tt.Status == "completed" || completedAt != nil,
			CompletedDateTimeUTC: completedAt,
		})
	}
	return tasks, nil
}
