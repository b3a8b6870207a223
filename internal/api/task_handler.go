package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/service"
)

// TaskService defines the orchestration operations the handlers expose.
type TaskService interface {
	GetUnifiedTasks(ctx context.Context, userUPN string) (*service.UnifiedResult, error)
	GetWhiteboardTasks(ctx context.Context, userUPN string) (*service.WhiteboardResult, error)
	SyncWhiteboard(ctx context.Context, userUPN string, force bool) (*service.SyncOutcome, error)
	LastSyncResult(userUPN string) (*service.SyncOutcome, bool)
	UpsertOverlay(ctx context.Context, userUPN, provider, externalTaskID string, patch map[string]any) (*domain.Overlay, error)
}

// Compile-time check that the concrete service satisfies the interface.
var _ TaskService = (*service.Service)(nil)

// TaskHandler serves the task, whiteboard and overlay routes.
type TaskHandler struct {
	tasks  TaskService
	logger *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks TaskService, logger *slog.Logger) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "task_handler")),
	}
}

// GetTasks handles GET /api/tasks.
func (h *TaskHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	upn, ok := shared.GetUserUPN(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Could not determine calling user")
		return
	}

	result, err := h.tasks.GetUnifiedTasks(r.Context(), upn)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// GetWhiteboard handles GET /api/whiteboard.
func (h *TaskHandler) GetWhiteboard(w http.ResponseWriter, r *http.Request) {
	upn, ok := shared.GetUserUPN(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Could not determine calling user")
		return
	}

	result, err := h.tasks.GetWhiteboardTasks(r.Context(), upn)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// SyncWhiteboard handles POST /api/whiteboard/sync. The response status code
// carries the run verdict: 200 completed, 202 skipped, 207 partial.
func (h *TaskHandler) SyncWhiteboard(w http.ResponseWriter, r *http.Request) {
	upn, ok := shared.GetUserUPN(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Could not determine calling user")
		return
	}

	force := r.URL.Query().Get("force") == "true"
	outcome, err := h.tasks.SyncWhiteboard(r.Context(), upn, force)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Info("whiteboard sync requested",
		slog.String("state", outcome.State),
		slog.Bool("force", force),
		slog.Int("status", outcome.StatusCode))

	shared.RespondWithJSON(w, r, outcome.StatusCode, outcome)
}

// GetSyncStatus handles GET /api/whiteboard/sync. It reports the most
// recent completed run for the caller, 404 when no run has finished yet.
func (h *TaskHandler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	upn, ok := shared.GetUserUPN(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Could not determine calling user")
		return
	}

	outcome, ok := h.tasks.LastSyncResult(upn)
	if !ok {
		shared.RespondWithError(w, r, http.StatusNotFound, "No completed synchronization run for this user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, outcome)
}

// OverlayResponse wraps the overlay returned from an upsert.
type OverlayResponse struct {
	Overlay *domain.Overlay `json:"overlay"`
}

// UpsertOverlay handles POST /api/tasks/{provider}/{taskID}/overlay. The
// request body is the patch object itself; non-object bodies are rejected
// before any network call.
func (h *TaskHandler) UpsertOverlay(w http.ResponseWriter, r *http.Request) {
	upn, ok := shared.GetUserUPN(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Could not determine calling user")
		return
	}

	providerName := chi.URLParam(r, "provider")
	taskID := chi.URLParam(r, "taskID")

	var patch map[string]any
	if err := shared.DecodeJSON(r, &patch); err != nil || patch == nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}

	overlay, err := h.tasks.UpsertOverlay(r.Context(), upn, providerName, taskID, patch)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, OverlayResponse{Overlay: overlay})
}
