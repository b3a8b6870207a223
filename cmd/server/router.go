package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/taskboard-api/internal/api"
	apiMiddleware "github.com/phrazzld/taskboard-api/internal/api/middleware"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	userContext := apiMiddleware.NewUserContextMiddleware()

	r.Route("/api", func(r chi.Router) {
		r.Use(userContext.Resolve)

		r.Get("/tasks", taskHandler.GetTasks)
		r.Post("/tasks/{provider}/{taskID}/overlay", taskHandler.UpsertOverlay)

		r.Get("/whiteboard", taskHandler.GetWhiteboard)
		r.Post("/whiteboard/sync", taskHandler.SyncWhiteboard)
		r.Get("/whiteboard/sync", taskHandler.GetSyncStatus)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
