// Package main implements the entry point for the taskboard API server,
// which aggregates tasks from the external providers, overlays them with
// per-user whiteboard metadata and serves the derived views.
package main

import (
	"context"
	"log"
	"os"
)

func main() {
	app, err := newApplication()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	router := app.setupRouter()
	if err := app.startHTTPServer(context.Background(), router); err != nil {
		app.logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
