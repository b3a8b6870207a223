package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/phrazzld/taskboard-api/internal/config"
	"github.com/phrazzld/taskboard-api/internal/overlay"
	"github.com/phrazzld/taskboard-api/internal/platform/logger"
	"github.com/phrazzld/taskboard-api/internal/platform/remote"
	"github.com/phrazzld/taskboard-api/internal/provider"
	"github.com/phrazzld/taskboard-api/internal/service"
)

// application holds the wired dependencies of a running server.
type application struct {
	config      *config.Config
	logger      *slog.Logger
	taskService *service.Service
}

// newApplication loads configuration, sets up logging and wires every
// component: the client-credentials token source, the shared remote client,
// the provider adapters, the overlay store and the orchestration service.
func newApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel))

	creds := &clientcredentials.Config{
		TokenURL:     cfg.Auth.TokenURL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Scopes:       cfg.Auth.Scopes,
	}
	tokens := creds.TokenSource(context.Background())

	httpClient := &http.Client{Timeout: cfg.Remote.CallTimeout}
	client := remote.NewClient(httpClient, tokens, remote.Config{
		MaxAttempts: cfg.Remote.MaxAttempts,
		BaseDelay:   cfg.Remote.BaseDelay,
		MaxDelay:    cfg.Remote.MaxDelay,
		MaxPages:    cfg.Remote.MaxPages,
	}, log)

	adapters := []provider.Adapter{
		provider.NewTodoAdapter(client, cfg.Providers.BaseURL, cfg.Providers.TodoConcurrency, log),
		provider.NewPlannerAdapter(client, cfg.Providers.BaseURL, log),
	}

	overlays := overlay.NewStore(client, cfg.Overlay, log, nil)
	taskService := service.New(adapters, overlays, cfg.Cache, cfg.Sync, log, nil)

	return &application{
		config:      cfg,
		logger:      log,
		taskService: taskService,
	}, nil
}
