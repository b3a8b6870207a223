package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/domain/unify"
	"github.com/phrazzld/taskboard-api/internal/overlay"
	"github.com/phrazzld/taskboard-api/internal/platform/remote"
)

// sources holds the raw material of one build: per-provider task lists,
// per-source errors, and the overlay listing.
type sources struct {
	mu         sync.Mutex
	tasks      map[domain.Provider][]domain.ExternalTask
	sourceErrs map[string]string
	listing    *overlay.Listing
	listingOK  bool
}

// providerFailed reports whether a provider's fetch failed in this build.
func (src *sources) providerFailed(p domain.Provider) bool {
	_, failed := src.sourceErrs[string(p)]
	return failed
}

// fetchProviders gathers the named providers' task lists concurrently into
// src. Individual failures are recorded, never propagated; the caller
// decides how to degrade. The optional extra func runs in the same fan-out.
func (s *Service) fetchProviders(ctx context.Context, src *sources, providers []domain.Provider, extra func()) {
	var wg sync.WaitGroup

	for _, p := range providers {
		adapter, ok := s.adapters[p]
		if !ok {
			continue
		}
		wg.Add(1)
		go func(p domain.Provider) {
			defer wg.Done()
			tasks, err := adapter.FetchTasks(ctx)

			src.mu.Lock()
			defer src.mu.Unlock()
			if err != nil {
				src.sourceErrs[string(p)] = err.Error()
				s.logger.Warn("provider fetch failed",
					slog.String("provider", string(p)),
					slog.Bool("retryable", remote.IsRetryable(err)),
					slog.String("error", err.Error()))
				return
			}
			src.tasks[p] = tasks
		}(p)
	}

	if extra != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			extra()
		}()
	}

	wg.Wait()
}

// fetchSources gathers every provider's tasks and the overlay listing
// concurrently.
func (s *Service) fetchSources(ctx context.Context, upn string, providers []domain.Provider) *sources {
	src := &sources{
		tasks:      make(map[domain.Provider][]domain.ExternalTask, len(providers)),
		sourceErrs: make(map[string]string),
	}

	s.fetchProviders(ctx, src, providers, func() {
		listing, err := s.overlays.ListByUser(ctx, upn)

		src.mu.Lock()
		defer src.mu.Unlock()
		if err != nil {
			src.sourceErrs["overlay"] = err.Error()
			s.logger.Warn("overlay listing fetch failed", slog.String("error", err.Error()))
			return
		}
		src.listing = listing
		src.listingOK = true
	})

	return src
}

// GetUnifiedTasks returns the user's unified task view, served per the
// caching contract: fresh hits return immediately, stale hits return
// immediately while refreshing in the background, only a cold cache blocks.
func (s *Service) GetUnifiedTasks(ctx context.Context, userUPN string) (*UnifiedResult, error) {
	upn := domain.NormalizeUPN(userUPN)
	if upn == "" {
		return nil, domain.ErrEmptyUserUPN
	}
	return s.unified.Get(ctx, upn, func(ctx context.Context) (*UnifiedResult, error) {
		return s.buildUnified(ctx, upn)
	})
}

// buildUnified fetches all sources, drops completed tasks, merges overlays
// onto the remainder and sorts. One failed source degrades the result with
// Partial set; the build fails outright only when every provider failed.
func (s *Service) buildUnified(ctx context.Context, upn string) (*UnifiedResult, error) {
	src := s.fetchSources(ctx, upn, domain.KnownProviders)

	if src.providerFailed(domain.ProviderTodo) && src.providerFailed(domain.ProviderPlanner) {
		return nil, fmt.Errorf("%w: todo: %s; planner: %s", ErrAllProvidersFailed,
			src.sourceErrs[string(domain.ProviderTodo)],
			src.sourceErrs[string(domain.ProviderPlanner)])
	}

	counts := make(map[domain.Provider]int, len(src.tasks))
	var open []domain.ExternalTask
	for p, tasks := range src.tasks {
		for _, t := range tasks {
			if t.IsCompleted {
				continue
			}
			open = append(open, t)
			counts[p]++
		}
	}

	var byKey map[domain.TaskKey]*domain.Overlay
	if src.listingOK {
		byKey = src.listing.ByKey
	}

	merged := unify.Merge(open, byKey)
	unify.Sort(merged.Tasks)

	result := &UnifiedResult{
		Tasks: merged.Tasks,
		Meta: Meta{
			GeneratedAt:         s.clock().UTC(),
			Partial:             len(src.sourceErrs) > 0,
			TodoCount:           counts[domain.ProviderTodo],
			PlannerCount:        counts[domain.ProviderPlanner],
			OverlayMatchedCount: merged.OverlayMatchedCount,
			OverlayOrphanCount:  merged.OverlayOrphanCount,
		},
	}
	if len(src.sourceErrs) > 0 {
		result.Meta.ProviderErrors = src.sourceErrs
	}

	s.logger.Debug("built unified view",
		slog.Int("tasks", len(result.Tasks)),
		slog.Bool("partial", result.Meta.Partial),
		slog.Int("matched", merged.OverlayMatchedCount),
		slog.Int("orphans", merged.OverlayOrphanCount))
	return result, nil
}
