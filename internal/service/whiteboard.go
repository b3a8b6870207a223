package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/domain/unify"
)

// GetWhiteboardTasks returns the user's pinned whiteboard view under the
// same caching contract as the unified view, with a shorter TTL.
func (s *Service) GetWhiteboardTasks(ctx context.Context, userUPN string) (*WhiteboardResult, error) {
	upn := domain.NormalizeUPN(userUPN)
	if upn == "" {
		return nil, domain.ErrEmptyUserUPN
	}
	return s.whiteboard.Get(ctx, upn, func(ctx context.Context) (*WhiteboardResult, error) {
		return s.buildWhiteboard(ctx, upn)
	})
}

// buildWhiteboard assembles the pinned-only view. The view is overlay-driven:
// each pinned overlay is joined with its live task when the provider returned
// one, and otherwise rendered from the overlay's last-known external fields
// so a provider outage never blanks the board. The overlay listing is the
// backbone here, so its failure fails the build.
func (s *Service) buildWhiteboard(ctx context.Context, upn string) (*WhiteboardResult, error) {
	src := s.fetchSources(ctx, upn, domain.KnownProviders)

	if !src.listingOK {
		return nil, fmt.Errorf("%w: %s", ErrOverlayListingFailed, src.sourceErrs["overlay"])
	}
	if src.providerFailed(domain.ProviderTodo) && src.providerFailed(domain.ProviderPlanner) {
		return nil, fmt.Errorf("%w: todo: %s; planner: %s", ErrAllProvidersFailed,
			src.sourceErrs[string(domain.ProviderTodo)],
			src.sourceErrs[string(domain.ProviderPlanner)])
	}

	liveByKey := make(map[domain.TaskKey]domain.ExternalTask)
	liveTotals := make(map[domain.Provider]int)
	for p, tasks := range src.tasks {
		for _, t := range tasks {
			if t.IsCompleted {
				continue
			}
			liveTotals[p]++
			if key, err := t.Key(); err == nil {
				liveByKey[key] = t
			}
		}
	}

	now := s.clock().UTC()
	var board []domain.UnifiedTask
	pinnedCounts := make(map[domain.Provider]int)
	overlayTotals := make(map[domain.Provider]int)
	matched := 0
	recentSync := false

	for _, ov := range src.listing.Overlays {
		overlayTotals[ov.Provider]++
		if !ov.Pinned {
			continue
		}
		pinnedCounts[ov.Provider]++

		if ov.LastExternalSyncAt != nil && now.Sub(*ov.LastExternalSyncAt) <= s.cacheCfg.SyncStaleWindow {
			recentSync = true
		}

		key, err := ov.Key()
		if err != nil {
			continue
		}
		if task, ok := liveByKey[key]; ok {
			board = append(board, domain.UnifiedTask{Task: task, Overlay: ov})
			matched++
			continue
		}
		// Not live right now. Render from the overlay's last-known snapshot;
		// the sync job is what eventually unpins truly missing tasks.
		board = append(board, domain.UnifiedTask{
			Task: domain.ExternalTask{
				Provider:       ov.Provider,
				ExternalTaskID: ov.ExternalTaskID,
				Title:          ov.Title,
				DueDateTimeUTC: ov.LastKnownDueDateUTC,
				IsCompleted:    ov.LastKnownCompleted,
			},
			Overlay: ov,
		})
	}

	unify.Sort(board)

	pinnedTotal := pinnedCounts[domain.ProviderTodo] + pinnedCounts[domain.ProviderPlanner]
	result := &WhiteboardResult{
		Tasks: board,
		Meta: Meta{
			GeneratedAt:         now,
			Partial:             len(src.sourceErrs) > 0,
			TodoCount:           liveTotals[domain.ProviderTodo],
			PlannerCount:        liveTotals[domain.ProviderPlanner],
			OverlayMatchedCount: matched,
			OverlayOrphanCount:  pinnedTotal - matched,
		},
		Providers: map[string]ProviderCounts{
			string(domain.ProviderTodo): {
				Pinned: pinnedCounts[domain.ProviderTodo],
				Total:  overlayTotals[domain.ProviderTodo],
			},
			string(domain.ProviderPlanner): {
				Pinned: pinnedCounts[domain.ProviderPlanner],
				Total:  overlayTotals[domain.ProviderPlanner],
			},
		},
		SyncStale: pinnedTotal > 0 && !recentSync,
	}
	if len(src.sourceErrs) > 0 {
		result.Meta.ProviderErrors = src.sourceErrs
	}

	s.logger.Debug("built whiteboard view",
		slog.Int("pinned", pinnedTotal),
		slog.Bool("sync_stale", result.SyncStale))
	return result, nil
}
