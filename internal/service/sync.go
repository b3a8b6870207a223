package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/overlay"
)

// SyncWhiteboard reconciles the user's pinned overlays against the live
// providers. At most one run per user is in flight; a second call while one
// runs is skipped with 202, as is a call inside the cooldown window unless
// force is set. A clean run returns 200; a run that finished with some
// provider unreachable returns 207 and leaves that provider's overlays
// untouched for the next run.
func (s *Service) SyncWhiteboard(ctx context.Context, userUPN string, force bool) (*SyncOutcome, error) {
	upn := domain.NormalizeUPN(userUPN)
	if upn == "" {
		return nil, domain.ErrEmptyUserUPN
	}

	s.mu.Lock()
	st := s.syncStateFor(upn)
	if st.running {
		s.mu.Unlock()
		return skippedOutcome(SyncStateAlreadyRunning, nil), nil
	}
	if !force && !st.lastFinishedAt.IsZero() {
		nextAllowed := st.lastFinishedAt.Add(s.syncCfg.Cooldown)
		if s.clock().Before(nextAllowed) {
			s.mu.Unlock()
			next := nextAllowed.UTC()
			return skippedOutcome(SyncStateCooldown, &next), nil
		}
	}
	st.running = true
	s.mu.Unlock()

	// Release the in-flight flag even if the run panics, or the user's
	// sync would report already-running forever.
	var outcome *SyncOutcome
	defer func() {
		s.mu.Lock()
		st.running = false
		st.lastFinishedAt = s.clock()
		if outcome != nil {
			st.lastResult = outcome
		}
		s.mu.Unlock()
	}()

	outcome = s.runSync(ctx, upn)
	return outcome, nil
}

// LastSyncResult returns the most recent completed run for the user, if any.
func (s *Service) LastSyncResult(userUPN string) (*SyncOutcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.syncs[domain.NormalizeUPN(userUPN)]
	if st == nil || st.lastResult == nil {
		return nil, false
	}
	return st.lastResult, true
}

// runSync is the body of one synchronization run.
func (s *Service) runSync(ctx context.Context, upn string) *SyncOutcome {
	// Reconcile against a fresh listing, not a cached one.
	s.overlays.InvalidateUser(upn)
	listing, err := s.overlays.ListByUser(ctx, upn)
	if err != nil {
		return &SyncOutcome{
			StatusCode:     http.StatusMultiStatus,
			State:          SyncStateCompleted,
			ProviderErrors: map[string]string{"overlay": err.Error()},
		}
	}

	var pinned []*domain.Overlay
	needed := make(map[domain.Provider]struct{})
	for _, ov := range listing.Overlays {
		if ov.Pinned {
			pinned = append(pinned, ov)
			needed[ov.Provider] = struct{}{}
		}
	}

	now := s.clock().UTC()
	if len(pinned) == 0 {
		finished := now
		return &SyncOutcome{
			StatusCode: http.StatusOK,
			State:      SyncStateCompleted,
			FinishedAt: &finished,
		}
	}

	providers := make([]domain.Provider, 0, len(needed))
	for p := range needed {
		providers = append(providers, p)
	}
	src := &sources{
		tasks:      make(map[domain.Provider][]domain.ExternalTask, len(providers)),
		sourceErrs: make(map[string]string),
	}
	s.fetchProviders(ctx, src, providers, nil)

	liveByKey := make(map[domain.TaskKey]domain.ExternalTask)
	for _, tasks := range src.tasks {
		for _, t := range tasks {
			if key, err := t.Key(); err == nil {
				liveByKey[key] = t
			}
		}
	}

	counts := SyncCounts{Scanned: len(pinned)}
	var patches []overlay.Patch
	for _, ov := range pinned {
		if src.providerFailed(ov.Provider) {
			// No verdict is possible for this row; leave it for a later run
			// rather than mis-marking it missing.
			counts.Skipped++
			continue
		}
		fields, backfilled := reconcileOverlay(ov, liveByKey, now)
		if backfilled {
			counts.TitlesBackfilled++
		}
		if fields[overlay.FieldExternalState] == string(domain.ExternalStateMissing) {
			counts.UnpinnedMissing++
		} else {
			counts.Matched++
		}
		patches = append(patches, overlay.Patch{UserUPN: upn, ItemID: ov.ItemID, Fields: fields})
	}

	results := s.overlays.PatchBatch(ctx, patches, s.syncCfg.PatchConcurrency)
	for _, r := range results {
		if r.Err != nil {
			counts.Failed++
			s.logger.Warn("sync row patch failed",
				slog.String("item_id", r.ItemID),
				slog.String("error", r.Err.Error()))
		}
	}

	s.invalidateViews(upn)

	finished := s.clock().UTC()
	outcome := &SyncOutcome{
		StatusCode: http.StatusOK,
		State:      SyncStateCompleted,
		Counts:     counts,
		FinishedAt: &finished,
	}
	if len(src.sourceErrs) > 0 {
		outcome.StatusCode = http.StatusMultiStatus
		outcome.ProviderErrors = src.sourceErrs
	}

	s.logger.Info("whiteboard sync completed",
		slog.Int("status", outcome.StatusCode),
		slog.Int("scanned", counts.Scanned),
		slog.Int("matched", counts.Matched),
		slog.Int("unpinned_missing", counts.UnpinnedMissing),
		slog.Int("titles_backfilled", counts.TitlesBackfilled),
		slog.Int("skipped", counts.Skipped),
		slog.Int("failed", counts.Failed))
	return outcome
}

// reconcileOverlay computes the sync patch for one pinned overlay whose
// provider fetch succeeded. Every patch stamps LastExternalSyncAt; a live
// task refreshes the last-known snapshot and may backfill an auto-generated
// title, a missing task is marked missing and unpinned.
func reconcileOverlay(ov *domain.Overlay, liveByKey map[domain.TaskKey]domain.ExternalTask, now time.Time) (overlay.Fields, bool) {
	fields := overlay.Fields{
		overlay.FieldLastExternalSyncAt: now,
	}

	key, err := ov.Key()
	if err != nil {
		fields[overlay.FieldExternalState] = string(domain.ExternalStateMissing)
		fields[overlay.FieldPinned] = false
		return fields, false
	}

	task, live := liveByKey[key]
	if !live {
		fields[overlay.FieldExternalState] = string(domain.ExternalStateMissing)
		fields[overlay.FieldPinned] = false
		return fields, false
	}

	fields[overlay.FieldExternalState] = string(domain.ExternalStateOK)
	fields[overlay.FieldLastKnownCompleted] = task.IsCompleted
	if task.DueDateTimeUTC != nil {
		fields[overlay.FieldLastKnownDueDateUTC] = *task.DueDateTimeUTC
	} else {
		fields[overlay.FieldLastKnownDueDateUTC] = nil
	}

	backfilled := false
	if ov.TitleLooksAutoGenerated() && task.Title != "" && task.Title != ov.Title {
		fields[overlay.FieldTitle] = task.Title
		backfilled = true
	}
	return fields, backfilled
}
