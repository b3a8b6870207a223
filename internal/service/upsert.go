package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/overlay"
)

// UpsertOverlay applies a caller patch to the overlay for one external task,
// creating the row on first write. Patch keys outside the writable whitelist
// are silently dropped; behavior rules run on the sanitized patch before it
// is persisted. All three caches are invalidated so a follow-up read
// reflects the write.
func (s *Service) UpsertOverlay(ctx context.Context, userUPN, providerRaw, externalTaskID string, rawPatch map[string]any) (*domain.Overlay, error) {
	upn := domain.NormalizeUPN(userUPN)
	if upn == "" {
		return nil, domain.ErrEmptyUserUPN
	}

	prov, err := domain.ParseProvider(providerRaw)
	if err != nil {
		return nil, err
	}
	key, err := domain.NewTaskKey(prov, externalTaskID)
	if err != nil {
		return nil, err
	}

	patch := overlay.SanitizePatch(rawPatch)
	if len(patch) == 0 {
		return nil, ErrEmptyPatch
	}

	listing, err := s.overlays.ListByUser(ctx, upn)
	if err != nil {
		return nil, fmt.Errorf("failed to load overlays before upsert: %w", err)
	}
	existing := listing.ByKey[key]

	fields := overlay.ApplyRules(existing, patch, s.clock())

	var written *domain.Overlay
	if existing == nil {
		written, err = s.overlays.Create(ctx, upn, prov, externalTaskID, fields)
	} else {
		written, err = s.overlays.PatchOverlay(ctx, upn, existing, fields)
	}
	if err != nil {
		return nil, err
	}

	s.invalidateViews(upn)

	s.logger.Info("overlay upserted",
		slog.String("provider", string(prov)),
		slog.String("external_task_id", externalTaskID),
		slog.Bool("created", existing == nil))
	return written, nil
}
