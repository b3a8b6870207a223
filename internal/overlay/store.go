// Package overlay implements the remote list-backed store for per-user task
// annotations: container resolution, cached per-user listings, creation,
// patching, and the pure behavior rules applied to incoming patches.
package overlay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/phrazzld/taskboard-api/internal/cache"
	"github.com/phrazzld/taskboard-api/internal/config"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/platform/remote"
)

// Listing is one user's full set of overlay rows plus the join index over
// them. It is the cached unit; treat it as immutable once returned.
type Listing struct {
	Overlays []*domain.Overlay
	ByKey    map[domain.TaskKey]*domain.Overlay
}

// Patch addresses one overlay row for a batched update.
type Patch struct {
	UserUPN string
	ItemID  string
	Fields  Fields
}

// PatchResult reports the outcome of one row in a batch. Rows fail
// independently; a failed row never aborts its siblings.
type PatchResult struct {
	ItemID string
	Err    error
}

// Store reads and writes overlay rows in the remote list. The backing
// container is resolved lazily on first use and reused for the process
// lifetime; per-user listings are cached with a short TTL and invalidated on
// every successful write.
type Store struct {
	client *remote.Client
	cfg    config.OverlayConfig
	logger *slog.Logger
	clock  cache.Clock

	listings *cache.Cache[*Listing]

	mu        sync.Mutex
	container string
}

// NewStore creates a Store. A nil clock means time.Now.
func NewStore(client *remote.Client, cfg config.OverlayConfig, logger *slog.Logger, clock cache.Clock) *Store {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client:   client,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "overlay_store")),
		clock:    clock,
		listings: cache.New[*Listing](cfg.ListTTL, clock),
	}
}

// containerURL resolves the site and list identifiers into the base URL for
// item operations, caching the result after the first success.
func (s *Store) containerURL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.container != "" {
		return s.container, nil
	}

	var site struct {
		ID string `json:"id"`
	}
	siteURL := fmt.Sprintf("%s/sites/%s:%s", s.cfg.BaseURL, s.cfg.SiteHost, s.cfg.SitePath)
	if err := s.client.GetJSON(ctx, siteURL, &site); err != nil {
		return "", fmt.Errorf("failed to resolve site %s:%s: %w", s.cfg.SiteHost, s.cfg.SitePath, err)
	}

	var list struct {
		ID string `json:"id"`
	}
	listURL := fmt.Sprintf("%s/sites/%s/lists/%s", s.cfg.BaseURL, site.ID, url.PathEscape(s.cfg.ListName))
	if err := s.client.GetJSON(ctx, listURL, &list); err != nil {
		return "", fmt.Errorf("failed to resolve list %q: %w", s.cfg.ListName, err)
	}

	s.container = fmt.Sprintf("%s/sites/%s/lists/%s", s.cfg.BaseURL, site.ID, list.ID)
	s.logger.Info("resolved overlay container",
		slog.String("site_id", site.ID),
		slog.String("list_id", list.ID))
	return s.container, nil
}

// ListByUser returns the user's overlays, served from the listing cache.
func (s *Store) ListByUser(ctx context.Context, userUPN string) (*Listing, error) {
	upn := domain.NormalizeUPN(userUPN)
	return s.listings.Get(ctx, upn, func(ctx context.Context) (*Listing, error) {
		return s.fetchListing(ctx, upn)
	})
}

func (s *Store) fetchListing(ctx context.Context, upn string) (*Listing, error) {
	container, err := s.containerURL(ctx)
	if err != nil {
		return nil, err
	}

	listURL := fmt.Sprintf("%s/items?expand=fields&$filter=%s", container,
		url.QueryEscape(fmt.Sprintf("fields/UserUpn eq '%s'", upn)))
	raw, err := s.client.GetAllPages(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list overlays for user: %w", err)
	}

	listing := &Listing{
		Overlays: make([]*domain.Overlay, 0, len(raw)),
		ByKey:    make(map[domain.TaskKey]*domain.Overlay, len(raw)),
	}
	for _, item := range raw {
		var row listItem
		if err := json.Unmarshal(item, &row); err != nil {
			s.logger.Warn("skipping undecodable overlay row", slog.String("error", err.Error()))
			continue
		}
		// The filter is advisory; rows for other users are dropped here too.
		if domain.NormalizeUPN(row.Fields.UserUpn) != upn {
			continue
		}

		ov := overlayFromItem(row)
		listing.Overlays = append(listing.Overlays, ov)
		if key, err := ov.Key(); err == nil {
			listing.ByKey[key] = ov
		}
	}

	s.logger.Debug("fetched overlay listing", slog.Int("count", len(listing.Overlays)))
	return listing, nil
}

// Create inserts a new overlay row for (userUPN, provider, externalTaskID)
// with the given initial patch. When the patch carries no title, the raw
// external task ID is used so the row is never nameless; the sync job
// backfills a human title later. Callers are responsible for the
// lookup-before-create uniqueness check.
func (s *Store) Create(ctx context.Context, userUPN string, provider domain.Provider, externalTaskID string, patch Fields) (*domain.Overlay, error) {
	container, err := s.containerURL(ctx)
	if err != nil {
		return nil, err
	}

	upn := domain.NormalizeUPN(userUPN)
	now := s.clock()

	columns, err := columnsFromPatch(patch, now)
	if err != nil {
		return nil, err
	}
	columns["UserUpn"] = upn
	columns["Provider"] = string(provider)
	columns["ExternalTaskId"] = externalTaskID
	if title, ok := columns["Title"].(string); !ok || title == "" {
		columns["Title"] = externalTaskID
	}

	var created listItem
	if err := s.client.PostJSON(ctx, container+"/items", map[string]any{"fields": columns}, &created); err != nil {
		return nil, fmt.Errorf("failed to create overlay: %w", err)
	}

	s.listings.Invalidate(upn)
	s.logger.Info("created overlay",
		slog.String("provider", string(provider)),
		slog.String("external_task_id", externalTaskID),
		slog.String("item_id", created.ID))

	if created.Fields.UserUpn == "" {
		// Some list backends echo only the new item ID; synthesize the row
		// from what was written.
		created.Fields.UserUpn = upn
		created.Fields.Provider = string(provider)
		created.Fields.ExternalTaskID = externalTaskID
		created.Fields.Title, _ = columns["Title"].(string)
	}
	ov := overlayFromItem(created)
	return applyToOverlay(ov, patch, now), nil
}

// PatchOverlay updates one existing row and returns the overlay as written.
func (s *Store) PatchOverlay(ctx context.Context, userUPN string, existing *domain.Overlay, patch Fields) (*domain.Overlay, error) {
	container, err := s.containerURL(ctx)
	if err != nil {
		return nil, err
	}

	upn := domain.NormalizeUPN(userUPN)
	now := s.clock()

	columns, err := columnsFromPatch(patch, now)
	if err != nil {
		return nil, err
	}

	patchURL := fmt.Sprintf("%s/items/%s/fields", container, url.PathEscape(existing.ItemID))
	if err := s.client.PatchJSON(ctx, patchURL, columns, nil); err != nil {
		return nil, fmt.Errorf("failed to patch overlay %s: %w", existing.ItemID, err)
	}

	s.listings.Invalidate(upn)
	return applyToOverlay(existing, patch, now), nil
}

// PatchBatch applies patches with bounded concurrency. Every row gets an
// independent result; partial failure is expected and reported per row, not
// as a batch error. Listing caches for every touched user are invalidated
// once the batch completes.
func (s *Store) PatchBatch(ctx context.Context, patches []Patch, concurrency int) []PatchResult {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]PatchResult, len(patches))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, p := range patches {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p Patch) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = PatchResult{ItemID: p.ItemID, Err: s.patchRow(ctx, p)}
		}(i, p)
	}
	wg.Wait()

	touched := make(map[string]struct{})
	for _, p := range patches {
		touched[domain.NormalizeUPN(p.UserUPN)] = struct{}{}
	}
	for upn := range touched {
		s.listings.Invalidate(upn)
	}

	return results
}

func (s *Store) patchRow(ctx context.Context, p Patch) error {
	container, err := s.containerURL(ctx)
	if err != nil {
		return err
	}

	columns, err := columnsFromPatch(p.Fields, s.clock())
	if err != nil {
		return err
	}

	patchURL := fmt.Sprintf("%s/items/%s/fields", container, url.PathEscape(p.ItemID))
	if err := s.client.PatchJSON(ctx, patchURL, columns, nil); err != nil {
		return fmt.Errorf("failed to patch overlay %s: %w", p.ItemID, err)
	}
	return nil
}

// InvalidateUser drops the cached listing for one user.
func (s *Store) InvalidateUser(userUPN string) {
	s.listings.Invalidate(domain.NormalizeUPN(userUPN))
}
