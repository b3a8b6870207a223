package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/taskboard-api/internal/cache"
	"github.com/phrazzld/taskboard-api/internal/config"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/overlay"
	"github.com/phrazzld/taskboard-api/internal/provider"
)

// OverlayStore defines the overlay persistence interface the service needs.
type OverlayStore interface {
	// ListByUser returns the user's overlays plus the join index, served
	// from the store's short-TTL listing cache.
	ListByUser(ctx context.Context, userUPN string) (*overlay.Listing, error)

	// Create inserts a new overlay row; callers perform the
	// lookup-before-create uniqueness check.
	Create(ctx context.Context, userUPN string, provider domain.Provider, externalTaskID string, patch overlay.Fields) (*domain.Overlay, error)

	// PatchOverlay updates one existing row and returns the overlay as written.
	PatchOverlay(ctx context.Context, userUPN string, existing *domain.Overlay, patch overlay.Fields) (*domain.Overlay, error)

	// PatchBatch applies patches with bounded concurrency; rows fail
	// independently.
	PatchBatch(ctx context.Context, patches []overlay.Patch, concurrency int) []overlay.PatchResult

	// InvalidateUser drops the cached listing for one user.
	InvalidateUser(userUPN string)
}

// Compile-time check that the concrete store satisfies the interface.
var _ OverlayStore = (*overlay.Store)(nil)

// syncState tracks the whiteboard synchronization state machine for one
// user: at most one run in flight, plus the last completed run for cooldown
// decisions and status reporting.
type syncState struct {
	running        bool
	lastFinishedAt time.Time
	lastResult     *SyncOutcome
}

// Service builds and caches the derived task views for each user.
type Service struct {
	adapters map[domain.Provider]provider.Adapter
	overlays OverlayStore
	cacheCfg config.CacheConfig
	syncCfg  config.SyncConfig
	logger   *slog.Logger
	clock    cache.Clock

	unified    *cache.Cache[*UnifiedResult]
	whiteboard *cache.Cache[*WhiteboardResult]

	mu    sync.Mutex
	syncs map[string]*syncState
}

// New creates a Service. A nil clock means time.Now.
func New(adapters []provider.Adapter, overlays OverlayStore, cacheCfg config.CacheConfig, syncCfg config.SyncConfig, logger *slog.Logger, clock cache.Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[domain.Provider]provider.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}

	return &Service{
		adapters:   byName,
		overlays:   overlays,
		cacheCfg:   cacheCfg,
		syncCfg:    syncCfg,
		logger:     logger.With(slog.String("component", "task_service")),
		clock:      clock,
		unified:    cache.New[*UnifiedResult](cacheCfg.UnifiedTTL, clock),
		whiteboard: cache.New[*WhiteboardResult](cacheCfg.WhiteboardTTL, clock),
	}
}

// syncStateFor returns the per-user sync state, creating it on first use.
// Caller must hold s.mu.
func (s *Service) syncStateFor(upn string) *syncState {
	if s.syncs == nil {
		s.syncs = make(map[string]*syncState)
	}
	st := s.syncs[upn]
	if st == nil {
		st = &syncState{}
		s.syncs[upn] = st
	}
	return st
}

// invalidateViews drops both derived-view caches for one user. The overlay
// listing cache invalidates itself inside the store on every write.
func (s *Service) invalidateViews(upn string) {
	s.unified.Invalidate(upn)
	s.whiteboard.Invalidate(upn)
}
