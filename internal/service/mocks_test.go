package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/taskboard-api/internal/config"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/overlay"
)

// manualClock is a hand-advanced clock for cache and cooldown tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(start time.Time) *manualClock {
	return &manualClock{now: start}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockAdapter serves a fixed task list or error and counts fetches. An
// optional gate blocks FetchTasks until released, for in-flight tests.
type mockAdapter struct {
	name  domain.Provider
	tasks []domain.ExternalTask
	err   error
	calls atomic.Int64
	gate  chan struct{}
}

func (m *mockAdapter) Name() domain.Provider { return m.name }

func (m *mockAdapter) FetchTasks(ctx context.Context) ([]domain.ExternalTask, error) {
	m.calls.Add(1)
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.tasks, nil
}

// mockOverlayStore is an in-memory OverlayStore. It interprets the same
// field keys the real store persists, enough for reconcile and upsert tests.
type mockOverlayStore struct {
	mu        sync.Mutex
	rows      map[string]*domain.Overlay
	nextID    int
	listCalls int
	listHook  func()
	patchErr  map[string]error
}

func newMockOverlayStore() *mockOverlayStore {
	return &mockOverlayStore{rows: make(map[string]*domain.Overlay)}
}

func (m *mockOverlayStore) add(ov *domain.Overlay) *domain.Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ov.ItemID = fmt.Sprintf("item-%d", m.nextID)
	ov.UserUPN = domain.NormalizeUPN(ov.UserUPN)
	if ov.Tags == nil {
		ov.Tags = []string{}
	}
	m.rows[ov.ItemID] = ov
	return ov
}

func (m *mockOverlayStore) get(itemID string) *domain.Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[itemID]
}

func (m *mockOverlayStore) ListByUser(ctx context.Context, userUPN string) (*overlay.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listHook != nil {
		m.listHook()
	}

	upn := domain.NormalizeUPN(userUPN)
	listing := &overlay.Listing{ByKey: make(map[domain.TaskKey]*domain.Overlay)}
	for _, ov := range m.rows {
		if ov.UserUPN != upn {
			continue
		}
		snapshot := *ov
		listing.Overlays = append(listing.Overlays, &snapshot)
		if key, err := snapshot.Key(); err == nil {
			listing.ByKey[key] = &snapshot
		}
	}
	return listing, nil
}

func (m *mockOverlayStore) Create(ctx context.Context, userUPN string, provider domain.Provider, externalTaskID string, patch overlay.Fields) (*domain.Overlay, error) {
	ov := &domain.Overlay{
		UserUPN:        domain.NormalizeUPN(userUPN),
		Provider:       provider,
		ExternalTaskID: externalTaskID,
		Title:          externalTaskID,
	}
	applyMockFields(ov, patch)
	return m.add(ov), nil
}

func (m *mockOverlayStore) PatchOverlay(ctx context.Context, userUPN string, existing *domain.Overlay, patch overlay.Fields) (*domain.Overlay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ov, ok := m.rows[existing.ItemID]
	if !ok {
		return nil, fmt.Errorf("overlay %s not found", existing.ItemID)
	}
	applyMockFields(ov, patch)
	snapshot := *ov
	return &snapshot, nil
}

func (m *mockOverlayStore) PatchBatch(ctx context.Context, patches []overlay.Patch, concurrency int) []overlay.PatchResult {
	results := make([]overlay.PatchResult, len(patches))
	for i, p := range patches {
		m.mu.Lock()
		if err := m.patchErr[p.ItemID]; err != nil {
			results[i] = overlay.PatchResult{ItemID: p.ItemID, Err: err}
			m.mu.Unlock()
			continue
		}
		ov, ok := m.rows[p.ItemID]
		if !ok {
			results[i] = overlay.PatchResult{ItemID: p.ItemID, Err: fmt.Errorf("overlay %s not found", p.ItemID)}
			m.mu.Unlock()
			continue
		}
		applyMockFields(ov, p.Fields)
		results[i] = overlay.PatchResult{ItemID: p.ItemID}
		m.mu.Unlock()
	}
	return results
}

func (m *mockOverlayStore) InvalidateUser(userUPN string) {}

func applyMockFields(ov *domain.Overlay, patch overlay.Fields) {
	for key, value := range patch {
		switch key {
		case overlay.FieldTitle:
			if s, ok := value.(string); ok {
				ov.Title = s
			}
		case overlay.FieldWorkingStatus:
			if s, ok := value.(string); ok {
				ov.WorkingStatus = s
			}
		case overlay.FieldTags:
			if tags, ok := value.([]string); ok {
				ov.Tags = tags
			}
		case overlay.FieldPinned:
			if b, ok := value.(bool); ok {
				ov.Pinned = b
			}
		case overlay.FieldExternalState:
			if s, ok := value.(string); ok {
				ov.ExternalState = domain.ExternalState(s)
			}
		case overlay.FieldLastKnownCompleted:
			if b, ok := value.(bool); ok {
				ov.LastKnownCompleted = b
			}
		case overlay.FieldLastKnownDueDateUTC:
			ov.LastKnownDueDateUTC = timePtrOf(value)
		case overlay.FieldLastExternalSyncAt:
			ov.LastExternalSyncAt = timePtrOf(value)
		case overlay.FieldActiveStartedAt:
			ov.ActiveStartedAt = timePtrOf(value)
		case overlay.FieldLastWorkedAt:
			ov.LastWorkedAt = timePtrOf(value)
		}
	}
}

func timePtrOf(value any) *time.Time {
	switch v := value.(type) {
	case time.Time:
		utc := v.UTC()
		return &utc
	case *time.Time:
		return v
	default:
		return nil
	}
}

func testCacheConfig() config.CacheConfig {
	return config.CacheConfig{
		UnifiedTTL:      60 * time.Second,
		WhiteboardTTL:   30 * time.Second,
		SyncStaleWindow: 5 * time.Minute,
	}
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Cooldown:         90 * time.Second,
		PatchConcurrency: 4,
	}
}

func todoTask(id, title string) domain.ExternalTask {
	return domain.ExternalTask{
		Provider:       domain.ProviderTodo,
		ExternalTaskID: id,
		Title:          title,
	}
}

func plannerTask(id, title string) domain.ExternalTask {
	return domain.ExternalTask{
		Provider:       domain.ProviderPlanner,
		ExternalTaskID: id,
		Title:          title,
	}
}
