package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/api/shared"
	"github.com/phrazzld/taskboard-api/internal/domain"
	"github.com/phrazzld/taskboard-api/internal/service"
)

// mockTaskService returns canned results and records call arguments.
type mockTaskService struct {
	unified    *service.UnifiedResult
	whiteboard *service.WhiteboardResult
	syncOut    *service.SyncOutcome
	lastSync   *service.SyncOutcome
	overlay    *domain.Overlay
	err        error

	gotUPN      string
	gotForce    bool
	gotProvider string
	gotTaskID   string
	gotPatch    map[string]any
}

func (m *mockTaskService) GetUnifiedTasks(ctx context.Context, userUPN string) (*service.UnifiedResult, error) {
	m.gotUPN = userUPN
	return m.unified, m.err
}

func (m *mockTaskService) GetWhiteboardTasks(ctx context.Context, userUPN string) (*service.WhiteboardResult, error) {
	m.gotUPN = userUPN
	return m.whiteboard, m.err
}

func (m *mockTaskService) SyncWhiteboard(ctx context.Context, userUPN string, force bool) (*service.SyncOutcome, error) {
	m.gotUPN = userUPN
	m.gotForce = force
	return m.syncOut, m.err
}

func (m *mockTaskService) LastSyncResult(userUPN string) (*service.SyncOutcome, bool) {
	m.gotUPN = userUPN
	return m.lastSync, m.lastSync != nil
}

func (m *mockTaskService) UpsertOverlay(ctx context.Context, userUPN, provider, externalTaskID string, patch map[string]any) (*domain.Overlay, error) {
	m.gotUPN = userUPN
	m.gotProvider = provider
	m.gotTaskID = externalTaskID
	m.gotPatch = patch
	if m.err != nil {
		return nil, m.err
	}
	return m.overlay, nil
}

func testRouter(svc TaskService) http.Handler {
	h := NewTaskHandler(svc, nil)
	r := chi.NewRouter()
	r.Get("/api/tasks", h.GetTasks)
	r.Get("/api/whiteboard", h.GetWhiteboard)
	r.Post("/api/whiteboard/sync", h.SyncWhiteboard)
	r.Get("/api/whiteboard/sync", h.GetSyncStatus)
	r.Post("/api/tasks/{provider}/{taskID}/overlay", h.UpsertOverlay)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, target, body, upn string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if upn != "" {
		req = req.WithContext(shared.WithUserUPN(req.Context(), upn))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetTasksReturnsUnifiedView(t *testing.T) {
	t.Parallel()

	svc := &mockTaskService{unified: &service.UnifiedResult{
		Meta: service.Meta{TodoCount: 2},
	}}
	rec := doRequest(t, testRouter(svc), http.MethodGet, "/api/tasks", "", "alice@example.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", svc.gotUPN)

	var body service.UnifiedResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Meta.TodoCount)
}

func TestGetTasksWithoutUserContextIs401(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, testRouter(&mockTaskService{}), http.MethodGet, "/api/tasks", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetTasksAllProvidersFailedIs502(t *testing.T) {
	t.Parallel()

	svc := &mockTaskService{err: service.ErrAllProvidersFailed}
	rec := doRequest(t, testRouter(svc), http.MethodGet, "/api/tasks", "", "alice@example.com")

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "All task providers are currently unavailable", body.Error)
}

func TestSyncWhiteboardStatusPassthrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		target string
		force  bool
	}{
		{name: "completed", status: http.StatusOK, target: "/api/whiteboard/sync"},
		{name: "skipped", status: http.StatusAccepted, target: "/api/whiteboard/sync"},
		{name: "partial", status: http.StatusMultiStatus, target: "/api/whiteboard/sync"},
		{name: "forced", status: http.StatusOK, target: "/api/whiteboard/sync?force=true", force: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockTaskService{syncOut: &service.SyncOutcome{StatusCode: tc.status}}
			rec := doRequest(t, testRouter(svc), http.MethodPost, tc.target, "", "alice@example.com")

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.force, svc.gotForce)
		})
	}
}

func TestGetSyncStatusReturnsLastRun(t *testing.T) {
	t.Parallel()

	svc := &mockTaskService{lastSync: &service.SyncOutcome{
		StatusCode: http.StatusOK,
		State:      service.SyncStateCompleted,
		Counts:     service.SyncCounts{Scanned: 3, Matched: 2},
	}}
	rec := doRequest(t, testRouter(svc), http.MethodGet, "/api/whiteboard/sync", "", "alice@example.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", svc.gotUPN)

	var body service.SyncOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, service.SyncStateCompleted, body.State)
	assert.Equal(t, 3, body.Counts.Scanned)
}

func TestGetSyncStatusWithoutRunIs404(t *testing.T) {
	t.Parallel()

	rec := doRequest(t, testRouter(&mockTaskService{}), http.MethodGet,
		"/api/whiteboard/sync", "", "alice@example.com")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpsertOverlayPassesRouteParamsAndPatch(t *testing.T) {
	t.Parallel()

	svc := &mockTaskService{overlay: &domain.Overlay{
		Provider:       domain.ProviderTodo,
		ExternalTaskID: "t-1",
		Pinned:         true,
		Tags:           []string{},
	}}
	rec := doRequest(t, testRouter(svc), http.MethodPost,
		"/api/tasks/todo/t-1/overlay", `{"pinned":true}`, "alice@example.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "todo", svc.gotProvider)
	assert.Equal(t, "t-1", svc.gotTaskID)
	assert.Equal(t, map[string]any{"pinned": true}, svc.gotPatch)

	var body OverlayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Overlay)
	assert.True(t, body.Overlay.Pinned)
}

func TestUpsertOverlayRejectsNonObjectBody(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"", "[1,2,3]", `"text"`, "null"} {
		rec := doRequest(t, testRouter(&mockTaskService{}), http.MethodPost,
			"/api/tasks/todo/t-1/overlay", body, "alice@example.com")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestUpsertOverlayUnknownProviderIs400(t *testing.T) {
	t.Parallel()

	svc := &mockTaskService{err: domain.ErrUnknownProvider}
	rec := doRequest(t, testRouter(svc), http.MethodPost,
		"/api/tasks/jira/t-1/overlay", `{"pinned":true}`, "alice@example.com")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertOverlayUnexpectedErrorIs500(t *testing.T) {
	t.Parallel()

	svc := &mockTaskService{err: errors.New("boom")}
	rec := doRequest(t, testRouter(svc), http.MethodPost,
		"/api/tasks/todo/t-1/overlay", `{"pinned":true}`, "alice@example.com")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "An unexpected error occurred", body.Error)
}
