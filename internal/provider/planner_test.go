package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/taskboard-api/internal/domain"
)

func TestPlannerFetchTasks(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/planner/tasks":
			fmt.Fprintf(w, `{"value":[
				{"id":"p1","planId":"plan-a","title":"Open","percentComplete":50,"dueDateTime":"2026-04-01T00:00:00Z"},
				{"id":"p2","planId":"plan-a","title":"Finished","percentComplete":100},
				{"id":"","title":"dropped"}
			],"@odata.nextLink":"%s/page2"}`, server.URL)
		case "/page2":
			fmt.Fprint(w, `{"value":[
				{"id":"p3","planId":"plan-b","title":"Done by timestamp","percentComplete":10,"completedDateTime":"2026-03-28T15:30:00Z"}
			]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	adapter := NewPlannerAdapter(fastClient(server), server.URL, nil)
	tasks, err := adapter.FetchTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	byID := map[string]domain.ExternalTask{}
	for _, task := range tasks {
		assert.Equal(t, domain.ProviderPlanner, task.Provider)
		byID[task.ExternalTaskID] = task
	}

	open := byID["p1"]
	assert.False(t, open.IsCompleted)
	assert.Equal(t, "plan-a", open.ExternalContainerID)
	require.NotNil(t, open.DueDateTimeUTC)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *open.DueDateTimeUTC)

	assert.True(t, byID["p2"].IsCompleted, "percentComplete >= 100 implies completion")
	assert.True(t, byID["p3"].IsCompleted, "completion timestamp implies completion")
}

func TestPlannerFetchPropagatesError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	adapter := NewPlannerAdapter(fastClient(server), server.URL, nil)
	_, err := adapter.FetchTasks(context.Background())
	require.Error(t, err)
}

func TestParseInstantLayouts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want *time.Time
	}{
		{raw: "", want: nil},
		{raw: "not-a-time", want: nil},
		{raw: "2026-03-05T09:00:00Z", want: due(time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))},
		{raw: "2026-03-05T09:00:00.0000000", want: due(time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))},
		{raw: "2026-03-05T09:00:00", want: due(time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))},
	}

	for _, tc := range cases {
		got := parseInstant(tc.raw)
		if tc.want == nil {
			assert.Nil(t, got, "raw %q", tc.raw)
			continue
		}
		require.NotNil(t, got, "raw %q", tc.raw)
		assert.True(t, got.Equal(*tc.want), "raw %q: got %v", tc.raw, got)
	}
}

func due(t time.Time) *time.Time { return &t }
