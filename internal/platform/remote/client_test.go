package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fastConfig keeps retry delays negligible so tests run quickly.
func fastConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		MaxPages:    10,
	}
}

func TestGetJSONSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		fmt.Fprint(w, `{"id":"abc","title":"hello"}`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil, fastConfig(), nil)

	var out struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.ID)
	assert.Equal(t, "hello", out.Title)
}

func TestGetJSONRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil, fastConfig(), nil)

	var out map[string]bool
	err := client.GetJSON(context.Background(), server.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, out["ok"])
}

func TestGetJSONExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil, fastConfig(), nil)

	err := client.GetJSON(context.Background(), server.URL, &map[string]any{})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, IsRetryable(err), "exhausted retries must surface as retryable")
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
}

func TestGetJSONPermanentStatusNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil, fastConfig(), nil)

	err := client.GetJSON(context.Background(), server.URL, &map[string]any{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "non-transient status must not be retried")
	assert.False(t, IsRetryable(err))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestGetJSONSendsBearerToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
	client := NewClient(server.Client(), tokens, fastConfig(), nil)

	require.NoError(t, client.GetJSON(context.Background(), server.URL, &map[string]any{}))
}

func TestPatchJSONSendsBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "parked", body["workingStatus"])
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil, fastConfig(), nil)

	err := client.PatchJSON(context.Background(), server.URL, map[string]any{"workingStatus": "parked"}, nil)
	require.NoError(t, err)
}

func TestGetAllPagesFollowsNextLinks(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/items":
			fmt.Fprintf(w, `{"value":[{"id":"1"},{"id":"2"}],"@odata.nextLink":"%s/items2"}`, server.URL)
		case "/items2":
			fmt.Fprint(w, `{"value":[{"id":"3"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil, fastConfig(), nil)

	items, err := client.GetAllPages(context.Background(), server.URL+"/items")
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestGetAllPagesHitsPageCeiling(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Always promise another page.
		fmt.Fprintf(w, `{"value":[{"id":"x"}],"@odata.nextLink":"%s/more"}`, server.URL)
	}))
	defer server.Close()

	cfg := fastConfig()
	cfg.MaxPages = 3
	client := NewClient(server.Client(), nil, cfg, nil)

	_, err := client.GetAllPages(context.Background(), server.URL+"/items")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPaginationLimit))
	assert.False(t, IsRetryable(err))
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 7*time.Second, parseRetryAfter("7", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))

	at := now.Add(42 * time.Second)
	assert.Equal(t, 42*time.Second, parseRetryAfter(at.Format(http.TimeFormat), now))

	past := now.Add(-time.Minute)
	assert.Equal(t, time.Duration(0), parseRetryAfter(past.Format(http.TimeFormat), now))
}

func TestMalformedJSONIsPermanent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"broken":`)
	}))
	defer server.Close()

	client := NewClient(server.Client(), nil, fastConfig(), nil)

	err := client.GetJSON(context.Background(), server.URL, &map[string]any{})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}
