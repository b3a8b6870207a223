package shared

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceIDRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := SetTraceID(context.Background())
	traceID := GetTraceID(ctx)

	require.NotEmpty(t, traceID)
	_, err := uuid.Parse(traceID)
	assert.NoError(t, err)

	// Each call mints a distinct ID.
	other := GetTraceID(SetTraceID(context.Background()))
	assert.NotEqual(t, traceID, other)
}

func TestGetTraceIDMissing(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", GetTraceID(context.Background()))
}

func TestUserUPNRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := WithUserUPN(context.Background(), "alice@example.com")
	upn, ok := GetUserUPN(ctx)
	require.True(t, ok)
	assert.Equal(t, "alice@example.com", upn)

	_, ok = GetUserUPN(context.Background())
	assert.False(t, ok)

	_, ok = GetUserUPN(WithUserUPN(context.Background(), ""))
	assert.False(t, ok)
}
