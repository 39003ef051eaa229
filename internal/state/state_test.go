package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStateManager(t *testing.T) *redisStateManager {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	s := NewRedisStateManager(rdb).(*redisStateManager)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestRedisStateManager_WalkLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStateManager(t)

	status, err := s.GetWalkStatus(ctx, "soap")
	require.NoError(t, err)
	assert.Nil(t, status)

	require.NoError(t, s.StartWalk(ctx, "soap"))
	require.NoError(t, s.RecordPage(ctx, "soap", 12, 24))

	status, err = s.GetWalkStatus(ctx, "soap")
	require.NoError(t, err)
	assert.Equal(t, &WalkStatus{
		Slug:       "soap",
		Status:     StatusRunning,
		LastOffset: 12,
		Products:   24,
		UpdatedAt:  time.Unix(1700000000, 0),
	}, status)

	require.NoError(t, s.FinishWalk(ctx, "soap", nil))

	status, err = s.GetWalkStatus(ctx, "soap")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, status.Status)
	assert.Equal(t, 24, status.Products)
}

func TestRedisStateManager_FailedWalk(t *testing.T) {
	ctx := context.Background()
	s := newTestStateManager(t)

	require.NoError(t, s.StartWalk(ctx, "vitamins"))
	require.NoError(t, s.FinishWalk(ctx, "vitamins", errors.New("fetch failure: HTTP error: 502")))

	status, err := s.GetWalkStatus(ctx, "vitamins")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.Status)
	assert.Equal(t, "fetch failure: HTTP error: 502", status.Error)
}

func TestRedisStateManager_StartResetsPreviousRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStateManager(t)

	require.NoError(t, s.StartWalk(ctx, "soap"))
	require.NoError(t, s.RecordPage(ctx, "soap", 120, 130))
	require.NoError(t, s.FinishWalk(ctx, "soap", errors.New("boom")))

	require.NoError(t, s.StartWalk(ctx, "soap"))

	status, err := s.GetWalkStatus(ctx, "soap")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, status.Status)
	assert.Equal(t, 0, status.LastOffset)
	assert.Equal(t, 0, status.Products)
	assert.Empty(t, status.Error)
}

func TestNopStateManager(t *testing.T) {
	ctx := context.Background()
	s := NewNopStateManager()

	require.NoError(t, s.StartWalk(ctx, "soap"))
	require.NoError(t, s.RecordPage(ctx, "soap", 0, 1))
	require.NoError(t, s.FinishWalk(ctx, "soap", nil))

	status, err := s.GetWalkStatus(ctx, "soap")
	require.NoError(t, err)
	assert.Nil(t, status)
}
