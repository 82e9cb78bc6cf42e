package cachesvc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/lesson"
	"github.com/trezcool/ratiba/tests"
)

func TestWeekKey(t *testing.T) {
	ws := testutil.Date("2025-09-01")
	assert.Equal(t, "week:2025-09-01:v3:1,4,7", weekKey(ws, 3, []int{7, 1, 4}))
	assert.Equal(t, weekKey(ws, 0, []int{4, 1}), weekKey(ws, 0, []int{1, 4}))
	assert.NotEqual(t, weekKey(ws, 0, []int{1}), weekKey(ws, 1, []int{1}))
	assert.Equal(t, "weekver:2025-09-01", versionKey(ws))
}

// requires a running Redis server; set TEST_REDIS_ADDR to run.
func TestWeekCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}
	ctx := context.Background()
	conf := &core.Config{Cache: core.CacheConfig{RedisAddr: addr, TTL: time.Minute}}

	client, err := NewClient(ctx, conf)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.FlushDB(ctx).Err())

	cache := NewWeekCache(client, conf)
	ws := testutil.Date("2025-09-01")

	_, ver, ok, err := cache.GetWeek(ctx, ws, []int{1})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, ver)

	week := []lesson.Lesson{{
		ID:    3,
		Scope: lesson.Published(),
		Slot:  testutil.Slot("2025-09-02", 1, 540, 600),
	}}
	require.NoError(t, cache.SetWeek(ctx, ws, []int{2, 1}, ver, week))
	require.NoError(t, cache.SetWeek(ctx, ws, []int{1}, ver, nil))

	got, _, ok, err := cache.GetWeek(ctx, ws, []int{1, 2})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].ID)
	assert.False(t, got[0].Scope.IsDraft())
	assert.True(t, got[0].Date.Equal(testutil.Date("2025-09-02")))

	require.NoError(t, cache.InvalidateWeeks(ctx, ws))
	for _, groups := range [][]int{{1}, {1, 2}} {
		_, _, ok, err = cache.GetWeek(ctx, ws, groups)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	// a reader that missed before the invalidation writes under the old version
	require.NoError(t, cache.SetWeek(ctx, ws, []int{1}, ver, week))
	_, newVer, ok, err := cache.GetWeek(ctx, ws, []int{1})
	require.NoError(t, err)
	assert.False(t, ok, "late write under an old version is not served")
	assert.Equal(t, ver+1, newVer)
}
