package counter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsemetrics/guardrail/internal/clock"
	"github.com/pulsemetrics/guardrail/internal/models"
)

func testClock() *clock.Manual {
	return clock.NewManual(time.Date(2025, 6, 1, 10, 30, 30, 0, time.UTC))
}

func TestMemoryStoreIncrementIsMonotonicWithinWindow(t *testing.T) {
	clk := testClock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		count, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}
}

func TestMemoryStoreNewWindowResetsToOne(t *testing.T) {
	clk := testClock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	count, start, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	clk.Advance(time.Minute)

	count, nextStart, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.True(t, nextStart.After(start))
}

func TestMemoryStorePeekDoesNotConsume(t *testing.T) {
	clk := testClock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	_, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		count, _, err := store.Peek(ctx, "user-1", models.KindUser, "generate", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	}
}

func TestMemoryStorePeekUnknownKeyIsZero(t *testing.T) {
	store := NewMemoryStore(testClock())

	count, _, err := store.Peek(context.Background(), "ghost", models.KindIP, "generate", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMemoryStoreWindowsAreIndependentPerGranularity(t *testing.T) {
	clk := testClock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	_, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Minute)
	require.NoError(t, err)
	_, _, err = store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
	require.NoError(t, err)

	clk.Advance(2 * time.Minute)

	minuteCount, _, err := store.Peek(ctx, "user-1", models.KindUser, "generate", time.Minute)
	require.NoError(t, err)
	hourCount, _, err := store.Peek(ctx, "user-1", models.KindUser, "generate", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, int64(0), minuteCount)
	assert.Equal(t, int64(1), hourCount)
}

func TestMemoryStoreRemoveSingleAction(t *testing.T) {
	clk := testClock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	_, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
	require.NoError(t, err)
	_, _, err = store.Increment(ctx, "user-1", models.KindUser, "lookup", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, "user-1", models.KindUser, "generate"))

	generateCount, _, _ := store.Peek(ctx, "user-1", models.KindUser, "generate", time.Hour)
	lookupCount, _, _ := store.Peek(ctx, "user-1", models.KindUser, "lookup", time.Hour)

	assert.Equal(t, int64(0), generateCount)
	assert.Equal(t, int64(1), lookupCount)
}

func TestMemoryStoreRemoveAllActions(t *testing.T) {
	clk := testClock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	for _, action := range []string{"generate", "lookup", "export"} {
		_, _, err := store.Increment(ctx, "user-1", models.KindUser, action, time.Hour)
		require.NoError(t, err)
	}
	_, _, err := store.Increment(ctx, "user-2", models.KindUser, "generate", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, "user-1", models.KindUser, ""))

	for _, action := range []string{"generate", "lookup", "export"} {
		count, _, _ := store.Peek(ctx, "user-1", models.KindUser, action, time.Hour)
		assert.Equal(t, int64(0), count)
	}

	otherCount, _, _ := store.Peek(ctx, "user-2", models.KindUser, "generate", time.Hour)
	assert.Equal(t, int64(1), otherCount)
}

func TestMemoryStoreSweepEvictsExpiredWindows(t *testing.T) {
	clk := testClock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	_, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Minute)
	require.NoError(t, err)
	_, _, err = store.Increment(ctx, "user-1", models.KindUser, "generate", 24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, 2, store.Len())

	clk.Advance(2 * time.Minute)

	evicted := store.Sweep()
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, store.Len())

	// The day window is still live.
	count, _, _ := store.Peek(ctx, "user-1", models.KindUser, "generate", 24*time.Hour)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStoreConcurrentIncrementsCountExactly(t *testing.T) {
	clk := testClock()
	store := NewMemoryStore(clk)
	ctx := context.Background()

	const workers = 100

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, _, err := store.Peek(ctx, "user-1", models.KindUser, "generate", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), count)
}
