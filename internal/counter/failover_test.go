package counter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsemetrics/guardrail/internal/circuitbreaker"
	"github.com/pulsemetrics/guardrail/internal/models"
)

// flakyStore simulates a durable backend that can be switched offline.
type flakyStore struct {
	mu      sync.Mutex
	inner   *MemoryStore
	offline bool
	calls   int
}

func (f *flakyStore) setOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func (f *flakyStore) fail() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.offline
}

func (f *flakyStore) Increment(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (int64, time.Time, error) {
	if f.fail() {
		return 0, time.Time{}, errors.New("connection refused")
	}
	return f.inner.Increment(ctx, identifier, kind, action, window)
}

func (f *flakyStore) Peek(ctx context.Context, identifier string, kind models.IdentifierKind, action string, window time.Duration) (int64, time.Time, error) {
	if f.fail() {
		return 0, time.Time{}, errors.New("connection refused")
	}
	return f.inner.Peek(ctx, identifier, kind, action, window)
}

func (f *flakyStore) Remove(ctx context.Context, identifier string, kind models.IdentifierKind, action string) error {
	if f.fail() {
		return errors.New("connection refused")
	}
	return f.inner.Remove(ctx, identifier, kind, action)
}

func newFailoverFixture(t *testing.T) (*FailoverStore, *flakyStore, *MemoryStore) {
	t.Helper()
	clk := testClock()
	durable := &flakyStore{inner: NewMemoryStore(clk)}
	fallback := NewMemoryStore(clk)
	breaker := circuitbreaker.New(circuitbreaker.Config{MaxFailures: 3, Clock: clk})
	return NewFailoverStore(durable, fallback, breaker, 100*time.Millisecond), durable, fallback
}

func TestFailoverServesDurableWhileHealthy(t *testing.T) {
	store, _, fallback := newFailoverFixture(t)
	ctx := context.Background()

	count, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(0), store.FallbackCalls())
	assert.Equal(t, 0, fallback.Len())
}

func TestFailoverSwitchesToFallbackMidRun(t *testing.T) {
	store, durable, _ := newFailoverFixture(t)
	ctx := context.Background()

	// Two increments land durably.
	for i := 1; i <= 2; i++ {
		count, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}

	durable.setOffline(true)

	// The durable count is lost but limits are still enforced locally:
	// every call keeps returning a usable, growing count.
	for i := 1; i <= 3; i++ {
		count, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}
	assert.Equal(t, int64(3), store.FallbackCalls())
}

func TestFailoverOpensBreakerAndStopsHammeringDurable(t *testing.T) {
	store, durable, _ := newFailoverFixture(t)
	ctx := context.Background()

	durable.setOffline(true)

	for i := 0; i < 10; i++ {
		_, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
		require.NoError(t, err)
	}

	// MaxFailures is 3: after the breaker opens the durable store stops
	// seeing traffic.
	durable.mu.Lock()
	calls := durable.calls
	durable.mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestFailoverNeverReturnsErrorToCaller(t *testing.T) {
	store, durable, _ := newFailoverFixture(t)
	ctx := context.Background()

	durable.setOffline(true)

	_, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
	assert.NoError(t, err)

	_, _, err = store.Peek(ctx, "user-1", models.KindUser, "generate", time.Hour)
	assert.NoError(t, err)
}

func TestFailoverWithoutDurableStore(t *testing.T) {
	clk := testClock()
	fallback := NewMemoryStore(clk)
	breaker := circuitbreaker.New(circuitbreaker.Config{Clock: clk})
	store := NewFailoverStore(nil, fallback, breaker, 0)
	ctx := context.Background()

	count, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestFailoverRemoveClearsBothStores(t *testing.T) {
	store, durable, fallback := newFailoverFixture(t)
	ctx := context.Background()

	// One durable increment, then one local while offline.
	_, _, err := store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
	require.NoError(t, err)
	durable.setOffline(true)
	_, _, err = store.Increment(ctx, "user-1", models.KindUser, "generate", time.Hour)
	require.NoError(t, err)
	durable.setOffline(false)

	require.NoError(t, store.Remove(ctx, "user-1", models.KindUser, ""))

	durableCount, _, _ := durable.inner.Peek(ctx, "user-1", models.KindUser, "generate", time.Hour)
	assert.Equal(t, int64(0), durableCount)
	assert.Equal(t, 0, fallback.Len())
}
