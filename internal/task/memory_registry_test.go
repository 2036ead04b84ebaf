package task

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock for eviction tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry(cfg MemoryRegistryConfig) (*MemoryRegistry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	r := NewMemoryRegistry(cfg, logger.Discard())
	r.now = clock.Now
	return r, clock
}

func TestMemoryRegistry_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _ := newTestRegistry(DefaultMemoryRegistryConfig())
	id := uuid.New()

	require.NoError(t, r.Create(ctx, id))
	assert.ErrorIs(t, r.Create(ctx, id), ErrTaskExists)

	rec, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Nil(t, rec.Result)
	assert.False(t, rec.CreatedAt.IsZero())

	res := domain.NewResult("hello")
	res.TextPredictions = []domain.Prediction{{Label: "joy", Score: 0.9}}
	require.NoError(t, r.SetTerminal(ctx, id, Completed(res)))

	// Mutating the caller's result must not affect the stored copy.
	res.TextPredictions[0].Label = "changed"

	rec, err = r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, rec.Status)
	assert.Equal(t, "joy", rec.Result.TextPredictions[0].Label)
	assert.False(t, rec.FinishedAt.IsZero())

	// Mutating a snapshot must not affect the registry either.
	rec.Result.Text = "mutated"
	again, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", again.Result.Text)

	// A second terminal write is rejected and leaves state intact.
	assert.ErrorIs(t, r.SetTerminal(ctx, id, Failed("late")), ErrTaskAlreadyTerminal)
	again, err = r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, again.Status)
	assert.Empty(t, again.Error)
}

func TestMemoryRegistry_UnknownID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _ := newTestRegistry(DefaultMemoryRegistryConfig())
	id := uuid.New()

	_, err := r.Get(ctx, id)
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, r.SetTerminal(ctx, id, Failed("x")), ErrTaskNotFound)
	assert.NoError(t, r.Delete(ctx, id))
}

func TestMemoryRegistry_Failed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _ := newTestRegistry(DefaultMemoryRegistryConfig())
	id := uuid.New()

	require.NoError(t, r.Create(ctx, id))
	require.NoError(t, r.SetTerminal(ctx, id, Failed("retrieval failed: boom")))

	rec, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "retrieval failed: boom", rec.Error)
	assert.Nil(t, rec.Result)
}

func TestMemoryRegistry_EvictExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := DefaultMemoryRegistryConfig()
	cfg.ResultTTL = 10 * time.Minute
	r, clock := newTestRegistry(cfg)

	done, pending := uuid.New(), uuid.New()
	require.NoError(t, r.Create(ctx, done))
	require.NoError(t, r.Create(ctx, pending))
	require.NoError(t, r.SetTerminal(ctx, done, Completed(domain.NewResult(""))))

	clock.Advance(5 * time.Minute)
	assert.Equal(t, 0, r.EvictExpired(clock.Now()))

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, r.EvictExpired(clock.Now()))

	_, err := r.Get(ctx, done)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	// Pending tasks are never evicted, however old.
	clock.Advance(24 * time.Hour)
	assert.Equal(t, 0, r.EvictExpired(clock.Now()))
	_, err = r.Get(ctx, pending)
	assert.NoError(t, err)
}

func TestMemoryRegistry_CapacityEvictsOldestFinished(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, clock := newTestRegistry(MemoryRegistryConfig{MaxEntries: 2, Shards: 1})

	first, second, third := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, r.Create(ctx, first))
	require.NoError(t, r.Create(ctx, second))
	require.NoError(t, r.SetTerminal(ctx, second, Failed("x")))
	clock.Advance(time.Second)
	require.NoError(t, r.SetTerminal(ctx, first, Failed("y")))

	require.NoError(t, r.Create(ctx, third))
	assert.Equal(t, 2, r.Len())

	_, err := r.Get(ctx, second)
	assert.ErrorIs(t, err, ErrTaskNotFound, "earliest finished entry should be evicted")
	_, err = r.Get(ctx, first)
	assert.NoError(t, err)

	// With only pending entries nothing is evicted.
	r2, _ := newTestRegistry(MemoryRegistryConfig{MaxEntries: 1, Shards: 1})
	a, b := uuid.New(), uuid.New()
	require.NoError(t, r2.Create(ctx, a))
	require.NoError(t, r2.Create(ctx, b))
	assert.Equal(t, 2, r2.Len())
}

func TestMemoryRegistry_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _ := newTestRegistry(DefaultMemoryRegistryConfig())

	const n = 200
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			assert.NoError(t, r.Create(ctx, id))
			_, _ = r.Get(ctx, id)
			assert.NoError(t, r.SetTerminal(ctx, id, Completed(domain.NewResult(id.String()))))
		}(id)
	}

	// Readers interleave with writers.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, id := range ids {
				_, _ = r.Get(ctx, id)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n, r.Len())
	for _, id := range ids {
		rec, err := r.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StatusComplete, rec.Status)
		assert.Equal(t, id.String(), rec.Result.Text)
	}
}

func TestMemoryRegistry_StartStop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := MemoryRegistryConfig{ResultTTL: time.Millisecond, EvictionInterval: 5 * time.Millisecond}
	r := NewMemoryRegistry(cfg, logger.Discard())
	r.Start()
	defer r.Stop()

	id := uuid.New()
	require.NoError(t, r.Create(ctx, id))
	require.NoError(t, r.SetTerminal(ctx, id, Failed("x")))

	assert.Eventually(t, func() bool {
		_, err := r.Get(ctx, id)
		return err != nil
	}, time.Second, 5*time.Millisecond)

	// Stop is idempotent and safe without Start.
	r.Stop()
	NewMemoryRegistry(cfg, logger.Discard()).Stop()
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	res := domain.NewResult("x")
	ok := Completed(res)
	assert.Equal(t, StatusComplete, ok.Status())
	assert.Same(t, res, ok.Result())
	assert.Empty(t, ok.Error())

	bad := Failed("")
	assert.Equal(t, StatusFailed, bad.Status())
	assert.Nil(t, bad.Result())
	assert.Equal(t, "task failed", bad.Error())

	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, Status("processing").Valid())
}
