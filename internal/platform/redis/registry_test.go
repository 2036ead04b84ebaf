package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/platform/logger"
	"github.com/phrazzld/emoscope/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, ttl time.Duration) (*RedisRegistry, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	opts := DefaultOptions()
	opts.Address = mr.Addr()
	opts.ResultTTL = ttl

	client := NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	r := NewRedisRegistry(client, opts, logger.Discard())
	require.NoError(t, r.Ping(context.Background()))
	return r, mr
}

func TestRedisRegistry_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, mr := newTestRegistry(t, time.Hour)
	id := uuid.New()

	require.NoError(t, r.Create(ctx, id))
	assert.ErrorIs(t, r.Create(ctx, id), task.ErrTaskExists)

	rec, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, rec.Status)
	assert.Nil(t, rec.Result)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.True(t, rec.FinishedAt.IsZero())

	// Pending entries never expire.
	assert.Equal(t, time.Duration(0), mr.TTL("emoscope:task:"+id.String()))

	res := domain.NewResult("caption")
	res.TextPredictions = []domain.Prediction{{Label: "joy", Score: 0.7}}
	media := domain.InlineMedia("data:image/png;base64,AAAA")
	res.Media = &media
	require.NoError(t, r.SetTerminal(ctx, id, task.Completed(res)))

	rec, err = r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusComplete, rec.Status)
	assert.Equal(t, res, rec.Result)
	assert.False(t, rec.FinishedAt.IsZero())
	assert.Equal(t, time.Hour, mr.TTL("emoscope:task:"+id.String()))

	assert.ErrorIs(t, r.SetTerminal(ctx, id, task.Failed("late")), task.ErrTaskAlreadyTerminal)

	rec, err = r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusComplete, rec.Status)
}

func TestRedisRegistry_FailedAndExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, mr := newTestRegistry(t, time.Minute)
	id := uuid.New()

	require.NoError(t, r.Create(ctx, id))
	require.NoError(t, r.SetTerminal(ctx, id, task.Failed("retrieval failed")))

	rec, err := r.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, rec.Status)
	assert.Equal(t, "retrieval failed", rec.Error)
	assert.Nil(t, rec.Result)

	mr.FastForward(2 * time.Minute)

	_, err = r.Get(ctx, id)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
}

func TestRedisRegistry_UnknownAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _ := newTestRegistry(t, 0)
	id := uuid.New()

	_, err := r.Get(ctx, id)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, r.SetTerminal(ctx, id, task.Failed("x")), task.ErrTaskNotFound)

	require.NoError(t, r.Create(ctx, id))
	require.NoError(t, r.Delete(ctx, id))
	_, err = r.Get(ctx, id)
	assert.ErrorIs(t, err, task.ErrTaskNotFound)

	assert.NoError(t, r.Delete(ctx, uuid.New()))
}

func TestRedisRegistry_WithRunner(t *testing.T) {
	t.Parallel()

	r, _ := newTestRegistry(t, time.Hour)
	runner := task.NewTaskRunner(r, task.TaskRunnerConfig{WorkerCount: 2, QueueSize: 4}, logger.Discard())
	require.NoError(t, runner.Start())

	mock := task.NewMockTask()
	require.NoError(t, runner.Submit(context.Background(), mock))
	require.NoError(t, runner.Stop(context.Background()))

	rec, err := r.Get(context.Background(), mock.ID())
	require.NoError(t, err)
	assert.Equal(t, task.StatusComplete, rec.Status)
	require.NotNil(t, rec.Result)
}

func TestRedisRegistry_PingFailure(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	opts := DefaultOptions()
	opts.Address = mr.Addr()
	client := NewClient(opts)
	defer client.Close()

	mr.Close()

	r := NewRedisRegistry(client, opts, logger.Discard())
	assert.Error(t, r.Ping(context.Background()))
}
