// Package redis provides a Redis-backed task registry so several API
// processes can share task state.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/task"
	"github.com/redis/go-redis/v9"
)

// Options holds configuration for connecting to Redis.
type Options struct {
	// Address is the host:port of the Redis server.
	Address string
	// Password is the password used to authenticate.
	Password string
	// DB is the database index to select.
	DB int
	// KeyPrefix namespaces task keys.
	KeyPrefix string
	// ResultTTL expires finished tasks. Zero keeps them forever.
	ResultTTL time.Duration
}

// DefaultOptions returns Options with localhost defaults.
func DefaultOptions() Options {
	return Options{
		Address:   "localhost:6379",
		KeyPrefix: "emoscope:task:",
		ResultTTL: time.Hour,
	}
}

// Hash fields of a task entry.
const (
	fieldStatus     = "status"
	fieldResult     = "result"
	fieldError      = "error"
	fieldCreatedAt  = "created_at"
	fieldFinishedAt = "finished_at"
)

// createScript inserts a pending entry only if the key is absent.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'status', 'pending', 'created_at', ARGV[1])
return 1
`)

// setTerminalScript moves a pending entry to a terminal state and starts
// its expiry. Returns -1 for a missing key and 0 if already terminal.
var setTerminalScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
	return -1
end
if status ~= 'pending' then
	return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'result', ARGV[2], 'error', ARGV[3], 'finished_at', ARGV[4])
if tonumber(ARGV[5]) > 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[5])
end
return 1
`)

// RedisRegistry implements task.Registry with one hash per task.
type RedisRegistry struct {
	client  redis.UniversalClient
	options Options
	logger  *slog.Logger
}

var _ task.Registry = (*RedisRegistry)(nil)

// NewClient opens a client for opts.
func NewClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// NewRedisRegistry creates a registry on an existing client.
func NewRedisRegistry(client redis.UniversalClient, opts Options, logger *slog.Logger) *RedisRegistry {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultOptions().KeyPrefix
	}
	return &RedisRegistry{
		client:  client,
		options: opts,
		logger:  logger.With("component", "redis_registry"),
	}
}

// Ping verifies the connection.
func (r *RedisRegistry) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisRegistry) key(id uuid.UUID) string {
	return r.options.KeyPrefix + id.String()
}

// Create implements task.Registry.
func (r *RedisRegistry) Create(ctx context.Context, id uuid.UUID) error {
	created, err := createScript.Run(ctx, r.client,
		[]string{r.key(id)},
		time.Now().UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		r.logger.Error("failed to create task", "task_id", id, "error", err)
		return fmt.Errorf("redis create task: %w", err)
	}
	if created == 0 {
		return task.ErrTaskExists
	}
	return nil
}

// SetTerminal implements task.Registry.
func (r *RedisRegistry) SetTerminal(ctx context.Context, id uuid.UUID, outcome task.Outcome) error {
	var result string
	if res := outcome.Result(); res != nil {
		data, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("failed to encode task result: %w", err)
		}
		result = string(data)
	}

	code, err := setTerminalScript.Run(ctx, r.client,
		[]string{r.key(id)},
		string(outcome.Status()),
		result,
		outcome.Error(),
		time.Now().UTC().Format(time.RFC3339Nano),
		r.options.ResultTTL.Milliseconds(),
	).Int()
	if err != nil {
		r.logger.Error("failed to record task outcome", "task_id", id, "error", err)
		return fmt.Errorf("redis set terminal: %w", err)
	}

	switch code {
	case -1:
		return task.ErrTaskNotFound
	case 0:
		return task.ErrTaskAlreadyTerminal
	default:
		return nil
	}
}

// Get implements task.Registry.
func (r *RedisRegistry) Get(ctx context.Context, id uuid.UUID) (*task.Record, error) {
	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get task: %w", err)
	}
	if len(fields) == 0 {
		return nil, task.ErrTaskNotFound
	}

	rec := &task.Record{
		ID:     id,
		Status: task.Status(fields[fieldStatus]),
		Error:  fields[fieldError],
	}
	if !rec.Status.Valid() {
		return nil, fmt.Errorf("redis task %s has invalid status %q", id, fields[fieldStatus])
	}

	if rec.CreatedAt, err = parseTime(fields[fieldCreatedAt]); err != nil {
		return nil, err
	}
	if rec.FinishedAt, err = parseTime(fields[fieldFinishedAt]); err != nil {
		return nil, err
	}

	if raw := fields[fieldResult]; raw != "" {
		var result domain.Result
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, fmt.Errorf("failed to decode task result: %w", err)
		}
		rec.Result = &result
	}

	return rec, nil
}

// Delete implements task.Registry.
func (r *RedisRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis delete task: %w", err)
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
