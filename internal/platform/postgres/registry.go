package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/emoscope/internal/domain"
	"github.com/phrazzld/emoscope/internal/platform/logger"
	"github.com/phrazzld/emoscope/internal/task"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by the registry.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresRegistry implements task.Registry on the analysis_tasks table.
type PostgresRegistry struct {
	db DBTX
}

var _ task.Registry = (*PostgresRegistry)(nil)

// NewPostgresRegistry creates a new PostgresRegistry
func NewPostgresRegistry(db DBTX) *PostgresRegistry {
	return &PostgresRegistry{db: db}
}

// Create inserts a pending task.
func (r *PostgresRegistry) Create(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO analysis_tasks (id, status, created_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.ExecContext(ctx, query, id, string(task.StatusPending), time.Now().UTC())
	if err != nil {
		log.Error("failed to create task", "task_id", id, "error", err)
		return MapError(err)
	}
	return nil
}

// SetTerminal records the outcome of a pending task. The status guard in
// the UPDATE makes the transition happen at most once.
func (r *PostgresRegistry) SetTerminal(ctx context.Context, id uuid.UUID, outcome task.Outcome) error {
	log := logger.FromContext(ctx)

	var resultJSON []byte
	if res := outcome.Result(); res != nil {
		data, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("failed to encode task result: %w", err)
		}
		resultJSON = data
	}

	query := `
		UPDATE analysis_tasks
		SET status = $1, result = $2, error_message = $3, finished_at = $4
		WHERE id = $5 AND status = 'pending'
	`

	res, err := r.db.ExecContext(ctx, query,
		string(outcome.Status()),
		nullableJSON(resultJSON),
		sql.NullString{String: outcome.Error(), Valid: outcome.Error() != ""},
		time.Now().UTC(),
		id,
	)
	if err != nil {
		log.Error("failed to record task outcome", "task_id", id, "error", err)
		return MapError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	// Nothing updated: the task is either unknown or already finished.
	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM analysis_tasks WHERE id = $1`, id).Scan(&status)
	if err != nil {
		return MapError(err)
	}
	return task.ErrTaskAlreadyTerminal
}

// Get loads a task record.
func (r *PostgresRegistry) Get(ctx context.Context, id uuid.UUID) (*task.Record, error) {
	query := `
		SELECT id, status, result, error_message, created_at, finished_at
		FROM analysis_tasks
		WHERE id = $1
	`

	var (
		rec        task.Record
		status     string
		resultJSON []byte
		errMsg     sql.NullString
		finishedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID,
		&status,
		&resultJSON,
		&errMsg,
		&rec.CreatedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, task.ErrTaskNotFound
		}
		logger.FromContext(ctx).Error("failed to load task", "task_id", id, "error", err)
		return nil, MapError(err)
	}

	rec.Status = task.Status(status)
	rec.Error = errMsg.String
	if finishedAt.Valid {
		rec.FinishedAt = finishedAt.Time.UTC()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	if len(resultJSON) > 0 {
		var result domain.Result
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to decode task result: %w", err)
		}
		rec.Result = &result
	}

	return &rec, nil
}

// Delete removes a task. Unknown ids are ignored.
func (r *PostgresRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM analysis_tasks WHERE id = $1`, id)
	return MapError(err)
}

// EvictExpired deletes finished tasks older than ttl and reports how many
// were removed.
func (r *PostgresRegistry) EvictExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM analysis_tasks WHERE finished_at IS NOT NULL AND finished_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, MapError(err)
	}
	return res.RowsAffected()
}

// RunJanitor calls EvictExpired every interval until ctx is cancelled.
func (r *PostgresRegistry) RunJanitor(ctx context.Context, interval, ttl time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.EvictExpired(ctx, ttl)
			if err != nil {
				log.Error("failed to evict expired tasks", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("evicted expired tasks", "count", n)
			}
		}
	}
}

func nullableJSON(data []byte) interface{} {
	if data == nil {
		return nil
	}
	return string(data)
}
