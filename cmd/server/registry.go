package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/emoscope/internal/config"
	"github.com/phrazzld/emoscope/internal/platform/postgres"
	emoredis "github.com/phrazzld/emoscope/internal/platform/redis"
	"github.com/phrazzld/emoscope/internal/task"
)

// registryHandle is a task registry together with its cleanup function.
type registryHandle struct {
	registry task.Registry
	close    func()
}

// setupRegistry builds the task registry selected by cfg.Registry.Backend.
func setupRegistry(ctx context.Context, cfg config.RegistryConfig, logger *slog.Logger) (*registryHandle, error) {
	ttl := time.Duration(cfg.ResultTTLMinutes) * time.Minute
	interval := time.Duration(cfg.EvictionIntervalSeconds) * time.Second

	switch cfg.Backend {
	case "memory":
		reg := task.NewMemoryRegistry(task.MemoryRegistryConfig{
			ResultTTL:        ttl,
			MaxEntries:       cfg.MaxEntries,
			EvictionInterval: interval,
		}, logger)
		reg.Start()
		return &registryHandle{registry: reg, close: reg.Stop}, nil

	case "redis":
		opts := emoredis.Options{
			Address:   cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
			ResultTTL: ttl,
		}
		client := emoredis.NewClient(opts)
		reg := emoredis.NewRedisRegistry(client, opts, logger)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := reg.Ping(pingCtx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		return &registryHandle{registry: reg, close: func() {
			if err := client.Close(); err != nil {
				logger.Error("Error closing redis client", "error", err)
			}
		}}, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			closeDB(db, logger)
			return nil, err
		}

		reg := postgres.NewPostgresRegistry(db)

		janitorCtx, stopJanitor := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			reg.RunJanitor(janitorCtx, interval, ttl, logger)
		}()

		return &registryHandle{registry: reg, close: func() {
			stopJanitor()
			<-done
			closeDB(db, logger)
		}}, nil

	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Backend)
	}
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("Error closing database connection", "error", err)
	}
}
