package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	sqsworker "github.com/dirk39/sqs-worker"
)

func newLock(c *cli.Context, openDB func() (*sql.DB, error)) (sqsworker.ExclusiveLock, func(), error) {
	noop := func() {}

	switch lockType := c.String("lock"); lockType {
	case "file":
		return sqsworker.NewFileLock(c.String("lock-dir")), noop, nil
	case "memory":
		return sqsworker.NewInMemoryLock(), noop, nil
	case "redis":
		cfg, err := sqsworker.RedisConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		client := sqsworker.NewRedisClient(cfg)
		lock := sqsworker.NewRedisLock(client, cfg.Prefix, cfg.LockTTL)
		return lock, func() {
			lock.Close()
			client.Close()
		}, nil
	case "postgres":
		db, err := openDB()
		if err != nil {
			return nil, nil, err
		}
		lock := sqsworker.NewPostgresLock(db)
		return lock, func() { lock.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("invalid lock type: %s", lockType)
	}
}

func newDedupStore(ctx context.Context, dedupType string, openDB func() (*sql.DB, error)) (sqsworker.DeduplicationStore, error) {
	switch dedupType {
	case "none", "":
		return nil, nil
	case "memory":
		return sqsworker.NewInMemoryDeduplicationStore(), nil
	case "postgres":
		db, err := openDB()
		if err != nil {
			return nil, err
		}
		if err := sqsworker.MigratePostgres(ctx, db); err != nil {
			return nil, err
		}
		return sqsworker.NewPostgresDeduplicationStore(db), nil
	default:
		return nil, fmt.Errorf("invalid dedup-type: %s", dedupType)
	}
}

func cleanupDeduplicationStore(ctx context.Context, store sqsworker.DeduplicationStore) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := store.Cleanup(ctx, 7*24*time.Hour); err != nil {
				log.Error().Err(err).Msg("Failed to cleanup deduplication store")
			}
		case <-ctx.Done():
			return
		}
	}
}

func monitorStats(ctx context.Context, manager *sqsworker.Manager, queues []string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logManagerStats(manager)
			for _, queue := range queues {
				stats, err := manager.QueueStats(ctx, queue)
				if err != nil {
					log.Error().Err(err).Str("queue", queue).Msg("Failed to fetch queue stats")
					continue
				}
				log.Info().
					Str("queue", queue).
					Int("available", stats.Available).
					Int("in_flight", stats.InFlight).
					Int("delayed", stats.Delayed).
					Msg("SQS queue stats")
			}
		case <-ctx.Done():
			return
		}
	}
}

func logManagerStats(manager *sqsworker.Manager) {
	s := manager.Stats()
	log.Info().
		Int64("batches", s.Batches).
		Int64("received", s.Received).
		Int64("deleted", s.Deleted).
		Int64("released", s.Released).
		Int64("aborted_batches", s.AbortedBatches).
		Int64("release_failures", s.ReleaseFailures).
		Msg("Consumer stats")

	if s.ReleaseFailures > 0 {
		log.Warn().
			Int64("release_failures", s.ReleaseFailures).
			Msg("Some messages could not be released and wait for their visibility timeout")
	}
}
