package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"classattend/internal/attendance"
	"classattend/internal/config"
	"classattend/internal/logger"
	"classattend/internal/queue"
	"classattend/internal/store"
)

// Worker drains audit events off the queue and persists the attendance audit
// trail, keeping the mark path free of synchronous bookkeeping writes.
func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	lg := logger.Get().With().Str("component", "audit-worker").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		lg.Info().Msg("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		lg.Fatal().Err(err).Msg("db connect failed")
	}
	defer db.Close()

	if err := store.Migrate(ctx, db.Client); err != nil {
		lg.Fatal().Err(err).Msg("schema bootstrap failed")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	if !redisClient.Healthy(ctx) && cfg.QueueBackend != "memory" {
		lg.Warn().Msg("redis not reachable yet, consumer will keep polling")
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classattend:audit")
	}

	audits := attendance.NewAuditRepository(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		lg.Fatal().Err(err).Msg("queue consume init failed")
	}

	lg.Info().Msg("worker started, waiting for audit events")
	for msg := range messages {
		if msg.Type != "audit" {
			continue
		}

		evt, err := attendance.DecodeAuditEvent(msg.Body)
		if err != nil {
			lg.Error().Err(err).Msg("audit event decode failed")
			continue
		}

		if err := audits.Insert(ctx, evt); err != nil {
			lg.Error().Err(err).Str("event", evt.ID).Msg("audit insert failed")
			continue
		}

		lg.Debug().
			Str("course", evt.CourseID).
			Str("outcome", evt.Outcome).
			Str("window", evt.WindowID).
			Msg("audit event persisted")
	}

	lg.Info().Msg("worker stopped")
}
