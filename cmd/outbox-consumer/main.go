// Command outbox-consumer runs C4's polling loop: claim due outbox rows,
// validate and publish them onto the stream log, and classify failures as
// retryable or terminal, until interrupted.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	zlog "github.com/rs/zerolog/log"

	"github.com/arc-self/eventcore/internal/config"
	"github.com/arc-self/eventcore/internal/logging"
	"github.com/arc-self/eventcore/internal/outbox"
	"github.com/arc-self/eventcore/internal/schema"
	"github.com/arc-self/eventcore/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logging.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := cfg.OpenDB()
	if err != nil {
		zlog.Fatal().Err(err).Msg("db open failed")
	}
	defer db.Close()

	{
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			zlog.Fatal().Err(err).Msg("db ping failed")
		}
	}

	if _, err := schema.Migrate(ctx, db); err != nil {
		zlog.Fatal().Err(err).Msg("migration failed")
	}

	opt, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		zlog.Fatal().Err(err).Msg("redis url parse failed")
	}
	rdb := goredis.NewClient(opt)
	defer rdb.Close()

	streamTopics := make(map[string]stream.Topic, len(cfg.Topics))
	for name, t := range cfg.Topics {
		streamTopics[name] = stream.Topic{
			Name:          t.Name,
			MaxLen:        t.MaxLen,
			ConsumerGroup: t.ConsumerGroup,
			BatchCount:    t.BatchCount,
			BlockMs:       t.BlockMs,
		}
	}

	log := stream.NewRedisLog(rdb)
	router := stream.NewRouter(log, streamTopics)

	outboxStore := outbox.NewStore(db)

	backoff := outbox.BackoffConfig{
		Base:       cfg.Outbox.BackoffBase,
		Cap:        cfg.Outbox.BackoffCap,
		Multiplier: cfg.Outbox.BackoffMult,
		JitterFrac: cfg.Outbox.BackoffJitter,
	}

	consumer := outbox.NewConsumer(outboxStore, router, backoff, cfg.Outbox.BatchSize, cfg.Outbox.MaxRetries, cfg.Outbox.PollInterval)

	zlog.Info().Dur("poll_interval", cfg.Outbox.PollInterval).Int("batch_size", cfg.Outbox.BatchSize).Msg("outbox consumer starting")
	consumer.Run(ctx)
	zlog.Info().Msg("outbox consumer stopped")
}
