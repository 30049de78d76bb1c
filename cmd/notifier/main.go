// Command notifier runs C7/C8/C9: the connection registry, the per-topic
// fanout consumer loops, and the HTTP surface (SSE/WebSocket upgrades plus
// the DLQ admin API), alongside scheduled DLQ expiry and stale-session
// reaping sweeps.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	zlog "github.com/rs/zerolog/log"

	"github.com/arc-self/eventcore/internal/config"
	"github.com/arc-self/eventcore/internal/dlq"
	"github.com/arc-self/eventcore/internal/envelope"
	"github.com/arc-self/eventcore/internal/httpapi"
	"github.com/arc-self/eventcore/internal/logging"
	"github.com/arc-self/eventcore/internal/notifier"
	"github.com/arc-self/eventcore/internal/registry"
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
	topicList := make([]stream.Topic, 0, len(streamTopics))
	for _, t := range streamTopics {
		topicList = append(topicList, t)
	}

	streamLog := stream.NewRedisLog(rdb)
	reg := registry.New(registry.Limits{
		MaxPerUser:   cfg.Session.MaxPerUser,
		MaxPerTenant: cfg.Session.MaxPerTenant,
	})

	hostname, _ := os.Hostname()
	consumerName := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	notif := notifier.New(streamLog, reg, consumerName, cfg.Session.MaxFrameBytes)

	dlqStore := dlq.NewStore(db)
	router := stream.NewRouter(streamLog, streamTopics)
	republish := func(ctx context.Context, rec dlq.Record) error {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return err
		}
		env, err := envelope.Parse(payload)
		if err != nil {
			return err
		}
		_, err = router.Publish(ctx, rec.AggregateType, rec.EventType, env)
		return err
	}
	dlqManager := dlq.NewManager(dlqStore, republish, dlq.AlertConfig{
		TotalThreshold:    cfg.DLQ.AlertTotal,
		OldestAgeThresh:   time.Duration(cfg.DLQ.AlertOldestHours) * time.Hour,
		FailureRateThresh: cfg.DLQ.AlertFailureRate,
	})

	sched := cron.New()
	sched.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		expired, err := dlqManager.Expire(ctx, cfg.DLQ.ExpireDays)
		if err != nil {
			zlog.Error().Err(err).Msg("dlq expire sweep failed")
			return
		}
		zlog.Info().Int64("expired", expired).Msg("dlq expire sweep complete")
	})
	sched.AddFunc("@every 1m", func() {
		maxIdle := 3 * cfg.Heartbeat.WS
		stale := reg.ReapStale(maxIdle)
		for _, c := range stale {
			c.Close("idle timeout")
		}
		if len(stale) > 0 {
			zlog.Info().Int("count", len(stale)).Msg("reaped stale sessions")
		}
	})
	sched.Start()
	defer sched.Stop()

	httpHandler := httpapi.New(cfg, db, rdb, reg, dlqManager)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpHandler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		zlog.Info().Str("addr", cfg.HTTPAddr).Msg("notifier http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("server crashed")
		}
	}()

	go notif.Start(ctx, topicList)

	<-ctx.Done()
	zlog.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
