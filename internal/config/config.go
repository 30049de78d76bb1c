// Package config loads the outbox/stream/notifier option table from the
// environment, the same getEnv/getDuration/getIntEnv shape the rest of the
// fleet uses.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Outbox holds the C4 poller tuning knobs.
type Outbox struct {
	PollInterval  time.Duration
	BatchSize     int
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	BackoffMult   float64
	BackoffJitter float64
}

// Topic holds the per-topic tuning knobs.
type Topic struct {
	Name          string
	MaxLen        int64
	ConsumerGroup string
	BatchCount    int64
	BlockMs       time.Duration
}

// Session holds the C7 admission limits.
type Session struct {
	MaxPerUser    int
	MaxPerTenant  int
	MaxFrameBytes int
}

// Heartbeat holds the C9 cadence knobs.
type Heartbeat struct {
	SSEMain  time.Duration
	SSEOrder time.Duration
	SSENotif time.Duration
	WS       time.Duration
}

// DLQ holds the C6 alert thresholds.
type DLQ struct {
	AlertTotal       int
	AlertOldestHours int
	AlertFailureRate float64
	ExpireDays       int
	ReprocessBatch   int
	ReprocessMax     int
}

type Config struct {
	AppEnv string

	HTTPAddr    string
	DatabaseURL string
	DBDriver    string
	RedisURL    string

	JWTSecret string
	JWTIssuer string

	LogLevel  string
	LogFormat string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	RLEnabled bool
	RLLimit   int
	RLWindow  time.Duration

	Outbox    Outbox
	Topics    map[string]Topic
	Session   Session
	Heartbeat Heartbeat
	DLQ       DLQ
}

var defaultTopics = map[string]int64{
	"orders":        50_000,
	"users":         20_000,
	"products":      30_000,
	"notifications": 100_000,
	"payments":      30_000,
	"inventory":     25_000,
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8090")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.DBDriver = getEnv("DB_DRIVER", "postgres") // "postgres" (lib/pq) or "pgx"
	cfg.RedisURL = getEnv("REDIS_URL", "redis://localhost:6379/0")

	cfg.JWTSecret = getEnv("JWT_SECRET", "")
	cfg.JWTIssuer = getEnv("JWT_ISSUER", "")

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	cfg.HTTPReadTimeout = getDuration("HTTP_READ_TIMEOUT", 10*time.Second)
	cfg.HTTPWriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", 0) // 0: SSE/WS must not be capped
	cfg.HTTPIdleTimeout = getDuration("HTTP_IDLE_TIMEOUT", 120*time.Second)

	cfg.RLEnabled = getEnv("RL_ENABLED", "true") == "true"
	cfg.RLLimit = getIntEnv("RL_IP_LIMIT", 100)
	cfg.RLWindow = getDuration("RL_IP_WINDOW", 1*time.Minute)

	cfg.Outbox = Outbox{
		PollInterval:  getDuration("POLL_INTERVAL_MS_DUR", 0),
		BatchSize:     getIntEnv("OUTBOX_BATCH_SIZE", 50),
		MaxRetries:    getIntEnv("MAX_RETRIES", 5),
		BackoffBase:   getDurationMs("BACKOFF_BASE_MS", 100),
		BackoffCap:    getDurationMs("BACKOFF_CAP_MS", 30_000),
		BackoffMult:   getFloatEnv("BACKOFF_MULTIPLIER", 2.0),
		BackoffJitter: getFloatEnv("BACKOFF_JITTER_FRAC", 0.10),
	}
	if cfg.Outbox.PollInterval == 0 {
		cfg.Outbox.PollInterval = getDurationMs("POLL_INTERVAL_MS", 100)
	}

	cfg.Topics = make(map[string]Topic, len(defaultTopics))
	for name, maxLen := range defaultTopics {
		upper := strings.ToUpper(name)
		blockDefault := 1000 * time.Millisecond
		if name == "notifications" {
			blockDefault = 3000 * time.Millisecond
		}
		cfg.Topics[name] = Topic{
			Name:          name,
			MaxLen:        getInt64Env("TOPIC_"+upper+"_MAX_LEN", maxLen),
			ConsumerGroup: getEnv("TOPIC_"+upper+"_GROUP", "notifier-"+name),
			BatchCount:    getInt64Env("TOPIC_"+upper+"_BATCH_COUNT", 50),
			BlockMs:       getDurationMs("TOPIC_"+upper+"_BLOCK_MS", int(blockDefault/time.Millisecond)),
		}
	}

	cfg.Session = Session{
		MaxPerUser:    getIntEnv("SESSION_MAX_PER_USER", 10),
		MaxPerTenant:  getIntEnv("SESSION_MAX_PER_TENANT", 1000),
		MaxFrameBytes: getIntEnv("SESSION_MAX_FRAME_BYTES", 10240),
	}

	cfg.Heartbeat = Heartbeat{
		SSEMain:  getDurationS("HEARTBEAT_SSE_MAIN_S", 30),
		SSEOrder: getDurationS("HEARTBEAT_SSE_ORDERS_S", 45),
		SSENotif: getDurationS("HEARTBEAT_SSE_NOTIF_S", 60),
		WS:       getDurationS("HEARTBEAT_WS_S", 30),
	}

	cfg.DLQ = DLQ{
		AlertTotal:       getIntEnv("DLQ_ALERT_TOTAL", 1000),
		AlertOldestHours: getIntEnv("DLQ_ALERT_OLDEST_HOURS", 24),
		AlertFailureRate: getFloatEnv("DLQ_ALERT_FAILURE_RATE", 0.2),
		ExpireDays:       getIntEnv("DLQ_EXPIRE_DAYS", 30),
		ReprocessBatch:   getIntEnv("DLQ_REPROCESS_BATCH", 10),
		ReprocessMax:     getIntEnv("DLQ_REPROCESS_MAX", 50),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("missing JWT_SECRET")
	}

	return cfg, nil
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getDurationMs(key string, defMs int) time.Duration {
	return time.Duration(getIntEnv(key, defMs)) * time.Millisecond
}

func getDurationS(key string, defS int) time.Duration {
	return time.Duration(getIntEnv(key, defS)) * time.Second
}

func getIntEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getInt64Env(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func getFloatEnv(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
