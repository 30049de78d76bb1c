package stream

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLog implements Log against Redis Streams, generalizing the teacher's
// caching/redis.Client wrapper from a cache-aside client into the C2
// transport.
type RedisLog struct {
	rdb *redis.Client
}

func NewRedisLog(rdb *redis.Client) *RedisLog {
	return &RedisLog{rdb: rdb}
}

func (l *RedisLog) Append(ctx context.Context, topic string, maxLen int64, fields map[string]string) (string, error) {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	id, err := l.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", err
	}
	return id, nil
}

func (l *RedisLog) EnsureGroup(ctx context.Context, topic, group string) error {
	err := l.rdb.XGroupCreateMkStream(ctx, topic, group, "$").Err()
	if err != nil && !isGroupExistsErr(err) {
		return err
	}
	return nil
}

func (l *RedisLog) ReadGroup(ctx context.Context, topic, group, consumer string, count int64, blockMs time.Duration) ([]Message, error) {
	res, err := l.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{topic, ">"},
		Count:    count,
		Block:    blockMs,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out []Message
	for _, stream := range res {
		for _, xm := range stream.Messages {
			out = append(out, toMessage(xm))
		}
	}
	return out, nil
}

func (l *RedisLog) Ack(ctx context.Context, topic, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return l.rdb.XAck(ctx, topic, group, messageIDs...).Err()
}

func (l *RedisLog) AutoClaim(ctx context.Context, topic, group, consumer string, minIdle time.Duration, count int64, cursor string) ([]Message, string, error) {
	if cursor == "" {
		cursor = "0-0"
	}
	xmsgs, next, err := l.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   topic,
		Group:    group,
		MinIdle:  minIdle,
		Start:    cursor,
		Count:    count,
		Consumer: consumer,
	}).Result()
	if err != nil {
		return nil, "", err
	}
	out := make([]Message, 0, len(xmsgs))
	for _, xm := range xmsgs {
		out = append(out, toMessage(xm))
	}
	return out, next, nil
}

func toMessage(xm redis.XMessage) Message {
	fields := make(map[string]string, len(xm.Values))
	for k, v := range xm.Values {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return Message{ID: xm.ID, Fields: fields}
}

func isGroupExistsErr(err error) bool {
	return strings.Contains(err.Error(), "BUSYGROUP")
}
