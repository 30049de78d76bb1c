package stream

import (
	"context"
	"strings"

	"github.com/arc-self/eventcore/internal/envelope"
	"github.com/arc-self/eventcore/internal/metrics"
)

// TopicFor resolves (aggregateType, eventType) to a topic name.
// aggregateType is the primary key, matched case-insensitively; eventType is
// accepted for forward compatibility but unused by the current routing
// table, which keys exclusively on aggregate type.
func TopicFor(aggregateType, eventType string) string {
	if topic, ok := routingTable[strings.ToLower(strings.TrimSpace(aggregateType))]; ok {
		return topic
	}
	return defaultTopic
}

// Router publishes envelopes to their resolved topic (C5). It is the sole
// write path into the stream log.
type Router struct {
	log    Log
	topics map[string]Topic
}

func NewRouter(log Log, topics map[string]Topic) *Router {
	return &Router{log: log, topics: topics}
}

// Publish routes and appends e, returning the assigned stream message id.
// Transport failures are returned verbatim for the caller (C4) to classify
// as retryable.
func (r *Router) Publish(ctx context.Context, aggregateType, eventType string, e *envelope.Envelope) (string, error) {
	topicName := TopicFor(aggregateType, eventType)
	topic, ok := r.topics[topicName]
	if !ok {
		topic = Topic{Name: topicName, MaxLen: 10_000}
	}

	fields := envelope.ToStreamFields(e)
	id, err := r.log.Append(ctx, topic.Name, topic.MaxLen, fields)
	if err != nil {
		metrics.RecordStreamPublish(topic.Name, "error")
		return "", err
	}
	metrics.RecordStreamPublish(topic.Name, "ok")
	return id, nil
}
