package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/arc-self/eventcore/internal/envelope"
	"github.com/arc-self/eventcore/internal/metrics"
	"github.com/arc-self/eventcore/internal/registry"
	"github.com/arc-self/eventcore/internal/stream"
)

// processOne parses one stream message, resolves recipients, and dispatches
// concurrently through the topic's worker pool, acknowledging only once
// every recipient has been dispatched or removed as unhealthy (§4.6 step e).
func (n *Notifier) processOne(ctx context.Context, topic stream.Topic, pool *workerPool, msg stream.Message, log zerolog.Logger) {
	start := time.Now()
	defer func() { metrics.ObserveDispatchLatency(topic.Name, time.Since(start)) }()

	env, err := envelope.FromStreamFields(msg.Fields, "")
	if err != nil {
		// A malformed message will never parse on redelivery either;
		// acknowledging it here is the only way to stop it from being
		// claimed forever.
		log.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed stream message")
		n.ack(ctx, topic, msg.ID, log)
		return
	}

	recipients := n.registry.SelectRecipients(env)
	if len(recipients) == 0 {
		n.ack(ctx, topic, msg.ID, log)
		return
	}

	var (
		wg       sync.WaitGroup
		accounted int64
	)
	total := int64(len(recipients))

	for _, conn := range recipients {
		conn := conn
		wg.Add(1)
		pool.submit(func() {
			defer wg.Done()
			n.dispatchOne(topic.Name, conn, env, log)
			atomic.AddInt64(&accounted, 1)
		})
	}
	wg.Wait()

	if atomic.LoadInt64(&accounted) == total {
		n.ack(ctx, topic, msg.ID, log)
	} else {
		log.Error().Str("message_id", msg.ID).Msg("dispatch accounting mismatch, leaving unacked for redelivery")
	}
}

// dispatchOne writes one frame to conn. A frame larger than the configured
// max is dropped and the session marked unhealthy outright (§4.6
// backpressure policy); any other send error increments the session's
// missed-heartbeat counter so ordinary reap/heartbeat bookkeeping converges
// on removing it rather than treating one slow write as fatal immediately.
func (n *Notifier) dispatchOne(topicName string, conn *registry.Connection, env *envelope.Envelope, log zerolog.Logger) {
	encode := n.encoders[conn.Transport]
	if encode == nil {
		return
	}
	frame, err := encode(env)
	if err != nil {
		log.Error().Err(err).Str("session_id", conn.SessionID).Msg("encode frame failed")
		return
	}

	if n.maxFrameBytes > 0 && len(frame) > n.maxFrameBytes {
		log.Warn().Str("session_id", conn.SessionID).Int("frame_bytes", len(frame)).Msg("frame exceeds max_frame_bytes, dropping and marking session unhealthy")
		metrics.RecordDispatch(topicName, "dropped_oversize")
		conn.MissHeartbeat()
		conn.MissHeartbeat()
		conn.MissHeartbeat()
		n.registry.MarkUnhealthy(conn.SessionID)
		return
	}

	if err := conn.Send(frame); err != nil {
		log.Warn().Err(err).Str("session_id", conn.SessionID).Msg("send failed, recording miss")
		metrics.RecordDispatch(topicName, "send_failed")
		conn.MissHeartbeat()
		if removed := n.registry.MarkUnhealthy(conn.SessionID); removed != nil {
			removed.Close("send failed")
		}
		return
	}
	metrics.RecordDispatch(topicName, "sent")
	conn.Touch()
}

func (n *Notifier) ack(ctx context.Context, topic stream.Topic, messageID string, log zerolog.Logger) {
	if err := n.log.Ack(ctx, topic.Name, topic.ConsumerGroup, messageID); err != nil {
		log.Error().Err(err).Str("message_id", messageID).Msg("ack failed")
	}
}
