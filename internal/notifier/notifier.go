// Package notifier implements C8: one independent consumer per subscribed
// topic, each reading via a stream consumer group, filtering recipients
// through the C7 registry, and fanning out concurrently to the matching
// transport adapters. Grounded on the email-service's
// app/consumer/consumer.go per-queue consume loop, generalized from a
// single AMQP queue to N independently configured stream topics.
package notifier

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/arc-self/eventcore/internal/envelope"
	"github.com/arc-self/eventcore/internal/logging"
	"github.com/arc-self/eventcore/internal/registry"
	"github.com/arc-self/eventcore/internal/stream"
	"github.com/arc-self/eventcore/internal/transport"
)

// Encoder renders an envelope as the wire frame for one transport kind.
type Encoder func(e *envelope.Envelope) ([]byte, error)

// Notifier owns the per-topic consumer loops.
type Notifier struct {
	log      stream.Log
	registry *registry.Registry

	consumerName  string
	maxFrameBytes int
	claimInterval time.Duration
	claimMinIdle  time.Duration

	encoders map[registry.Transport]Encoder
}

// Option customizes Notifier defaults for tests.
type Option func(*Notifier)

func WithClaimInterval(d time.Duration) Option { return func(n *Notifier) { n.claimInterval = d } }
func WithClaimMinIdle(d time.Duration) Option  { return func(n *Notifier) { n.claimMinIdle = d } }

// New constructs a Notifier. consumerName should be unique per process
// instance (e.g. hostname-pid) so XAutoClaim/XPending attribute pending
// entries correctly across notifier restarts.
func New(log stream.Log, reg *registry.Registry, consumerName string, maxFrameBytes int, opts ...Option) *Notifier {
	n := &Notifier{
		log:           log,
		registry:      reg,
		consumerName:  consumerName,
		maxFrameBytes: maxFrameBytes,
		claimInterval: 5 * time.Minute,
		claimMinIdle:  5 * time.Minute,
		encoders: map[registry.Transport]Encoder{
			registry.TransportSSE:       transport.EncodeEnvelopeFrame,
			registry.TransportWebSocket: transport.EncodeEnvelopeEventFrame,
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Start spawns one goroutine per topic and blocks until ctx is cancelled,
// at which point it waits for every topic loop to finish draining its
// current batch before returning.
func (n *Notifier) Start(ctx context.Context, topics []stream.Topic) {
	done := make(chan struct{}, len(topics))
	for _, topic := range topics {
		topic := topic
		go func() {
			n.runTopic(ctx, topic)
			done <- struct{}{}
		}()
	}
	for range topics {
		<-done
	}
}

func (n *Notifier) runTopic(ctx context.Context, topic stream.Topic) {
	log := logging.WithCtx(ctx).With().Str("topic", topic.Name).Logger()

	if err := n.log.EnsureGroup(ctx, topic.Name, topic.ConsumerGroup); err != nil {
		log.Error().Err(err).Msg("ensure consumer group failed")
		return
	}

	pool := newWorkerPool(int(topic.BatchCount))
	defer pool.stop()

	claimTicker := time.NewTicker(n.jitteredClaimInterval())
	defer claimTicker.Stop()

	var claimCursor string

	for {
		select {
		case <-ctx.Done():
			return
		case <-claimTicker.C:
			claimed, next, err := n.log.AutoClaim(ctx, topic.Name, topic.ConsumerGroup, n.consumerName, n.claimMinIdle, topic.BatchCount, claimCursor)
			if err != nil {
				log.Warn().Err(err).Msg("autoclaim failed")
				continue
			}
			claimCursor = next
			if len(claimed) > 0 {
				n.processBatch(ctx, topic, pool, claimed, log)
			}
		default:
			messages, err := n.log.ReadGroup(ctx, topic.Name, topic.ConsumerGroup, n.consumerName, topic.BatchCount, topic.BlockMs)
			if err != nil {
				log.Error().Err(err).Msg("read group failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			if len(messages) == 0 {
				continue
			}
			n.processBatch(ctx, topic, pool, messages, log)
		}
	}
}

// jitteredClaimInterval avoids every topic loop issuing XAUTOCLAIM in
// lockstep when a process subscribes to many topics.
func (n *Notifier) jitteredClaimInterval() time.Duration {
	base := n.claimInterval
	jitter := time.Duration(rand.Int63n(int64(base) / 4))
	return base + jitter
}

func (n *Notifier) processBatch(ctx context.Context, topic stream.Topic, pool *workerPool, messages []stream.Message, log zerolog.Logger) {
	for _, msg := range messages {
		n.processOne(ctx, topic, pool, msg, log)
	}
}
