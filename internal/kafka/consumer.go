package kafka

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"
	"vn.io.arda/onboarding/internal/domain"
	"vn.io.arda/onboarding/internal/kafka/registry"

	// Blank imports trigger init() in each handler file,
	// registering all event handlers into the registry.
	_ "vn.io.arda/onboarding/internal/kafka/handlers"
)

// Invalidator applies cache invalidations. Satisfied by *application.Service.
type Invalidator interface {
	ApplyInvalidation(ctx context.Context, inv domain.Invalidation) error
}

// Consumer wraps the franz-go Kafka client.
type Consumer struct {
	client *kgo.Client
	target Invalidator
}

// New creates a Consumer with the given brokers, group ID, and topics.
func New(brokers []string, groupID string, topics []string, target Invalidator) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: client, target: target}, nil
}

// Start begins polling Kafka and processing records. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	log.Info().Msg("kafka consumer started")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
		})

		fetches.EachRecord(func(r *kgo.Record) {
			process(ctx, c.target, r.Topic, r.Value)
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			log.Error().Err(err).Msg("kafka commit error")
		}
	}

	c.client.Close()
	log.Info().Msg("kafka consumer stopped")
}

// process dispatches one record to its registered handler and applies the
// resulting invalidation. Failures are logged; the offset is committed anyway
// since the cache TTL bounds any staleness left behind.
func process(ctx context.Context, target Invalidator, topic string, value []byte) {
	inv := registry.Dispatch(topic, value)
	if inv == nil {
		log.Debug().Str("topic", topic).Msg("no handler matched, skipping")
		return
	}
	if inv.SourceEventID == "" {
		inv.SourceEventID = uuid.NewString()
	}

	if err := target.ApplyInvalidation(ctx, *inv); err != nil {
		log.Error().Err(err).
			Str("topic", topic).
			Str("scope", string(inv.Scope)).
			Str("source_event_id", inv.SourceEventID).
			Msg("failed to apply cache invalidation from kafka event")
		return
	}
	log.Debug().
		Str("topic", topic).
		Str("scope", string(inv.Scope)).
		Str("source_event_id", inv.SourceEventID).
		Msg("cache invalidated from kafka event")
}
