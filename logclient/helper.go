package logclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/maxpert/logcursor/cfg"
	"github.com/maxpert/logcursor/cursor"
	"github.com/maxpert/logcursor/telemetry"
	"github.com/rs/zerolog/log"
)

// Topic configuration entries read back by scenarios
const (
	PropertyRetentionMS   = "retention.ms"
	PropertyCleanupPolicy = "cleanup.policy"
)

// HelperConfig holds the defaults Helper applies
type HelperConfig struct {
	Key               string // key of every test message
	Partitions        int
	ReplicationFactor int
	TopicConfig       map[string]string
}

// HelperConfigFrom extracts helper defaults from the configuration
func HelperConfigFrom(c *cfg.Configuration) HelperConfig {
	return HelperConfig{
		Key:               c.Producer.Key,
		Partitions:        c.Topic.Partitions,
		ReplicationFactor: c.Topic.ReplicationFactor,
		TopicConfig:       c.Topic.Config,
	}
}

// Helper is what test scenarios use to drive and inspect the log
type Helper struct {
	backend  Backend
	resolver *cursor.Resolver
	config   HelperConfig
}

// NewHelper creates a Helper on top of a backend
func NewHelper(backend Backend, config HelperConfig) *Helper {
	if config.Partitions < 1 {
		config.Partitions = 1
	}
	if config.ReplicationFactor < 1 {
		config.ReplicationFactor = 1
	}

	return &Helper{
		backend:  backend,
		resolver: cursor.NewResolver(backend),
		config:   config,
	}
}

// Resolver exposes the cursor resolver bound to the backend
func (h *Helper) Resolver() *cursor.Resolver {
	return h.resolver
}

// WriteMessageToPartition writes message wrapped in double quotes to one partition.
// The message is not escaped.
func (h *Helper) WriteMessageToPartition(ctx context.Context, partition, topic, message string) error {
	p, err := parsePartition(partition)
	if err != nil {
		return err
	}
	return h.write(ctx, topic, p, message)
}

// WriteMultipleMessagesToPartition writes the same message times times
func (h *Helper) WriteMultipleMessagesToPartition(ctx context.Context, partition, topic, message string, times int) error {
	p, err := parsePartition(partition)
	if err != nil {
		return err
	}
	for i := 0; i < times; i++ {
		if err := h.write(ctx, topic, p, message); err != nil {
			return err
		}
	}
	return nil
}

// WriteMessages writes message times times, letting the backend pick the
// partition from the configured key
func (h *Helper) WriteMessages(ctx context.Context, topic, message string, times int) error {
	for i := 0; i < times; i++ {
		if err := h.write(ctx, topic, AnyPartition, message); err != nil {
			return err
		}
	}
	return nil
}

func (h *Helper) write(ctx context.Context, topic string, partition int, message string) error {
	start := time.Now()
	offset, err := h.backend.Produce(ctx, Message{
		Topic:     topic,
		Partition: partition,
		Key:       []byte(h.config.Key),
		Value:     []byte(`"` + message + `"`),
	})
	telemetry.ProduceDurationSeconds.Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.MessagesProducedTotal.With(topic, "failed").Inc()
		if partition < 0 {
			return fmt.Errorf("failed to write to %s: %w", topic, err)
		}
		return fmt.Errorf("failed to write to %s/%d: %w", topic, partition, err)
	}
	telemetry.MessagesProducedTotal.With(topic, "success").Inc()

	log.Debug().
		Str("topic", topic).
		Int("partition", partition).
		Int64("offset", offset).
		Msg("Wrote test message")
	return nil
}

// Topics lists the topics known to the backend
func (h *Helper) Topics(ctx context.Context) ([]string, error) {
	return h.backend.Topics(ctx)
}

// GetNextOffsets returns the raw high-water mark of every partition
func (h *Helper) GetNextOffsets(ctx context.Context, topic string) ([]cursor.Cursor, error) {
	return observeResolution("next", func() ([]cursor.Cursor, error) {
		return h.resolver.NextOffsets(ctx, topic)
	})
}

// GetOffsetsToReadFromLatest returns cursors that skip everything already written
func (h *Helper) GetOffsetsToReadFromLatest(ctx context.Context, topic string) ([]cursor.Cursor, error) {
	return observeResolution("latest", func() ([]cursor.Cursor, error) {
		return h.resolver.LatestCursors(ctx, topic)
	})
}

func observeResolution(op string, fn func() ([]cursor.Cursor, error)) ([]cursor.Cursor, error) {
	start := time.Now()
	cursors, err := fn()
	telemetry.CursorResolutionSeconds.With(op).Observe(time.Since(start).Seconds())

	if err != nil {
		telemetry.CursorResolutionsTotal.With(op, "failed").Inc()
		return nil, err
	}
	telemetry.CursorResolutionsTotal.With(op, "success").Inc()
	return cursors, nil
}

// CreateTopic provisions a topic with the configured defaults
func (h *Helper) CreateTopic(ctx context.Context, topic string) error {
	return h.CreateTopicWithSpec(ctx, TopicSpec{
		Name:              topic,
		Partitions:        h.config.Partitions,
		ReplicationFactor: h.config.ReplicationFactor,
		Config:            h.config.TopicConfig,
	})
}

// CreateTopicWithSpec provisions a topic exactly as described
func (h *Helper) CreateTopicWithSpec(ctx context.Context, spec TopicSpec) error {
	if err := h.backend.CreateTopic(ctx, spec); err != nil {
		telemetry.TopicsCreatedTotal.With("failed").Inc()
		return fmt.Errorf("failed to create topic %s: %w", spec.Name, err)
	}
	telemetry.TopicsCreatedTotal.With("success").Inc()

	log.Info().
		Str("topic", spec.Name).
		Int("partitions", spec.Partitions).
		Int("replication_factor", spec.ReplicationFactor).
		Msg("Created topic")
	return nil
}

// GetTopicProperty returns one configuration entry of a topic
func (h *Helper) GetTopicProperty(ctx context.Context, topic, name string) (string, error) {
	entries, err := h.backend.TopicConfig(ctx, topic, name)
	if err != nil {
		return "", fmt.Errorf("failed to describe topic %s: %w", topic, err)
	}

	value, ok := entries[name]
	if !ok {
		return "", fmt.Errorf("topic %s has no %s property", topic, name)
	}
	return value, nil
}

// GetTopicRetentionTime returns retention.ms of a topic
func (h *Helper) GetTopicRetentionTime(ctx context.Context, topic string) (int64, error) {
	value, err := h.GetTopicProperty(ctx, topic, PropertyRetentionMS)
	if err != nil {
		return 0, err
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q for topic %s: %w", PropertyRetentionMS, value, topic, err)
	}
	return ms, nil
}

// GetTopicCleanupPolicy returns cleanup.policy of a topic
func (h *Helper) GetTopicCleanupPolicy(ctx context.Context, topic string) (string, error) {
	return h.GetTopicProperty(ctx, topic, PropertyCleanupPolicy)
}

// ReadAfter consumes up to max records written after the position of c
func (h *Helper) ReadAfter(ctx context.Context, topic string, c cursor.Cursor, max int) ([]Record, error) {
	p, err := parsePartition(c.Partition)
	if err != nil {
		return nil, err
	}

	native, err := c.NativeOffset()
	if err != nil {
		return nil, err
	}

	records, err := h.backend.Consume(ctx, topic, p, native+1, max)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%d after %s: %w", topic, p, c.Offset, err)
	}
	telemetry.MessagesConsumedTotal.With(topic).Add(float64(len(records)))
	return records, nil
}

// Close closes the backend
func (h *Helper) Close() error {
	return h.backend.Close()
}

func parsePartition(partition string) (int, error) {
	p, err := strconv.Atoi(partition)
	if err != nil || p < 0 {
		return 0, fmt.Errorf("invalid partition %q", partition)
	}
	return p, nil
}
