package backend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/maxpert/logcursor/cfg"
	"github.com/maxpert/logcursor/cursor"
	"github.com/maxpert/logcursor/locallog"
	"github.com/maxpert/logcursor/logclient"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultKafkaDialTimeout    = 10 * time.Second
	DefaultKafkaRequestTimeout = 30 * time.Second
	DefaultKafkaBatchTimeout   = 10 * time.Millisecond
	DefaultKafkaMaxBytes       = 10 << 20 // 10MB
)

func init() {
	logclient.RegisterBackend(cfg.BackendKafka, func(config *cfg.Configuration) (logclient.Backend, error) {
		return NewKafkaBackend(KafkaConfig{
			Brokers:        config.Log.Brokers,
			DialTimeout:    time.Duration(config.Log.DialTimeoutMS) * time.Millisecond,
			RequestTimeout: time.Duration(config.Log.RequestTimeoutMS) * time.Millisecond,
			RequiredAcks:   kafka.RequiredAcks(config.Producer.RequiredAcks),
			BatchTimeout:   time.Duration(config.Producer.BatchTimeoutMS) * time.Millisecond,
		})
	})
}

// KafkaConfig holds configuration for KafkaBackend
type KafkaConfig struct {
	Brokers        []string           // Kafka broker addresses
	DialTimeout    time.Duration      // Connection establishment timeout
	RequestTimeout time.Duration      // Per request timeout of admin/offset calls
	RequiredAcks   kafka.RequiredAcks // Ack requirement (default: RequireAll)
	BatchTimeout   time.Duration      // Max wait before a partial batch is flushed
}

// DefaultKafkaConfig returns a KafkaConfig with sensible defaults
func DefaultKafkaConfig(brokers []string) KafkaConfig {
	return KafkaConfig{
		Brokers:        brokers,
		DialTimeout:    DefaultKafkaDialTimeout,
		RequestTimeout: DefaultKafkaRequestTimeout,
		RequiredAcks:   kafka.RequireAll,
		BatchTimeout:   DefaultKafkaBatchTimeout,
	}
}

// KafkaBackend implements logclient.Backend on Kafka brokers
type KafkaBackend struct {
	config    KafkaConfig
	transport *kafka.Transport
	client    *kafka.Client
	writer    *kafka.Writer
}

// NewKafkaBackend creates a new KafkaBackend with the given configuration.
// No connection is made until the first call.
func NewKafkaBackend(config KafkaConfig) (*KafkaBackend, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka backend requires at least one broker address")
	}

	if config.DialTimeout == 0 {
		config.DialTimeout = DefaultKafkaDialTimeout
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultKafkaRequestTimeout
	}
	if config.BatchTimeout == 0 {
		config.BatchTimeout = DefaultKafkaBatchTimeout
	}

	transport := &kafka.Transport{
		DialTimeout: config.DialTimeout,
	}

	client := &kafka.Client{
		Addr:      kafka.TCP(config.Brokers...),
		Timeout:   config.RequestTimeout,
		Transport: transport,
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Balancer:               partitionBalancer{}, // Messages carry their target partition
		BatchSize:              1,
		BatchTimeout:           config.BatchTimeout,
		RequiredAcks:           config.RequiredAcks,
		Async:                  false, // Sync writes so high-water marks move before we return
		AllowAutoTopicCreation: false, // Topics are provisioned explicitly
		Transport:              transport,
	}

	return &KafkaBackend{
		config:    config,
		transport: transport,
		client:    client,
		writer:    writer,
	}, nil
}

// partitionBalancer routes a message to the partition set on it. Messages
// without one are placed by the same key hash the local backend uses.
type partitionBalancer struct{}

func (partitionBalancer) Balance(msg kafka.Message, partitions ...int) int {
	if msg.Partition >= 0 || len(partitions) == 0 {
		return msg.Partition
	}
	return partitions[locallog.PartitionForKey(msg.Key, len(partitions))]
}

// Topics lists every non-internal topic in the cluster metadata
func (k *KafkaBackend) Topics(ctx context.Context) ([]string, error) {
	resp, err := k.client.Metadata(ctx, &kafka.MetadataRequest{})
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}

	names := make([]string, 0, len(resp.Topics))
	for _, t := range resp.Topics {
		if t.Internal || t.Error != nil {
			continue
		}
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Partitions lists partition ids in the order the broker metadata reports them
func (k *KafkaBackend) Partitions(ctx context.Context, topic string) ([]int, error) {
	resp, err := k.client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{topic}})
	if err != nil {
		return nil, fmt.Errorf("metadata request failed: %w", err)
	}

	for _, t := range resp.Topics {
		if t.Name != topic {
			continue
		}
		if t.Error != nil {
			return nil, t.Error
		}

		ids := make([]int, 0, len(t.Partitions))
		for _, p := range t.Partitions {
			ids = append(ids, p.ID)
		}
		return ids, nil
	}

	return nil, fmt.Errorf("topic %s not found in metadata", topic)
}

// HighWaterMarks asks for the last offset of every partition in one ListOffsets round trip
func (k *KafkaBackend) HighWaterMarks(ctx context.Context, topic string, partitions []int) (map[int]int64, error) {
	reqs := make([]kafka.OffsetRequest, 0, len(partitions))
	for _, p := range partitions {
		reqs = append(reqs, kafka.LastOffsetOf(p))
	}

	resp, err := k.client.ListOffsets(ctx, &kafka.ListOffsetsRequest{
		Topics: map[string][]kafka.OffsetRequest{topic: reqs},
	})
	if err != nil {
		return nil, fmt.Errorf("list offsets request failed: %w", err)
	}

	marks := make(map[int]int64, len(partitions))
	for _, po := range resp.Topics[topic] {
		if po.Error != nil {
			return nil, &cursor.PartitionQueryError{Topic: topic, Partition: po.Partition, Err: po.Error}
		}
		marks[po.Partition] = po.LastOffset
	}
	return marks, nil
}

// Produce writes one message synchronously. Kafka's writer does not report
// the assigned offset, so -1 is returned.
func (k *KafkaBackend) Produce(ctx context.Context, msg logclient.Message) (int64, error) {
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Key:       msg.Key,
		Value:     msg.Value,
	})
	return -1, err
}

// Consume reads records of one partition up to the current high-water mark
func (k *KafkaBackend) Consume(ctx context.Context, topic string, partition int, from int64, max int) ([]logclient.Record, error) {
	if max <= 0 {
		return nil, nil
	}

	marks, err := k.HighWaterMarks(ctx, topic, []int{partition})
	if err != nil {
		return nil, err
	}
	hwm, ok := marks[partition]
	if !ok || from >= hwm {
		return nil, nil
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   k.config.Brokers,
		Topic:     topic,
		Partition: partition,
		MinBytes:  1,
		MaxBytes:  DefaultKafkaMaxBytes,
		MaxWait:   250 * time.Millisecond,
		Dialer:    &kafka.Dialer{Timeout: k.config.DialTimeout},
	})
	defer reader.Close()

	if err := reader.SetOffset(from); err != nil {
		return nil, fmt.Errorf("failed to seek %s/%d to %d: %w", topic, partition, from, err)
	}

	records := make([]logclient.Record, 0, max)
	for len(records) < max {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s/%d: %w", topic, partition, err)
		}

		records = append(records, logclient.Record{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Key:       m.Key,
			Value:     m.Value,
			Time:      m.Time,
		})

		// Do not wait for writes that happen after the call started
		if m.Offset+1 >= hwm {
			break
		}
	}
	return records, nil
}

// CreateTopic creates a topic through the cluster controller
func (k *KafkaBackend) CreateTopic(ctx context.Context, spec logclient.TopicSpec) error {
	resp, err := k.client.CreateTopics(ctx, &kafka.CreateTopicsRequest{
		Topics: []kafka.TopicConfig{{
			Topic:             spec.Name,
			NumPartitions:     spec.Partitions,
			ReplicationFactor: spec.ReplicationFactor,
			ConfigEntries:     configEntries(spec.Config),
		}},
	})
	if err != nil {
		return fmt.Errorf("create topics request failed: %w", err)
	}

	if topicErr := resp.Errors[spec.Name]; topicErr != nil {
		return topicErr
	}

	log.Debug().Str("topic", spec.Name).Msg("Kafka topic created")
	return nil
}

func configEntries(config map[string]string) []kafka.ConfigEntry {
	entries := make([]kafka.ConfigEntry, 0, len(config))
	for name, value := range config {
		entries = append(entries, kafka.ConfigEntry{ConfigName: name, ConfigValue: value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ConfigName < entries[j].ConfigName })
	return entries
}

// TopicConfig describes topic configuration entries (all of them when names is empty)
func (k *KafkaBackend) TopicConfig(ctx context.Context, topic string, names ...string) (map[string]string, error) {
	resp, err := k.client.DescribeConfigs(ctx, &kafka.DescribeConfigsRequest{
		Resources: []kafka.DescribeConfigRequestResource{{
			ResourceType: kafka.ResourceTypeTopic,
			ResourceName: topic,
			ConfigNames:  names,
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("describe configs request failed: %w", err)
	}

	out := make(map[string]string)
	for _, res := range resp.Resources {
		if res.Error != nil {
			return nil, res.Error
		}
		for _, entry := range res.ConfigEntries {
			out[entry.ConfigName] = entry.ConfigValue
		}
	}
	return out, nil
}

// Close releases resources held by the KafkaBackend
func (k *KafkaBackend) Close() error {
	var err error
	if k.writer != nil {
		err = k.writer.Close()
	}
	if k.transport != nil {
		k.transport.CloseIdleConnections()
	}
	return err
}
