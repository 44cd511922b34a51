package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maxpert/logcursor/cfg"
	"github.com/maxpert/logcursor/cursor"
	"github.com/maxpert/logcursor/locallog"
	"github.com/maxpert/logcursor/logclient"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Stream metadata keys
const (
	metaTopic      = "logcursor.topic"
	metaPartitions = "logcursor.partitions"
	metaPartition  = "logcursor.partition"
	metaConfigPfx  = "logcursor.config."
)

const headerKey = "key"

func init() {
	logclient.RegisterBackend(cfg.BackendNats, func(config *cfg.Configuration) (logclient.Backend, error) {
		if config.Log.NatsURL == "" {
			return nil, fmt.Errorf("nats backend requires nats_url")
		}
		return NewNatsBackend(config.Log.NatsURL)
	})
}

// NatsBackend implements logclient.Backend on NATS JetStream.
// Every partition is its own stream, so a stream sequence maps to a
// native offset as seq-1.
type NatsBackend struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNatsBackend connects to NATS and creates a JetStream context
func NewNatsBackend(url string) (*NatsBackend, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NatsBackend{nc: nc, js: js}, nil
}

// ErrStreamCollision is returned when two topic names sanitize to the same stream names
var ErrStreamCollision = errors.New("stream name already used by another topic")

// firstStream returns partition 0's stream, checking it belongs to topic
func (n *NatsBackend) firstStream(ctx context.Context, topic string) (jetstream.Stream, error) {
	stream, err := n.js.Stream(ctx, partitionStreamName(topic, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to look up topic %s: %w", topic, err)
	}
	if err := checkStreamOwner(stream.CachedInfo().Config, topic); err != nil {
		return nil, fmt.Errorf("%w: %w", locallog.ErrTopicNotFound, err)
	}
	return stream, nil
}

// checkStreamOwner verifies a stream was created for topic
func checkStreamOwner(config jetstream.StreamConfig, topic string) error {
	if owner := config.Metadata[metaTopic]; owner != topic {
		return fmt.Errorf("%w: stream %s belongs to topic %q, not %q", ErrStreamCollision, config.Name, owner, topic)
	}
	return nil
}

// Topics lists topics recorded in the metadata of partition 0 streams
func (n *NatsBackend) Topics(ctx context.Context) ([]string, error) {
	lister := n.js.ListStreams(ctx)

	var names []string
	for info := range lister.Info() {
		md := info.Config.Metadata
		if md[metaPartition] != "0" || md[metaTopic] == "" {
			continue
		}
		names = append(names, md[metaTopic])
	}
	if err := lister.Err(); err != nil {
		return nil, fmt.Errorf("failed to list streams: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// Partitions reads the partition count recorded on the first stream of the topic
func (n *NatsBackend) Partitions(ctx context.Context, topic string) ([]int, error) {
	stream, err := n.firstStream(ctx, topic)
	if err != nil {
		return nil, err
	}

	info := stream.CachedInfo()
	count, err := strconv.Atoi(info.Config.Metadata[metaPartitions])
	if err != nil {
		return nil, fmt.Errorf("stream %s has no partition count: %w", info.Config.Name, err)
	}

	ids := make([]int, count)
	for i := range ids {
		ids[i] = i
	}
	return ids, nil
}

// HighWaterMarks reads the last sequence of every partition stream
func (n *NatsBackend) HighWaterMarks(ctx context.Context, topic string, partitions []int) (map[int]int64, error) {
	marks := make(map[int]int64, len(partitions))
	for _, p := range partitions {
		stream, err := n.js.Stream(ctx, partitionStreamName(topic, p))
		if err != nil {
			return nil, &cursor.PartitionQueryError{Topic: topic, Partition: p, Err: err}
		}

		info, err := stream.Info(ctx)
		if err != nil {
			return nil, &cursor.PartitionQueryError{Topic: topic, Partition: p, Err: err}
		}
		marks[p] = int64(info.State.LastSeq)
	}
	return marks, nil
}

// Produce publishes to the partition subject and returns seq-1 as the offset.
// Messages without a partition are placed by key hash.
func (n *NatsBackend) Produce(ctx context.Context, msg logclient.Message) (int64, error) {
	if msg.Partition < 0 {
		partitions, err := n.Partitions(ctx, msg.Topic)
		if err != nil {
			return -1, err
		}
		msg.Partition = partitions[locallog.PartitionForKey(msg.Key, len(partitions))]
	}

	subject := partitionSubject(msg.Topic, msg.Partition)
	ack, err := n.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    msg.Value,
		Header:  nats.Header{headerKey: []string{string(msg.Key)}},
	})
	if err != nil {
		return -1, fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	return int64(ack.Sequence) - 1, nil
}

// Consume fetches messages by sequence up to the stream's last sequence
func (n *NatsBackend) Consume(ctx context.Context, topic string, partition int, from int64, max int) ([]logclient.Record, error) {
	if max <= 0 {
		return nil, nil
	}
	if from < 0 {
		from = 0
	}

	stream, err := n.js.Stream(ctx, partitionStreamName(topic, partition))
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s/%d: %w", topic, partition, err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]logclient.Record, 0, max)
	for seq := uint64(from) + 1; seq <= info.State.LastSeq && len(records) < max; seq++ {
		raw, err := stream.GetMsg(ctx, seq)
		if errors.Is(err, jetstream.ErrMsgNotFound) {
			// Removed by limits or deleted; offsets are not contiguous
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get %s/%d seq %d: %w", topic, partition, seq, err)
		}

		records = append(records, logclient.Record{
			Topic:     topic,
			Partition: partition,
			Offset:    int64(raw.Sequence) - 1,
			Key:       []byte(raw.Header.Get(headerKey)),
			Value:     raw.Data,
			Time:      raw.Time,
		})
	}
	return records, nil
}

// CreateTopic creates one stream per partition. retention.ms maps to MaxAge.
func (n *NatsBackend) CreateTopic(ctx context.Context, spec logclient.TopicSpec) error {
	if spec.Partitions <= 0 {
		return fmt.Errorf("topic %s needs at least one partition", spec.Name)
	}

	var maxAge time.Duration
	if v, ok := spec.Config[logclient.PropertyRetentionMS]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", logclient.PropertyRetentionMS, v, err)
		}
		if ms > 0 {
			maxAge = time.Duration(ms) * time.Millisecond
		}
	}

	replicas := spec.ReplicationFactor
	if replicas <= 0 {
		replicas = 1
	}

	existing, err := n.js.Stream(ctx, partitionStreamName(spec.Name, 0))
	switch {
	case err == nil:
		if err := checkStreamOwner(existing.CachedInfo().Config, spec.Name); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", locallog.ErrTopicExists, spec.Name)
	case !errors.Is(err, jetstream.ErrStreamNotFound):
		return fmt.Errorf("failed to check stream for topic %s: %w", spec.Name, err)
	}

	for p := 0; p < spec.Partitions; p++ {
		metadata := map[string]string{
			metaTopic:      spec.Name,
			metaPartitions: strconv.Itoa(spec.Partitions),
			metaPartition:  strconv.Itoa(p),
		}
		for k, v := range spec.Config {
			metadata[metaConfigPfx+k] = v
		}

		name := partitionStreamName(spec.Name, p)
		_, err := n.js.CreateStream(ctx, jetstream.StreamConfig{
			Name:      name,
			Subjects:  []string{partitionSubject(spec.Name, p)},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    maxAge,
			Replicas:  replicas,
			Metadata:  metadata,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream %s: %w", name, err)
		}
	}

	log.Debug().Str("topic", spec.Name).Int("partitions", spec.Partitions).Msg("JetStream topic created")
	return nil
}

// TopicConfig returns the topic configuration stored on the first partition stream
func (n *NatsBackend) TopicConfig(ctx context.Context, topic string, names ...string) (map[string]string, error) {
	stream, err := n.firstStream(ctx, topic)
	if err != nil {
		return nil, err
	}

	all := make(map[string]string)
	for k, v := range stream.CachedInfo().Config.Metadata {
		if name, ok := strings.CutPrefix(k, metaConfigPfx); ok {
			all[name] = v
		}
	}
	return selectConfig(all, names), nil
}

// Close releases resources held by the NatsBackend
func (n *NatsBackend) Close() error {
	if n.nc != nil {
		n.nc.Close()
	}
	return nil
}

func partitionSubject(topic string, partition int) string {
	return topic + "." + strconv.Itoa(partition)
}

func partitionStreamName(topic string, partition int) string {
	return sanitizeStreamName(topic) + "_p" + strconv.Itoa(partition)
}

// sanitizeStreamName converts a topic to a valid JetStream stream name.
// Stream names can't contain ".", "*", ">" or whitespace.
func sanitizeStreamName(topic string) string {
	result := make([]byte, len(topic))
	for i := 0; i < len(topic); i++ {
		switch c := topic[i]; c {
		case '.', '*', '>', ' ', '\t':
			result[i] = '_'
		default:
			result[i] = c
		}
	}
	return string(result)
}

// selectConfig filters all down to names; no names means everything
func selectConfig(all map[string]string, names []string) map[string]string {
	if len(names) == 0 {
		return all
	}
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := all[name]; ok {
			out[name] = v
		}
	}
	return out
}
