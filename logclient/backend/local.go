package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/maxpert/logcursor/cfg"
	"github.com/maxpert/logcursor/cursor"
	"github.com/maxpert/logcursor/locallog"
	"github.com/maxpert/logcursor/logclient"
)

func init() {
	logclient.RegisterBackend(cfg.BackendLocal, func(config *cfg.Configuration) (logclient.Backend, error) {
		if config.Log.LocalDir == "" {
			return nil, fmt.Errorf("local backend requires local_dir")
		}
		return NewLocalBackend(config.Log.LocalDir)
	})
}

// LocalBackend implements logclient.Backend on the embedded Pebble log
type LocalBackend struct {
	log *locallog.Log
}

// NewLocalBackend opens (or creates) the embedded log under dataDir
func NewLocalBackend(dataDir string) (*LocalBackend, error) {
	l, err := locallog.Open(dataDir)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{log: l}, nil
}

func (b *LocalBackend) Topics(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.log.Topics(), nil
}

func (b *LocalBackend) Partitions(_ context.Context, topic string) ([]int, error) {
	return b.log.Partitions(topic)
}

func (b *LocalBackend) HighWaterMarks(ctx context.Context, topic string, partitions []int) (map[int]int64, error) {
	marks := make(map[int]int64, len(partitions))
	for _, p := range partitions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hwm, err := b.log.HighWaterMark(topic, p)
		if err != nil {
			return nil, &cursor.PartitionQueryError{Topic: topic, Partition: p, Err: err}
		}
		marks[p] = hwm
	}
	return marks, nil
}

// Produce appends a record; a negative partition is chosen by key hash
func (b *LocalBackend) Produce(ctx context.Context, msg logclient.Message) (int64, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	return b.log.Append(msg.Topic, msg.Partition, msg.Key, msg.Value)
}

func (b *LocalBackend) Consume(ctx context.Context, topic string, partition int, from int64, max int) ([]logclient.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if max <= 0 {
		return nil, nil
	}

	stored, err := b.log.Read(topic, partition, from, max)
	if err != nil {
		return nil, err
	}

	records := make([]logclient.Record, len(stored))
	for i, r := range stored {
		records[i] = logclient.Record{
			Topic:     r.Topic,
			Partition: r.Partition,
			Offset:    r.Offset,
			Key:       r.Key,
			Value:     r.Value,
			Time:      time.UnixMilli(r.Timestamp),
		}
	}
	return records, nil
}

func (b *LocalBackend) CreateTopic(_ context.Context, spec logclient.TopicSpec) error {
	return b.log.CreateTopic(locallog.TopicMeta{
		Name:              spec.Name,
		Partitions:        spec.Partitions,
		ReplicationFactor: spec.ReplicationFactor,
		Config:            spec.Config,
	})
}

func (b *LocalBackend) TopicConfig(_ context.Context, topic string, names ...string) (map[string]string, error) {
	meta, err := b.log.Topic(topic)
	if err != nil {
		return nil, err
	}
	return selectConfig(meta.Config, names), nil
}

func (b *LocalBackend) Close() error {
	return b.log.Close()
}
