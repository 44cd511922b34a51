package logclient

import (
	"context"
	"time"

	"github.com/maxpert/logcursor/cursor"
)

// AnyPartition lets the backend route a message by hashing its key
const AnyPartition = -1

// Message is a record to be written to a partition.
// A negative Partition routes the message by its key.
type Message struct {
	Topic     string
	Partition int
	Key       []byte
	Value     []byte
}

// Record is a record read back from a partition
type Record struct {
	Topic     string
	Partition int
	Offset    int64 // native offset
	Key       []byte
	Value     []byte
	Time      time.Time
}

// TopicSpec describes a topic to provision
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	Config            map[string]string
}

// Backend is a partitioned log system (Kafka, JetStream, embedded, ...)
type Backend interface {
	cursor.OffsetSource

	// Topics lists the topics the log knows about
	Topics(ctx context.Context) ([]string, error)

	// Produce writes one message and returns its native offset, or -1 when the
	// log does not report it
	Produce(ctx context.Context, msg Message) (int64, error)
	// Consume reads up to max records of a partition at native offsets >= from
	Consume(ctx context.Context, topic string, partition int, from int64, max int) ([]Record, error)
	// CreateTopic provisions a topic
	CreateTopic(ctx context.Context, spec TopicSpec) error
	// TopicConfig returns the requested configuration entries of a topic.
	// Entries the log does not know are left out of the map.
	TopicConfig(ctx context.Context, topic string, names ...string) (map[string]string, error)
	// Close releases any resources held by the backend
	Close() error
}
