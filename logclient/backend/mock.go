package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/maxpert/logcursor/locallog"
	"github.com/maxpert/logcursor/logclient"
)

// MockBackend is an in-memory implementation of logclient.Backend for testing
type MockBackend struct {
	TopicsErr         error
	PartitionsErr     error
	HighWaterMarksErr error
	ProduceErr        error
	CreateTopicErr    error
	TopicConfigErr    error

	// Calls counts requests per method name
	Calls map[string]int

	topics map[string]*mockTopic
	mu     sync.Mutex
}

type mockTopic struct {
	spec    logclient.TopicSpec
	order   []int // partition ids in reporting order
	records map[int][]logclient.Record
	hwm     map[int]int64
}

// NewMockBackend creates an empty MockBackend
func NewMockBackend() *MockBackend {
	return &MockBackend{
		Calls:  make(map[string]int),
		topics: make(map[string]*mockTopic),
	}
}

func (m *MockBackend) called(name string) {
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[name]++
}

func (m *MockBackend) lookup(topic string) (*mockTopic, error) {
	t, ok := m.topics[topic]
	if !ok {
		return nil, fmt.Errorf("%w: %s", locallog.ErrTopicNotFound, topic)
	}
	return t, nil
}

// SetPartitionOrder overrides the order partition ids are reported in
func (m *MockBackend) SetPartitionOrder(topic string, order ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.topics[topic]; ok {
		t.order = append([]int(nil), order...)
	}
}

// SetHighWaterMark moves a partition's high-water mark without writing records
func (m *MockBackend) SetHighWaterMark(topic string, partition int, hwm int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.topics[topic]; ok {
		t.hwm[partition] = hwm
	}
}

func (m *MockBackend) Topics(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("Topics")

	if m.TopicsErr != nil {
		return nil, m.TopicsErr
	}
	names := make([]string, 0, len(m.topics))
	for name := range m.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockBackend) Partitions(_ context.Context, topic string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("Partitions")

	if m.PartitionsErr != nil {
		return nil, m.PartitionsErr
	}
	t, err := m.lookup(topic)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), t.order...), nil
}

func (m *MockBackend) HighWaterMarks(_ context.Context, topic string, partitions []int) (map[int]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("HighWaterMarks")

	if m.HighWaterMarksErr != nil {
		return nil, m.HighWaterMarksErr
	}
	t, err := m.lookup(topic)
	if err != nil {
		return nil, err
	}

	marks := make(map[int]int64, len(partitions))
	for _, p := range partitions {
		if hwm, ok := t.hwm[p]; ok {
			marks[p] = hwm
		}
	}
	return marks, nil
}

func (m *MockBackend) Produce(_ context.Context, msg logclient.Message) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("Produce")

	if m.ProduceErr != nil {
		return -1, m.ProduceErr
	}
	t, err := m.lookup(msg.Topic)
	if err != nil {
		return -1, err
	}
	if msg.Partition < 0 {
		msg.Partition = t.order[locallog.PartitionForKey(msg.Key, len(t.order))]
	}
	if _, ok := t.hwm[msg.Partition]; !ok {
		return -1, fmt.Errorf("%w: %s/%d", locallog.ErrPartitionOutOfRange, msg.Topic, msg.Partition)
	}

	offset := t.hwm[msg.Partition]
	t.records[msg.Partition] = append(t.records[msg.Partition], logclient.Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    offset,
		Key:       append([]byte(nil), msg.Key...),
		Value:     append([]byte(nil), msg.Value...),
		Time:      time.Now(),
	})
	t.hwm[msg.Partition] = offset + 1
	return offset, nil
}

func (m *MockBackend) Consume(_ context.Context, topic string, partition int, from int64, max int) ([]logclient.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("Consume")

	t, err := m.lookup(topic)
	if err != nil {
		return nil, err
	}

	var out []logclient.Record
	for _, r := range t.records[partition] {
		if len(out) >= max {
			break
		}
		if r.Offset >= from {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockBackend) CreateTopic(_ context.Context, spec logclient.TopicSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("CreateTopic")

	if m.CreateTopicErr != nil {
		return m.CreateTopicErr
	}
	if _, exists := m.topics[spec.Name]; exists {
		return fmt.Errorf("%w: %s", locallog.ErrTopicExists, spec.Name)
	}
	if spec.Partitions < 1 {
		return fmt.Errorf("topic %s needs at least one partition", spec.Name)
	}

	config := make(map[string]string, len(spec.Config))
	for k, v := range spec.Config {
		config[k] = v
	}
	spec.Config = config

	t := &mockTopic{
		spec:    spec,
		records: make(map[int][]logclient.Record),
		hwm:     make(map[int]int64),
	}
	for p := 0; p < spec.Partitions; p++ {
		t.order = append(t.order, p)
		t.hwm[p] = 0
	}
	m.topics[spec.Name] = t
	return nil
}

func (m *MockBackend) TopicConfig(_ context.Context, topic string, names ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called("TopicConfig")

	if m.TopicConfigErr != nil {
		return nil, m.TopicConfigErr
	}
	t, err := m.lookup(topic)
	if err != nil {
		return nil, err
	}

	all := make(map[string]string, len(t.spec.Config))
	for k, v := range t.spec.Config {
		all[k] = v
	}
	return selectConfig(all, names), nil
}

// Close is a no-op for MockBackend
func (m *MockBackend) Close() error {
	return nil
}

// Records returns a copy of everything produced to a partition
func (m *MockBackend) Records(topic string, partition int) []logclient.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[topic]
	if !ok {
		return nil
	}
	return append([]logclient.Record(nil), t.records[partition]...)
}

// Reset drops all topics and recorded calls
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = make(map[string]*mockTopic)
	m.Calls = make(map[string]int)
}
