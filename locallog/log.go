package locallog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/pebble"
	"github.com/maxpert/logcursor/encoding"
	"github.com/rs/zerolog/log"
)

var (
	ErrLogClosed           = errors.New("local log is closed")
	ErrTopicNotFound       = errors.New("topic not found")
	ErrTopicExists         = errors.New("topic already exists")
	ErrInvalidTopic        = errors.New("invalid topic name")
	ErrPartitionOutOfRange = errors.New("partition out of range")
)

// Key prefixes for Pebble storage
const (
	prefixTopic  = "/topic/"
	prefixHWM    = "/hwm/"
	prefixRecord = "/rec/"
)

// Pebble configuration constants
const (
	memTableSize                = 16 << 20 // 16MB
	memTableStopWritesThreshold = 4
	l0CompactionThreshold       = 2
	l0StopWritesThreshold       = 12
	maxConcurrentCompactions    = 2
)

const (
	defaultReadLimit = 100
	offsetDigits     = 20
)

// TopicMeta describes a topic of the local log
type TopicMeta struct {
	Name              string            `msgpack:"name"`
	Partitions        int               `msgpack:"parts"`
	ReplicationFactor int               `msgpack:"rf"`
	Config            map[string]string `msgpack:"cfg"`
	CreatedAt         int64             `msgpack:"ts"` // unix ms
}

// Record is one event stored in a partition
type Record struct {
	Topic     string `msgpack:"-"`
	Partition int    `msgpack:"-"`
	Offset    int64  `msgpack:"-"`
	Key       []byte `msgpack:"k"`
	Value     []byte `msgpack:"v"`
	Timestamp int64  `msgpack:"ts"` // unix ms
}

type topicState struct {
	meta TopicMeta
	hwm  []atomic.Int64

	// One lock per partition serializes offset assignment
	appendMu []sync.Mutex
}

// Log is a Pebble-backed partitioned append-only log
type Log struct {
	db   *pebble.DB
	path string

	topics   map[string]*topicState
	topicsMu sync.RWMutex

	// Held shared by every database access, exclusively by Close
	dbMu   sync.RWMutex
	closed atomic.Bool
}

// Open creates or opens a local log under dataDir
func Open(dataDir string) (*Log, error) {
	logPath := filepath.Join(dataDir, "local_log")

	opts := &pebble.Options{
		MemTableSize:                memTableSize,
		MemTableStopWritesThreshold: memTableStopWritesThreshold,
		L0CompactionThreshold:       l0CompactionThreshold,
		L0StopWritesThreshold:       l0StopWritesThreshold,
		MaxConcurrentCompactions:    func() int { return maxConcurrentCompactions },
	}

	db, err := pebble.Open(logPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open local log at %s: %w", logPath, err)
	}

	l := &Log{
		db:     db,
		path:   logPath,
		topics: make(map[string]*topicState),
	}

	if err := l.loadTopics(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load topics: %w", err)
	}

	return l, nil
}

// loadTopics restores topic metadata and high-water marks from Pebble
func (l *Log) loadTopics() error {
	prefix := []byte(prefixTopic)
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		val, err := iter.ValueAndErr()
		if err != nil {
			return err
		}

		var meta TopicMeta
		if err := encoding.Unmarshal(val, &meta); err != nil {
			return fmt.Errorf("corrupted metadata for topic %s: %w", iter.Key()[len(prefix):], err)
		}

		state := newTopicState(meta)
		for p := 0; p < meta.Partitions; p++ {
			hwm, err := l.loadHWM(meta.Name, p)
			if err != nil {
				return err
			}
			state.hwm[p].Store(hwm)
		}
		l.topics[meta.Name] = state
	}

	if err := iter.Error(); err != nil {
		return err
	}

	if len(l.topics) > 0 {
		log.Debug().Int("topics", len(l.topics)).Str("path", l.path).Msg("Loaded local log topics")
	}
	return nil
}

func (l *Log) loadHWM(topic string, partition int) (int64, error) {
	val, closer, err := l.db.Get(hwmKey(topic, partition))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	if len(val) != 8 {
		return 0, fmt.Errorf("corrupted high-water mark for %s/%d: invalid length %d", topic, partition, len(val))
	}
	return int64(binary.BigEndian.Uint64(val)), nil
}

func newTopicState(meta TopicMeta) *topicState {
	return &topicState{
		meta:     meta,
		hwm:      make([]atomic.Int64, meta.Partitions),
		appendMu: make([]sync.Mutex, meta.Partitions),
	}
}

// CreateTopic registers a new topic with the given number of partitions
func (l *Log) CreateTopic(meta TopicMeta) error {
	if l.closed.Load() {
		return ErrLogClosed
	}
	if !ValidTopicName(meta.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidTopic, meta.Name)
	}
	if meta.Partitions < 1 {
		return fmt.Errorf("topic %s needs at least one partition", meta.Name)
	}
	if meta.ReplicationFactor < 1 {
		meta.ReplicationFactor = 1
	}

	cfgCopy := make(map[string]string, len(meta.Config))
	for k, v := range meta.Config {
		cfgCopy[k] = v
	}
	meta.Config = cfgCopy
	meta.CreatedAt = time.Now().UnixMilli()

	l.topicsMu.Lock()
	defer l.topicsMu.Unlock()

	if _, exists := l.topics[meta.Name]; exists {
		return fmt.Errorf("%w: %s", ErrTopicExists, meta.Name)
	}

	val, err := encoding.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("failed to marshal topic metadata: %w", err)
	}
	l.dbMu.RLock()
	defer l.dbMu.RUnlock()
	if l.closed.Load() {
		return ErrLogClosed
	}
	if err := l.db.Set([]byte(prefixTopic+meta.Name), val, pebble.Sync); err != nil {
		return fmt.Errorf("failed to persist topic %s: %w", meta.Name, err)
	}

	l.topics[meta.Name] = newTopicState(meta)

	log.Debug().
		Str("topic", meta.Name).
		Int("partitions", meta.Partitions).
		Msg("Created local topic")
	return nil
}

// Topics lists all topic names in lexical order
func (l *Log) Topics() []string {
	l.topicsMu.RLock()
	defer l.topicsMu.RUnlock()

	names := make([]string, 0, len(l.topics))
	for name := range l.topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Topic returns a copy of a topic's metadata
func (l *Log) Topic(topic string) (TopicMeta, error) {
	state, err := l.topic(topic)
	if err != nil {
		return TopicMeta{}, err
	}

	meta := state.meta
	meta.Config = make(map[string]string, len(state.meta.Config))
	for k, v := range state.meta.Config {
		meta.Config[k] = v
	}
	return meta, nil
}

// Partitions lists the partition ids of a topic
func (l *Log) Partitions(topic string) ([]int, error) {
	state, err := l.topic(topic)
	if err != nil {
		return nil, err
	}

	ids := make([]int, state.meta.Partitions)
	for i := range ids {
		ids[i] = i
	}
	return ids, nil
}

// HighWaterMark returns the offset the next record in the partition will get
func (l *Log) HighWaterMark(topic string, partition int) (int64, error) {
	state, err := l.topic(topic)
	if err != nil {
		return 0, err
	}
	if partition < 0 || partition >= state.meta.Partitions {
		return 0, fmt.Errorf("%w: %s/%d", ErrPartitionOutOfRange, topic, partition)
	}
	return state.hwm[partition].Load(), nil
}

// Append writes a record and returns its native offset.
// A negative partition selects one by hashing the key.
func (l *Log) Append(topic string, partition int, key, value []byte) (int64, error) {
	state, err := l.topic(topic)
	if err != nil {
		return 0, err
	}

	if partition < 0 {
		partition = PartitionForKey(key, state.meta.Partitions)
	}
	if partition >= state.meta.Partitions {
		return 0, fmt.Errorf("%w: %s/%d", ErrPartitionOutOfRange, topic, partition)
	}

	rec := Record{Key: key, Value: value, Timestamp: time.Now().UnixMilli()}
	body, err := encoding.Marshal(&rec)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record: %w", err)
	}
	frame, err := encoding.Compress(body)
	if err != nil {
		return 0, fmt.Errorf("failed to compress record: %w", err)
	}

	state.appendMu[partition].Lock()
	defer state.appendMu[partition].Unlock()

	l.dbMu.RLock()
	defer l.dbMu.RUnlock()
	if l.closed.Load() {
		return 0, ErrLogClosed
	}

	offset := state.hwm[partition].Load()

	batch := l.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(recordKey(topic, partition, offset), frame, nil); err != nil {
		return 0, fmt.Errorf("failed to write record: %w", err)
	}

	hwmBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(hwmBuf, uint64(offset+1))
	if err := batch.Set(hwmKey(topic, partition), hwmBuf, nil); err != nil {
		return 0, fmt.Errorf("failed to update high-water mark: %w", err)
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("failed to commit record: %w", err)
	}

	// Only advance in memory after a successful commit
	state.hwm[partition].Store(offset + 1)
	return offset, nil
}

// Read returns up to limit records of a partition starting at native offset from
func (l *Log) Read(topic string, partition int, from int64, limit int) ([]Record, error) {
	state, err := l.topic(topic)
	if err != nil {
		return nil, err
	}
	if partition < 0 || partition >= state.meta.Partitions {
		return nil, fmt.Errorf("%w: %s/%d", ErrPartitionOutOfRange, topic, partition)
	}
	if from < 0 {
		from = 0
	}
	if limit <= 0 {
		limit = defaultReadLimit
	}

	l.dbMu.RLock()
	defer l.dbMu.RUnlock()
	if l.closed.Load() {
		return nil, ErrLogClosed
	}

	prefix := recordPrefix(topic, partition)
	start := recordKey(topic, partition, from)
	iter, err := l.db.NewIter(&pebble.IterOptions{
		LowerBound: start,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	records := make([]Record, 0, limit)
	for iter.SeekGE(start); iter.Valid() && len(records) < limit; iter.Next() {
		frame, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}

		body, err := encoding.Decompress(frame)
		if err != nil {
			return nil, fmt.Errorf("corrupted record %s: %w", iter.Key(), err)
		}

		var rec Record
		if err := encoding.Unmarshal(body, &rec); err != nil {
			return nil, fmt.Errorf("corrupted record %s: %w", iter.Key(), err)
		}
		key := iter.Key()
		offset, err := strconv.ParseInt(string(key[len(key)-offsetDigits:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupted record key %s: %w", key, err)
		}
		rec.Topic = topic
		rec.Partition = partition
		rec.Offset = offset

		records = append(records, rec)
	}

	if err := iter.Error(); err != nil {
		return nil, err
	}
	return records, nil
}

// Close closes the underlying Pebble database
func (l *Log) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrLogClosed
	}

	// Wait for in-flight reads and appends; later callers observe closed
	l.dbMu.Lock()
	defer l.dbMu.Unlock()

	return l.db.Close()
}

func (l *Log) topic(name string) (*topicState, error) {
	if l.closed.Load() {
		return nil, ErrLogClosed
	}

	l.topicsMu.RLock()
	state, ok := l.topics[name]
	l.topicsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, name)
	}
	return state, nil
}

// PartitionForKey maps a key onto one of n partitions. Empty keys land on partition 0.
func PartitionForKey(key []byte, n int) int {
	if len(key) == 0 || n <= 1 {
		return 0
	}
	return int(xxhash.Sum64(key) % uint64(n))
}

// ValidTopicName applies Kafka's topic naming rules: 1-249 chars of [a-zA-Z0-9._-]
func ValidTopicName(name string) bool {
	if name == "" || len(name) > 249 || name == "." || name == ".." {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

func hwmKey(topic string, partition int) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d", prefixHWM, topic, partition))
}

func recordPrefix(topic string, partition int) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d/", prefixRecord, topic, partition))
}

func recordKey(topic string, partition int, offset int64) []byte {
	return []byte(fmt.Sprintf("%s%s/%010d/%020d", prefixRecord, topic, partition, offset))
}

// prefixUpperBound returns the upper bound for a prefix scan
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end
		}
	}
	return nil // Prefix is all 0xff
}
