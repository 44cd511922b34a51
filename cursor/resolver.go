package cursor

import (
	"context"
	"errors"
	"strconv"
)

// OffsetSource reports the partitions of a topic and their high-water marks.
// A high-water mark is the native offset the next write will receive.
type OffsetSource interface {
	// Partitions lists the partition ids of a topic in the order the log reports them
	Partitions(ctx context.Context, topic string) ([]int, error)
	// HighWaterMarks returns the current high-water mark of every requested partition
	HighWaterMarks(ctx context.Context, topic string, partitions []int) (map[int]int64, error)
}

// PartitionMark pairs a partition with its high-water mark
type PartitionMark struct {
	Partition     int
	HighWaterMark int64
}

// Resolver derives cursors from the state an OffsetSource reports
type Resolver struct {
	source OffsetSource
}

// NewResolver creates a Resolver backed by source
func NewResolver(source OffsetSource) *Resolver {
	return &Resolver{source: source}
}

// Marks queries the high-water mark of every partition of topic, in listing order
func (r *Resolver) Marks(ctx context.Context, topic string) ([]PartitionMark, error) {
	partitions, err := r.source.Partitions(ctx, topic)
	if err != nil {
		return nil, asPartitionQueryError(topic, -1, err)
	}

	hwms, err := r.source.HighWaterMarks(ctx, topic, partitions)
	if err != nil {
		return nil, asPartitionQueryError(topic, -1, err)
	}

	marks := make([]PartitionMark, 0, len(partitions))
	for _, p := range partitions {
		hwm, ok := hwms[p]
		if !ok {
			return nil, &PartitionQueryError{Topic: topic, Partition: p, Err: errors.New("no high-water mark reported")}
		}
		marks = append(marks, PartitionMark{Partition: p, HighWaterMark: hwm})
	}
	return marks, nil
}

// NextOffsets returns the raw high-water mark of each partition as decimal text.
// These are not three-part tokens; see LatestCursors for those.
func (r *Resolver) NextOffsets(ctx context.Context, topic string) ([]Cursor, error) {
	marks, err := r.Marks(ctx, topic)
	if err != nil {
		return nil, err
	}

	cursors := make([]Cursor, 0, len(marks))
	for _, m := range marks {
		cursors = append(cursors, FromText(strconv.Itoa(m.Partition), strconv.FormatInt(m.HighWaterMark, 10)))
	}
	return cursors, nil
}

// LatestCursors returns, per partition, the cursor from which a new reader sees
// only events produced after this call
func (r *Resolver) LatestCursors(ctx context.Context, topic string) ([]Cursor, error) {
	marks, err := r.Marks(ctx, topic)
	if err != nil {
		return nil, err
	}
	return LatestFromMarks(marks)
}

// LatestFromMarks converts high-water marks into "read from latest" cursors,
// preserving input order. An empty partition (mark 0) yields the sentinel.
func LatestFromMarks(marks []PartitionMark) ([]Cursor, error) {
	cursors := make([]Cursor, 0, len(marks))
	for _, m := range marks {
		partition := strconv.Itoa(m.Partition)
		if m.HighWaterMark == 0 {
			cursors = append(cursors, Cursor{Partition: partition, Offset: SentinelOffset})
			continue
		}

		c, err := New(partition, m.HighWaterMark-1)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return cursors, nil
}

func asPartitionQueryError(topic string, partition int, err error) error {
	var pqe *PartitionQueryError
	if errors.As(err, &pqe) {
		return err
	}
	return &PartitionQueryError{Topic: topic, Partition: partition, Err: err}
}
