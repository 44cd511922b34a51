package cursor

import "fmt"

// MalformedOffsetError reports offset text that is not a valid decimal offset or cursor token
type MalformedOffsetError struct {
	Text   string
	Reason string
	Err    error
}

func (e *MalformedOffsetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed offset %q: %s: %v", e.Text, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed offset %q: %s", e.Text, e.Reason)
}

func (e *MalformedOffsetError) Unwrap() error {
	return e.Err
}

// InvalidOffsetError reports a native offset outside the encodable domain.
// It signals a broken invariant and is never worth retrying.
type InvalidOffsetError struct {
	Offset int64
	Reason string
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("invalid native offset %d: %s", e.Offset, e.Reason)
}

// PartitionQueryError reports a failure of the log system to list partitions
// or report high-water marks. Partition is -1 when the listing itself failed.
type PartitionQueryError struct {
	Topic     string
	Partition int
	Err       error
}

func (e *PartitionQueryError) Error() string {
	if e.Partition < 0 {
		return fmt.Sprintf("query partitions of topic %s: %v", e.Topic, e.Err)
	}
	return fmt.Sprintf("query high-water mark of %s/%d: %v", e.Topic, e.Partition, e.Err)
}

func (e *PartitionQueryError) Unwrap() error {
	return e.Err
}
