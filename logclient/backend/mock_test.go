package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/maxpert/logcursor/locallog"
	"github.com/maxpert/logcursor/logclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockBackend_Produce(t *testing.T) {
	ctx := context.Background()
	mock := NewMockBackend()
	require.NoError(t, mock.CreateTopic(ctx, logclient.TopicSpec{Name: "t", Partitions: 2}))

	off, err := mock.Produce(ctx, logclient.Message{Topic: "t", Partition: 1, Key: []byte("k"), Value: []byte("v1")})
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)

	off, err = mock.Produce(ctx, logclient.Message{Topic: "t", Partition: 1, Value: []byte("v2")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), off)

	records := mock.Records("t", 1)
	require.Len(t, records, 2)
	assert.Equal(t, []byte("k"), records[0].Key)
	assert.Empty(t, mock.Records("t", 0))

	_, err = mock.Produce(ctx, logclient.Message{Topic: "t", Partition: 7})
	assert.ErrorIs(t, err, locallog.ErrPartitionOutOfRange)
	assert.Equal(t, 3, mock.Calls["Produce"])
}

func TestMockBackend_PartitionOrderAndMarks(t *testing.T) {
	ctx := context.Background()
	mock := NewMockBackend()
	require.NoError(t, mock.CreateTopic(ctx, logclient.TopicSpec{Name: "t", Partitions: 3}))

	mock.SetPartitionOrder("t", 2, 0, 1)
	mock.SetHighWaterMark("t", 2, 42)

	parts, err := mock.Partitions(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0, 1}, parts)

	marks, err := mock.HighWaterMarks(ctx, "t", parts)
	require.NoError(t, err)
	assert.Equal(t, map[int]int64{0: 0, 1: 0, 2: 42}, marks)
}

func TestMockBackend_InjectedErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	mock := NewMockBackend()
	require.NoError(t, mock.CreateTopic(ctx, logclient.TopicSpec{Name: "t", Partitions: 1}))

	mock.PartitionsErr = boom
	_, err := mock.Partitions(ctx, "t")
	assert.ErrorIs(t, err, boom)

	mock.HighWaterMarksErr = boom
	_, err = mock.HighWaterMarks(ctx, "t", []int{0})
	assert.ErrorIs(t, err, boom)

	mock.ProduceErr = boom
	_, err = mock.Produce(ctx, logclient.Message{Topic: "t"})
	assert.ErrorIs(t, err, boom)
}

func TestMockBackend_Reset(t *testing.T) {
	ctx := context.Background()
	mock := NewMockBackend()
	require.NoError(t, mock.CreateTopic(ctx, logclient.TopicSpec{Name: "t", Partitions: 1}))

	mock.Reset()

	_, err := mock.Partitions(ctx, "t")
	assert.ErrorIs(t, err, locallog.ErrTopicNotFound)
	assert.Equal(t, 1, mock.Calls["Partitions"])
}

func TestMockBackend_TopicsAndKeyRouting(t *testing.T) {
	ctx := context.Background()
	mock := NewMockBackend()
	require.NoError(t, mock.CreateTopic(ctx, logclient.TopicSpec{Name: "b", Partitions: 3}))
	require.NoError(t, mock.CreateTopic(ctx, logclient.TopicSpec{Name: "a", Partitions: 1}))

	topics, err := mock.Topics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, topics)

	_, err = mock.Produce(ctx, logclient.Message{Topic: "b", Partition: logclient.AnyPartition, Key: []byte("k")})
	require.NoError(t, err)
	assert.Len(t, mock.Records("b", locallog.PartitionForKey([]byte("k"), 3)), 1)
}
