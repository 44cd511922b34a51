package logclient_test

import (
	"context"
	"errors"
	"testing"

	"github.com/maxpert/logcursor/cursor"
	"github.com/maxpert/logcursor/locallog"
	"github.com/maxpert/logcursor/logclient"
	"github.com/maxpert/logcursor/logclient/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockHelper(t *testing.T, partitions int) (*logclient.Helper, *backend.MockBackend) {
	t.Helper()
	mock := backend.NewMockBackend()
	h := logclient.NewHelper(mock, logclient.HelperConfig{
		Key:        "someKey",
		Partitions: partitions,
		TopicConfig: map[string]string{
			logclient.PropertyRetentionMS:   "86400000",
			logclient.PropertyCleanupPolicy: "delete",
		},
	})
	require.NoError(t, h.CreateTopic(context.Background(), "events"))
	return h, mock
}

func TestWriteMessageToPartitionQuotesWithoutEscaping(t *testing.T) {
	ctx := context.Background()
	h, mock := newMockHelper(t, 2)

	require.NoError(t, h.WriteMessageToPartition(ctx, "1", "events", `hello "world"`))

	records := mock.Records("events", 1)
	require.Len(t, records, 1)
	assert.Equal(t, `"hello "world""`, string(records[0].Value))
	assert.Equal(t, "someKey", string(records[0].Key))
	assert.Empty(t, mock.Records("events", 0))
}

func TestWriteMessageToPartitionInvalidPartition(t *testing.T) {
	ctx := context.Background()
	h, mock := newMockHelper(t, 1)

	for _, p := range []string{"", "x", "-1"} {
		assert.Error(t, h.WriteMessageToPartition(ctx, p, "events", "m"), "partition %q", p)
	}
	assert.Zero(t, mock.Calls["Produce"])
}

func TestWriteMessageToPartitionBackendError(t *testing.T) {
	ctx := context.Background()
	h, mock := newMockHelper(t, 1)
	mock.ProduceErr = errors.New("broker down")

	err := h.WriteMessageToPartition(ctx, "0", "events", "m")
	require.Error(t, err)
	assert.ErrorIs(t, err, mock.ProduceErr)
}

func TestWriteMultipleMessagesToPartition(t *testing.T) {
	ctx := context.Background()
	h, mock := newMockHelper(t, 1)

	require.NoError(t, h.WriteMultipleMessagesToPartition(ctx, "0", "events", "m", 5))
	assert.Len(t, mock.Records("events", 0), 5)

	require.NoError(t, h.WriteMultipleMessagesToPartition(ctx, "0", "events", "m", 0))
	assert.Len(t, mock.Records("events", 0), 5)
}

func TestGetOffsetsToReadFromLatestEmptyTopic(t *testing.T) {
	h, _ := newMockHelper(t, 3)

	cursors, err := h.GetOffsetsToReadFromLatest(context.Background(), "events")
	require.NoError(t, err)

	want := []cursor.Cursor{
		{Partition: "0", Offset: cursor.SentinelOffset},
		{Partition: "1", Offset: cursor.SentinelOffset},
		{Partition: "2", Offset: cursor.SentinelOffset},
	}
	assert.Equal(t, want, cursors)
}

func TestGetOffsetsToReadFromLatestAfterWrites(t *testing.T) {
	ctx := context.Background()
	h, _ := newMockHelper(t, 2)

	require.NoError(t, h.WriteMultipleMessagesToPartition(ctx, "0", "events", "m", 3))

	cursors, err := h.GetOffsetsToReadFromLatest(ctx, "events")
	require.NoError(t, err)
	require.Len(t, cursors, 2)
	assert.Equal(t, "001-0001-000000000000000002", cursors[0].Offset)
	assert.Equal(t, cursor.SentinelOffset, cursors[1].Offset)
}

func TestGetNextOffsetsReturnsRawMarks(t *testing.T) {
	ctx := context.Background()
	h, mock := newMockHelper(t, 2)
	mock.SetPartitionOrder("events", 1, 0)
	mock.SetHighWaterMark("events", 1, 17)

	cursors, err := h.GetNextOffsets(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, []cursor.Cursor{
		{Partition: "1", Offset: "17"},
		{Partition: "0", Offset: "0"},
	}, cursors)
}

func TestResolutionFailureHasNoPartialResult(t *testing.T) {
	ctx := context.Background()
	h, mock := newMockHelper(t, 2)
	mock.HighWaterMarksErr = errors.New("timeout")

	cursors, err := h.GetOffsetsToReadFromLatest(ctx, "events")
	assert.Nil(t, cursors)

	var pqe *cursor.PartitionQueryError
	require.ErrorAs(t, err, &pqe)
	assert.Equal(t, "events", pqe.Topic)
	assert.ErrorIs(t, err, mock.HighWaterMarksErr)
}

func TestReadAfterLatestCursorSeesOnlyNewMessages(t *testing.T) {
	ctx := context.Background()
	h, _ := newMockHelper(t, 1)

	require.NoError(t, h.WriteMultipleMessagesToPartition(ctx, "0", "events", "old", 2))

	cursors, err := h.GetOffsetsToReadFromLatest(ctx, "events")
	require.NoError(t, err)
	require.Len(t, cursors, 1)

	require.NoError(t, h.WriteMessageToPartition(ctx, "0", "events", "new"))

	records, err := h.ReadAfter(ctx, "events", cursors[0], 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, `"new"`, string(records[0].Value))
	assert.Equal(t, int64(2), records[0].Offset)
}

func TestReadAfterSentinelReadsFromStart(t *testing.T) {
	ctx := context.Background()
	h, _ := newMockHelper(t, 1)

	cursors, err := h.GetOffsetsToReadFromLatest(ctx, "events")
	require.NoError(t, err)
	require.True(t, cursors[0].IsSentinel())

	require.NoError(t, h.WriteMessageToPartition(ctx, "0", "events", "first"))

	records, err := h.ReadAfter(ctx, "events", cursors[0], 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(0), records[0].Offset)
}

func TestReadAfterMalformedCursor(t *testing.T) {
	h, _ := newMockHelper(t, 1)

	_, err := h.ReadAfter(context.Background(), "events", cursor.FromText("0", "17"), 10)
	var malformed *cursor.MalformedOffsetError
	assert.ErrorAs(t, err, &malformed)
}

func TestTopicProperties(t *testing.T) {
	ctx := context.Background()
	h, _ := newMockHelper(t, 1)

	retention, err := h.GetTopicRetentionTime(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, int64(86400000), retention)

	policy, err := h.GetTopicCleanupPolicy(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, "delete", policy)

	_, err = h.GetTopicProperty(ctx, "events", "segment.ms")
	assert.Error(t, err)
}

func TestTopicRetentionNotANumber(t *testing.T) {
	ctx := context.Background()
	mock := backend.NewMockBackend()
	h := logclient.NewHelper(mock, logclient.HelperConfig{})

	require.NoError(t, h.CreateTopicWithSpec(ctx, logclient.TopicSpec{
		Name:       "bad",
		Partitions: 1,
		Config:     map[string]string{logclient.PropertyRetentionMS: "forever"},
	}))

	_, err := h.GetTopicRetentionTime(ctx, "bad")
	assert.Error(t, err)
}

func TestCreateTopicUsesDefaults(t *testing.T) {
	ctx := context.Background()
	mock := backend.NewMockBackend()
	h := logclient.NewHelper(mock, logclient.HelperConfig{Partitions: 0})

	require.NoError(t, h.CreateTopic(ctx, "t"))

	parts, err := mock.Partitions(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []int{0}, parts)

	mock.CreateTopicErr = errors.New("not controller")
	assert.ErrorIs(t, h.CreateTopic(ctx, "u"), mock.CreateTopicErr)
}

func TestHelperOnLocalBackend(t *testing.T) {
	ctx := context.Background()
	b, err := backend.NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	h := logclient.NewHelper(b, logclient.HelperConfig{Key: "someKey", Partitions: 2})
	defer h.Close()

	require.NoError(t, h.CreateTopic(ctx, "orders"))
	require.NoError(t, h.WriteMultipleMessagesToPartition(ctx, "1", "orders", "x", 4))

	cursors, err := h.GetOffsetsToReadFromLatest(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []cursor.Cursor{
		{Partition: "0", Offset: "001-0001--1"},
		{Partition: "1", Offset: "001-0001-000000000000000003"},
	}, cursors)

	next, err := h.GetNextOffsets(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "4", next[1].Offset)
}

func TestWriteMessagesRoutesByKey(t *testing.T) {
	ctx := context.Background()
	h, mock := newMockHelper(t, 4)

	require.NoError(t, h.WriteMessages(ctx, "events", "m", 3))

	want := locallog.PartitionForKey([]byte("someKey"), 4)
	for p := 0; p < 4; p++ {
		if p == want {
			assert.Len(t, mock.Records("events", p), 3)
		} else {
			assert.Empty(t, mock.Records("events", p), "partition %d", p)
		}
	}

	cursors, err := h.GetOffsetsToReadFromLatest(ctx, "events")
	require.NoError(t, err)
	assert.Equal(t, "001-0001-000000000000000002", cursors[want].Offset)
}

func TestHelperTopics(t *testing.T) {
	ctx := context.Background()
	h, _ := newMockHelper(t, 1)
	require.NoError(t, h.CreateTopic(ctx, "audit"))

	topics, err := h.Topics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"audit", "events"}, topics)
}
