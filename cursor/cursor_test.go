package cursor

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixConstants(t *testing.T) {
	assert.Equal(t, "001-0001-", Prefix)
	assert.Equal(t, "001-0001--1", SentinelOffset)
}

func TestNew(t *testing.T) {
	c, err := New("0", 4)
	require.NoError(t, err)
	assert.Equal(t, Cursor{Partition: "0", Offset: "001-0001-000000000000000004"}, c)
	assert.False(t, c.IsSentinel())

	c, err = New("3", 0)
	require.NoError(t, err)
	assert.Equal(t, "001-0001-000000000000000000", c.Offset)
}

func TestNewSentinelIsNotPadded(t *testing.T) {
	c, err := New("1", -1)
	require.NoError(t, err)
	assert.Equal(t, "001-0001--1", c.Offset)
	assert.True(t, c.IsSentinel())
}

func TestNewInvalid(t *testing.T) {
	_, err := New("0", -2)
	var invalid *InvalidOffsetError
	require.True(t, errors.As(err, &invalid))

	_, err = New("0", 1_000_000_000_000_000_000)
	require.True(t, errors.As(err, &invalid))
}

func TestFromTextKeepsRawValue(t *testing.T) {
	c := FromText("2", "17")
	assert.Equal(t, "2", c.Partition)
	assert.Equal(t, "17", c.Offset)
	assert.False(t, c.IsSentinel())
}

func TestNativeOffset(t *testing.T) {
	c, err := New("0", 123)
	require.NoError(t, err)

	n, err := c.NativeOffset()
	require.NoError(t, err)
	assert.Equal(t, int64(123), n)

	n, err = FromText("0", SentinelOffset).NativeOffset()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)
}

func TestNativeOffsetMalformed(t *testing.T) {
	inputs := []string{
		"17",
		"002-0001-000000000000000004",
		"001-0001-4",
		"001-0001-00000000000000000x",
		"001-0001--2",
	}

	for _, in := range inputs {
		_, err := FromText("0", in).NativeOffset()
		var malformed *MalformedOffsetError
		assert.True(t, errors.As(err, &malformed), "input %q: %v", in, err)
	}
}

func TestCompare(t *testing.T) {
	sentinel := FromText("0", SentinelOffset)
	first, _ := New("0", 0)
	later, _ := New("0", 10)

	assert.Equal(t, -1, Compare(sentinel, first))
	assert.Equal(t, -1, Compare(first, later))
	assert.Equal(t, 1, Compare(later, first))
	assert.Equal(t, 0, Compare(later, later))
}

func TestCursorJSON(t *testing.T) {
	c, _ := New("0", 2)
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"partition":"0","offset":"001-0001-000000000000000002"}`, string(data))

	var decoded Cursor
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, c, decoded)
}
