package cursor

import "strings"

// Reserved format fields. Changing either is a format migration, not a tweak.
const (
	FormatVersion = "001"
	Generation    = "0001"

	// Prefix precedes the offset part of every token
	Prefix = FormatVersion + "-" + Generation + "-"

	// SentinelOffset is the token of a partition nothing was ever written to
	SentinelOffset = Prefix + sentinelText
)

// Cursor is a position within one partition of a topic
type Cursor struct {
	Partition string `json:"partition"`
	Offset    string `json:"offset"`
}

// New builds the cursor token for a native offset. -1 yields SentinelOffset.
func New(partition string, native int64) (Cursor, error) {
	if native == SentinelNative {
		return Cursor{Partition: partition, Offset: SentinelOffset}, nil
	}

	text, err := ToTextOffset(native)
	if err != nil {
		return Cursor{}, err
	}
	return Cursor{Partition: partition, Offset: Prefix + text}, nil
}

// FromText wraps an offset string as-is, without validating or reformatting it
func FromText(partition, offsetText string) Cursor {
	return Cursor{Partition: partition, Offset: offsetText}
}

// IsSentinel reports whether the cursor points before the first event of its partition
func (c Cursor) IsSentinel() bool {
	return c.Offset == SentinelOffset
}

// NativeOffset extracts the native offset from a three-part token
func (c Cursor) NativeOffset() (int64, error) {
	if c.IsSentinel() {
		return SentinelNative, nil
	}
	if !strings.HasPrefix(c.Offset, Prefix) {
		return 0, &MalformedOffsetError{Text: c.Offset, Reason: "missing " + Prefix + " prefix"}
	}

	text := c.Offset[len(Prefix):]
	if len(text) != OffsetWidth {
		return 0, &MalformedOffsetError{Text: c.Offset, Reason: "offset part is not zero padded"}
	}
	return ToNativeOffset(text)
}

func (c Cursor) String() string {
	return c.Partition + ":" + c.Offset
}

// Compare orders two cursors of the same partition by their token text.
// The sentinel sorts before every padded offset.
func Compare(a, b Cursor) int {
	return strings.Compare(a.Offset, b.Offset)
}
