package cursor

import (
	"strconv"
	"strings"
)

const (
	// OffsetWidth is the fixed number of digits of a padded native offset
	OffsetWidth = 18

	// SentinelNative is the native offset of the position before the first event
	SentinelNative int64 = -1

	sentinelText = "-1"
)

// maxEncodable is the first native offset that no longer fits in OffsetWidth digits (10^18)
const maxEncodable int64 = 1_000_000_000_000_000_000

// ToNativeOffset parses a textual offset (padded or not) into a native offset.
// Only ASCII digits are accepted, plus the literal "-1" for the sentinel.
func ToNativeOffset(text string) (int64, error) {
	if text == "" {
		return 0, &MalformedOffsetError{Text: text, Reason: "empty offset"}
	}
	if text == sentinelText {
		return SentinelNative, nil
	}

	for i := 0; i < len(text); i++ {
		if c := text[i]; c < '0' || c > '9' {
			return 0, &MalformedOffsetError{Text: text, Reason: "expected decimal digits"}
		}
	}

	native, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, &MalformedOffsetError{Text: text, Reason: "offset overflows int64", Err: err}
	}
	return native, nil
}

// ToTextOffset renders a native offset as exactly OffsetWidth zero padded digits.
// -1 is the only negative value accepted and renders unpadded as "-1".
func ToTextOffset(native int64) (string, error) {
	if native == SentinelNative {
		return sentinelText, nil
	}
	if native < 0 {
		return "", &InvalidOffsetError{Offset: native, Reason: "negative offsets other than -1 cannot be encoded"}
	}
	if native >= maxEncodable {
		return "", &InvalidOffsetError{Offset: native, Reason: "offset exceeds " + strconv.Itoa(OffsetWidth) + " digits"}
	}

	digits := strconv.FormatInt(native, 10)
	return strings.Repeat("0", OffsetWidth-len(digits)) + digits, nil
}
