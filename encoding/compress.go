package encoding

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Frame flags. A frame is one flag byte followed by the payload.
const (
	frameRaw  byte = 0x00
	frameZstd byte = 0x01
)

// CompressThreshold is the payload size below which frames are stored raw
const CompressThreshold = 256

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdInitErr error
)

func initZstd() {
	zstdEncoder, zstdInitErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if zstdInitErr != nil {
		return
	}
	zstdDecoder, zstdInitErr = zstd.NewReader(nil)
}

// Compress frames data, zstd compressing it when it is large enough to benefit
func Compress(data []byte) ([]byte, error) {
	if len(data) < CompressThreshold {
		return append([]byte{frameRaw}, data...), nil
	}

	zstdOnce.Do(initZstd)
	if zstdInitErr != nil {
		return nil, fmt.Errorf("failed to init zstd: %w", zstdInitErr)
	}

	dst := make([]byte, 1, len(data)/2+1)
	dst[0] = frameZstd
	return zstdEncoder.EncodeAll(data, dst), nil
}

// Decompress reverses Compress
func Decompress(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	switch frame[0] {
	case frameRaw:
		out := make([]byte, len(frame)-1)
		copy(out, frame[1:])
		return out, nil
	case frameZstd:
		zstdOnce.Do(initZstd)
		if zstdInitErr != nil {
			return nil, fmt.Errorf("failed to init zstd: %w", zstdInitErr)
		}
		return zstdDecoder.DecodeAll(frame[1:], nil)
	default:
		return nil, fmt.Errorf("unknown frame flag 0x%02x", frame[0])
	}
}
