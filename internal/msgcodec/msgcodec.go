// Package msgcodec provides optional compression for large outbound
// command/message payloads sent over the transport (e.g. an agent's
// aggregated context handed into a command's data field). Small payloads
// are left uncompressed; Compress picks the encoding and the receiver is
// told which one via Compression.
package msgcodec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Compression names the algorithm used to encode a payload.
type Compression int

const (
	// CompressionNone means the payload was sent as-is.
	CompressionNone Compression = iota
	// CompressionZstd means the payload was zstd-compressed.
	CompressionZstd
)

// Threshold is the payload size from which Compress actually compresses;
// below it the cost of compression isn't worth the saved bytes.
const Threshold = 512

// Package-level encoder/decoder, safe for concurrent use.
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("msgcodec: init zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("msgcodec: init zstd decoder: %v", err))
	}
}

// Compress returns data unchanged with CompressionNone when data is smaller
// than Threshold; otherwise it returns the zstd-compressed bytes and
// CompressionZstd.
func Compress(data []byte) ([]byte, Compression) {
	if len(data) < Threshold {
		return data, CompressionNone
	}
	compressed := encoder.EncodeAll(data, make([]byte, 0, len(data)/2))
	return compressed, CompressionZstd
}

// Decompress reverses Compress.
func Decompress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionZstd:
		return decoder.DecodeAll(data, nil)
	case CompressionNone:
		return data, nil
	default:
		return nil, fmt.Errorf("msgcodec: unsupported compression: %v", compression)
	}
}
