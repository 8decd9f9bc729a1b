package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects how compact field payloads are stored.
type Compression string

const (
	// CompressionNone stores payloads as-is.
	CompressionNone Compression = "none"
	// CompressionLZ4 uses LZ4 block compression.
	CompressionLZ4 Compression = "lz4"
	// CompressionZSTD uses zstd.
	CompressionZSTD Compression = "zstd"
)

// ParseCompression validates a compression name. Empty means none.
func ParseCompression(s string) (Compression, error) {
	switch Compression(s) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionLZ4, CompressionZSTD:
		return Compression(s), nil
	default:
		return "", fmt.Errorf("unknown compression %q (valid options: none, lz4, zstd)", s)
	}
}

// Stored payload tags.
const (
	tagRaw  byte = 0
	tagLZ4  byte = 1
	tagZSTD byte = 2
)

// headerSize is the tag byte plus the uncompressed length.
const headerSize = 5

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// pack compresses data and prefixes it with [tag][rawLen uint32].
// Payloads that do not shrink are stored raw.
func pack(c Compression, data []byte) ([]byte, error) {
	var (
		tag        = tagRaw
		compressed []byte
	)

	switch c {
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n > 0 {
			tag, compressed = tagLZ4, buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
		tag = tagZSTD
	}

	if tag == tagRaw || len(compressed) >= len(data) {
		tag, compressed = tagRaw, data
	}

	out := make([]byte, headerSize+len(compressed))
	out[0] = tag
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	copy(out[headerSize:], compressed)
	return out, nil
}

// unpack reverses pack.
func unpack(stored []byte) ([]byte, error) {
	if len(stored) < headerSize {
		return nil, errors.New("payload too small for header")
	}
	rawLen := int(binary.LittleEndian.Uint32(stored[1:]))
	body := stored[headerSize:]

	switch stored[0] {
	case tagRaw:
		if len(body) != rawLen {
			return nil, fmt.Errorf("raw payload length %d, want %d", len(body), rawLen)
		}
		return append([]byte(nil), body...), nil
	case tagLZ4:
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out[:n], nil
	case tagZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(body, make([]byte, 0, rawLen))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown payload tag %d", stored[0])
	}
}
