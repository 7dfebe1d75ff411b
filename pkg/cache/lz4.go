package cache

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Disk entries start with a one-byte codec tag and the uncompressed length.
const (
	codecRaw    byte = 0
	codecLZ4    byte = 1
	headerSize       = 5
	maxRawBytes      = 64 << 20
)

// compress encodes data as an LZ4 block. Input that does not shrink is stored raw.
func compress(data []byte) []byte {
	out := make([]byte, headerSize+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(out[1:headerSize], uint32(len(data)))

	written, err := lz4.CompressBlock(data, out[headerSize:], nil)
	if err != nil || written == 0 || written >= len(data) {
		out = out[:headerSize+len(data)]
		out[0] = codecRaw
		copy(out[headerSize:], data)

		return out
	}

	out[0] = codecLZ4

	return out[:headerSize+written]
}

func decompress(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: short header", ErrCorrupt)
	}

	size := int(binary.LittleEndian.Uint32(data[1:headerSize]))
	if size > maxRawBytes {
		return nil, fmt.Errorf("%w: size %d", ErrCorrupt, size)
	}

	body := data[headerSize:]

	switch data[0] {
	case codecRaw:
		if len(body) != size {
			return nil, fmt.Errorf("%w: raw length %d, want %d", ErrCorrupt, len(body), size)
		}

		return body, nil
	case codecLZ4:
		out := make([]byte, size)

		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		return out[:n], nil
	default:
		return nil, fmt.Errorf("%w: codec %d", ErrCorrupt, data[0])
	}
}
