// Package codec serializes cache values to a self-describing byte envelope
// and optionally compresses payloads above a size threshold.
package codec

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"

	"github.com/kwatlas/kwcache/types"
	"github.com/kwatlas/kwcache/utils"
)

const DefaultCompressionThreshold = 1024

// Envelope layout: magic(2) | version(1) | flags(1) | payload.
// The compression state is carried in the flags byte rather than inferred
// from content, since the reverse of "maybe compress" is not reliably
// auto-detectable.
const (
	headerSize     = 4
	version   byte = 1

	flagCompressed byte = 1 << 0
)

var magic = [2]byte{'K', 'C'}

type Codec struct {
	compressionEnabled   bool
	compressionThreshold int
}

func New(compressionEnabled bool, compressionThreshold int) *Codec {
	if compressionThreshold <= 0 {
		compressionThreshold = DefaultCompressionThreshold
	}
	return &Codec{
		compressionEnabled:   compressionEnabled,
		compressionThreshold: compressionThreshold,
	}
}

// Encode serializes value to JSON and compresses it when compression is
// enabled and the serialized form exceeds the threshold.
func (c *Codec) Encode(value interface{}) ([]byte, error) {
	payload, err := utils.Marshal(value)
	if err != nil {
		return nil, types.Errorf(types.ErrCacheValueInvalid, "%v", err)
	}

	var flags byte
	if c.compressionEnabled && len(payload) > c.compressionThreshold {
		compressed, err := compress(payload)
		if err != nil {
			return nil, types.WrapError(err, "compression failed")
		}
		// keep the raw form when compression does not actually shrink it
		if len(compressed) < len(payload) {
			payload = compressed
			flags |= flagCompressed
		}
	}

	out := make([]byte, 0, headerSize+len(payload))
	out = append(out, magic[0], magic[1], version, flags)
	return append(out, payload...), nil
}

// Decode reverses Encode into out. A corrupt or truncated envelope yields
// ErrCacheEntryCorrupt, which the store treats as a miss.
func (c *Codec) Decode(data []byte, out interface{}) error {
	payload, compressed, err := unwrap(data)
	if err != nil {
		return err
	}

	if compressed {
		payload, err = decompress(payload)
		if err != nil {
			return types.Errorf(types.ErrCacheEntryCorrupt, "decompress: %v", err)
		}
	}

	if err := utils.UnmarshalInto(payload, out); err != nil {
		return types.Errorf(types.ErrCacheEntryCorrupt, "unmarshal: %v", err)
	}
	return nil
}

func unwrap(data []byte) (payload []byte, compressed bool, err error) {
	if len(data) < headerSize || data[0] != magic[0] || data[1] != magic[1] {
		return nil, false, types.Errorf(types.ErrCacheEntryCorrupt, "bad envelope header")
	}
	if data[2] != version {
		return nil, false, types.Errorf(types.ErrCacheEntryCorrupt, "unknown envelope version %d", data[2])
	}
	return data[headerSize:], data[3]&flagCompressed != 0, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	return io.ReadAll(r)
}
