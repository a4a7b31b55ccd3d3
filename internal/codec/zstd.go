package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstd.Encoder and zstd.Decoder are safe for concurrent use with
// EncodeAll/DecodeAll, so one pair serves every Compressed codec.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

// maxDecodedSize bounds a single decompressed record.
const maxDecodedSize = 16 << 20

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

type compressed struct {
	inner Codec
	name  string
}

// Compressed wraps inner so its output is zstd compressed at rest.
func Compressed(inner Codec) Codec {
	return compressed{inner: inner, name: inner.Name() + "+zstd"}
}

func (c compressed) Name() string { return c.name }

func (c compressed) Encode(rec Record) ([]byte, error) {
	raw, err := c.inner.Encode(rec)
	if err != nil {
		return nil, err
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

func (c compressed) Decode(data []byte) (Record, error) {
	if len(data) == 0 {
		return Record{}, &DecodeError{Codec: c.name, Err: fmt.Errorf("empty input")}
	}
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return Record{}, &DecodeError{Codec: c.name, Err: fmt.Errorf("zstd decompress: %w", err)}
	}
	return c.inner.Decode(raw)
}
