package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding: the same record always produces
// the same bytes. Timestamps keep nanoseconds as RFC 3339 text.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	encMode, err = opts.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		MaxNestedLevels: 16,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborCodec struct{}

// CBOR returns the compact binary codec.
func CBOR() Codec { return cborCodec{} }

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Encode(rec Record) ([]byte, error) {
	if rec.Type == "" {
		return nil, &EncodeError{Codec: "cbor", Err: ErrMissingType}
	}
	b, err := encMode.Marshal(rec)
	if err != nil {
		return nil, &EncodeError{Codec: "cbor", Err: err}
	}
	return b, nil
}

func (cborCodec) Decode(data []byte) (Record, error) {
	var rec Record
	if err := decMode.Unmarshal(data, &rec); err != nil {
		return Record{}, &DecodeError{Codec: "cbor", Err: err}
	}
	if rec.Type == "" {
		return Record{}, &DecodeError{Codec: "cbor", Err: ErrMissingType}
	}
	return rec, nil
}
