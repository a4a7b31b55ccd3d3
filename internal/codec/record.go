package codec

import (
	"errors"
	"fmt"
	"time"
)

// Record is one telemetry item. Type is required.
type Record struct {
	Type       string            `json:"type" cbor:"type"`
	ID         string            `json:"id,omitempty" cbor:"id,omitempty"`
	Timestamp  time.Time         `json:"timestamp,omitempty" cbor:"timestamp,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty" cbor:"attributes,omitempty"`
	Payload    []byte            `json:"payload,omitempty" cbor:"payload,omitempty"`
}

// Codec serializes records.
type Codec interface {
	Encode(rec Record) ([]byte, error)
	Decode(data []byte) (Record, error)
	Name() string
}

// ErrMissingType is wrapped by both error types when a record has no Type.
var ErrMissingType = errors.New("record has no type")

// EncodeError reports a record that cannot be serialized.
type EncodeError struct {
	Codec string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec %s: encode: %v", e.Codec, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports bytes that do not hold a valid record.
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec %s: decode: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsEncodeError reports whether err is or wraps an *EncodeError.
func IsEncodeError(err error) bool {
	var ee *EncodeError
	return errors.As(err, &ee)
}

// New returns the codec named by configuration: name is "json" or "cbor",
// compression is "none" (or empty) or "zstd".
func New(name, compression string) (Codec, error) {
	var c Codec
	switch name {
	case "json", "":
		c = JSON()
	case "cbor":
		c = CBOR()
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
	switch compression {
	case "none", "":
		return c, nil
	case "zstd":
		return Compressed(c), nil
	default:
		return nil, fmt.Errorf("codec: unknown compression %q", compression)
	}
}
