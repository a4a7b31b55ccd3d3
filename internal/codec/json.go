package codec

import "encoding/json"

type jsonCodec struct{}

// JSON returns the JSON codec. Payload bytes are base64 encoded as usual for
// encoding/json.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(rec Record) ([]byte, error) {
	if rec.Type == "" {
		return nil, &EncodeError{Codec: "json", Err: ErrMissingType}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, &EncodeError{Codec: "json", Err: err}
	}
	return b, nil
}

func (jsonCodec) Decode(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, &DecodeError{Codec: "json", Err: err}
	}
	if rec.Type == "" {
		return Record{}, &DecodeError{Codec: "json", Err: ErrMissingType}
	}
	return rec, nil
}
