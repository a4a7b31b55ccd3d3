package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sample() Record {
	return Record{
		Type:       "event",
		ID:         "0001",
		Timestamp:  time.Date(2026, 3, 1, 12, 30, 0, 123456789, time.UTC),
		Attributes: map[string]string{"screen": "home", "build": "42"},
		Payload:    []byte(`{"name":"click"}`),
	}
}

func allCodecs() []Codec {
	return []Codec{JSON(), CBOR(), Compressed(JSON()), Compressed(CBOR())}
}

func TestCodecsPreserveRecords(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Encode(sample())
			require.NoError(t, err)
			got, err := c.Decode(b)
			require.NoError(t, err)
			require.Equal(t, sample().Type, got.Type)
			require.Equal(t, sample().ID, got.ID)
			require.True(t, sample().Timestamp.Equal(got.Timestamp))
			require.Equal(t, sample().Attributes, got.Attributes)
			require.Equal(t, sample().Payload, got.Payload)
		})
	}
}

func TestEncodeRejectsMissingType(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			_, err := c.Encode(Record{Payload: []byte("x")})
			require.True(t, IsEncodeError(err))
			require.True(t, errors.Is(err, ErrMissingType))
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		[]byte("not a record"),
		{0xff, 0xfe, 0x00, 0x13},
		[]byte(`{"payload":"aGk="}`),
	}
	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			for _, in := range inputs {
				_, err := c.Decode(in)
				require.Error(t, err, "input %q", in)
				require.True(t, IsDecodeError(err), "input %q: %v", in, err)
			}
		})
	}
}

func TestDecodeRejectsTypelessRecord(t *testing.T) {
	b, err := encMode.Marshal(Record{ID: "x"})
	require.NoError(t, err)
	_, err = CBOR().Decode(b)
	require.ErrorIs(t, err, ErrMissingType)
}

func TestCBORIsDeterministic(t *testing.T) {
	a, err := CBOR().Encode(sample())
	require.NoError(t, err)
	b, err := CBOR().Encode(sample())
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name, compression string
		want              string
		wantErr           bool
	}{
		{"", "", "json", false},
		{"json", "none", "json", false},
		{"cbor", "", "cbor", false},
		{"cbor", "zstd", "cbor+zstd", false},
		{"xml", "", "", true},
		{"json", "gzip", "", true},
	}
	for _, tt := range tests {
		c, err := New(tt.name, tt.compression)
		if tt.wantErr {
			require.Error(t, err)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tt.want, c.Name())
	}
}
