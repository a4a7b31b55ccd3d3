package pebblerows

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryFrame(t *testing.T) {
	b := encodeEntry("analytics", []byte(`{"type":"event"}`))
	e, ok := decodeEntry(b)
	require.True(t, ok)
	require.Equal(t, "analytics", e.Group)
	require.Equal(t, `{"type":"event"}`, string(e.Payload))

	b[len(b)-5] ^= 0xFF
	_, ok = decodeEntry(b)
	require.False(t, ok, "flipped payload byte must fail the checksum")

	for _, short := range [][]byte{nil, {0x01}, {0x7f, 0, 0, 0, 0}} {
		_, ok = decodeEntry(short)
		require.False(t, ok)
	}
}

func TestIndexKeyRoundTrip(t *testing.T) {
	k := indexKey("crashes", 42)
	group, id, ok := parseIndexKey(k)
	require.True(t, ok)
	require.Equal(t, "crashes", group)
	require.EqualValues(t, 42, id)

	_, _, ok = parseIndexKey([]byte("rows/g/"))
	require.False(t, ok)
}
