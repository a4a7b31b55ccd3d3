package pebblerows

import (
	"encoding/binary"
	"hash/crc32"
)

// Entry encoding: uvarint groupLen | group | payload | crc32c(group|payload)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeEntry(group string, payload []byte) []byte {
	out := make([]byte, 0, binary.MaxVarintLen64+len(group)+len(payload)+4)
	out = binary.AppendUvarint(out, uint64(len(group)))
	out = append(out, group...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, []byte(group))
	crc = crc32.Update(crc, castagnoli, payload)
	return binary.BigEndian.AppendUint32(out, crc)
}

type entry struct {
	Group   string
	Payload []byte
}

// decodeEntry verifies the checksum and copies group and payload out of b.
func decodeEntry(b []byte) (entry, bool) {
	if len(b) < 1+4 {
		return entry{}, false
	}
	glen, n := binary.Uvarint(b)
	if n <= 0 || uint64(len(b)) < uint64(n)+glen+4 {
		return entry{}, false
	}
	group := b[n : n+int(glen)]
	payload := b[n+int(glen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, group)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return entry{}, false
	}
	return entry{Group: string(group), Payload: append([]byte{}, payload...)}, true
}
