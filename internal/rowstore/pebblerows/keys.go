package pebblerows

import (
	"encoding/binary"

	"github.com/rzbill/spool/internal/rowstore"
)

// Keyspace (byte-wise, lexicographically sortable):
//
//	rows/m                                 last assigned RowID (be8)
//	rows/e/{id_be8}                        entry: framed group + payload
//	rows/g/{len_be4}{group}{id_be8}        group index, empty value
//
// The group is length-prefixed so no group's index prefix is a prefix of
// another group's.

var (
	metaKey     = []byte("rows/m")
	entryPrefix = []byte("rows/e/")
	indexPrefix = []byte("rows/g/")
)

func appendBE4(dst []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(dst, b[:]...)
}

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func entryKey(id rowstore.RowID) []byte {
	k := make([]byte, 0, len(entryPrefix)+8)
	k = append(k, entryPrefix...)
	return appendBE8(k, uint64(id))
}

func groupPrefix(group string) []byte {
	k := make([]byte, 0, len(indexPrefix)+4+len(group)+8)
	k = append(k, indexPrefix...)
	k = appendBE4(k, uint32(len(group)))
	return append(k, group...)
}

func indexKey(group string, id rowstore.RowID) []byte {
	return appendBE8(groupPrefix(group), uint64(id))
}

// upperBound returns the smallest key greater than every key with prefix p.
func upperBound(p []byte) []byte {
	return append(append([]byte(nil), p...), 0xFF)
}

// idFromKey reads the trailing be8 RowID of an entry or index key.
func idFromKey(k []byte) (rowstore.RowID, bool) {
	if len(k) < 8 {
		return 0, false
	}
	return rowstore.RowID(binary.BigEndian.Uint64(k[len(k)-8:])), true
}

// parseIndexKey splits an index key into group and RowID.
func parseIndexKey(k []byte) (string, rowstore.RowID, bool) {
	if len(k) < len(indexPrefix)+4+8 {
		return "", 0, false
	}
	rest := k[len(indexPrefix):]
	n := int(binary.BigEndian.Uint32(rest[:4]))
	if len(rest) != 4+n+8 {
		return "", 0, false
	}
	id, _ := idFromKey(k)
	return string(rest[4 : 4+n]), id, true
}
