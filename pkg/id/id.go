package id

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"time"
)

// ID is a 128-bit, lexicographically sortable identifier encoded as 16 bytes
// big-endian: [8 bytes ms_timestamp][8 bytes sequence].
type ID [16]byte

// Zero is the unset ID.
var Zero ID

// Bytes returns a copy of the raw 16-byte representation.
func (i ID) Bytes() []byte { b := make([]byte, 16); copy(b, i[:]); return b }

// String returns the lowercase hex form.
func (i ID) String() string { return hex.EncodeToString(i[:]) }

// IsZero reports whether i is unset.
func (i ID) IsZero() bool { return i == Zero }

// Time returns the millisecond timestamp embedded in the ID.
func (i ID) Time() time.Time {
	return time.UnixMilli(int64(binary.BigEndian.Uint64(i[0:8])))
}

// Compare returns -1, 0, 1 based on lexical comparison.
func (i ID) Compare(other ID) int { return bytes.Compare(i[:], other[:]) }

// Parse decodes the hex form produced by String.
func Parse(s string) (ID, error) {
	var out ID
	if hex.DecodedLen(len(s)) != len(out) {
		return Zero, fmt.Errorf("id: want %d hex chars, got %d", hex.EncodedLen(len(out)), len(s))
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return Zero, fmt.Errorf("id: %w", err)
	}
	return out, nil
}

// Generator produces monotonically increasing IDs per process.
type Generator struct {
	mu       sync.Mutex
	now      func() int64
	lastMs   int64
	sequence uint64
}

// NewGenerator creates a Generator on the wall clock.
func NewGenerator() *Generator {
	return NewGeneratorWithClock(func() int64 { return time.Now().UnixMilli() })
}

// NewGeneratorWithClock creates a Generator reading milliseconds from now.
func NewGeneratorWithClock(now func() int64) *Generator {
	return &Generator{now: now}
}

// Next returns a new ID. If the clock goes backwards it keeps lastMs and
// increments the sequence. If the sequence is exhausted within a millisecond
// it waits for the clock to advance.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	switch {
	case ms != g.lastMs:
		g.sequence = 0
	case g.sequence == math.MaxUint64:
		for ms <= g.lastMs {
			time.Sleep(time.Millisecond / 8)
			ms = g.now()
		}
		g.sequence = 0
	default:
		g.sequence++
	}
	g.lastMs = ms
	return makeID(ms, g.sequence)
}

func makeID(ms int64, seq uint64) ID {
	var id ID
	binary.BigEndian.PutUint64(id[0:8], uint64(ms))
	binary.BigEndian.PutUint64(id[8:16], seq)
	return id
}
