package ifreq

import (
	"bytes"
	"encoding/binary"
	"iter"
	"net"
	"time"

	"grimm.is/ifctl/internal/errors"
)

// FDBEntrySize is sizeof(struct __fdb_entry).
const FDBEntrySize = 16

// clockTick is the unit of the kernel's ageing timer (USER_HZ).
const clockTick = 10 * time.Millisecond

// FDBEntry is one row of a bridge forwarding database as exported through
// /sys/class/net/<bridge>/brforward.
type FDBEntry struct {
	MAC         net.HardwareAddr
	Port        uint16
	Local       bool
	AgeingTimer uint32
}

// Age converts the ageing timer ticks to a duration.
func (e FDBEntry) Age() time.Duration {
	return time.Duration(e.AgeingTimer) * clockTick
}

// MarshalBinary encodes e as a 16-byte row.
func (e FDBEntry) MarshalBinary() ([]byte, error) {
	if len(e.MAC) != 6 {
		return nil, errors.Errorf(errors.KindEncoding, "fdb mac must be 6 bytes, got %d", len(e.MAC))
	}
	b := make([]byte, FDBEntrySize)
	copy(b[0:6], e.MAC)
	b[6] = byte(e.Port)
	if e.Local {
		b[7] = 1
	}
	binary.NativeEndian.PutUint32(b[8:], e.AgeingTimer)
	b[12] = byte(e.Port >> 8)
	return b, nil
}

// DecodeFDB decodes a single 16-byte row.
func DecodeFDB(b []byte) (FDBEntry, error) {
	if len(b) < FDBEntrySize {
		return FDBEntry{}, errors.Errorf(errors.KindDecoding, "fdb row too short: %d < %d", len(b), FDBEntrySize)
	}
	return FDBEntry{
		MAC:         net.HardwareAddr(bytes.Clone(b[0:6])),
		Port:        uint16(b[12])<<8 | uint16(b[6]),
		Local:       b[7] != 0,
		AgeingTimer: binary.NativeEndian.Uint32(b[8:]),
	}, nil
}

// FDBEntries walks b in 16-byte strides. A trailing partial row yields a
// single decoding error and ends the sequence.
func FDBEntries(b []byte) iter.Seq2[FDBEntry, error] {
	return func(yield func(FDBEntry, error) bool) {
		for off := 0; off < len(b); off += FDBEntrySize {
			e, err := DecodeFDB(b[off:])
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}
