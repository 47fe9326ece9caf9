// Package ifreq packs and unpacks the fixed-layout structures exchanged with
// the kernel's network device-control interface.
//
// Nothing here performs I/O. Layouts follow the host ABI: integers are in
// native byte order except where the kernel stores network-order values
// (IPv4 addresses and masks inside sockaddr_in).
package ifreq

import (
	"bytes"
	"encoding/binary"
	"net"
	"net/netip"

	"grimm.is/ifctl/internal/errors"
)

// PayloadKind tags the ifreq union variant.
type PayloadKind int

const (
	PayloadEmpty PayloadKind = iota
	PayloadFlags
	PayloadHardwareAddr
	PayloadInet4
	PayloadPointer
	PayloadInt
	PayloadNewName
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadEmpty:
		return "empty"
	case PayloadFlags:
		return "flags"
	case PayloadHardwareAddr:
		return "hwaddr"
	case PayloadInet4:
		return "inet4"
	case PayloadPointer:
		return "pointer"
	case PayloadInt:
		return "int"
	case PayloadNewName:
		return "newname"
	default:
		return "invalid"
	}
}

// size returns the number of union bytes the variant occupies.
func (k PayloadKind) size() int {
	switch k {
	case PayloadFlags:
		return 2
	case PayloadHardwareAddr:
		return 2 + 6
	case PayloadInet4:
		return 8
	case PayloadPointer:
		return ptrSize
	case PayloadInt:
		return 4
	case PayloadNewName:
		return NameSize
	default:
		return 0
	}
}

// Payload is the union half of an ifreq. Only the field selected by Kind is
// meaningful.
type Payload struct {
	Kind         PayloadKind
	Flags        uint16
	HardwareAddr net.HardwareAddr
	Addr         netip.Addr
	Pointer      uintptr
	Int          int32
	NewName      string
}

func Empty() Payload { return Payload{Kind: PayloadEmpty} }
func Flags(f uint16) Payload { return Payload{Kind: PayloadFlags, Flags: f} }
func HardwareAddr(a net.HardwareAddr) Payload { return Payload{Kind: PayloadHardwareAddr, HardwareAddr: a} }
func Inet4(a netip.Addr) Payload { return Payload{Kind: PayloadInet4, Addr: a} }
func Pointer(p uintptr) Payload { return Payload{Kind: PayloadPointer, Pointer: p} }
func Int(v int32) Payload { return Payload{Kind: PayloadInt, Int: v} }
func NewName(n string) Payload { return Payload{Kind: PayloadNewName, NewName: n} }

// Encode builds a Size-byte ifreq: the NUL-padded name followed by the
// payload written at the start of the union.
func Encode(name string, p Payload) ([]byte, error) {
	b := make([]byte, Size)
	if err := PutName(b, name); err != nil {
		return nil, err
	}

	u := b[NameSize:]
	switch p.Kind {
	case PayloadEmpty:
	case PayloadFlags:
		binary.NativeEndian.PutUint16(u, p.Flags)
	case PayloadHardwareAddr:
		if len(p.HardwareAddr) != 6 {
			return nil, errors.Errorf(errors.KindEncoding, "hardware address must be 6 bytes, got %d", len(p.HardwareAddr))
		}
		binary.NativeEndian.PutUint16(u, ARPHRD_ETHER)
		copy(u[2:8], p.HardwareAddr)
	case PayloadInet4:
		if !p.Addr.Is4() {
			return nil, errors.Errorf(errors.KindEncoding, "address %v is not IPv4", p.Addr)
		}
		binary.NativeEndian.PutUint16(u, AF_INET)
		a := p.Addr.As4()
		copy(u[4:8], a[:])
	case PayloadPointer:
		putUintptr(u, p.Pointer)
	case PayloadInt:
		binary.NativeEndian.PutUint32(u, uint32(p.Int))
	case PayloadNewName:
		if err := PutName(u, p.NewName); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf(errors.KindEncoding, "unknown payload kind %d", p.Kind)
	}
	return b, nil
}

// Decode reads the union of b as the given variant.
func Decode(b []byte, kind PayloadKind) (Payload, error) {
	need := NameSize + kind.size()
	if len(b) < need {
		return Payload{}, errors.Errorf(errors.KindDecoding, "ifreq buffer too short for %s payload: %d < %d", kind, len(b), need)
	}

	u := b[NameSize:]
	p := Payload{Kind: kind}
	switch kind {
	case PayloadEmpty:
	case PayloadFlags:
		p.Flags = binary.NativeEndian.Uint16(u)
	case PayloadHardwareAddr:
		p.HardwareAddr = net.HardwareAddr(bytes.Clone(u[2:8]))
	case PayloadInet4:
		p.Addr = netip.AddrFrom4([4]byte(u[4:8]))
	case PayloadPointer:
		p.Pointer = uintptrAt(u)
	case PayloadInt:
		p.Int = int32(binary.NativeEndian.Uint32(u))
	case PayloadNewName:
		p.NewName = cstring(u[:NameSize])
	default:
		return Payload{}, errors.Errorf(errors.KindDecoding, "unknown payload kind %d", kind)
	}
	return p, nil
}

// PutName writes name NUL-padded into the first NameSize bytes of b. A name
// of exactly NameSize bytes is stored without a terminator.
func PutName(b []byte, name string) error {
	if len(name) > NameSize {
		return errors.Errorf(errors.KindEncoding, "interface name %q exceeds %d bytes", name, NameSize)
	}
	if len(b) < NameSize {
		return errors.Errorf(errors.KindEncoding, "buffer too short for name field: %d", len(b))
	}
	clear(b[:NameSize])
	copy(b, name)
	return nil
}

// DecodeName returns the name field of b up to the first NUL.
func DecodeName(b []byte) (string, error) {
	if len(b) < NameSize {
		return "", errors.Errorf(errors.KindDecoding, "ifreq buffer too short for name: %d", len(b))
	}
	return cstring(b[:NameSize]), nil
}

// CString returns s NUL-padded to NameSize bytes, the argument form taken by
// the bridge create/delete requests.
func CString(s string) ([]byte, error) {
	if len(s) >= NameSize {
		return nil, errors.Errorf(errors.KindEncoding, "bridge name %q exceeds %d bytes", s, NameSize-1)
	}
	b := make([]byte, NameSize)
	copy(b, s)
	return b, nil
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func putUintptr(b []byte, v uintptr) {
	if ptrSize == 8 {
		binary.NativeEndian.PutUint64(b, uint64(v))
		return
	}
	binary.NativeEndian.PutUint32(b, uint32(v))
}

func uintptrAt(b []byte) uintptr {
	if ptrSize == 8 {
		return uintptr(binary.NativeEndian.Uint64(b))
	}
	return uintptr(binary.NativeEndian.Uint32(b))
}

// PutPointer stores p as a native pointer-sized integer at off. Transports
// use it to patch out-of-line buffer addresses into a request.
func PutPointer(b []byte, off int, p uintptr) error {
	if off < 0 || off+ptrSize > len(b) {
		return errors.Errorf(errors.KindEncoding, "pointer offset %d out of range for %d-byte request", off, len(b))
	}
	putUintptr(b[off:], p)
	return nil
}
