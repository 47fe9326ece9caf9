package ifreq

import (
	"encoding/binary"
	"math/bits"
	"net/netip"

	"grimm.is/ifctl/internal/errors"
)

// PrefixToMask converts a prefix length to a dotted IPv4 netmask.
func PrefixToMask(prefix int) (netip.Addr, error) {
	if prefix < 0 || prefix > 32 {
		return netip.Addr{}, errors.Errorf(errors.KindEncoding, "prefix length %d out of range 0..32", prefix)
	}
	var m [4]byte
	binary.BigEndian.PutUint32(m[:], ^uint32(0)<<(32-prefix))
	return netip.AddrFrom4(m), nil
}

// MaskToPrefix converts a netmask to a prefix length. Non-contiguous masks are
// not valid netmasks; for those the count of leading one bits is returned.
func MaskToPrefix(mask netip.Addr) int {
	if !mask.Is4() {
		return 0
	}
	m := mask.As4()
	return bits.LeadingZeros32(^binary.BigEndian.Uint32(m[:]))
}
