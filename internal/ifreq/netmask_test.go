package ifreq

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ifctl/internal/errors"
)

func TestNetmaskRoundTrip(t *testing.T) {
	for p := 0; p <= 32; p++ {
		mask, err := PrefixToMask(p)
		require.NoError(t, err)
		assert.Equal(t, p, MaskToPrefix(mask), "prefix /%d via %s", p, mask)
	}
}

func TestPrefixToMaskKnown(t *testing.T) {
	tests := map[int]string{
		0:  "0.0.0.0",
		16: "255.255.0.0",
		21: "255.255.248.0",
		24: "255.255.255.0",
		32: "255.255.255.255",
	}
	for p, want := range tests {
		got, err := PrefixToMask(p)
		require.NoError(t, err)
		assert.Equal(t, want, got.String())
	}
}

func TestPrefixOutOfRange(t *testing.T) {
	for _, p := range []int{-1, 33} {
		_, err := PrefixToMask(p)
		assert.Equal(t, errors.KindEncoding, errors.GetKind(err))
	}
}

func TestNonContiguousMask(t *testing.T) {
	assert.Equal(t, 8, MaskToPrefix(netip.MustParseAddr("255.0.255.0")))
	assert.Equal(t, 0, MaskToPrefix(netip.MustParseAddr("0.255.255.255")))
	assert.Equal(t, 0, MaskToPrefix(netip.Addr{}))
}
