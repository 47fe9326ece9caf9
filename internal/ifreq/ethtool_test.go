package ifreq

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ifctl/internal/errors"
)

func TestLinkSettingsLayout(t *testing.T) {
	s := LinkSettings{
		Cmd:         ETHTOOL_GSET,
		Supported:   0x2f,
		Advertising: 0x0c,
		Duplex:      DUPLEX_FULL,
		Autoneg:     AUTONEG_ENABLE,
		MaxTxPkt:    7,
		MaxRxPkt:    9,
	}
	s.SetSpeed(100000)

	b, err := s.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, LinkSettingsSize)

	ne := binary.NativeEndian
	assert.Equal(t, uint32(ETHTOOL_GSET), ne.Uint32(b[0:]))
	assert.Equal(t, uint32(0x2f), ne.Uint32(b[4:]))
	assert.Equal(t, uint32(0x0c), ne.Uint32(b[8:]))
	assert.Equal(t, uint16(100000&0xffff), ne.Uint16(b[12:]))
	assert.Equal(t, byte(DUPLEX_FULL), b[14])
	assert.Equal(t, byte(AUTONEG_ENABLE), b[18])
	assert.Equal(t, uint32(7), ne.Uint32(b[20:]))
	assert.Equal(t, uint32(9), ne.Uint32(b[24:]))
	assert.Equal(t, uint16(100000>>16), ne.Uint16(b[28:]))
}

func TestLinkSettingsLossless(t *testing.T) {
	raw := make([]byte, LinkSettingsSize)
	for i := range raw {
		raw[i] = byte(i*7 + 1)
	}

	var s LinkSettings
	require.NoError(t, s.UnmarshalBinary(raw))
	out, err := s.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestLinkSettingsShort(t *testing.T) {
	var s LinkSettings
	err := s.UnmarshalBinary(make([]byte, 43))
	assert.Equal(t, errors.KindDecoding, errors.GetKind(err))
}

func TestValueAndPause(t *testing.T) {
	v := Value{Cmd: ETHTOOL_GLINK, Data: 1}
	b, _ := v.MarshalBinary()
	require.Len(t, b, ValueSize)
	var v2 Value
	require.NoError(t, v2.UnmarshalBinary(b))
	assert.Equal(t, v, v2)

	p := PauseParam{Cmd: ETHTOOL_SPAUSEPARAM, Autoneg: true, TxPause: true}
	b, _ = p.MarshalBinary()
	require.Len(t, b, PauseParamSize)
	assert.Equal(t, uint32(1), binary.NativeEndian.Uint32(b[4:]))
	assert.Equal(t, uint32(0), binary.NativeEndian.Uint32(b[8:]))
	var p2 PauseParam
	require.NoError(t, p2.UnmarshalBinary(b))
	assert.Equal(t, p, p2)

	assert.Error(t, v2.UnmarshalBinary(b[:4]))
	assert.Error(t, p2.UnmarshalBinary(b[:12]))
}

func TestAdvertisedModes(t *testing.T) {
	assert.Equal(t, uint32(0), AdvertisedModes(false, false, false))
	assert.Equal(t, uint32(0x0c), AdvertisedModes(false, true, false))
	assert.Equal(t, uint32(0x3f), AdvertisedModes(true, true, true))
	assert.Equal(t, []string{"100baseT/Half", "100baseT/Full"}, ModeNames(AdvertisedModes(false, true, false)))
}
