package ifreq

import (
	"encoding/binary"

	"grimm.is/ifctl/internal/errors"
)

// ethtool command ids.
const (
	ETHTOOL_GSET        = 0x1
	ETHTOOL_SSET        = 0x2
	ETHTOOL_GLINK       = 0xa
	ETHTOOL_GPAUSEPARAM = 0x12
	ETHTOOL_SPAUSEPARAM = 0x13
)

// Duplex and autonegotiation values stored in LinkSettings.
const (
	DUPLEX_HALF     = 0x00
	DUPLEX_FULL     = 0x01
	DUPLEX_UNKNOWN  = 0xff
	AUTONEG_DISABLE = 0x00
	AUTONEG_ENABLE  = 0x01
	AUTONEG_UNKNOWN = 0xff
	SPEED_UNKNOWN   = 0xffffffff
)

// Link mode bits shared by the supported and advertising masks.
const (
	ADVERTISED_10baseT_Half   = 1 << 0
	ADVERTISED_10baseT_Full   = 1 << 1
	ADVERTISED_100baseT_Half  = 1 << 2
	ADVERTISED_100baseT_Full  = 1 << 3
	ADVERTISED_1000baseT_Half = 1 << 4
	ADVERTISED_1000baseT_Full = 1 << 5
	ADVERTISED_Autoneg        = 1 << 6
)

// Block sizes.
const (
	LinkSettingsSize = 44
	ValueSize        = 8
	PauseParamSize   = 16
)

// LinkSettings mirrors struct ethtool_cmd. Every field is kept so that a
// read-modify-write cycle hands the kernel back exactly what it reported.
//
//	off  field
//	  0  cmd             u32
//	  4  supported       u32
//	  8  advertising     u32
//	 12  speed           u16
//	 14  duplex          u8
//	 15  port            u8
//	 16  phy_address     u8
//	 17  transceiver     u8
//	 18  autoneg         u8
//	 19  mdio_support    u8
//	 20  maxtxpkt        u32
//	 24  maxrxpkt        u32
//	 28  speed_hi        u16
//	 30  eth_tp_mdix     u8
//	 31  eth_tp_mdix_ctrl u8
//	 32  lp_advertising  u32
//	 36  reserved        [2]u32
type LinkSettings struct {
	Cmd           uint32
	Supported     uint32
	Advertising   uint32
	SpeedLo       uint16
	Duplex        uint8
	Port          uint8
	PhyAddress    uint8
	Transceiver   uint8
	Autoneg       uint8
	MDIOSupport   uint8
	MaxTxPkt      uint32
	MaxRxPkt      uint32
	SpeedHi       uint16
	EthTpMDIX     uint8
	EthTpMDIXCtrl uint8
	LPAdvertising uint32
	Reserved      [2]uint32
}

// Speed returns the link speed in Mb/s as reported by the driver.
func (s *LinkSettings) Speed() uint32 {
	return uint32(s.SpeedHi)<<16 | uint32(s.SpeedLo)
}

// SetSpeed stores mbps across the split speed fields.
func (s *LinkSettings) SetSpeed(mbps uint32) {
	s.SpeedLo = uint16(mbps)
	s.SpeedHi = uint16(mbps >> 16)
}

// MarshalBinary encodes s into a LinkSettingsSize block.
func (s *LinkSettings) MarshalBinary() ([]byte, error) {
	b := make([]byte, LinkSettingsSize)
	ne := binary.NativeEndian
	ne.PutUint32(b[0:], s.Cmd)
	ne.PutUint32(b[4:], s.Supported)
	ne.PutUint32(b[8:], s.Advertising)
	ne.PutUint16(b[12:], s.SpeedLo)
	b[14] = s.Duplex
	b[15] = s.Port
	b[16] = s.PhyAddress
	b[17] = s.Transceiver
	b[18] = s.Autoneg
	b[19] = s.MDIOSupport
	ne.PutUint32(b[20:], s.MaxTxPkt)
	ne.PutUint32(b[24:], s.MaxRxPkt)
	ne.PutUint16(b[28:], s.SpeedHi)
	b[30] = s.EthTpMDIX
	b[31] = s.EthTpMDIXCtrl
	ne.PutUint32(b[32:], s.LPAdvertising)
	ne.PutUint32(b[36:], s.Reserved[0])
	ne.PutUint32(b[40:], s.Reserved[1])
	return b, nil
}

// UnmarshalBinary decodes a LinkSettingsSize block.
func (s *LinkSettings) UnmarshalBinary(b []byte) error {
	if len(b) < LinkSettingsSize {
		return errors.Errorf(errors.KindDecoding, "ethtool_cmd block too short: %d < %d", len(b), LinkSettingsSize)
	}
	ne := binary.NativeEndian
	*s = LinkSettings{
		Cmd:           ne.Uint32(b[0:]),
		Supported:     ne.Uint32(b[4:]),
		Advertising:   ne.Uint32(b[8:]),
		SpeedLo:       ne.Uint16(b[12:]),
		Duplex:        b[14],
		Port:          b[15],
		PhyAddress:    b[16],
		Transceiver:   b[17],
		Autoneg:       b[18],
		MDIOSupport:   b[19],
		MaxTxPkt:      ne.Uint32(b[20:]),
		MaxRxPkt:      ne.Uint32(b[24:]),
		SpeedHi:       ne.Uint16(b[28:]),
		EthTpMDIX:     b[30],
		EthTpMDIXCtrl: b[31],
		LPAdvertising: ne.Uint32(b[32:]),
		Reserved:      [2]uint32{ne.Uint32(b[36:]), ne.Uint32(b[40:])},
	}
	return nil
}

// Value mirrors struct ethtool_value.
type Value struct {
	Cmd  uint32
	Data uint32
}

func (v *Value) MarshalBinary() ([]byte, error) {
	b := make([]byte, ValueSize)
	binary.NativeEndian.PutUint32(b[0:], v.Cmd)
	binary.NativeEndian.PutUint32(b[4:], v.Data)
	return b, nil
}

func (v *Value) UnmarshalBinary(b []byte) error {
	if len(b) < ValueSize {
		return errors.Errorf(errors.KindDecoding, "ethtool_value block too short: %d < %d", len(b), ValueSize)
	}
	v.Cmd = binary.NativeEndian.Uint32(b[0:])
	v.Data = binary.NativeEndian.Uint32(b[4:])
	return nil
}

// PauseParam mirrors struct ethtool_pauseparam.
type PauseParam struct {
	Cmd     uint32
	Autoneg bool
	RxPause bool
	TxPause bool
}

func (p *PauseParam) MarshalBinary() ([]byte, error) {
	b := make([]byte, PauseParamSize)
	binary.NativeEndian.PutUint32(b[0:], p.Cmd)
	binary.NativeEndian.PutUint32(b[4:], b2u(p.Autoneg))
	binary.NativeEndian.PutUint32(b[8:], b2u(p.RxPause))
	binary.NativeEndian.PutUint32(b[12:], b2u(p.TxPause))
	return b, nil
}

func (p *PauseParam) UnmarshalBinary(b []byte) error {
	if len(b) < PauseParamSize {
		return errors.Errorf(errors.KindDecoding, "ethtool_pauseparam block too short: %d < %d", len(b), PauseParamSize)
	}
	p.Cmd = binary.NativeEndian.Uint32(b[0:])
	p.Autoneg = binary.NativeEndian.Uint32(b[4:]) != 0
	p.RxPause = binary.NativeEndian.Uint32(b[8:]) != 0
	p.TxPause = binary.NativeEndian.Uint32(b[12:]) != 0
	return nil
}

// AdvertisedModes returns the advertising mask for the enabled speed tiers,
// each tier contributing both half and full duplex.
func AdvertisedModes(ten, hundred, thousand bool) uint32 {
	var m uint32
	if ten {
		m |= ADVERTISED_10baseT_Half | ADVERTISED_10baseT_Full
	}
	if hundred {
		m |= ADVERTISED_100baseT_Half | ADVERTISED_100baseT_Full
	}
	if thousand {
		m |= ADVERTISED_1000baseT_Half | ADVERTISED_1000baseT_Full
	}
	return m
}

// ModeNames lists the names of the 10/100/1000baseT bits set in mask, in the
// form ethtool prints them.
func ModeNames(mask uint32) []string {
	names := []struct {
		bit  uint32
		name string
	}{
		{ADVERTISED_10baseT_Half, "10baseT/Half"},
		{ADVERTISED_10baseT_Full, "10baseT/Full"},
		{ADVERTISED_100baseT_Half, "100baseT/Half"},
		{ADVERTISED_100baseT_Full, "100baseT/Full"},
		{ADVERTISED_1000baseT_Half, "1000baseT/Half"},
		{ADVERTISED_1000baseT_Full, "1000baseT/Full"},
	}
	var out []string
	for _, n := range names {
		if mask&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
