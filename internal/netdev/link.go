package netdev

import (
	"strings"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
)

// Duplex is the link duplex mode.
type Duplex uint8

const (
	DuplexHalf Duplex = ifreq.DUPLEX_HALF
	DuplexFull Duplex = ifreq.DUPLEX_FULL
)

func (d Duplex) String() string {
	switch d {
	case DuplexHalf:
		return "half"
	case DuplexFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseDuplex accepts "half" or "full".
func ParseDuplex(s string) (Duplex, error) {
	switch strings.ToLower(s) {
	case "half":
		return DuplexHalf, nil
	case "full":
		return DuplexFull, nil
	}
	return 0, errors.Errorf(errors.KindValidation, "invalid duplex %q (want half or full)", s)
}

// LinkInfo is the link state reported by ethtool. Duplex and Autoneg are nil
// when the driver does not report them; Speed is 0 when unknown.
type LinkInfo struct {
	Speed   int     `yaml:"speed"`
	Duplex  *Duplex `yaml:"duplex,omitempty"`
	Autoneg *bool   `yaml:"autoneg,omitempty"`
	Up      bool    `yaml:"up"`
}

// ethtool issues SIOCETHTOOL with block as the out-of-line command.
func (i *Interface) ethtool(block []byte) error {
	req, err := ifreq.Encode(i.name, ifreq.Pointer(0))
	if err != nil {
		return err
	}
	_, err = i.ch.IssueRef(ifreq.SIOCETHTOOL, req, ifreq.DataOffset, block)
	return err
}

// LinkSettings returns the raw ethtool_cmd block.
func (i *Interface) LinkSettings() (ifreq.LinkSettings, error) {
	var s ifreq.LinkSettings
	cmd := ifreq.LinkSettings{Cmd: ifreq.ETHTOOL_GSET}
	block, _ := cmd.MarshalBinary()
	if err := i.ethtool(block); err != nil {
		return s, i.wrap(err, "read link settings of")
	}
	err := s.UnmarshalBinary(block)
	return s, err
}

func (i *Interface) writeLinkSettings(s ifreq.LinkSettings) error {
	s.Cmd = ifreq.ETHTOOL_SSET
	block, _ := s.MarshalBinary()
	if err := i.ethtool(block); err != nil {
		return i.wrap(err, "write link settings of")
	}
	return nil
}

// LinkState reports whether the link is detected (ETHTOOL_GLINK).
func (i *Interface) LinkState() (bool, error) {
	v := ifreq.Value{Cmd: ifreq.ETHTOOL_GLINK}
	block, _ := v.MarshalBinary()
	if err := i.ethtool(block); err != nil {
		return false, i.wrap(err, "read link state of")
	}
	if err := v.UnmarshalBinary(block); err != nil {
		return false, err
	}
	return v.Data != 0, nil
}

// LinkInfo returns speed, duplex, autonegotiation and link state. Devices
// without ethtool link settings (loopback, most virtual devices) report
// zero speed and nil duplex/autoneg rather than failing; a failing link
// state query is returned as an error.
func (i *Interface) LinkInfo() (LinkInfo, error) {
	var info LinkInfo

	s, err := i.LinkSettings()
	if err != nil {
		i.log.Debug("no link settings", "error", err)
	} else {
		if speed := s.Speed(); speed != 0xffff && speed != ifreq.SPEED_UNKNOWN {
			info.Speed = int(speed)
		}
		if s.Duplex != ifreq.DUPLEX_UNKNOWN {
			d := Duplex(s.Duplex)
			info.Duplex = &d
		}
		if s.Autoneg != ifreq.AUTONEG_UNKNOWN {
			a := s.Autoneg == ifreq.AUTONEG_ENABLE
			info.Autoneg = &a
		}
	}

	info.Up, err = i.LinkState()
	if err != nil {
		return LinkInfo{}, err
	}
	return info, nil
}

// SetLinkMode forces speed and/or duplex. Nil arguments keep the current
// value. Autonegotiation is always turned off.
func (i *Interface) SetLinkMode(speed *int, duplex *Duplex) error {
	unlock := i.ch.Lock(i.name)
	defer unlock()

	s, err := i.LinkSettings()
	if err != nil {
		return err
	}
	if speed != nil {
		if *speed <= 0 {
			return errors.Errorf(errors.KindValidation, "invalid speed %d", *speed)
		}
		s.SetSpeed(uint32(*speed))
	}
	if duplex != nil {
		s.Duplex = uint8(*duplex)
	}
	s.Autoneg = ifreq.AUTONEG_DISABLE

	if err := i.writeLinkSettings(s); err != nil {
		return err
	}
	i.log.Debug("link mode forced", "speed", s.Speed(), "duplex", Duplex(s.Duplex).String())
	return nil
}

// SetLinkAuto enables autonegotiation, advertising half and full duplex at
// each enabled speed tier that the device supports.
func (i *Interface) SetLinkAuto(ten, hundred, thousand bool) error {
	unlock := i.ch.Lock(i.name)
	defer unlock()

	s, err := i.LinkSettings()
	if err != nil {
		return err
	}
	s.Advertising = ifreq.AdvertisedModes(ten, hundred, thousand) & s.Supported
	s.Autoneg = ifreq.AUTONEG_ENABLE

	if err := i.writeLinkSettings(s); err != nil {
		return err
	}
	i.log.Debug("autonegotiation enabled", "advertising", strings.Join(ifreq.ModeNames(s.Advertising), ","))
	return nil
}

// SetPauseParam writes the flow-control settings in one request.
func (i *Interface) SetPauseParam(autoneg, rx, tx bool) error {
	p := ifreq.PauseParam{Cmd: ifreq.ETHTOOL_SPAUSEPARAM, Autoneg: autoneg, RxPause: rx, TxPause: tx}
	block, _ := p.MarshalBinary()
	if err := i.ethtool(block); err != nil {
		return i.wrap(err, "set pause parameters of")
	}
	return nil
}

// PauseParam reads the flow-control settings.
func (i *Interface) PauseParam() (ifreq.PauseParam, error) {
	p := ifreq.PauseParam{Cmd: ifreq.ETHTOOL_GPAUSEPARAM}
	block, _ := p.MarshalBinary()
	if err := i.ethtool(block); err != nil {
		return p, i.wrap(err, "read pause parameters of")
	}
	err := p.UnmarshalBinary(block)
	return p, err
}
