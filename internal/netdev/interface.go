// Package netdev models a kernel network device as a stateless handle keyed
// by name. Every accessor is an independent round trip to the kernel; no
// device state is cached in the handle.
package netdev

import (
	"net"
	"net/netip"
	"path"

	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/logging"
)

// Device is the capability shared by interfaces, bridges and taps: a name
// the kernel resolves to a live index.
type Device interface {
	Name() string
	Index() (int, error)
}

// Interface is a handle on a kernel network device. Creating one does not
// create the device and dropping one does not delete it.
type Interface struct {
	ch   *kernel.Channel
	name string
	log  *logging.Logger
}

// New returns a handle for the device called name.
func New(ch *kernel.Channel, name string) *Interface {
	return &Interface{
		ch:   ch,
		name: name,
		log:  logging.WithComponent("netdev").WithDevice(name),
	}
}

func (i *Interface) Name() string { return i.name }
func (i *Interface) String() string { return i.name }
func (i *Interface) Channel() *kernel.Channel { return i.ch }
func (i *Interface) Logger() *logging.Logger { return i.log }

// Request encodes an ifreq for this device and issues it.
func (i *Interface) Request(req uint, p ifreq.Payload) ([]byte, error) {
	buf, err := ifreq.Encode(i.name, p)
	if err != nil {
		return nil, err
	}
	return i.ch.Issue(req, buf)
}

func (i *Interface) get(req uint, kind ifreq.PayloadKind) (ifreq.Payload, error) {
	buf, err := i.Request(req, ifreq.Empty())
	if err != nil {
		return ifreq.Payload{}, err
	}
	return ifreq.Decode(buf, kind)
}

// wrap adds device context while keeping the kind assigned lower down.
func (i *Interface) wrap(err error, what string) error {
	return errors.Wrapf(err, errors.GetKind(err), "failed to %s %s", what, i.name)
}

// Flags returns the device flags word.
func (i *Interface) Flags() (uint16, error) {
	p, err := i.get(ifreq.SIOCGIFFLAGS, ifreq.PayloadFlags)
	if err != nil {
		return 0, i.wrap(err, "read flags of")
	}
	return p.Flags, nil
}

// updateFlags reads the flags, applies set and unset, and writes them back,
// serialized against other read-modify-write calls on this device.
func (i *Interface) updateFlags(set, unset uint16) error {
	unlock := i.ch.Lock(i.name)
	defer unlock()

	flags, err := i.Flags()
	if err != nil {
		return err
	}
	if _, err := i.Request(ifreq.SIOCSIFFLAGS, ifreq.Flags(flags&^unset|set)); err != nil {
		return i.wrap(err, "write flags of")
	}
	return nil
}

// Up sets the administrative up flag. Calling it on an up device is a
// harmless rewrite of the same flags.
func (i *Interface) Up() error {
	if err := i.updateFlags(ifreq.IFF_UP, 0); err != nil {
		return err
	}
	i.log.Debug("link set up")
	return nil
}

// Down clears the administrative up flag.
func (i *Interface) Down() error {
	if err := i.updateFlags(0, ifreq.IFF_UP); err != nil {
		return err
	}
	i.log.Debug("link set down")
	return nil
}

func (i *Interface) IsUp() (bool, error) {
	flags, err := i.Flags()
	if err != nil {
		return false, err
	}
	return flags&ifreq.IFF_UP != 0, nil
}

// MAC returns the hardware address.
func (i *Interface) MAC() (net.HardwareAddr, error) {
	p, err := i.get(ifreq.SIOCGIFHWADDR, ifreq.PayloadHardwareAddr)
	if err != nil {
		return nil, i.wrap(err, "read hardware address of")
	}
	return p.HardwareAddr, nil
}

// MACString returns the hardware address in colon-hex form.
func (i *Interface) MACString() (string, error) {
	mac, err := i.MAC()
	if err != nil {
		return "", err
	}
	return mac.String(), nil
}

// SetMAC changes the hardware address. Drivers that refuse the change while
// the device is up make this fail with KindBusy.
func (i *Interface) SetMAC(mac net.HardwareAddr) error {
	if _, err := i.Request(ifreq.SIOCSIFHWADDR, ifreq.HardwareAddr(mac)); err != nil {
		if errors.HasErrno(err, unix.EBUSY) {
			return errors.Wrapf(err, errors.KindBusy, "cannot change hardware address of %s while it is up", i.name)
		}
		return i.wrap(err, "set hardware address of")
	}
	i.log.Debug("hardware address set", "mac", mac.String())
	return nil
}

// SetMACString parses a colon-separated hardware address and sets it.
func (i *Interface) SetMACString(s string) error {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return errors.Wrapf(err, errors.KindValidation, "invalid hardware address %q", s)
	}
	return i.SetMAC(mac)
}

// IP returns the device's IPv4 address, or the zero Addr when none is
// assigned.
func (i *Interface) IP() (netip.Addr, error) {
	p, err := i.get(ifreq.SIOCGIFADDR, ifreq.PayloadInet4)
	if err != nil {
		if errors.HasErrno(err, unix.EADDRNOTAVAIL) {
			return netip.Addr{}, nil
		}
		return netip.Addr{}, i.wrap(err, "read address of")
	}
	return p.Addr, nil
}

// SetIP assigns an IPv4 address. The kernel resets the netmask to the
// classful default, so set the netmask afterwards.
func (i *Interface) SetIP(addr netip.Addr) error {
	if _, err := i.Request(ifreq.SIOCSIFADDR, ifreq.Inet4(addr)); err != nil {
		return i.wrap(err, "set address of")
	}
	i.log.Debug("address set", "addr", addr.String())
	return nil
}

// Netmask returns the prefix length. ok is false when the device has no
// address and therefore no mask.
func (i *Interface) Netmask() (prefix int, ok bool, err error) {
	p, err := i.get(ifreq.SIOCGIFNETMASK, ifreq.PayloadInet4)
	if err != nil {
		if errors.HasErrno(err, unix.EADDRNOTAVAIL) {
			return 0, false, nil
		}
		return 0, false, i.wrap(err, "read netmask of")
	}
	return ifreq.MaskToPrefix(p.Addr), true, nil
}

func (i *Interface) SetNetmask(prefix int) error {
	mask, err := ifreq.PrefixToMask(prefix)
	if err != nil {
		return err
	}
	if _, err := i.Request(ifreq.SIOCSIFNETMASK, ifreq.Inet4(mask)); err != nil {
		return i.wrap(err, "set netmask of")
	}
	i.log.Debug("netmask set", "prefix", prefix)
	return nil
}

// Index returns the kernel interface index. It is queried on every call:
// an index is only valid for the lifetime of one device instance.
func (i *Interface) Index() (int, error) {
	p, err := i.get(ifreq.SIOCGIFINDEX, ifreq.PayloadInt)
	if err != nil {
		return 0, i.wrap(err, "read index of")
	}
	return int(p.Int), nil
}

// SetName renames the device. The kernel only allows this while the device
// is down; otherwise it fails with KindBusy. The handle follows the rename.
func (i *Interface) SetName(name string) error {
	if _, err := i.Request(ifreq.SIOCSIFNAME, ifreq.NewName(name)); err != nil {
		if errors.HasErrno(err, unix.EBUSY) {
			return errors.Wrapf(err, errors.KindBusy, "cannot rename %s while it is up", i.name)
		}
		return i.wrap(err, "rename")
	}
	i.log.Info("renamed", "to", name)
	i.name = name
	i.log = logging.WithComponent("netdev").WithDevice(name)
	return nil
}

// Exists reports whether the device is present in sysfs.
func (i *Interface) Exists() bool {
	return i.ch.Tables().Exists(path.Join(kernel.SysClassNet, i.name))
}

// IsPhysical reports whether the device is backed by hardware.
func (i *Interface) IsPhysical() bool {
	return i.ch.Tables().Exists(path.Join(kernel.SysClassNet, i.name, "device"))
}

// DriverInfo returns the ethtool driver description.
func (i *Interface) DriverInfo() (kernel.DriverInfo, error) {
	eth, err := i.ch.Ethtool()
	if err != nil {
		return kernel.DriverInfo{}, err
	}
	return eth.DriverInfo(i.name)
}

// PermAddr returns the burned-in hardware address, if the driver reports one.
func (i *Interface) PermAddr() (string, error) {
	eth, err := i.ch.Ethtool()
	if err != nil {
		return "", err
	}
	return eth.PermAddr(i.name)
}

// NICStats returns the driver's own counters (ethtool -S). Names and sets
// differ between drivers; virtual devices usually have none.
func (i *Interface) NICStats() (map[string]uint64, error) {
	eth, err := i.ch.Ethtool()
	if err != nil {
		return nil, err
	}
	return eth.Stats(i.name)
}
