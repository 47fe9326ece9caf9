// Package bridge manages Linux Ethernet bridges through the legacy bridge
// ioctls and reads their state from sysfs.
package bridge

import (
	"net/netip"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/logging"
	"grimm.is/ifctl/internal/netdev"
)

// tick is the unit the kernel uses for bridge timers in the brctl
// arguments and in sysfs.
const tick = 10 * time.Millisecond

// Bridge is a handle on a kernel bridge device. All Interface accessors
// apply, except that a bridge has no IPv4 address of its own.
type Bridge struct {
	*netdev.Interface
}

// New returns a handle on an existing bridge called name.
func New(ch *kernel.Channel, name string) *Bridge {
	return &Bridge{Interface: netdev.New(ch, name)}
}

// Create adds a new bridge device. It starts down with no members.
func Create(ch *kernel.Channel, name string) (*Bridge, error) {
	arg, err := ifreq.CString(name)
	if err != nil {
		return nil, err
	}
	if _, err := ch.Issue(ifreq.SIOCBRADDBR, arg); err != nil {
		return nil, errors.Wrapf(err, errors.GetKind(err), "failed to create bridge %s", name)
	}
	br := New(ch, name)
	br.Logger().Info("bridge created")
	logging.Audit("bridge.create", name, nil)
	return br, nil
}

// Delete brings the bridge down and removes it. Members are released by
// the kernel.
func (b *Bridge) Delete() error {
	if err := b.Down(); err != nil {
		return err
	}
	arg, err := ifreq.CString(b.Name())
	if err != nil {
		return err
	}
	if _, err := b.Channel().Issue(ifreq.SIOCBRDELBR, arg); err != nil {
		return errors.Wrapf(err, errors.GetKind(err), "failed to delete bridge %s", b.Name())
	}
	b.Logger().Info("bridge deleted")
	logging.Audit("bridge.delete", b.Name(), nil)
	return nil
}

// IP always reports 0.0.0.0.
func (b *Bridge) IP() (netip.Addr, error) {
	return netip.IPv4Unspecified(), nil
}

func (b *Bridge) SetIP(netip.Addr) error {
	return errors.Errorf(errors.KindUnsupported, "bridge %s cannot be assigned an address", b.Name())
}

func (b *Bridge) SetNetmask(int) error {
	return errors.Errorf(errors.KindUnsupported, "bridge %s has no netmask", b.Name())
}

// AddMember enslaves a device to the bridge.
func (b *Bridge) AddMember(m Member) error {
	return b.memberOp(m, ifreq.SIOCBRADDIF, "add")
}

// RemoveMember releases a device from the bridge.
func (b *Bridge) RemoveMember(m Member) error {
	return b.memberOp(m, ifreq.SIOCBRDELIF, "remove")
}

func (b *Bridge) memberOp(m Member, req uint, verb string) error {
	idx, err := resolveIndex(b.Channel(), m)
	if err != nil {
		return err
	}
	if _, err := b.Request(req, ifreq.Int(int32(idx))); err != nil {
		return errors.Wrapf(err, errors.GetKind(err), "failed to %s member %s on %s", verb, m, b.Name())
	}
	b.Logger().Debug("member "+verb, "member", m.String(), "ifindex", idx)
	logging.Audit("bridge.member."+verb, b.Name(), map[string]any{"member": m.String()})
	return nil
}

func (b *Bridge) sysfs(elem ...string) string {
	return path.Join(append([]string{kernel.SysClassNet, b.Name()}, elem...)...)
}

type port struct {
	name string
	no   uint16
}

// ports reads the member list with each member's port number.
func (b *Bridge) ports() ([]port, error) {
	tables := b.Channel().Tables()
	names, err := tables.ReadDir(b.sysfs("brif"))
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindUnavailable, "failed to list members of %s", b.Name())
	}
	out := make([]port, 0, len(names))
	for _, name := range names {
		raw, err := tables.ReadFile(b.sysfs("brif", name, "port_no"))
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindUnavailable, "failed to read port of %s", name)
		}
		no, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 0, 16)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindDecoding, "bad port number for %s", name)
		}
		out = append(out, port{name: name, no: uint16(no)})
	}
	slices.SortFunc(out, func(a, b port) int { return int(a.no) - int(b.no) })
	return out, nil
}

// Members returns the member device names ordered by port number.
func (b *Bridge) Members() ([]string, error) {
	ps, err := b.ports()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.name
	}
	return names, nil
}

// brctl sends a legacy bridge command.
func (b *Bridge) brctl(cmd uint, args ...uint) error {
	req, err := ifreq.Encode(b.Name(), ifreq.Pointer(0))
	if err != nil {
		return err
	}
	_, err = b.Channel().IssueRef(ifreq.SIOCDEVPRIVATE, req, ifreq.DataOffset, ifreq.EncodeBridgeArgs(cmd, args...))
	return err
}

// SetSpanningTree turns STP on or off.
func (b *Bridge) SetSpanningTree(on bool) error {
	var v uint
	if on {
		v = 1
	}
	if err := b.brctl(ifreq.BRCTL_SET_BRIDGE_STP_STATE, v); err != nil {
		return errors.Wrapf(err, errors.GetKind(err), "failed to set stp on %s", b.Name())
	}
	b.Logger().Debug("stp set", "enabled", on)
	logging.Audit("bridge.stp", b.Name(), map[string]any{"enabled": on})
	return nil
}

// SpanningTree reports whether STP is enabled.
func (b *Bridge) SpanningTree() (bool, error) {
	v, err := b.readUint("bridge", "stp_state")
	return v != 0, err
}

// SetForwardDelay sets the listening and learning time. The kernel keeps it
// in 1/100 s ticks; finer precision is truncated.
func (b *Bridge) SetForwardDelay(d time.Duration) error {
	if d < 0 {
		return errors.Errorf(errors.KindValidation, "negative forward delay %s", d)
	}
	ticks := uint(d / tick)
	if err := b.brctl(ifreq.BRCTL_SET_BRIDGE_FORWARD_DELAY, ticks); err != nil {
		return errors.Wrapf(err, errors.GetKind(err), "failed to set forward delay on %s", b.Name())
	}
	b.Logger().Debug("forward delay set", "delay", d.String(), "ticks", ticks)
	logging.Audit("bridge.forward_delay", b.Name(), map[string]any{"delay": d.String()})
	return nil
}

// ForwardDelay reads the forward delay back from sysfs.
func (b *Bridge) ForwardDelay() (time.Duration, error) {
	v, err := b.readUint("bridge", "forward_delay")
	return time.Duration(v) * tick, err
}

func (b *Bridge) readUint(elem ...string) (uint64, error) {
	p := b.sysfs(elem...)
	raw, err := b.Channel().Tables().ReadFile(p)
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindUnavailable, "failed to read %s", p)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 0, 64)
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindDecoding, "bad value in %s", p)
	}
	return v, nil
}
