package bridge

import (
	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/netdev"
)

// Member names a device to add to or remove from a bridge, either by name
// or by an existing handle.
type Member interface {
	String() string
	device(ch *kernel.Channel) netdev.Device
}

type byName string

func (m byName) String() string { return string(m) }

func (m byName) device(ch *kernel.Channel) netdev.Device { return netdev.New(ch, string(m)) }

type byHandle struct{ d netdev.Device }

func (m byHandle) String() string { return m.d.Name() }

func (m byHandle) device(*kernel.Channel) netdev.Device { return m.d }

// ByName refers to a member by device name.
func ByName(name string) Member { return byName(name) }

// ByHandle refers to a member through any device handle.
func ByHandle(d netdev.Device) Member { return byHandle{d} }

// resolveIndex turns a member into its current kernel index.
func resolveIndex(ch *kernel.Channel, m Member) (int, error) {
	idx, err := m.device(ch).Index()
	if err != nil {
		if errors.HasErrno(err, unix.ENODEV) {
			return 0, errors.Wrapf(err, errors.KindNotFound, "member %s not found", m)
		}
		return 0, err
	}
	return idx, nil
}
