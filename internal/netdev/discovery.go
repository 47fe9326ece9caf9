package netdev

import (
	"iter"
	"slices"

	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
	"grimm.is/ifctl/internal/kernel"
)

// ifconfEntries bounds the SIOCGIFCONF answer. Devices beyond it are still
// found through sysfs.
const ifconfEntries = 64

// All enumerates every device: the sysfs listing first, then any device the
// address list knows about that sysfs does not. Each range over the result
// rescans the kernel.
func All(ch *kernel.Channel) iter.Seq2[*Interface, error] {
	return func(yield func(*Interface, error) bool) {
		names, err := ch.Tables().ReadDir(kernel.SysClassNet)
		if err != nil {
			if !yield(nil, errors.Wrap(err, errors.KindUnavailable, "failed to list "+kernel.SysClassNet)) {
				return
			}
		}
		for _, name := range names {
			if !yield(New(ch, name), nil) {
				return
			}
		}

		extra, err := addressedNames(ch)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, name := range extra {
			if slices.Contains(names, name) {
				continue
			}
			if !yield(New(ch, name), nil) {
				return
			}
		}
	}
}

// addressedNames returns the devices SIOCGIFCONF reports, in kernel order
// and without duplicates (aliases share a name).
func addressedNames(ch *kernel.Channel) ([]string, error) {
	buf := make([]byte, ifconfEntries*ifreq.Size)
	req, err := ch.IssueRef(ifreq.SIOCGIFCONF, ifreq.EncodeIfconf(len(buf)), ifreq.IfconfBufOffset, buf)
	if err != nil {
		return nil, errors.Wrap(err, errors.GetKind(err), "failed to read interface address list")
	}
	n, err := ifreq.DecodeIfconfLen(req)
	if err != nil {
		return nil, err
	}
	names, err := ifreq.IfconfNames(buf, n)
	if err != nil {
		return nil, err
	}
	return slices.Compact(names), nil
}

// List collects All, keeping only hardware-backed devices when
// physicalOnly is set.
func List(ch *kernel.Channel, physicalOnly bool) ([]*Interface, error) {
	var out []*Interface
	for iface, err := range All(ch) {
		if err != nil {
			return nil, err
		}
		if physicalOnly && !iface.IsPhysical() {
			continue
		}
		out = append(out, iface)
	}
	return out, nil
}

// Find returns a handle for name if the kernel knows the device.
func Find(ch *kernel.Channel, name string) (*Interface, error) {
	iface := New(ch, name)
	if _, err := iface.Index(); err != nil {
		if errors.HasErrno(err, unix.ENODEV) || errors.HasErrno(err, unix.ENXIO) {
			return nil, errors.Wrapf(err, errors.KindNotFound, "interface %s not found", name)
		}
		return nil, err
	}
	return iface, nil
}
