package bridge

import (
	"iter"
	"path"
	"slices"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/kernel"
)

// All enumerates the bridges on the host: devices with a sysfs bridge
// directory. Every range rescans.
func All(ch *kernel.Channel) iter.Seq2[*Bridge, error] {
	return func(yield func(*Bridge, error) bool) {
		tables := ch.Tables()
		names, err := tables.ReadDir(kernel.SysClassNet)
		if err != nil {
			yield(nil, errors.Wrap(err, errors.KindUnavailable, "failed to list "+kernel.SysClassNet))
			return
		}
		for _, name := range names {
			if !tables.Exists(path.Join(kernel.SysClassNet, name, "bridge")) {
				continue
			}
			if !yield(New(ch, name), nil) {
				return
			}
		}
	}
}

func List(ch *kernel.Channel) ([]*Bridge, error) {
	var out []*Bridge
	for br, err := range All(ch) {
		if err != nil {
			return nil, err
		}
		out = append(out, br)
	}
	return out, nil
}

// Find returns the bridge called name, or a KindNotFound error.
func Find(ch *kernel.Channel, name string) (*Bridge, error) {
	for br, err := range All(ch) {
		if err != nil {
			return nil, err
		}
		if br.Name() == name {
			return br, nil
		}
	}
	return nil, errors.Errorf(errors.KindNotFound, "bridge %s not found", name)
}

// FindOwner returns the bridge that iface is a member of. ok is false when
// the device is not enslaved to any bridge.
func FindOwner(ch *kernel.Channel, iface string) (br *Bridge, ok bool, err error) {
	for candidate, scanErr := range All(ch) {
		if scanErr != nil {
			return nil, false, scanErr
		}
		members, err := candidate.Members()
		if err != nil {
			return nil, false, err
		}
		if slices.Contains(members, iface) {
			return candidate, true, nil
		}
	}
	return nil, false, nil
}
