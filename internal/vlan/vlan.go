// Package vlan adds and inspects 802.1Q sub-interfaces through the vlan
// ioctls.
package vlan

import (
	"fmt"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/logging"
	"grimm.is/ifctl/internal/netdev"
)

// MaxVID is the highest usable VLAN id; 4095 is reserved.
const MaxVID = 4094

// Name returns the device name the kernel gives the VLAN: parent.vid.
func Name(parent string, vid int) string {
	return fmt.Sprintf("%s.%d", parent, vid)
}

func issue(ch *kernel.Channel, req uint, r ifreq.VlanRequest) (ifreq.VlanRequest, error) {
	buf, err := r.MarshalBinary()
	if err != nil {
		return r, err
	}
	if buf, err = ch.Issue(req, buf); err != nil {
		return r, err
	}
	var out ifreq.VlanRequest
	err = out.UnmarshalBinary(buf)
	return out, err
}

// Add creates the VLAN vid on top of parent and returns a handle on it.
func Add(ch *kernel.Channel, parent string, vid int) (*netdev.Interface, error) {
	if vid < 0 || vid > MaxVID {
		return nil, errors.Errorf(errors.KindValidation, "vlan id %d out of range 0-%d", vid, MaxVID)
	}
	name := Name(parent, vid)
	if len(name) >= ifreq.NameSize {
		return nil, errors.Errorf(errors.KindValidation, "vlan device name %q exceeds %d bytes", name, ifreq.NameSize-1)
	}
	r := ifreq.VlanRequest{Cmd: ifreq.ADD_VLAN_CMD, Device1: parent, VID: int32(vid)}
	if _, err := issue(ch, ifreq.SIOCSIFVLAN, r); err != nil {
		return nil, errors.Wrapf(err, errors.GetKind(err), "failed to add vlan %d on %s", vid, parent)
	}
	iface := netdev.New(ch, name)
	iface.Logger().Info("vlan added", "parent", parent, "vid", vid)
	logging.Audit("vlan.add", name, map[string]any{"parent": parent, "vid": vid})
	return iface, nil
}

// Delete removes the VLAN device called name.
func Delete(ch *kernel.Channel, name string) error {
	r := ifreq.VlanRequest{Cmd: ifreq.DEL_VLAN_CMD, Device1: name}
	if _, err := issue(ch, ifreq.SIOCSIFVLAN, r); err != nil {
		return errors.Wrapf(err, errors.GetKind(err), "failed to delete vlan %s", name)
	}
	logging.WithComponent("vlan").WithDevice(name).Info("vlan deleted")
	logging.Audit("vlan.delete", name, nil)
	return nil
}

// VID returns the VLAN id of name.
func VID(ch *kernel.Channel, name string) (int, error) {
	out, err := issue(ch, ifreq.SIOCGIFVLAN, ifreq.VlanRequest{Cmd: ifreq.GET_VLAN_VID_CMD, Device1: name})
	if err != nil {
		return 0, errors.Wrapf(err, errors.GetKind(err), "failed to read vlan id of %s", name)
	}
	return int(out.VID), nil
}

// RealDevice returns the parent device of the VLAN name.
func RealDevice(ch *kernel.Channel, name string) (string, error) {
	out, err := issue(ch, ifreq.SIOCGIFVLAN, ifreq.VlanRequest{Cmd: ifreq.GET_VLAN_REALDEV_NAME_CMD, Device1: name})
	if err != nil {
		return "", errors.Wrapf(err, errors.GetKind(err), "failed to read parent of %s", name)
	}
	return out.Device2, nil
}
