package ifreq

import (
	"encoding/binary"

	"grimm.is/ifctl/internal/errors"
)

// IfconfSize is sizeof(struct ifconf): an int length followed by a pointer,
// aligned to pointer size.
const IfconfSize = 2 * ptrSize

// IfconfBufOffset is the offset of ifc_buf within struct ifconf.
const IfconfBufOffset = ptrSize

// EncodeIfconf builds a struct ifconf announcing a buffer of length bytes.
// The buffer pointer is left zero for the transport to patch.
func EncodeIfconf(length int) []byte {
	b := make([]byte, IfconfSize)
	binary.NativeEndian.PutUint32(b, uint32(int32(length)))
	return b
}

// DecodeIfconfLen returns the byte count the kernel wrote back into ifc_len.
func DecodeIfconfLen(b []byte) (int, error) {
	if len(b) < 4 {
		return 0, errors.Errorf(errors.KindDecoding, "ifconf too short: %d", len(b))
	}
	return int(int32(binary.NativeEndian.Uint32(b))), nil
}

// IfconfNames extracts the device names from the first n bytes of an
// SIOCGIFCONF result buffer.
func IfconfNames(buf []byte, n int) ([]string, error) {
	if n > len(buf) {
		return nil, errors.Errorf(errors.KindDecoding, "ifconf length %d exceeds buffer %d", n, len(buf))
	}
	var names []string
	for off := 0; off+Size <= n; off += Size {
		name, err := DecodeName(buf[off:])
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// BridgeArgsSize is the size of the unsigned long args[4] block used by the
// legacy bridge ioctl.
const BridgeArgsSize = 4 * ptrSize

// EncodeBridgeArgs packs a legacy bridge command and its arguments.
func EncodeBridgeArgs(cmd uint, args ...uint) []byte {
	b := make([]byte, BridgeArgsSize)
	putUintptr(b, uintptr(cmd))
	for i, a := range args {
		if i >= 3 {
			break
		}
		putUintptr(b[(i+1)*ptrSize:], uintptr(a))
	}
	return b
}

// DecodeBridgeArgs unpacks a legacy bridge command block.
func DecodeBridgeArgs(b []byte) ([4]uint, error) {
	var out [4]uint
	if len(b) < BridgeArgsSize {
		return out, errors.Errorf(errors.KindDecoding, "bridge args too short: %d < %d", len(b), BridgeArgsSize)
	}
	for i := range out {
		out[i] = uint(uintptrAt(b[i*ptrSize:]))
	}
	return out, nil
}

// VLAN ioctl commands (linux/if_vlan.h).
const (
	ADD_VLAN_CMD              = 0
	DEL_VLAN_CMD              = 1
	GET_VLAN_REALDEV_NAME_CMD = 8
	GET_VLAN_VID_CMD          = 9
)

// VlanRequestSize is sizeof(struct vlan_ioctl_args).
const VlanRequestSize = 56

const vlanDevSize = 24

// VlanRequest mirrors struct vlan_ioctl_args. Device2 and VID share the
// union at offset 28; which one is encoded depends on Cmd.
type VlanRequest struct {
	Cmd     int32
	Device1 string
	Device2 string
	VID     int32
	QoS     int16
}

func (r *VlanRequest) MarshalBinary() ([]byte, error) {
	if len(r.Device1) >= vlanDevSize || len(r.Device2) >= vlanDevSize {
		return nil, errors.Errorf(errors.KindEncoding, "vlan device name exceeds %d bytes", vlanDevSize-1)
	}
	b := make([]byte, VlanRequestSize)
	binary.NativeEndian.PutUint32(b[0:], uint32(r.Cmd))
	copy(b[4:4+vlanDevSize], r.Device1)
	if r.Device2 != "" {
		copy(b[28:28+vlanDevSize], r.Device2)
	} else {
		binary.NativeEndian.PutUint32(b[28:], uint32(r.VID))
	}
	binary.NativeEndian.PutUint16(b[52:], uint16(r.QoS))
	return b, nil
}

// UnmarshalBinary decodes a result. Both union readings are filled in; the
// caller picks the one matching Cmd.
func (r *VlanRequest) UnmarshalBinary(b []byte) error {
	if len(b) < VlanRequestSize {
		return errors.Errorf(errors.KindDecoding, "vlan_ioctl_args too short: %d < %d", len(b), VlanRequestSize)
	}
	r.Cmd = int32(binary.NativeEndian.Uint32(b[0:]))
	r.Device1 = cstring(b[4 : 4+vlanDevSize])
	r.Device2 = cstring(b[28 : 28+vlanDevSize])
	r.VID = int32(binary.NativeEndian.Uint32(b[28:]))
	r.QoS = int16(binary.NativeEndian.Uint16(b[52:]))
	return nil
}
