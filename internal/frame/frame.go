// Package frame builds, decodes and moves raw Ethernet frames.
package frame

import (
	"fmt"
	"net"
	"strings"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"grimm.is/ifctl/internal/errors"
)

// Common EtherTypes.
const (
	EtherTypeIPv4         uint16 = 0x0800
	EtherTypeARP          uint16 = 0x0806
	EtherTypeVLAN         uint16 = 0x8100
	EtherTypeIPv6         uint16 = 0x86dd
	EtherTypeExperimental uint16 = 0x88b5
)

// MinSize is the shortest frame on the wire, excluding the FCS.
const MinSize = 60

// Broadcast is the all-stations address.
var Broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Frame is a decoded Ethernet II frame. VLAN is zero for untagged frames.
type Frame struct {
	Dst       net.HardwareAddr
	Src       net.HardwareAddr
	EtherType uint16
	VLAN      uint16
	Priority  uint8
	Payload   []byte
}

// Build serializes f, adding an 802.1Q tag when VLAN is set and padding
// to the minimum frame size.
func Build(f Frame) ([]byte, error) {
	if len(f.Dst) != 6 || len(f.Src) != 6 {
		return nil, errors.New(errors.KindEncoding, "frame addresses must be 6 bytes")
	}
	if f.VLAN > 4094 {
		return nil, errors.Errorf(errors.KindEncoding, "vlan id %d out of range", f.VLAN)
	}

	eth := &layers.Ethernet{SrcMAC: f.Src, DstMAC: f.Dst, EthernetType: layers.EthernetType(f.EtherType)}
	stack := []gopacket.SerializableLayer{eth}
	if f.VLAN != 0 {
		eth.EthernetType = layers.EthernetTypeDot1Q
		stack = append(stack, &layers.Dot1Q{
			Priority:       f.Priority,
			VLANIdentifier: f.VLAN,
			Type:           layers.EthernetType(f.EtherType),
		})
	}
	stack = append(stack, gopacket.Payload(f.Payload))

	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, stack...); err != nil {
		return nil, errors.Wrap(err, errors.KindEncoding, "failed to serialize frame")
	}
	out := buf.Bytes()
	if len(out) < MinSize {
		out = append(out, make([]byte, MinSize-len(out))...)
	}
	return out, nil
}

// Parse decodes the Ethernet header, and a VLAN tag if present, of b.
// Padding is left in Payload: Ethernet does not record the payload length.
func Parse(b []byte) (Frame, error) {
	pkt := gopacket.NewPacket(b, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return Frame{}, errors.Errorf(errors.KindDecoding, "not an ethernet frame (%d bytes)", len(b))
	}
	eth := ethLayer.(*layers.Ethernet)
	f := Frame{
		Dst:       eth.DstMAC,
		Src:       eth.SrcMAC,
		EtherType: uint16(eth.EthernetType),
		Payload:   eth.Payload,
	}
	if tag, ok := pkt.Layer(layers.LayerTypeDot1Q).(*layers.Dot1Q); ok {
		f.VLAN = tag.VLANIdentifier
		f.Priority = tag.Priority
		f.EtherType = uint16(tag.Type)
		f.Payload = tag.Payload
	}
	return f, nil
}

// Describe renders a one-line summary of a raw frame, naming the layers
// gopacket recognizes.
func Describe(b []byte) string {
	f, err := Parse(b)
	if err != nil {
		return fmt.Sprintf("%d bytes (undecodable)", len(b))
	}
	pkt := gopacket.NewPacket(b, layers.LayerTypeEthernet, gopacket.Default)
	var names []string
	for _, l := range pkt.Layers() {
		names = append(names, l.LayerType().String())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s > %s type 0x%04x", f.Src, f.Dst, f.EtherType)
	if f.VLAN != 0 {
		fmt.Fprintf(&sb, " vlan %d", f.VLAN)
	}
	fmt.Fprintf(&sb, " len %d [%s]", len(b), strings.Join(names, "/"))
	return sb.String()
}
