package config

import (
	"time"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/bridge"
	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/netdev"
	"grimm.is/ifctl/internal/vlan"
)

// Export writes the live bridges, VLANs and physical interfaces as a host
// file that Parse accepts. Taps cannot be told apart from other virtual
// devices through the tables and are left out.
func Export(ch *kernel.Channel) ([]byte, error) {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	bridges, err := bridge.List(ch)
	if err != nil {
		return nil, err
	}
	for _, br := range bridges {
		body := root.AppendNewBlock("bridge", []string{br.Name()}).Body()

		members, err := br.Members()
		if err != nil {
			return nil, err
		}
		body.SetAttributeValue("members", stringList(members))

		stp, err := br.SpanningTree()
		if err != nil {
			return nil, err
		}
		body.SetAttributeValue("stp", cty.BoolVal(stp))

		delay, err := br.ForwardDelay()
		if err != nil {
			return nil, err
		}
		body.SetAttributeValue("forward_delay", cty.NumberIntVal(int64(delay/time.Second)))

		if err := setUp(body, br.Interface); err != nil {
			return nil, err
		}
		root.AppendNewline()
	}

	ifaces, err := netdev.List(ch, false)
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		id, err := vlan.VID(ch, iface.Name())
		if err != nil {
			if errno, ok := errors.Errno(err); ok && (errno == unix.EINVAL || errno == unix.EOPNOTSUPP) {
				continue
			}
			return nil, err
		}
		parent, err := vlan.RealDevice(ch, iface.Name())
		if err != nil {
			return nil, err
		}
		body := root.AppendNewBlock("vlan", []string{parent}).Body()
		body.SetAttributeValue("id", cty.NumberIntVal(int64(id)))
		if err := setUp(body, iface); err != nil {
			return nil, err
		}
		root.AppendNewline()
	}

	for _, iface := range ifaces {
		if !iface.IsPhysical() {
			continue
		}
		body := root.AppendNewBlock("interface", []string{iface.Name()}).Body()
		if err := setUp(body, iface); err != nil {
			return nil, err
		}
		addr, err := address(iface)
		if err != nil {
			return nil, err
		}
		if addr != "" {
			body.SetAttributeValue("address", cty.StringVal(addr))
		}
		mac, err := iface.MACString()
		if err != nil {
			return nil, err
		}
		body.SetAttributeValue("mac", cty.StringVal(mac))
		root.AppendNewline()
	}

	return hclwrite.Format(f.Bytes()), nil
}

func setUp(body *hclwrite.Body, iface *netdev.Interface) error {
	up, err := iface.IsUp()
	if err != nil {
		return err
	}
	body.SetAttributeValue("up", cty.BoolVal(up))
	return nil
}

func stringList(items []string) cty.Value {
	if len(items) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(items))
	for n, s := range items {
		vals[n] = cty.StringVal(s)
	}
	return cty.ListVal(vals)
}
