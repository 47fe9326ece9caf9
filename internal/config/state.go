package config

import (
	"net/netip"
	"slices"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v2"

	"grimm.is/ifctl/internal/bridge"
	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/netdev"
	"grimm.is/ifctl/internal/vlan"
)

// Current reads the live state of the devices desired names, filling only
// the fields desired sets. Devices that do not exist are left out.
func Current(ch *kernel.Channel, desired *Config) (*Config, error) {
	cur := &Config{}

	for _, want := range desired.Bridges {
		br, err := bridge.Find(ch, want.Name)
		if err != nil {
			if errors.IsKind(err, errors.KindNotFound) {
				continue
			}
			return nil, err
		}
		have := Bridge{Name: want.Name}
		if want.Members != nil {
			members, err := br.Members()
			if err != nil {
				return nil, err
			}
			have.Members = append([]string{}, members...)
		}
		if want.STP != nil {
			on, err := br.SpanningTree()
			if err != nil {
				return nil, err
			}
			have.STP = &on
		}
		if want.ForwardDelay != nil {
			d, err := br.ForwardDelay()
			if err != nil {
				return nil, err
			}
			secs := int(d / time.Second)
			have.ForwardDelay = &secs
		}
		if have.Up, err = upIfWanted(br.Interface, want.Up); err != nil {
			return nil, err
		}
		cur.Bridges = append(cur.Bridges, have)
	}

	for _, want := range desired.Taps {
		iface := netdev.New(ch, want.Name)
		if !iface.Exists() {
			continue
		}
		// A tap that outlives its creator is persistent by definition.
		have := Tap{Name: want.Name, Persist: want.Persist}
		var err error
		if have.Up, err = upIfWanted(iface, want.Up); err != nil {
			return nil, err
		}
		cur.Taps = append(cur.Taps, have)
	}

	for _, want := range desired.VLANs {
		name := want.Name()
		iface := netdev.New(ch, name)
		if !iface.Exists() {
			continue
		}
		parent, err := vlan.RealDevice(ch, name)
		if err != nil {
			return nil, err
		}
		id, err := vlan.VID(ch, name)
		if err != nil {
			return nil, err
		}
		have := VLAN{Parent: parent, ID: id}
		if have.Up, err = upIfWanted(iface, want.Up); err != nil {
			return nil, err
		}
		cur.VLANs = append(cur.VLANs, have)
	}

	for _, want := range desired.Interfaces {
		iface := netdev.New(ch, want.Name)
		if !iface.Exists() {
			continue
		}
		have := Interface{Name: want.Name}
		var err error
		if have.Up, err = upIfWanted(iface, want.Up); err != nil {
			return nil, err
		}
		if want.Address != "" {
			if have.Address, err = address(iface); err != nil {
				return nil, err
			}
		}
		if want.MAC != "" {
			if have.MAC, err = iface.MACString(); err != nil {
				return nil, err
			}
		}
		cur.Interfaces = append(cur.Interfaces, have)
	}
	return cur, nil
}

func upIfWanted(iface *netdev.Interface, want *bool) (*bool, error) {
	if want == nil {
		return nil, nil
	}
	up, err := iface.IsUp()
	if err != nil {
		return nil, err
	}
	return &up, nil
}

// address returns the device address in prefix form, or "" when it has
// none.
func address(iface *netdev.Interface) (string, error) {
	ip, err := iface.IP()
	if err != nil || !ip.IsValid() {
		return "", err
	}
	bits, ok, err := iface.Netmask()
	if err != nil || !ok {
		return "", err
	}
	return netip.PrefixFrom(ip, bits).String(), nil
}

// normalized returns a copy of cfg with addresses in canonical form and
// members sorted, so that spelling and ordering do not show up in a diff.
func normalized(cfg *Config) *Config {
	out := *cfg
	out.Bridges = make([]Bridge, len(cfg.Bridges))
	for n, b := range cfg.Bridges {
		if b.Members != nil {
			b.Members = slices.Sorted(slices.Values(b.Members))
		}
		out.Bridges[n] = b
	}
	out.Interfaces = make([]Interface, len(cfg.Interfaces))
	for n, i := range cfg.Interfaces {
		if mac, err := parseMAC(i.MAC); err == nil {
			i.MAC = mac.String()
		}
		if p, err := parseAddress(i.Address); err == nil {
			i.Address = p.String()
		}
		out.Interfaces[n] = i
	}
	return &out
}

// Render returns the YAML view of cfg.
func Render(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(normalized(cfg))
	if err != nil {
		return nil, errors.Wrap(err, errors.KindEncoding, "failed to render config")
	}
	return out, nil
}

// Diff returns a unified diff from the live state to desired. It is empty
// when nothing would change.
func Diff(ch *kernel.Channel, desired *Config) (string, error) {
	cur, err := Current(ch, desired)
	if err != nil {
		return "", err
	}
	a, err := Render(cur)
	if err != nil {
		return "", err
	}
	b, err := Render(desired)
	if err != nil {
		return "", err
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: "current",
		ToFile:   "desired",
		Context:  3,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.KindInternal, "failed to diff config")
	}
	return text, nil
}
