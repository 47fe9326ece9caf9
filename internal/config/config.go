// Package config describes the devices a host should have in HCL and
// converges the kernel towards that description.
//
// A host file lists bridges, taps, VLANs and plain interfaces:
//
//	bridge "br0" {
//	  members       = ["eth1", "tap0"]
//	  stp           = true
//	  forward_delay = 15
//	  up            = true
//	}
//	tap "tap0" {
//	  up = true
//	}
//	vlan "eth1" {
//	  id = 100
//	}
//	interface "eth1" {
//	  up      = true
//	  address = "10.0.0.2/24"
//	}
//
// Plan compares the description with live state and returns the steps
// needed; Apply runs them.
package config

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/ifctl/internal/brand"
	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
	"grimm.is/ifctl/internal/vlan"
)

// Config is a host description.
type Config struct {
	Bridges    []Bridge    `hcl:"bridge,block" yaml:"bridges,omitempty"`
	Taps       []Tap       `hcl:"tap,block" yaml:"taps,omitempty"`
	VLANs      []VLAN      `hcl:"vlan,block" yaml:"vlans,omitempty"`
	Interfaces []Interface `hcl:"interface,block" yaml:"interfaces,omitempty"`
}

// Bridge describes an Ethernet bridge and its ports.
type Bridge struct {
	Name    string   `hcl:"name,label" yaml:"name"`
	Members []string `hcl:"members,optional" yaml:"members,omitempty"`
	STP     *bool    `hcl:"stp,optional" yaml:"stp,omitempty"`
	// ForwardDelay is in seconds.
	ForwardDelay *int  `hcl:"forward_delay,optional" yaml:"forward_delay,omitempty"`
	Up           *bool `hcl:"up,optional" yaml:"up,omitempty"`
}

// Tap describes a persistent tap device.
type Tap struct {
	Name string `hcl:"name,label" yaml:"name"`
	// Persist defaults to true; a tap that does not persist would vanish
	// as soon as apply released it.
	Persist *bool `hcl:"persist,optional" yaml:"persist,omitempty"`
	Up      *bool `hcl:"up,optional" yaml:"up,omitempty"`
}

// VLAN describes an 802.1Q sub-interface of Parent.
type VLAN struct {
	Parent string `hcl:"parent,label" yaml:"parent"`
	ID     int    `hcl:"id" yaml:"id"`
	Up     *bool  `hcl:"up,optional" yaml:"up,omitempty"`
}

// Name returns the device name of the VLAN.
func (v VLAN) Name() string { return vlan.Name(v.Parent, v.ID) }

// Interface describes settings for an existing device or one created by
// another block.
type Interface struct {
	Name    string `hcl:"name,label" yaml:"name"`
	Up      *bool  `hcl:"up,optional" yaml:"up,omitempty"`
	Address string `hcl:"address,optional" yaml:"address,omitempty"`
	MAC     string `hcl:"mac,optional" yaml:"mac,omitempty"`
}

// DefaultPath returns the host file path, honouring IFCTL_CONFIG.
func DefaultPath() string {
	return brand.ConfigPath()
}

// Load reads and validates the host file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, errors.KindNotFound, "config file %s not found", path)
		}
		return nil, errors.Wrapf(err, errors.KindInternal, "failed to read config file %s", path)
	}
	return Parse(path, data)
}

// Parse decodes and validates a host description. Files without a .json
// suffix are read as HCL native syntax.
func Parse(filename string, data []byte) (*Config, error) {
	name := filename
	switch filepath.Ext(filename) {
	case ".hcl", ".json":
	default:
		name += ".hcl"
	}
	var cfg Config
	if err := hclsimple.Decode(name, data, nil, &cfg); err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "failed to decode %s", filename)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the description without touching the kernel. All
// problems are reported in one KindValidation error.
func (c *Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	declared := make(map[string]string)
	declare := func(kind, name string) {
		if err := validName(name); err != nil {
			bad("%s %q: %v", kind, name, err)
			return
		}
		if prev, dup := declared[name]; dup {
			bad("%s %q: already declared as %s", kind, name, prev)
			return
		}
		declared[name] = kind
	}

	owner := make(map[string]string)
	for _, b := range c.Bridges {
		declare("bridge", b.Name)
		if b.ForwardDelay != nil && *b.ForwardDelay < 0 {
			bad("bridge %q: forward_delay must not be negative", b.Name)
		}
		for _, m := range b.Members {
			if m == b.Name {
				bad("bridge %q: cannot be a member of itself", b.Name)
				continue
			}
			if prev, taken := owner[m]; taken {
				bad("bridge %q: member %q already belongs to bridge %q", b.Name, m, prev)
				continue
			}
			owner[m] = b.Name
		}
	}
	for _, t := range c.Taps {
		declare("tap", t.Name)
		if t.Persist != nil && !*t.Persist {
			bad("tap %q: taps managed by apply must persist", t.Name)
		}
	}
	for _, v := range c.VLANs {
		if v.ID < 1 || v.ID > vlan.MaxVID {
			bad("vlan %q: id %d out of range 1-%d", v.Parent, v.ID, vlan.MaxVID)
			continue
		}
		declare("vlan", v.Name())
	}

	seen := make(map[string]bool)
	for _, i := range c.Interfaces {
		if err := validName(i.Name); err != nil {
			bad("interface %q: %v", i.Name, err)
		}
		if seen[i.Name] {
			bad("interface %q: declared twice", i.Name)
		}
		seen[i.Name] = true
		if i.Address != "" {
			if _, err := parseAddress(i.Address); err != nil {
				bad("interface %q: %v", i.Name, err)
			}
		}
		if i.MAC != "" {
			if _, err := parseMAC(i.MAC); err != nil {
				bad("interface %q: %v", i.Name, err)
			}
		}
		if declared[i.Name] == "bridge" && i.Address != "" {
			bad("interface %q: bridges carry no address", i.Name)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return errors.New(errors.KindValidation, "invalid config: "+strings.Join(problems, "; "))
}

func validName(name string) error {
	if name == "" {
		return errors.New(errors.KindValidation, "empty device name")
	}
	if len(name) >= ifreq.NameSize {
		return errors.Errorf(errors.KindValidation, "name exceeds %d bytes", ifreq.NameSize-1)
	}
	if strings.ContainsAny(name, "/: \t") {
		return errors.New(errors.KindValidation, "name contains a reserved character")
	}
	return nil
}

func parseAddress(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, errors.Wrapf(err, errors.KindValidation, "invalid address %q", s)
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, errors.Errorf(errors.KindValidation, "address %q is not IPv4", s)
	}
	return p, nil
}

func parseMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindValidation, "invalid mac %q", s)
	}
	if len(mac) != 6 {
		return nil, errors.Errorf(errors.KindValidation, "mac %q is not a 6-byte Ethernet address", s)
	}
	return mac, nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
