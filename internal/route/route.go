// Package route reads the IPv4 routing table the kernel publishes in
// /proc/net/route.
package route

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"net/netip"
	"strconv"
	"strings"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
	"grimm.is/ifctl/internal/kernel"
)

// Route flags (linux/route.h).
const (
	RTF_UP      = 0x1
	RTF_GATEWAY = 0x2
	RTF_HOST    = 0x4
)

// Route is one row of the IPv4 routing table.
type Route struct {
	Iface       string       `yaml:"iface"`
	Destination netip.Prefix `yaml:"destination"`
	Gateway     netip.Addr   `yaml:"gateway"`
	Flags       uint16       `yaml:"flags"`
	Metric      int          `yaml:"metric"`
}

// IsDefault reports whether the route matches every destination.
func (r Route) IsDefault() bool {
	return r.Destination.Bits() == 0
}

// HasGateway reports whether traffic on the route goes through a router.
func (r Route) HasGateway() bool {
	return r.Flags&RTF_GATEWAY != 0
}

// hexAddr decodes the kernel's rendering of an in_addr: the hex of the
// 32-bit word as it sits in memory, read in host byte order.
func hexAddr(s string) (netip.Addr, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, errors.KindDecoding, "bad address %q", s)
	}
	var a [4]byte
	binary.NativeEndian.PutUint32(a[:], uint32(v))
	return netip.AddrFrom4(a), nil
}

// Parse decodes a /proc/net/route table.
func Parse(table []byte) ([]Route, error) {
	var routes []Route
	sc := bufio.NewScanner(bytes.NewReader(table))
	for line := 0; sc.Scan(); line++ {
		if line == 0 {
			continue
		}
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		if len(f) < 8 {
			return nil, errors.Errorf(errors.KindDecoding, "route row %d has %d columns", line, len(f))
		}
		dst, err := hexAddr(f[1])
		if err != nil {
			return nil, err
		}
		gw, err := hexAddr(f[2])
		if err != nil {
			return nil, err
		}
		flags, err := strconv.ParseUint(f[3], 16, 16)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindDecoding, "bad route flags %q", f[3])
		}
		metric, err := strconv.Atoi(f[6])
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindDecoding, "bad route metric %q", f[6])
		}
		mask, err := hexAddr(f[7])
		if err != nil {
			return nil, err
		}
		routes = append(routes, Route{
			Iface:       f[0],
			Destination: netip.PrefixFrom(dst, ifreq.MaskToPrefix(mask)),
			Gateway:     gw,
			Flags:       uint16(flags),
			Metric:      metric,
		})
	}
	return routes, sc.Err()
}

// Routes reads and decodes the routing table.
func Routes(tables kernel.Tables) ([]Route, error) {
	raw, err := tables.ReadFile(kernel.ProcNetRoute)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to read routing table")
	}
	return Parse(raw)
}

// Default returns the first default route. ok is false when there is none.
func Default(tables kernel.Tables) (r Route, ok bool, err error) {
	routes, err := Routes(tables)
	if err != nil {
		return Route{}, false, err
	}
	for _, r := range routes {
		if r.IsDefault() {
			return r, true, nil
		}
	}
	return Route{}, false, nil
}

// Gateway returns the first router reachable through iface. ok is false
// when no gatewayed route uses the device.
func Gateway(tables kernel.Tables, iface string) (gw netip.Addr, ok bool, err error) {
	routes, err := Routes(tables)
	if err != nil {
		return netip.Addr{}, false, err
	}
	for _, r := range routes {
		if r.Iface == iface && r.HasGateway() {
			return r.Gateway, true, nil
		}
	}
	return netip.Addr{}, false, nil
}
