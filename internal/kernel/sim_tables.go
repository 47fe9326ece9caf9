package kernel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"grimm.is/ifctl/internal/ifreq"
)

func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

// sysPath splits a /sys/class/net path into device name and the remaining
// components.
func sysPath(p string) (dev string, rest []string, ok bool) {
	tail, found := strings.CutPrefix(p, SysClassNet)
	if !found {
		return "", nil, false
	}
	parts := strings.Split(strings.Trim(tail, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "", nil, true
	}
	return parts[0], parts[1:], true
}

// ReadDir implements Tables.
func (s *Sim) ReadDir(p string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, rest, ok := sysPath(p)
	if !ok {
		return nil, notExist("readdir", p)
	}
	if dev == "" {
		names := s.namesLocked()
		slices.Sort(names)
		return names, nil
	}
	l, found := s.links[dev]
	if !found || len(rest) != 1 {
		return nil, notExist("readdir", p)
	}
	switch {
	case rest[0] == "brif" && l.Kind == "bridge":
		var names []string
		for m := range l.ports {
			names = append(names, m)
		}
		slices.Sort(names)
		return names, nil
	case rest[0] == "bridge" && l.Kind == "bridge":
		return []string{"forward_delay", "stp_state"}, nil
	}
	return nil, notExist("readdir", p)
}

// Exists implements Tables.
func (s *Sim) Exists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p {
	case SysClassNet, ProcNetDev, ProcNetRoute, DevNetTun:
		return true
	}
	dev, rest, ok := sysPath(p)
	if !ok || dev == "" {
		return false
	}
	l, found := s.links[dev]
	if !found {
		return false
	}
	if len(rest) == 0 {
		return true
	}
	switch rest[0] {
	case "device":
		return l.Physical && len(rest) == 1
	case "bridge", "brif", "brforward":
		if l.Kind != "bridge" {
			return false
		}
		if rest[0] == "brif" && len(rest) > 1 {
			_, member := l.ports[rest[1]]
			return member
		}
		return true
	case "address", "ifindex", "operstate":
		return len(rest) == 1
	}
	return false
}

// ReadFile implements Tables.
func (s *Sim) ReadFile(p string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch p {
	case ProcNetDev:
		return s.procNetDev(), nil
	case ProcNetRoute:
		return s.procNetRoute(), nil
	}

	dev, rest, ok := sysPath(p)
	if !ok || dev == "" || len(rest) == 0 {
		return nil, notExist("open", p)
	}
	l, found := s.links[dev]
	if !found {
		return nil, notExist("open", p)
	}

	file := strings.Join(rest, "/")
	switch file {
	case "address":
		return []byte(l.MAC.String() + "\n"), nil
	case "ifindex":
		return fmt.Appendf(nil, "%d\n", l.Index), nil
	case "operstate":
		state := "down"
		if l.Up && (l.Carrier || l.Kind == "loopback") {
			state = "up"
		}
		if l.Kind == "loopback" && l.Up {
			state = "unknown"
		}
		return []byte(state + "\n"), nil
	}

	if l.Kind != "bridge" {
		return nil, notExist("open", p)
	}
	switch {
	case file == "brforward":
		var buf bytes.Buffer
		for _, e := range l.fdb {
			row, err := e.MarshalBinary()
			if err != nil {
				continue
			}
			buf.Write(row)
		}
		return buf.Bytes(), nil
	case file == "bridge/forward_delay":
		return fmt.Appendf(nil, "%d\n", l.ForwardDelay), nil
	case file == "bridge/stp_state":
		return fmt.Appendf(nil, "%d\n", b2u(l.STP)), nil
	case len(rest) == 3 && rest[0] == "brif" && rest[2] == "port_no":
		port, member := l.ports[rest[1]]
		if !member {
			return nil, notExist("open", p)
		}
		return fmt.Appendf(nil, "0x%x\n", port), nil
	}
	return nil, notExist("open", p)
}

func (s *Sim) procNetDev() []byte {
	var b bytes.Buffer
	b.WriteString("Inter-|   Receive                                                |  Transmit\n")
	b.WriteString(" face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed\n")
	for _, name := range s.namesLocked() {
		st := s.links[name].Stats
		fmt.Fprintf(&b, "%6s: %7d %7d %4d %4d %4d %5d %10d %9d %8d %7d %4d %4d %4d %5d %7d %10d\n",
			name,
			st[0], st[1], st[2], st[3], st[4], st[5], st[6], st[7],
			st[8], st[9], st[10], st[11], st[12], st[13], st[14], st[15])
	}
	return b.Bytes()
}

// procNetRoute renders the routing table the way the kernel does: addresses
// as the hex of their in-memory (network order) u32 read in host order.
func (s *Sim) procNetRoute() []byte {
	var b bytes.Buffer
	b.WriteString("Iface\tDestination\tGateway \tFlags\tRefCnt\tUse\tMetric\tMask\t\tMTU\tWindow\tIRTT\n")
	hex := func(a [4]byte) string {
		return fmt.Sprintf("%08X", binary.NativeEndian.Uint32(a[:]))
	}
	for _, r := range s.routes {
		flags := 0x1
		if r.Gateway.IsValid() && !r.Gateway.IsUnspecified() {
			flags |= 0x2
		}
		var gw [4]byte
		if r.Gateway.Is4() {
			gw = r.Gateway.As4()
		}
		mask, _ := ifreq.PrefixToMask(r.Dest.Bits())
		fmt.Fprintf(&b, "%s\t%s\t%s\t%04X\t0\t0\t%d\t%s\t0\t0\t0\n",
			r.Iface, hex(r.Dest.Masked().Addr().As4()), hex(gw), flags, r.Metric, hex(mask.As4()))
	}
	return b.Bytes()
}
