package cmd

import (
	"maps"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"grimm.is/ifctl/internal/bridge"
	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/i18n"
	"grimm.is/ifctl/internal/netdev"
)

// deviceView is the printable state of one interface.
type deviceView struct {
	Name     string            `yaml:"name"`
	Index    int               `yaml:"index"`
	Kind     string            `yaml:"kind,omitempty"`
	Up       bool              `yaml:"up"`
	MAC      string            `yaml:"mac"`
	PermAddr string            `yaml:"perm_addr,omitempty"`
	Address  string            `yaml:"address,omitempty"`
	Physical bool              `yaml:"physical"`
	Master   string            `yaml:"master,omitempty"`
	Driver   string            `yaml:"driver,omitempty"`
	Link     *netdev.LinkInfo  `yaml:"link,omitempty"`
	Stats    map[string]uint64 `yaml:"stats,omitempty"`
	NIC      map[string]uint64 `yaml:"nic_stats,omitempty"`
}

func view(iface *netdev.Interface) (deviceView, error) {
	v := deviceView{Name: iface.Name(), Physical: iface.IsPhysical()}
	var err error
	if v.Index, err = iface.Index(); err != nil {
		return v, err
	}
	if v.Up, err = iface.IsUp(); err != nil {
		return v, err
	}
	if v.MAC, err = iface.MACString(); err != nil {
		return v, err
	}
	ip, err := iface.IP()
	if err != nil {
		return v, err
	}
	if ip.IsValid() {
		if bits, ok, err := iface.Netmask(); err != nil {
			return v, err
		} else if ok {
			v.Address = netip.PrefixFrom(ip, bits).String()
		}
	}
	// Devices without ethtool support only report the link flag.
	if info, err := iface.LinkInfo(); err == nil {
		v.Link = &info
	}
	return v, nil
}

func speed(v deviceView) string {
	if v.Link == nil || v.Link.Speed == 0 {
		return ""
	}
	s := strconv.Itoa(v.Link.Speed) + "Mb/s"
	if v.Link.Duplex != nil {
		s += " " + v.Link.Duplex.String()
	}
	return s
}

// RunList prints every interface.
func RunList(e *Env, args []string) error {
	fs := newFlags("list")
	physical := fs.Bool("physical", false, "Only hardware-backed devices")
	format := fs.String("o", formatTable, "Output format: table or yaml")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	ifaces, err := netdev.List(e.Ch, *physical)
	if err != nil {
		return err
	}
	views := make([]deviceView, 0, len(ifaces))
	for _, iface := range ifaces {
		v, err := view(iface)
		if err != nil {
			return err
		}
		views = append(views, v)
	}

	if *format == formatYAML {
		return writeYAML(e.Out, views)
	}
	rows := make([][]string, len(views))
	for n, v := range views {
		rows[n] = []string{
			v.Name, strconv.Itoa(v.Index), state(v.Up), v.MAC, orDash(v.Address), orDash(speed(v)),
			strconv.FormatBool(v.Physical),
		}
	}
	e.printf("%s", renderTable([]string{"NAME", "INDEX", "STATE", "MAC", "ADDRESS", "SPEED", "PHYSICAL"}, rows))
	return nil
}

// RunShow prints one interface in detail.
func RunShow(e *Env, args []string) error {
	ops, rest, err := positional(args, 1, "show <if> [-nic] [-o table|yaml]")
	if err != nil {
		return err
	}
	fs := newFlags("show")
	nic := fs.Bool("nic", false, "Include driver counters")
	format := fs.String("o", formatTable, "Output format: table or yaml")
	if err := parseFlags(fs, rest); err != nil {
		return err
	}
	if err := checkFormat(*format); err != nil {
		return err
	}

	iface, err := netdev.Find(e.Ch, ops[0])
	if err != nil {
		return err
	}
	v, err := view(iface)
	if err != nil {
		return err
	}
	if e.Sim == nil {
		v.Kind = linkKind(v.Name)
	}
	if info, err := iface.DriverInfo(); err == nil {
		v.Driver = info.Driver
		if info.Version != "" {
			v.Driver += " " + info.Version
		}
	}
	if v.Physical {
		if perm, err := iface.PermAddr(); err == nil {
			v.PermAddr = perm
		}
	}
	if owner, ok, err := bridge.FindOwner(e.Ch, v.Name); err != nil {
		return err
	} else if ok {
		v.Master = owner.Name()
	}
	st, ok, err := iface.Stats()
	if err != nil {
		return err
	}
	if ok {
		v.Stats = st.Map()
	}
	if *nic {
		if v.NIC, err = iface.NICStats(); err != nil {
			return err
		}
	}

	if *format == formatYAML {
		return writeYAML(e.Out, v)
	}
	pairs := [][2]string{
		{"name", v.Name},
		{"index", strconv.Itoa(v.Index)},
		{"kind", orDash(v.Kind)},
		{"state", state(v.Up)},
		{"mac", v.MAC},
		{"perm addr", orDash(v.PermAddr)},
		{"address", orDash(v.Address)},
		{"master", orDash(v.Master)},
		{"driver", orDash(v.Driver)},
		{"speed", orDash(speed(v))},
	}
	if v.Link != nil {
		pairs = append(pairs, [2]string{"carrier", state(v.Link.Up)})
		if v.Link.Autoneg != nil {
			pairs = append(pairs, [2]string{"autoneg", strconv.FormatBool(*v.Link.Autoneg)})
		}
	}
	if ok {
		pairs = append(pairs,
			[2]string{"rx", i18n.Bytes(Printer, st.RxBytes) + " / " + i18n.Count(Printer, st.RxPackets) + " packets"},
			[2]string{"tx", i18n.Bytes(Printer, st.TxBytes) + " / " + i18n.Count(Printer, st.TxPackets) + " packets"},
			[2]string{"errors", "rx " + i18n.Count(Printer, st.RxErrors) + " tx " + i18n.Count(Printer, st.TxErrors)},
		)
	}
	for _, name := range slices.Sorted(maps.Keys(v.NIC)) {
		pairs = append(pairs, [2]string{name, i18n.Count(Printer, v.NIC[name])})
	}
	e.printf("%s", renderFields(pairs))
	return nil
}

// RunUp brings a device up or down.
func RunUp(e *Env, args []string, up bool) error {
	verb := "down"
	if up {
		verb = "up"
	}
	ops, _, err := positional(args, 1, verb+" <if>")
	if err != nil {
		return err
	}
	iface, err := netdev.Find(e.Ch, ops[0])
	if err != nil {
		return err
	}
	if up {
		return iface.Up()
	}
	return iface.Down()
}

// RunSet changes device settings. Settings are applied in flag order of
// the usage text; a rename comes last.
func RunSet(e *Env, args []string) error {
	ops, rest, err := positional(args, 1, "set <if> [-mac] [-ip] [-prefix] [-speed] [-duplex] [-auto 10,100,1000] [-pause autoneg,rx,tx] [-name]")
	if err != nil {
		return err
	}
	fs := newFlags("set")
	mac := fs.String("mac", "", "Hardware address")
	ip := fs.String("ip", "", "IPv4 address, optionally with /prefix")
	prefix := fs.Int("prefix", -1, "Prefix length")
	speedFlag := fs.Int("speed", 0, "Forced link speed in Mb/s")
	duplex := fs.String("duplex", "", "Forced duplex: half or full")
	auto := fs.String("auto", "", "Autonegotiate, advertising these speeds")
	pause := fs.String("pause", "", "Enable pause settings (autoneg,rx,tx); none disables all")
	name := fs.String("name", "", "New device name")
	if err := parseFlags(fs, rest); err != nil {
		return err
	}
	if fs.NFlag() == 0 {
		return errors.New(errors.KindValidation, "set: nothing to change")
	}

	iface, err := netdev.Find(e.Ch, ops[0])
	if err != nil {
		return err
	}

	if *mac != "" {
		if err := iface.SetMACString(*mac); err != nil {
			return err
		}
	}
	if *ip != "" {
		addr, bits, err := parseIP(*ip)
		if err != nil {
			return err
		}
		if err := iface.SetIP(addr); err != nil {
			return err
		}
		if bits >= 0 && *prefix < 0 {
			*prefix = bits
		}
	}
	if *prefix >= 0 {
		if err := iface.SetNetmask(*prefix); err != nil {
			return err
		}
	}
	if *speedFlag != 0 || *duplex != "" {
		var sp *int
		var dp *netdev.Duplex
		if *speedFlag != 0 {
			sp = speedFlag
		}
		if *duplex != "" {
			d, err := netdev.ParseDuplex(*duplex)
			if err != nil {
				return err
			}
			dp = &d
		}
		if err := iface.SetLinkMode(sp, dp); err != nil {
			return err
		}
	}
	if *auto != "" {
		var ten, hundred, thousand bool
		for _, s := range strings.Split(*auto, ",") {
			switch strings.TrimSpace(s) {
			case "10":
				ten = true
			case "100":
				hundred = true
			case "1000":
				thousand = true
			default:
				return errors.Errorf(errors.KindValidation, "unsupported speed %q in -auto", s)
			}
		}
		if err := iface.SetLinkAuto(ten, hundred, thousand); err != nil {
			return err
		}
	}
	if *pause != "" {
		var an, rx, tx bool
		for _, s := range strings.Split(*pause, ",") {
			switch strings.TrimSpace(s) {
			case "autoneg":
				an = true
			case "rx":
				rx = true
			case "tx":
				tx = true
			case "none":
			default:
				return errors.Errorf(errors.KindValidation, "unknown pause setting %q", s)
			}
		}
		if err := iface.SetPauseParam(an, rx, tx); err != nil {
			return err
		}
	}
	if *name != "" {
		if err := iface.SetName(*name); err != nil {
			return err
		}
	}
	return nil
}

// parseIP accepts "a.b.c.d" or "a.b.c.d/n". bits is -1 without a prefix.
func parseIP(s string) (netip.Addr, int, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil || !p.Addr().Is4() {
			return netip.Addr{}, 0, errors.Errorf(errors.KindValidation, "invalid IPv4 prefix %q", s)
		}
		return p.Addr(), p.Bits(), nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil || !a.Is4() {
		return netip.Addr{}, 0, errors.Errorf(errors.KindValidation, "invalid IPv4 address %q", s)
	}
	return a, -1, nil
}
