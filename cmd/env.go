// Package cmd implements the ifctl subcommands. main dispatches on the
// first argument and hands the rest to the matching Run function.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"strings"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/i18n"
	"grimm.is/ifctl/internal/ifreq"
	"grimm.is/ifctl/internal/kernel"
)

// Printer formats CLI output for the user's locale.
var Printer = i18n.NewCLIPrinter()

// Env carries what every subcommand needs.
type Env struct {
	Ctx context.Context
	Ch  *kernel.Channel
	Out io.Writer
	// Sim is set when running against the in-memory kernel.
	Sim *kernel.Sim
}

// NewEnv opens a channel on the host kernel, or on a seeded simulated host
// when sim is set.
func NewEnv(ctx context.Context, sim bool, out io.Writer) (*Env, error) {
	if sim {
		s := SeedSim()
		ch, err := kernel.OpenWith(s, s)
		if err != nil {
			return nil, err
		}
		return &Env{Ctx: ctx, Ch: ch, Out: out, Sim: s}, nil
	}
	ch, err := kernel.Open()
	if err != nil {
		return nil, err
	}
	return &Env{Ctx: ctx, Ch: ch, Out: out}, nil
}

// Close releases the channel.
func (e *Env) Close() error {
	return e.Ch.Close()
}

func (e *Env) printf(format string, args ...any) {
	Printer.Fprintf(e.Out, format, args...)
}

// requireHost fails for subcommands that need real sockets.
func (e *Env) requireHost(what string) error {
	if e.Sim != nil {
		return errors.Errorf(errors.KindUnsupported, "%s needs the host kernel; drop -sim", what)
	}
	return nil
}

// SeedSim returns a simulated host with two Ethernet ports, an address on
// eth0 and a default route through it.
func SeedSim() *kernel.Sim {
	s := kernel.NewSim()
	var counters [kernel.NumStats]uint64
	counters[kernel.StatRxBytes] = 9_482_113
	counters[kernel.StatRxPackets] = 10_342
	counters[kernel.StatTxBytes] = 1_204_554
	counters[kernel.StatTxPackets] = 6_120
	_ = s.AddLink(kernel.SimLink{
		Name:     "eth0",
		Physical: true,
		Up:       true,
		Carrier:  true,
		MAC:      net.HardwareAddr{0x52, 0x54, 0x00, 0x12, 0x34, 0x56},
		Addr:     netip.MustParsePrefix("10.0.0.2/24"),
		Driver:   kernel.DriverInfo{Driver: "e1000", Version: "7.3.21-k8-NAPI", BusInfo: "0000:00:03.0"},
		Settings: &ifreq.LinkSettings{
			Supported:   ifreq.AdvertisedModes(true, true, true) | ifreq.ADVERTISED_Autoneg,
			Advertising: ifreq.AdvertisedModes(true, true, true),
			SpeedLo:     1000,
			Duplex:      ifreq.DUPLEX_FULL,
			Autoneg:     ifreq.AUTONEG_ENABLE,
		},
		Stats: counters,
	})
	_ = s.AddLink(kernel.SimLink{
		Name:     "eth1",
		Physical: true,
		Carrier:  true,
		MAC:      net.HardwareAddr{0x52, 0x54, 0x00, 0x12, 0x34, 0x57},
		Driver:   kernel.DriverInfo{Driver: "e1000", Version: "7.3.21-k8-NAPI", BusInfo: "0000:00:04.0"},
		Settings: &ifreq.LinkSettings{
			Supported:   ifreq.AdvertisedModes(true, true, false) | ifreq.ADVERTISED_Autoneg,
			Advertising: ifreq.AdvertisedModes(true, true, false),
			SpeedLo:     100,
			Duplex:      ifreq.DUPLEX_FULL,
			Autoneg:     ifreq.AUTONEG_ENABLE,
		},
	})
	s.AddRoute(kernel.SimRoute{Iface: "eth0", Dest: netip.MustParsePrefix("0.0.0.0/0"), Gateway: netip.MustParseAddr("10.0.0.1")})
	s.AddRoute(kernel.SimRoute{Iface: "eth0", Dest: netip.MustParsePrefix("10.0.0.0/24")})
	return s
}

// FormatError renders err the way the CLI reports failures.
func FormatError(err error) string {
	kind := errors.GetKind(err)
	if errno, ok := errors.Errno(err); ok {
		return fmt.Sprintf("error: %v (kind=%s, errno=%d)", err, kind, int(errno))
	}
	return fmt.Sprintf("error: %v (kind=%s)", err, kind)
}

// Fail reports err on stderr and exits with status 1.
func Fail(err error) {
	fmt.Fprintln(os.Stderr, FormatError(err))
	os.Exit(1)
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrapf(err, errors.KindValidation, "%s: invalid arguments", fs.Name())
	}
	return nil
}

// positional splits the leading n operands from args so that flags may
// follow them, as in "set eth0 -mac ...".
func positional(args []string, n int, usage string) ([]string, []string, error) {
	if len(args) < n {
		return nil, nil, errors.New(errors.KindValidation, "usage: "+usage)
	}
	for _, a := range args[:n] {
		if strings.HasPrefix(a, "-") {
			return nil, nil, errors.New(errors.KindValidation, "usage: "+usage)
		}
	}
	return args[:n], args[n:], nil
}
