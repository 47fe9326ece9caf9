package cmd

import (
	"encoding/hex"
	"net"
	"strconv"
	"strings"
	"time"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/frame"
	"grimm.is/ifctl/internal/netdev"
)

const frameUsage = "frame send -i <iface> [-dst mac] [-type 0x88b5] [-payload hex] [-vlan id] | frame capture -i <iface> [-type 0x0806] [-timeout 5s] [-count n]"

// RunFrame sends or captures raw Ethernet frames.
func RunFrame(e *Env, args []string) error {
	if len(args) == 0 {
		return errors.New(errors.KindValidation, "usage: "+frameUsage)
	}
	if err := e.requireHost("frame"); err != nil {
		return err
	}
	sub, args := args[0], args[1:]
	switch sub {
	case "send":
		return frameSend(e, args)
	case "capture":
		return frameCapture(e, args)
	}
	return errors.Errorf(errors.KindValidation, "unknown frame command %q; usage: %s", sub, frameUsage)
}

func parseEtherType(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindValidation, "invalid ethertype %q", s)
	}
	return uint16(v), nil
}

func frameSend(e *Env, args []string) error {
	fs := newFlags("frame send")
	ifname := fs.String("i", "", "Interface to send on")
	dst := fs.String("dst", frame.Broadcast.String(), "Destination MAC")
	etype := fs.String("type", "0x88b5", "EtherType")
	payload := fs.String("payload", "", "Payload as hex")
	vid := fs.Int("vlan", 0, "802.1Q tag to add")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *ifname == "" {
		return errors.New(errors.KindValidation, "frame send: -i is required")
	}

	f := frame.Frame{VLAN: uint16(*vid)}
	var err error
	if f.Dst, err = net.ParseMAC(*dst); err != nil {
		return errors.Wrapf(err, errors.KindValidation, "invalid destination %q", *dst)
	}
	if f.EtherType, err = parseEtherType(*etype); err != nil {
		return err
	}
	if f.Payload, err = hex.DecodeString(strings.ReplaceAll(*payload, ":", "")); err != nil {
		return errors.Wrapf(err, errors.KindValidation, "invalid payload %q", *payload)
	}
	if f.Src, err = netdev.New(e.Ch, *ifname).MAC(); err != nil {
		return err
	}

	raw, err := frame.Build(f)
	if err != nil {
		return err
	}
	if err := frame.Inject(*ifname, raw); err != nil {
		return err
	}
	e.printf("sent %s\n", frame.Describe(raw))
	return nil
}

func frameCapture(e *Env, args []string) error {
	fs := newFlags("frame capture")
	ifname := fs.String("i", "", "Interface to capture on")
	etype := fs.String("type", "0", "Only frames of this EtherType; 0 takes all")
	timeout := fs.Duration("timeout", 5*time.Second, "Stop after this long")
	count := fs.Int("count", 1, "Stop after this many frames; 0 runs until the timeout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *ifname == "" {
		return errors.New(errors.KindValidation, "frame capture: -i is required")
	}
	et, err := parseEtherType(*etype)
	if err != nil {
		return err
	}

	seen := 0
	return frame.Capture(e.Ctx, *ifname, et, *timeout, func(b []byte) bool {
		seen++
		e.printf("%s\n", frame.Describe(b))
		return *count == 0 || seen < *count
	})
}
