package frame

import (
	"context"
	"net"
	"time"

	"github.com/mdlayher/packet"
	"golang.org/x/net/bpf"

	"grimm.is/ifctl/internal/clock"
	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/logging"
)

// ethPAll is ETH_P_ALL: receive every protocol.
const ethPAll = 0x0003

// readSlice bounds each read so Capture notices cancellation.
const readSlice = time.Second

// Filter compiles a socket filter accepting only frames of etherType,
// looking through a single 802.1Q tag.
func Filter(etherType uint16) ([]bpf.RawInstruction, error) {
	prog := []bpf.Instruction{
		// outer EtherType
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(etherType), SkipTrue: 3},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(EtherTypeVLAN), SkipTrue: 3},
		// inner EtherType behind the tag
		bpf.LoadAbsolute{Off: 16, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(etherType), SkipTrue: 1},
		bpf.RetConstant{Val: 0x40000},
		bpf.RetConstant{Val: 0},
	}
	raw, err := bpf.Assemble(prog)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindEncoding, "failed to assemble socket filter")
	}
	return raw, nil
}

func listen(ifname string, proto int) (*packet.Conn, *net.Interface, error) {
	ifi, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.KindNotFound, "interface %s not found", ifname)
	}
	conn, err := packet.Listen(ifi, packet.Raw, proto, nil)
	if err != nil {
		return nil, nil, errors.Wrapf(err, errors.KindChannel, "failed to open packet socket on %s", ifname)
	}
	return conn, ifi, nil
}

// Inject transmits a complete frame out of ifname.
func Inject(ifname string, frame []byte) error {
	f, err := Parse(frame)
	if err != nil {
		return err
	}
	conn, _, err := listen(ifname, int(f.EtherType))
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.WriteTo(frame, &packet.Addr{HardwareAddr: f.Dst}); err != nil {
		return errors.Wrapf(err, errors.KindChannel, "failed to send frame on %s", ifname)
	}
	logging.WithComponent("frame").WithDevice(ifname).Debug("frame sent", "dst", f.Dst.String(), "len", len(frame))
	return nil
}

// Capture delivers frames received on ifname to fn until fn returns false,
// the timeout elapses or ctx is done. etherType 0 captures everything. A
// zero timeout waits on ctx alone.
func Capture(ctx context.Context, ifname string, etherType uint16, timeout time.Duration, fn func([]byte) bool) error {
	conn, ifi, err := listen(ifname, ethPAll)
	if err != nil {
		return err
	}
	defer conn.Close()

	if etherType != 0 {
		prog, err := Filter(etherType)
		if err != nil {
			return err
		}
		if err := conn.SetBPF(prog); err != nil {
			return errors.Wrapf(err, errors.KindChannel, "failed to attach filter on %s", ifname)
		}
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = clock.Now().Add(timeout)
	}
	return readFrames(ctx, conn, ifname, max(ifi.MTU, 1500)+18, deadline, fn)
}

// frameReader is the part of a packet socket the capture loop reads from.
type frameReader interface {
	SetReadDeadline(t time.Time) error
	ReadFrom(b []byte) (int, net.Addr, error)
}

// readFrames reads in readSlice steps until fn returns false, deadline
// passes or ctx is done. A zero deadline waits on ctx alone.
func readFrames(ctx context.Context, conn frameReader, ifname string, size int, deadline time.Time, fn func([]byte) bool) error {
	buf := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := clock.Now().Add(readSlice)
		if !deadline.IsZero() {
			if !clock.Now().Before(deadline) {
				return nil
			}
			if deadline.Before(next) {
				next = deadline
			}
		}
		if err := conn.SetReadDeadline(next); err != nil {
			return errors.Wrapf(err, errors.KindChannel, "failed to set read deadline on %s", ifname)
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			return errors.Wrapf(err, errors.KindChannel, "capture on %s failed", ifname)
		}
		if !fn(append([]byte(nil), buf[:n]...)) {
			return nil
		}
	}
}
