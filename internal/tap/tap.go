// Package tap creates layer-2 tap devices and moves frames through their
// descriptor.
package tap

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/logging"
	"grimm.is/ifctl/internal/netdev"
)

// ErrWouldBlock is returned by Read on a non-blocking tap with no frame
// queued.
var ErrWouldBlock = errors.New(errors.KindUnavailable, "tap read would block")

// pollSlice bounds each poll so WaitReadable notices cancellation.
const pollSlice = 100 * time.Millisecond

// Options configures Create.
type Options struct {
	// Name requests a device name. Empty lets the kernel pick tapN.
	Name string
	// Blocking makes Read wait for a frame instead of failing with
	// ErrWouldBlock.
	Blocking bool
}

// Tap is a tap device together with the descriptor that keeps it attached.
// Frames written to the tap are received by the kernel; frames the kernel
// sends out of the device are read from it.
type Tap struct {
	*netdev.Interface

	t      kernel.Transport
	mu     sync.Mutex
	fd     int
	closed bool
}

// Create opens the tun clone device and attaches it to a tap device with no
// packet-information header. An existing persistent tap of the same name is
// attached rather than created.
func Create(ch *kernel.Channel, opts Options) (*Tap, error) {
	t := ch.Transport()
	fd, err := t.Open(kernel.DevNetTun, false)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindChannel, "failed to open %s", kernel.DevNetTun)
	}

	req, err := ifreq.Encode(opts.Name, ifreq.Flags(ifreq.IFF_TAP|ifreq.IFF_NO_PI))
	if err == nil {
		err = t.Ioctl(fd, ifreq.TUNSETIFF, req)
		if err != nil {
			err = errors.Attr(errors.Wrapf(err, errors.KindChannel, "failed to attach tap %q", opts.Name), "errno", errnoOf(err))
		}
	}
	var name string
	if err == nil {
		name, err = ifreq.DecodeName(req)
	}
	if err == nil && !opts.Blocking {
		if nbErr := t.SetNonblock(fd, true); nbErr != nil {
			err = errors.Wrap(nbErr, errors.KindChannel, "failed to set tap non-blocking")
		}
	}
	if err != nil {
		_ = t.Close(fd)
		return nil, err
	}

	tp := &Tap{Interface: netdev.New(ch, name), t: t, fd: fd}
	tp.Logger().Info("tap attached", "fd", fd, "blocking", opts.Blocking)
	logging.Audit("tap.create", name, map[string]any{"blocking": opts.Blocking})
	return tp, nil
}

func errnoOf(err error) int {
	if errno, ok := errors.Errno(err); ok {
		return int(errno)
	}
	return 0
}

// Fd returns the descriptor, or -1 after Close.
func (t *Tap) Fd() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return -1
	}
	return t.fd
}

func (t *Tap) liveFd() (int, error) {
	fd := t.Fd()
	if fd < 0 {
		return -1, errors.Errorf(errors.KindChannelClosed, "tap %s is closed", t.Name())
	}
	return fd, nil
}

// Read reads one frame into b.
func (t *Tap) Read(b []byte) (int, error) {
	fd, err := t.liveFd()
	if err != nil {
		return 0, err
	}
	n, err := t.t.Read(fd, b)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, ErrWouldBlock
		}
		return 0, errors.Wrapf(err, errors.KindChannel, "failed to read from %s", t.Name())
	}
	return n, nil
}

// Write hands one frame to the kernel as if received on the tap.
func (t *Tap) Write(frame []byte) (int, error) {
	fd, err := t.liveFd()
	if err != nil {
		return 0, err
	}
	n, err := t.t.Write(fd, frame)
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindChannel, "failed to write to %s", t.Name())
	}
	return n, nil
}

// Persist keeps the device after the descriptor is closed.
func (t *Tap) Persist() error { return t.setPersist(true) }

// Unpersist makes the device go away with its descriptor.
func (t *Tap) Unpersist() error { return t.setPersist(false) }

func (t *Tap) setPersist(on bool) error {
	fd, err := t.liveFd()
	if err != nil {
		return err
	}
	v := 0
	if on {
		v = 1
	}
	if err := t.t.IoctlInt(fd, ifreq.TUNSETPERSIST, v); err != nil {
		return errors.Wrapf(err, errors.KindChannel, "failed to set persist on %s", t.Name())
	}
	t.Logger().Debug("persist set", "persist", on)
	logging.Audit("tap.persist", t.Name(), map[string]any{"persist": on})
	return nil
}

// Close releases the descriptor. A second Close does nothing.
func (t *Tap) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.t.Close(t.fd); err != nil {
		return errors.Wrapf(err, errors.KindChannel, "failed to close %s", t.Name())
	}
	t.Logger().Info("tap closed")
	return nil
}

// WaitReadable waits until a frame can be read, the timeout elapses or ctx
// is done. A negative timeout waits on ctx alone.
func (t *Tap) WaitReadable(ctx context.Context, timeout time.Duration) (bool, error) {
	fd, err := t.liveFd()
	if err != nil {
		return false, err
	}
	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		slice := pollSlice
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return false, nil
			}
			slice = min(slice, left)
		}
		ready, err := t.t.Poll(fd, slice)
		if err != nil {
			return false, errors.Wrapf(err, errors.KindChannel, "failed to poll %s", t.Name())
		}
		if ready {
			return true, nil
		}
	}
}

// Delete removes a persistent tap by attaching to it and dropping
// persistence before closing.
func Delete(ch *kernel.Channel, name string) error {
	t, err := Create(ch, Options{Name: name})
	if err != nil {
		return err
	}
	if err := t.Unpersist(); err != nil {
		_ = t.Close()
		return err
	}
	if err := t.Close(); err != nil {
		return err
	}
	logging.Audit("tap.delete", name, nil)
	return nil
}
