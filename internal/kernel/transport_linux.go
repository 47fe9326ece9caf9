//go:build linux

package kernel

import (
	"runtime"
	"time"
	"unsafe"

	"github.com/safchain/ethtool"
	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
)

type linuxTransport struct{}

// NewTransport returns the host kernel transport.
func NewTransport() Transport {
	return linuxTransport{}
}

func (linuxTransport) Socket() (int, error) {
	return unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
}

func (linuxTransport) Ioctl(fd int, req uint, arg []byte) error {
	if len(arg) == 0 {
		return errors.New(errors.KindEncoding, "empty ioctl argument")
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(unsafe.Pointer(&arg[0])))
	if errno != 0 {
		return errno
	}
	return nil
}

func (t linuxTransport) IoctlRef(fd int, req uint, arg []byte, off int, ref []byte) error {
	if len(ref) == 0 {
		return errors.New(errors.KindEncoding, "empty out-of-line ioctl block")
	}
	if err := ifreq.PutPointer(arg, off, uintptr(unsafe.Pointer(&ref[0]))); err != nil {
		return err
	}
	err := t.Ioctl(fd, req, arg)
	runtime.KeepAlive(ref)
	return err
}

func (linuxTransport) IoctlInt(fd int, req uint, value int) error {
	return unix.IoctlSetInt(fd, req, value)
}

func (linuxTransport) Open(path string, nonblock bool) (int, error) {
	flags := unix.O_RDWR | unix.O_CLOEXEC
	if nonblock {
		flags |= unix.O_NONBLOCK
	}
	return unix.Open(path, flags, 0)
}

func (linuxTransport) SetNonblock(fd int, nonblock bool) error {
	return unix.SetNonblock(fd, nonblock)
}

func (linuxTransport) Read(fd int, b []byte) (int, error) {
	return unix.Read(fd, b)
}

func (linuxTransport) Write(fd int, b []byte) (int, error) {
	return unix.Write(fd, b)
}

func (linuxTransport) Poll(fd int, timeout time.Duration) (bool, error) {
	ms := -1
	if timeout >= 0 {
		ms = int(timeout.Milliseconds())
	}
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
	}
}

func (linuxTransport) Close(fd int) error {
	return unix.Close(fd)
}

// Ethtool opens a generic-netlink/ioctl ethtool handle.
func (linuxTransport) Ethtool() (Ethtool, error) {
	h, err := ethtool.NewEthtool()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnavailable, "failed to open ethtool handle")
	}
	return &hostEthtool{h: h}, nil
}

type hostEthtool struct {
	h *ethtool.Ethtool
}

func (e *hostEthtool) DriverInfo(name string) (DriverInfo, error) {
	info, err := e.h.DriverInfo(name)
	if err != nil {
		return DriverInfo{}, errors.Wrapf(err, errors.KindChannel, "ethtool driver info for %s", name)
	}
	return DriverInfo{
		Driver:   info.Driver,
		Version:  info.Version,
		Firmware: info.FwVersion,
		BusInfo:  info.BusInfo,
	}, nil
}

func (e *hostEthtool) PermAddr(name string) (string, error) {
	addr, err := e.h.PermAddr(name)
	if err != nil {
		return "", errors.Wrapf(err, errors.KindChannel, "ethtool permanent address for %s", name)
	}
	return addr, nil
}

func (e *hostEthtool) Stats(name string) (map[string]uint64, error) {
	stats, err := e.h.Stats(name)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindChannel, "ethtool stats for %s", name)
	}
	return stats, nil
}

func (e *hostEthtool) Close() {
	e.h.Close()
}
