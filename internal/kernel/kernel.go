// Package kernel is the boundary between ifctl and the operating system.
//
// A Channel owns the control socket every device-control request is issued
// on. The OS mechanism itself sits behind Transport (requests, device nodes)
// and Tables (sysfs/procfs reads) so the same object model runs against the
// real kernel on linux or against Sim in tests and dry runs.
package kernel

import (
	"time"
)

// Well-known kernel-exposed paths.
const (
	SysClassNet  = "/sys/class/net"
	ProcNetDev   = "/proc/net/dev"
	ProcNetRoute = "/proc/net/route"
	DevNetTun    = "/dev/net/tun"
)

// Transport issues raw requests to the kernel. Implementations return the
// bare OS error (a syscall.Errno) so callers can classify it.
type Transport interface {
	// Socket opens a control socket suitable for device ioctls.
	Socket() (int, error)
	// Ioctl issues req with arg passed by reference; the kernel may rewrite arg.
	Ioctl(fd int, req uint, arg []byte) error
	// IoctlRef is Ioctl for requests that point at an out-of-line block: the
	// address of ref is stored at offset off of arg before the call.
	IoctlRef(fd int, req uint, arg []byte, off int, ref []byte) error
	// IoctlInt issues req with an integer passed by value.
	IoctlInt(fd int, req uint, value int) error

	Open(path string, nonblock bool) (int, error)
	SetNonblock(fd int, nonblock bool) error
	Read(fd int, b []byte) (int, error)
	Write(fd int, b []byte) (int, error)
	// Poll waits up to timeout for fd to become readable. A negative
	// timeout waits indefinitely.
	Poll(fd int, timeout time.Duration) (bool, error)
	Close(fd int) error
}

// Tables reads kernel-exposed filesystems.
type Tables interface {
	ReadFile(path string) ([]byte, error)
	ReadDir(path string) ([]string, error)
	Exists(path string) bool
}

// DriverInfo contains driver metadata from ethtool.
type DriverInfo struct {
	Driver   string `json:"driver" yaml:"driver"`
	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
	Firmware string `json:"firmware,omitempty" yaml:"firmware,omitempty"`
	BusInfo  string `json:"bus_info,omitempty" yaml:"bus_info,omitempty"`
}

// Ethtool answers the ethtool queries that have no fixed ioctl layout here.
type Ethtool interface {
	DriverInfo(name string) (DriverInfo, error)
	PermAddr(name string) (string, error)
	Stats(name string) (map[string]uint64, error)
	Close()
}

// ethtoolSource is implemented by transports that can supply an Ethtool.
type ethtoolSource interface {
	Ethtool() (Ethtool, error)
}
