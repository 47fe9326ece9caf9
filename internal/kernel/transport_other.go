//go:build !linux

package kernel

import (
	"time"

	"grimm.is/ifctl/internal/errors"
)

type unsupportedTransport struct{}

// NewTransport returns a transport whose every call fails with
// KindUnsupported; device control is linux-only.
func NewTransport() Transport {
	return unsupportedTransport{}
}

var errUnsupported = errors.New(errors.KindUnsupported, "network device control requires linux")

func (unsupportedTransport) Socket() (int, error) { return -1, errUnsupported }
func (unsupportedTransport) Ioctl(int, uint, []byte) error { return errUnsupported }
func (unsupportedTransport) IoctlRef(int, uint, []byte, int, []byte) error {
	return errUnsupported
}
func (unsupportedTransport) IoctlInt(int, uint, int) error { return errUnsupported }
func (unsupportedTransport) Open(string, bool) (int, error) { return -1, errUnsupported }
func (unsupportedTransport) SetNonblock(int, bool) error { return errUnsupported }
func (unsupportedTransport) Read(int, []byte) (int, error) { return 0, errUnsupported }
func (unsupportedTransport) Write(int, []byte) (int, error) { return 0, errUnsupported }
func (unsupportedTransport) Poll(int, time.Duration) (bool, error) { return false, errUnsupported }
func (unsupportedTransport) Close(int) error { return errUnsupported }
