package kernel

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockTransport is a testify mock of Transport. Expectations on Ioctl and
// IoctlRef may use Run to write a kernel response into the argument.
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Socket() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

func (m *MockTransport) Ioctl(fd int, req uint, arg []byte) error {
	args := m.Called(fd, req, arg)
	return args.Error(0)
}

func (m *MockTransport) IoctlRef(fd int, req uint, arg []byte, off int, ref []byte) error {
	args := m.Called(fd, req, arg, off, ref)
	return args.Error(0)
}

func (m *MockTransport) IoctlInt(fd int, req uint, value int) error {
	args := m.Called(fd, req, value)
	return args.Error(0)
}

func (m *MockTransport) Open(path string, nonblock bool) (int, error) {
	args := m.Called(path, nonblock)
	return args.Int(0), args.Error(1)
}

func (m *MockTransport) SetNonblock(fd int, nonblock bool) error {
	args := m.Called(fd, nonblock)
	return args.Error(0)
}

func (m *MockTransport) Read(fd int, b []byte) (int, error) {
	args := m.Called(fd, b)
	return args.Int(0), args.Error(1)
}

func (m *MockTransport) Write(fd int, b []byte) (int, error) {
	args := m.Called(fd, b)
	return args.Int(0), args.Error(1)
}

func (m *MockTransport) Poll(fd int, timeout time.Duration) (bool, error) {
	args := m.Called(fd, timeout)
	return args.Bool(0), args.Error(1)
}

func (m *MockTransport) Close(fd int) error {
	args := m.Called(fd)
	return args.Error(0)
}
