package kernel

import (
	"fmt"
	"sync"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
	"grimm.is/ifctl/internal/logging"
)

// Channel is the control socket through which all device requests are
// issued. One channel is expected per process; it is owned by the caller and
// handed to every Interface, Bridge and Tap constructor.
//
// Issue may be called from multiple goroutines. Close waits for in-flight
// requests to finish.
type Channel struct {
	t      Transport
	tables Tables
	log    *logging.Logger

	mu     sync.RWMutex
	fd     int
	closed bool

	// eth and ethErr are set on first use under mu.
	eth    Ethtool
	ethErr error

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open opens a channel on the host kernel.
func Open() (*Channel, error) {
	return OpenWith(NewTransport(), HostTables())
}

// OpenWith opens a channel on the given transport and tables.
func OpenWith(t Transport, tables Tables) (*Channel, error) {
	fd, err := t.Socket()
	if err != nil {
		if errors.GetKind(err) != errors.KindUnknown {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.KindChannel, "failed to open control socket")
	}

	c := &Channel{
		t:      t,
		tables: tables,
		fd:     fd,
		log:    logging.WithComponent("kernel"),
		locks:  make(map[string]*sync.Mutex),
	}
	c.log.Debug("control channel open", "fd", fd)
	return c, nil
}

// Issue sends req with buf and returns buf as rewritten by the kernel.
func (c *Channel) Issue(req uint, buf []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return buf, errClosed(req)
	}
	if err := c.t.Ioctl(c.fd, req, buf); err != nil {
		return buf, requestError(req, err)
	}
	return buf, nil
}

// IssueRef sends req with buf, whose field at off points at ref. Both
// buffers come back as rewritten by the kernel.
func (c *Channel) IssueRef(req uint, buf []byte, off int, ref []byte) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return buf, errClosed(req)
	}
	if err := c.t.IoctlRef(c.fd, req, buf, off, ref); err != nil {
		return buf, requestError(req, err)
	}
	return buf, nil
}

// Close releases the control socket. Later requests fail with
// KindChannelClosed; closing twice is a no-op.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.eth != nil {
		c.eth.Close()
	}
	c.log.Debug("control channel closed", "fd", c.fd)
	if err := c.t.Close(c.fd); err != nil {
		return errors.Wrap(err, errors.KindChannel, "failed to close control socket")
	}
	return nil
}

// Check returns KindChannelClosed once the channel has been closed.
func (c *Channel) Check() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New(errors.KindChannelClosed, "control channel is closed")
	}
	return nil
}

// Transport returns the transport backing the channel, for callers that own
// their own descriptors (tap devices).
func (c *Channel) Transport() Transport { return c.t }

// Tables returns the kernel table reader.
func (c *Channel) Tables() Tables { return c.tables }

// Ethtool returns the ethtool provider for the channel's transport, opening
// it on first use.
func (c *Channel) Ethtool() (Ethtool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New(errors.KindChannelClosed, "control channel is closed")
	}
	if c.eth == nil && c.ethErr == nil {
		src, ok := c.t.(ethtoolSource)
		if !ok {
			c.ethErr = errors.New(errors.KindUnsupported, "transport has no ethtool support")
		} else {
			c.eth, c.ethErr = src.Ethtool()
		}
	}
	return c.eth, c.ethErr
}

// Lock serializes read-modify-write sequences on one device within this
// process. It returns the unlock function.
func (c *Channel) Lock(dev string) (unlock func()) {
	c.locksMu.Lock()
	m, ok := c.locks[dev]
	if !ok {
		m = &sync.Mutex{}
		c.locks[dev] = m
	}
	c.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

func errClosed(req uint) error {
	return errors.Errorf(errors.KindChannelClosed, "%s on closed control channel", RequestName(req))
}

func requestError(req uint, err error) error {
	if errors.GetKind(err) != errors.KindUnknown {
		return err
	}
	wrapped := errors.Wrap(err, errors.KindChannel, RequestName(req))
	if errno, ok := errors.Errno(err); ok {
		wrapped = errors.Attr(wrapped, "errno", int(errno))
	}
	return wrapped
}

var requestNames = map[uint]string{
	ifreq.SIOCGIFCONF:    "SIOCGIFCONF",
	ifreq.SIOCGIFFLAGS:   "SIOCGIFFLAGS",
	ifreq.SIOCSIFFLAGS:   "SIOCSIFFLAGS",
	ifreq.SIOCGIFADDR:    "SIOCGIFADDR",
	ifreq.SIOCSIFADDR:    "SIOCSIFADDR",
	ifreq.SIOCGIFNETMASK: "SIOCGIFNETMASK",
	ifreq.SIOCSIFNETMASK: "SIOCSIFNETMASK",
	ifreq.SIOCSIFNAME:    "SIOCSIFNAME",
	ifreq.SIOCSIFHWADDR:  "SIOCSIFHWADDR",
	ifreq.SIOCGIFHWADDR:  "SIOCGIFHWADDR",
	ifreq.SIOCGIFINDEX:   "SIOCGIFINDEX",
	ifreq.SIOCETHTOOL:    "SIOCETHTOOL",
	ifreq.SIOCGIFVLAN:    "SIOCGIFVLAN",
	ifreq.SIOCSIFVLAN:    "SIOCSIFVLAN",
	ifreq.SIOCBRADDBR:    "SIOCBRADDBR",
	ifreq.SIOCBRDELBR:    "SIOCBRDELBR",
	ifreq.SIOCBRADDIF:    "SIOCBRADDIF",
	ifreq.SIOCBRDELIF:    "SIOCBRDELIF",
	ifreq.SIOCDEVPRIVATE: "SIOCDEVPRIVATE",
	ifreq.TUNSETIFF:      "TUNSETIFF",
	ifreq.TUNSETPERSIST:  "TUNSETPERSIST",
}

// RequestName returns the symbolic name of a request code.
func RequestName(req uint) string {
	if n, ok := requestNames[req]; ok {
		return n
	}
	return fmt.Sprintf("ioctl(%#x)", req)
}
