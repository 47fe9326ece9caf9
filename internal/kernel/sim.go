package kernel

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
)

// Positions of the counters in a /proc/net/dev line.
const (
	StatRxBytes = iota
	StatRxPackets
	StatRxErrs
	StatRxDrop
	StatRxFifo
	StatRxFrame
	StatRxCompressed
	StatRxMulticast
	StatTxBytes
	StatTxPackets
	StatTxErrs
	StatTxDrop
	StatTxFifo
	StatTxColls
	StatTxCarrier
	StatTxCompressed
	NumStats
)

// SimLink describes a device in a Sim.
type SimLink struct {
	Name     string
	Kind     string // ether, loopback, dummy, bridge, tap, vlan
	Index    int
	MAC      net.HardwareAddr
	Up       bool
	Carrier  bool
	Addr     netip.Prefix
	Physical bool
	Driver   DriverInfo
	// Settings is the ethtool_cmd block the driver reports; nil means the
	// device has no ethtool link settings support.
	Settings *ifreq.LinkSettings
	Pause    ifreq.PauseParam
	Stats    [NumStats]uint64

	Master string

	// bridge
	STP          bool
	ForwardDelay uint // ticks

	// tap
	Persist  bool
	Attached bool

	// vlan
	Parent string
	VID    int
}

// SimRoute is a row of the simulated IPv4 routing table.
type SimRoute struct {
	Iface   string
	Dest    netip.Prefix
	Gateway netip.Addr
	Metric  int
}

type simLink struct {
	SimLink
	ports    map[string]uint16
	nextPort uint16
	fdb      []ifreq.FDBEntry
	file     *simFile
	queue    [][]byte
}

const (
	fileSocket = iota
	fileTun
)

type simFile struct {
	kind     int
	nonblock bool
	link     *simLink
	ready    chan struct{}
}

// Sim is an in-memory kernel. It implements Transport, Tables and the
// ethtool provider with the error numbers the linux device layer uses, and
// backs unit tests and dry runs.
type Sim struct {
	mu      sync.Mutex
	links   map[string]*simLink
	nextIdx int
	files   map[int]*simFile
	nextFd  int
	routes  []SimRoute
}

// NewSim returns a Sim holding only the loopback device.
func NewSim() *Sim {
	s := &Sim{
		links:   make(map[string]*simLink),
		nextIdx: 1,
		files:   make(map[int]*simFile),
		nextFd:  3,
	}
	_ = s.AddLink(SimLink{
		Name:    "lo",
		Kind:    "loopback",
		MAC:     net.HardwareAddr{0, 0, 0, 0, 0, 0},
		Up:      true,
		Carrier: true,
		Addr:    netip.MustParsePrefix("127.0.0.1/8"),
	})
	return s
}

// AddLink registers a device. Index and MAC are assigned when zero.
func (s *Sim) AddLink(l SimLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.addLocked(l)
	return err
}

func (s *Sim) addLocked(l SimLink) (*simLink, error) {
	if l.Name == "" || len(l.Name) >= ifreq.NameSize {
		return nil, unix.EINVAL
	}
	if _, ok := s.links[l.Name]; ok {
		return nil, unix.EEXIST
	}
	if l.Index == 0 {
		l.Index = s.nextIdx
	}
	if l.Index >= s.nextIdx {
		s.nextIdx = l.Index + 1
	}
	if l.MAC == nil {
		l.MAC = net.HardwareAddr{0x02, 0x00, 0x5e, 0x00, byte(l.Index >> 8), byte(l.Index)}
	}
	if l.Kind == "" {
		l.Kind = "ether"
	}
	if l.Kind == "bridge" && l.ForwardDelay == 0 {
		l.ForwardDelay = 1500
	}
	link := &simLink{SimLink: l}
	if l.Kind == "bridge" {
		link.ports = make(map[string]uint16)
		link.nextPort = 1
	}
	s.links[l.Name] = link
	return link, nil
}

// Link returns a snapshot of the named device.
func (s *Sim) Link(name string) (SimLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[name]
	if !ok {
		return SimLink{}, false
	}
	out := l.SimLink
	out.MAC = slices.Clone(l.MAC)
	if l.Settings != nil {
		cp := *l.Settings
		out.Settings = &cp
	}
	return out, true
}

// Links returns the device names ordered by index.
func (s *Sim) Links() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.namesLocked()
}

func (s *Sim) namesLocked() []string {
	ls := make([]*simLink, 0, len(s.links))
	for _, l := range s.links {
		ls = append(ls, l)
	}
	sort.Slice(ls, func(i, j int) bool { return ls[i].Index < ls[j].Index })
	names := make([]string, len(ls))
	for i, l := range ls {
		names[i] = l.Name
	}
	return names
}

// AddFDB appends a learned entry to a bridge's forwarding database.
func (s *Sim) AddFDB(bridge string, e ifreq.FDBEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	br, ok := s.links[bridge]
	if !ok || br.Kind != "bridge" {
		return unix.ENODEV
	}
	br.fdb = append(br.fdb, e)
	return nil
}

// AddRoute appends a row to the routing table.
func (s *Sim) AddRoute(r SimRoute) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, r)
}

// SetCarrier changes the physical link state of a device.
func (s *Sim) SetCarrier(name string, carrier bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[name]
	if !ok {
		return unix.ENODEV
	}
	l.Carrier = carrier
	return nil
}

// Transmit has the kernel send frame out of a tap device, making it
// readable on the tap's descriptor.
func (s *Sim) Transmit(name string, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.links[name]
	if !ok {
		return unix.ENODEV
	}
	if l.file == nil || !l.Up {
		l.Stats[StatTxDrop]++
		return unix.ENETDOWN
	}
	l.queue = append(l.queue, slices.Clone(frame))
	l.Stats[StatTxPackets]++
	l.Stats[StatTxBytes] += uint64(len(frame))
	notify(l.file)
	return nil
}

// OpenFiles returns the number of descriptors currently open on the Sim.
func (s *Sim) OpenFiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

func notify(f *simFile) {
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

func (s *Sim) newFileLocked(kind int, nonblock bool) int {
	fd := s.nextFd
	s.nextFd++
	s.files[fd] = &simFile{kind: kind, nonblock: nonblock, ready: make(chan struct{}, 1)}
	return fd
}

// Socket implements Transport.
func (s *Sim) Socket() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newFileLocked(fileSocket, false), nil
}

// Open implements Transport. Only the tun clone device exists.
func (s *Sim) Open(path string, nonblock bool) (int, error) {
	if path != DevNetTun {
		return -1, unix.ENOENT
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newFileLocked(fileTun, nonblock), nil
}

func (s *Sim) SetNonblock(fd int, nonblock bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fd]
	if !ok {
		return unix.EBADF
	}
	f.nonblock = nonblock
	return nil
}

// Read returns the next frame the kernel sent out of the attached tap.
func (s *Sim) Read(fd int, b []byte) (int, error) {
	for {
		s.mu.Lock()
		f, ok := s.files[fd]
		if !ok {
			s.mu.Unlock()
			return 0, unix.EBADF
		}
		if f.link == nil {
			s.mu.Unlock()
			return 0, unix.EBADFD
		}
		if len(f.link.queue) > 0 {
			frame := f.link.queue[0]
			f.link.queue = f.link.queue[1:]
			s.mu.Unlock()
			return copy(b, frame), nil
		}
		nonblock, ready := f.nonblock, f.ready
		s.mu.Unlock()

		if nonblock {
			return 0, unix.EAGAIN
		}
		<-ready
	}
}

// Write injects a frame into the kernel as if received by the tap.
func (s *Sim) Write(fd int, b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fd]
	if !ok {
		return 0, unix.EBADF
	}
	if f.link == nil {
		return 0, unix.EBADFD
	}
	if !f.link.Up {
		return 0, unix.EIO
	}
	f.link.Stats[StatRxPackets]++
	f.link.Stats[StatRxBytes] += uint64(len(b))
	return len(b), nil
}

func (s *Sim) Poll(fd int, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	f, ok := s.files[fd]
	if !ok {
		s.mu.Unlock()
		return false, unix.EBADF
	}
	if f.link != nil && len(f.link.queue) > 0 {
		s.mu.Unlock()
		return true, nil
	}
	ready := f.ready
	s.mu.Unlock()

	var expired <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case <-ready:
		// Hand the token back for a blocking Read that follows.
		notify(f)
		return true, nil
	case <-expired:
		return false, nil
	}
}

// Close releases fd. Closing a tun descriptor of a non-persistent tap
// removes the device.
func (s *Sim) Close(fd int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fd]
	if !ok {
		return unix.EBADF
	}
	delete(s.files, fd)
	if l := f.link; l != nil {
		l.file = nil
		l.Attached = false
		l.queue = nil
		if !l.Persist {
			s.removeLocked(l)
		}
	}
	notify(f)
	return nil
}

func (s *Sim) removeLocked(l *simLink) {
	if l.Master != "" {
		if br, ok := s.links[l.Master]; ok {
			s.detachLocked(br, l)
		}
	}
	if l.Kind == "bridge" {
		for member := range l.ports {
			if m, ok := s.links[member]; ok {
				m.Master = ""
			}
		}
	}
	delete(s.links, l.Name)

	var children []*simLink
	for _, v := range s.links {
		if v.Kind == "vlan" && v.Parent == l.Name {
			children = append(children, v)
		}
	}
	for _, v := range children {
		s.removeLocked(v)
	}
}

func (s *Sim) detachLocked(br, m *simLink) {
	port := br.ports[m.Name]
	delete(br.ports, m.Name)
	br.fdb = slices.DeleteFunc(br.fdb, func(e ifreq.FDBEntry) bool { return e.Port == port })
	m.Master = ""
}

func (s *Sim) lookup(buf []byte) (*simLink, error) {
	name, err := ifreq.DecodeName(buf)
	if err != nil {
		return nil, unix.EFAULT
	}
	l, ok := s.links[name]
	if !ok {
		return nil, unix.ENODEV
	}
	return l, nil
}

func (s *Sim) socketLocked(fd int) error {
	f, ok := s.files[fd]
	if !ok {
		return unix.EBADF
	}
	if f.kind != fileSocket {
		return unix.ENOTTY
	}
	return nil
}

// Ioctl implements Transport for the requests that carry their argument
// inline.
func (s *Sim) Ioctl(fd int, req uint, arg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req == ifreq.TUNSETIFF {
		return s.tunSetIff(fd, arg)
	}
	if err := s.socketLocked(fd); err != nil {
		return err
	}

	switch req {
	case ifreq.SIOCBRADDBR, ifreq.SIOCBRDELBR:
		// The kernel copies a full IFNAMSIZ buffer for these.
		if len(arg) < ifreq.NameSize {
			return unix.EFAULT
		}
		if req == ifreq.SIOCBRADDBR {
			return s.addBridge(arg)
		}
		return s.delBridge(arg)
	case ifreq.SIOCSIFVLAN, ifreq.SIOCGIFVLAN:
		return s.vlan(arg)
	}

	if len(arg) < ifreq.Size {
		return unix.EFAULT
	}
	l, err := s.lookup(arg)
	if err != nil {
		return err
	}

	switch req {
	case ifreq.SIOCGIFFLAGS:
		return put(arg, ifreq.Flags(s.flags(l)))
	case ifreq.SIOCSIFFLAGS:
		p, _ := ifreq.Decode(arg, ifreq.PayloadFlags)
		l.Up = p.Flags&ifreq.IFF_UP != 0
		return nil
	case ifreq.SIOCGIFHWADDR:
		return put(arg, ifreq.HardwareAddr(l.MAC))
	case ifreq.SIOCSIFHWADDR:
		p, _ := ifreq.Decode(arg, ifreq.PayloadHardwareAddr)
		if binary.NativeEndian.Uint16(arg[ifreq.NameSize:]) != ifreq.ARPHRD_ETHER {
			return unix.EINVAL
		}
		if l.Up && l.Kind != "tap" && l.Kind != "bridge" {
			return unix.EBUSY
		}
		if p.HardwareAddr[0]&1 != 0 {
			return unix.EADDRNOTAVAIL
		}
		l.MAC = p.HardwareAddr
		return nil
	case ifreq.SIOCGIFADDR:
		if !l.Addr.IsValid() {
			return unix.EADDRNOTAVAIL
		}
		return put(arg, ifreq.Inet4(l.Addr.Addr()))
	case ifreq.SIOCSIFADDR:
		p, _ := ifreq.Decode(arg, ifreq.PayloadInet4)
		return s.setAddr(l, p.Addr)
	case ifreq.SIOCGIFNETMASK:
		if !l.Addr.IsValid() {
			return unix.EADDRNOTAVAIL
		}
		mask, _ := ifreq.PrefixToMask(l.Addr.Bits())
		return put(arg, ifreq.Inet4(mask))
	case ifreq.SIOCSIFNETMASK:
		if !l.Addr.IsValid() {
			return unix.EADDRNOTAVAIL
		}
		p, _ := ifreq.Decode(arg, ifreq.PayloadInet4)
		bits := ifreq.MaskToPrefix(p.Addr)
		if m, _ := ifreq.PrefixToMask(bits); m != p.Addr {
			return unix.EINVAL
		}
		l.Addr = netip.PrefixFrom(l.Addr.Addr(), bits)
		return nil
	case ifreq.SIOCGIFINDEX:
		return put(arg, ifreq.Int(int32(l.Index)))
	case ifreq.SIOCSIFNAME:
		p, _ := ifreq.Decode(arg, ifreq.PayloadNewName)
		return s.rename(l, p.NewName)
	case ifreq.SIOCBRADDIF, ifreq.SIOCBRDELIF:
		p, _ := ifreq.Decode(arg, ifreq.PayloadInt)
		return s.bridgeIf(l, int(p.Int), req == ifreq.SIOCBRADDIF)
	}
	return unix.ENOTTY
}

// IoctlRef implements Transport for requests that point at an out-of-line
// block.
func (s *Sim) IoctlRef(fd int, req uint, arg []byte, off int, ref []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.socketLocked(fd); err != nil {
		return err
	}
	if err := ifreq.PutPointer(arg, off, 0xbadc0de); err != nil {
		return err
	}

	if req == ifreq.SIOCGIFCONF {
		return s.ifconf(arg, ref)
	}

	l, err := s.lookup(arg)
	if err != nil {
		return err
	}
	switch req {
	case ifreq.SIOCETHTOOL:
		return s.ethtool(l, ref)
	case ifreq.SIOCDEVPRIVATE:
		return s.bridgeCmd(l, ref)
	}
	return unix.ENOTTY
}

// IoctlInt implements Transport; only TUNSETPERSIST is modelled.
func (s *Sim) IoctlInt(fd int, req uint, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[fd]
	if !ok {
		return unix.EBADF
	}
	if req != ifreq.TUNSETPERSIST || f.kind != fileTun {
		return unix.ENOTTY
	}
	if f.link == nil {
		return unix.EBADFD
	}
	f.link.Persist = value != 0
	return nil
}

func put(arg []byte, p ifreq.Payload) error {
	b, err := ifreq.Encode("", p)
	if err != nil {
		return unix.EINVAL
	}
	copy(arg[ifreq.NameSize:], b[ifreq.NameSize:])
	return nil
}

func (s *Sim) flags(l *simLink) uint16 {
	var f uint16
	if l.Up {
		f |= ifreq.IFF_UP
		if l.Carrier || l.Kind == "loopback" || l.Kind == "dummy" {
			f |= ifreq.IFF_RUNNING
		}
	}
	return f
}

// setAddr mirrors devinet: the prefix resets to the classful default on
// every address change and 0.0.0.0 removes the address.
func (s *Sim) setAddr(l *simLink, a netip.Addr) error {
	if !a.Is4() {
		return unix.EINVAL
	}
	if a.IsUnspecified() {
		l.Addr = netip.Prefix{}
		return nil
	}
	first := a.As4()[0]
	var bits int
	switch {
	case first < 128:
		bits = 8
	case first < 192:
		bits = 16
	case first < 224:
		bits = 24
	default:
		return unix.EINVAL
	}
	l.Addr = netip.PrefixFrom(a, bits)
	return nil
}

func (s *Sim) rename(l *simLink, name string) error {
	if name == "" || len(name) >= ifreq.NameSize {
		return unix.EINVAL
	}
	if l.Up {
		return unix.EBUSY
	}
	if _, ok := s.links[name]; ok {
		return unix.EEXIST
	}
	old := l.Name
	delete(s.links, old)
	l.Name = name
	s.links[name] = l
	for _, other := range s.links {
		if other.Master == old {
			other.Master = name
		}
		if other.Parent == old {
			other.Parent = name
		}
		if port, ok := other.ports[old]; ok {
			delete(other.ports, old)
			other.ports[name] = port
		}
	}
	return nil
}

func (s *Sim) addBridge(arg []byte) error {
	name := cname(arg)
	if name == "" {
		return unix.EINVAL
	}
	_, err := s.addLocked(SimLink{Name: name, Kind: "bridge", Carrier: true, Driver: DriverInfo{Driver: "bridge", Version: "2.3"}})
	return err
}

func (s *Sim) delBridge(arg []byte) error {
	l, ok := s.links[cname(arg)]
	if !ok {
		return unix.ENXIO
	}
	if l.Kind != "bridge" {
		return unix.EPERM
	}
	if l.Up {
		return unix.EBUSY
	}
	s.removeLocked(l)
	return nil
}

func cname(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func (s *Sim) bridgeIf(br *simLink, index int, add bool) error {
	if br.Kind != "bridge" {
		return unix.EOPNOTSUPP
	}
	var m *simLink
	for _, l := range s.links {
		if l.Index == index {
			m = l
			break
		}
	}
	if m == nil {
		return unix.ENODEV
	}
	if !add {
		if m.Master != br.Name {
			return unix.EINVAL
		}
		s.detachLocked(br, m)
		return nil
	}
	if m.Kind == "bridge" || m.Kind == "loopback" {
		return unix.ELOOP
	}
	if m.Master != "" {
		return unix.EBUSY
	}
	port := br.nextPort
	br.nextPort++
	br.ports[m.Name] = port
	m.Master = br.Name
	br.fdb = append(br.fdb, ifreq.FDBEntry{MAC: slices.Clone(m.MAC), Port: port, Local: true})
	return nil
}

func (s *Sim) bridgeCmd(br *simLink, ref []byte) error {
	if br.Kind != "bridge" {
		return unix.EOPNOTSUPP
	}
	args, err := ifreq.DecodeBridgeArgs(ref)
	if err != nil {
		return unix.EFAULT
	}
	switch args[0] {
	case ifreq.BRCTL_SET_BRIDGE_FORWARD_DELAY:
		br.ForwardDelay = args[1]
	case ifreq.BRCTL_SET_BRIDGE_STP_STATE:
		br.STP = args[1] != 0
	default:
		return unix.EOPNOTSUPP
	}
	return nil
}

func (s *Sim) ethtool(l *simLink, ref []byte) error {
	if len(ref) < 4 {
		return unix.EFAULT
	}
	switch binary.NativeEndian.Uint32(ref) {
	case ifreq.ETHTOOL_GSET:
		if l.Settings == nil {
			return unix.EOPNOTSUPP
		}
		out := *l.Settings
		out.Cmd = ifreq.ETHTOOL_GSET
		b, _ := out.MarshalBinary()
		if len(ref) < len(b) {
			return unix.EFAULT
		}
		copy(ref, b)
	case ifreq.ETHTOOL_SSET:
		if l.Settings == nil {
			return unix.EOPNOTSUPP
		}
		var in ifreq.LinkSettings
		if err := in.UnmarshalBinary(ref); err != nil {
			return unix.EFAULT
		}
		in.Supported = l.Settings.Supported
		in.Cmd = ifreq.ETHTOOL_GSET
		if in.Autoneg == ifreq.AUTONEG_ENABLE && in.Advertising&^l.Settings.Supported != 0 {
			return unix.EINVAL
		}
		*l.Settings = in
	case ifreq.ETHTOOL_GLINK:
		up := l.Up && (l.Carrier || l.Kind == "loopback")
		out := ifreq.Value{Cmd: ifreq.ETHTOOL_GLINK, Data: b2u(up)}
		b, _ := out.MarshalBinary()
		copy(ref, b)
	case ifreq.ETHTOOL_GPAUSEPARAM:
		if l.Settings == nil {
			return unix.EOPNOTSUPP
		}
		out := l.Pause
		out.Cmd = ifreq.ETHTOOL_GPAUSEPARAM
		b, _ := out.MarshalBinary()
		if len(ref) < len(b) {
			return unix.EFAULT
		}
		copy(ref, b)
	case ifreq.ETHTOOL_SPAUSEPARAM:
		if l.Settings == nil {
			return unix.EOPNOTSUPP
		}
		var in ifreq.PauseParam
		if err := in.UnmarshalBinary(ref); err != nil {
			return unix.EFAULT
		}
		l.Pause = in
	default:
		return unix.EOPNOTSUPP
	}
	return nil
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// ifconf lists devices that have an IPv4 address, like SIOCGIFCONF.
func (s *Sim) ifconf(arg, ref []byte) error {
	n, err := ifreq.DecodeIfconfLen(arg)
	if err != nil {
		return unix.EFAULT
	}
	if n > len(ref) {
		n = len(ref)
	}
	off := 0
	for _, name := range s.namesLocked() {
		l := s.links[name]
		if !l.Addr.IsValid() {
			continue
		}
		if off+ifreq.Size > n {
			break
		}
		b, _ := ifreq.Encode(name, ifreq.Inet4(l.Addr.Addr()))
		copy(ref[off:], b)
		off += ifreq.Size
	}
	copy(arg, ifreq.EncodeIfconf(off)[:4])
	return nil
}

func (s *Sim) vlan(arg []byte) error {
	var r ifreq.VlanRequest
	if err := r.UnmarshalBinary(arg); err != nil {
		return unix.EFAULT
	}
	switch r.Cmd {
	case ifreq.ADD_VLAN_CMD:
		parent, ok := s.links[r.Device1]
		if !ok {
			return unix.ENODEV
		}
		if r.VID < 0 || r.VID >= 4095 {
			return unix.ERANGE
		}
		name := fmt.Sprintf("%s.%d", parent.Name, r.VID)
		_, err := s.addLocked(SimLink{
			Name:    name,
			Kind:    "vlan",
			MAC:     slices.Clone(parent.MAC),
			Carrier: parent.Carrier,
			Parent:  parent.Name,
			VID:     int(r.VID),
			Driver:  DriverInfo{Driver: "802.1Q VLAN Support", Version: "1.8"},
		})
		return err
	case ifreq.DEL_VLAN_CMD:
		l, ok := s.links[r.Device1]
		if !ok {
			return unix.ENODEV
		}
		if l.Kind != "vlan" {
			return unix.EPERM
		}
		s.removeLocked(l)
		return nil
	case ifreq.GET_VLAN_REALDEV_NAME_CMD, ifreq.GET_VLAN_VID_CMD:
		l, ok := s.links[r.Device1]
		if !ok {
			return unix.ENODEV
		}
		if l.Kind != "vlan" {
			return unix.EINVAL
		}
		out := ifreq.VlanRequest{Cmd: r.Cmd, Device1: r.Device1}
		if r.Cmd == ifreq.GET_VLAN_VID_CMD {
			out.VID = int32(l.VID)
		} else {
			out.Device2 = l.Parent
		}
		b, _ := out.MarshalBinary()
		copy(arg, b)
		return nil
	}
	return unix.EINVAL
}

func (s *Sim) tunSetIff(fd int, arg []byte) error {
	f, ok := s.files[fd]
	if !ok {
		return unix.EBADF
	}
	if f.kind != fileTun {
		return unix.ENOTTY
	}
	if f.link != nil {
		return unix.EINVAL
	}
	p, err := ifreq.Decode(arg, ifreq.PayloadFlags)
	if err != nil {
		return unix.EFAULT
	}
	if p.Flags&ifreq.IFF_TAP == 0 {
		return unix.EINVAL
	}
	name, _ := ifreq.DecodeName(arg)
	if name == "" {
		for i := 0; ; i++ {
			name = fmt.Sprintf("tap%d", i)
			if _, taken := s.links[name]; !taken {
				break
			}
		}
	}

	l, exists := s.links[name]
	switch {
	case exists && l.Kind != "tap":
		return unix.EINVAL
	case exists && l.file != nil:
		return unix.EBUSY
	case !exists:
		l, err = s.addLocked(SimLink{Name: name, Kind: "tap", Carrier: true, Driver: DriverInfo{Driver: "tun", Version: "1.6", BusInfo: "tap"}})
		if err != nil {
			return err
		}
	}
	l.file = f
	l.Attached = true
	f.link = l
	return ifreq.PutName(arg, name)
}

// Ethtool implements the provider lookup used by Channel.Ethtool.
func (s *Sim) Ethtool() (Ethtool, error) {
	return simEthtool{s}, nil
}

type simEthtool struct{ s *Sim }

func (e simEthtool) DriverInfo(name string) (DriverInfo, error) {
	l, ok := e.s.Link(name)
	if !ok {
		return DriverInfo{}, errors.Wrapf(unix.ENODEV, errors.KindChannel, "ethtool driver info for %s", name)
	}
	if l.Driver.Driver == "" {
		return DriverInfo{}, errors.Wrapf(unix.EOPNOTSUPP, errors.KindChannel, "ethtool driver info for %s", name)
	}
	return l.Driver, nil
}

func (e simEthtool) PermAddr(name string) (string, error) {
	l, ok := e.s.Link(name)
	if !ok {
		return "", errors.Wrapf(unix.ENODEV, errors.KindChannel, "ethtool permanent address for %s", name)
	}
	return l.MAC.String(), nil
}

func (e simEthtool) Stats(name string) (map[string]uint64, error) {
	l, ok := e.s.Link(name)
	if !ok || !l.Physical {
		return nil, errors.Wrapf(unix.EOPNOTSUPP, errors.KindChannel, "ethtool stats for %s", name)
	}
	return map[string]uint64{
		"rx_packets": l.Stats[StatRxPackets],
		"tx_packets": l.Stats[StatTxPackets],
		"rx_bytes":   l.Stats[StatRxBytes],
		"tx_bytes":   l.Stats[StatTxBytes],
	}, nil
}

func (simEthtool) Close() {}
