package netdev

import (
	"net"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/ifreq"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/testutil"
)

func addEther(t *testing.T, sim *kernel.Sim, name string) {
	t.Helper()
	require.NoError(t, sim.AddLink(kernel.SimLink{
		Name:     name,
		Physical: true,
		Carrier:  true,
		MAC:      net.HardwareAddr{0x52, 0x54, 0x00, 0x12, 0x34, 0x56},
		Driver:   kernel.DriverInfo{Driver: "e1000", Version: "7.3.21", BusInfo: "0000:00:03.0"},
		Settings: &ifreq.LinkSettings{
			Supported:   ifreq.AdvertisedModes(true, true, false) | ifreq.ADVERTISED_Autoneg,
			Advertising: ifreq.AdvertisedModes(true, true, false),
			SpeedLo:     100,
			Duplex:      ifreq.DUPLEX_FULL,
			Autoneg:     ifreq.AUTONEG_ENABLE,
		},
	}))
}

func TestUpDownIdempotent(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")
	iface := New(ch, "eth0")

	for range 2 {
		require.NoError(t, iface.Up())
		up, err := iface.IsUp()
		require.NoError(t, err)
		assert.True(t, up)
	}
	for range 2 {
		require.NoError(t, iface.Down())
		up, err := iface.IsUp()
		require.NoError(t, err)
		assert.False(t, up)
	}
}

func TestUpAlwaysWrites(t *testing.T) {
	mt := new(kernel.MockTransport)
	mt.On("Socket").Return(3, nil)
	mt.On("Ioctl", 3, uint(ifreq.SIOCGIFFLAGS), mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).([]byte)[ifreq.NameSize] = ifreq.IFF_UP | ifreq.IFF_RUNNING
		}).Return(nil)
	mt.On("Ioctl", 3, uint(ifreq.SIOCSIFFLAGS), mock.Anything).
		Run(func(args mock.Arguments) {
			p, err := ifreq.Decode(args.Get(2).([]byte), ifreq.PayloadFlags)
			require.NoError(t, err)
			assert.Equal(t, uint16(ifreq.IFF_UP|ifreq.IFF_RUNNING), p.Flags)
		}).Return(nil).Once()

	ch, err := kernel.OpenWith(mt, kernel.NewSim())
	require.NoError(t, err)
	require.NoError(t, New(ch, "eth0").Up())
	mt.AssertExpectations(t)
}

func TestMAC(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")
	iface := New(ch, "eth0")

	mac, err := iface.MACString()
	require.NoError(t, err)
	assert.Equal(t, "52:54:00:12:34:56", mac)

	require.NoError(t, iface.SetMACString("02:00:00:aa:bb:cc"))
	got, err := iface.MAC()
	require.NoError(t, err)
	assert.Equal(t, "02:00:00:aa:bb:cc", got.String())

	t.Run("busy while up", func(t *testing.T) {
		require.NoError(t, iface.Up())
		err := iface.SetMACString("02:00:00:aa:bb:cd")
		require.Error(t, err)
		assert.Equal(t, errors.KindBusy, errors.GetKind(err))
		assert.True(t, errors.HasErrno(err, unix.EBUSY))
	})

	t.Run("bad string", func(t *testing.T) {
		err := iface.SetMACString("not-a-mac")
		assert.Equal(t, errors.KindValidation, errors.GetKind(err))
	})
}

func TestAddressAndNetmask(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")
	iface := New(ch, "eth0")

	ip, err := iface.IP()
	require.NoError(t, err)
	assert.False(t, ip.IsValid())
	_, ok, err := iface.Netmask()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, iface.SetIP(netip.MustParseAddr("10.1.2.3")))
	prefix, ok, err := iface.Netmask()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 8, prefix)

	require.NoError(t, iface.SetNetmask(26))
	prefix, _, err = iface.Netmask()
	require.NoError(t, err)
	assert.Equal(t, 26, prefix)

	ip, err = iface.IP()
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", ip.String())

	err = iface.SetNetmask(33)
	assert.Equal(t, errors.KindEncoding, errors.GetKind(err))
}

func TestIPWithoutAddressFromMock(t *testing.T) {
	mt := new(kernel.MockTransport)
	mt.On("Socket").Return(3, nil)
	mt.On("Ioctl", 3, uint(ifreq.SIOCGIFADDR), mock.Anything).Return(unix.EADDRNOTAVAIL)
	mt.On("Ioctl", 3, uint(ifreq.SIOCGIFINDEX), mock.Anything).Return(unix.ENODEV)

	ch, err := kernel.OpenWith(mt, kernel.NewSim())
	require.NoError(t, err)

	ip, err := New(ch, "eth9").IP()
	require.NoError(t, err)
	assert.Equal(t, netip.Addr{}, ip)

	_, err = New(ch, "eth9").Index()
	require.Error(t, err)
	assert.Equal(t, errors.KindChannel, errors.GetKind(err))
	assert.Contains(t, err.Error(), "eth9")
}

func TestSetName(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")
	iface := New(ch, "eth0")
	idx, err := iface.Index()
	require.NoError(t, err)

	require.NoError(t, iface.Up())
	err = iface.SetName("wan0")
	assert.Equal(t, errors.KindBusy, errors.GetKind(err))
	assert.Equal(t, "eth0", iface.Name())

	require.NoError(t, iface.Down())
	require.NoError(t, iface.SetName("wan0"))
	assert.Equal(t, "wan0", iface.Name())
	got, err := iface.Index()
	require.NoError(t, err)
	assert.Equal(t, idx, got)
	assert.False(t, New(ch, "eth0").Exists())
}

func TestPhysicalAndDriver(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")

	assert.True(t, New(ch, "eth0").IsPhysical())
	assert.False(t, New(ch, "lo").IsPhysical())

	info, err := New(ch, "eth0").DriverInfo()
	require.NoError(t, err)
	assert.Equal(t, "e1000", info.Driver)
	assert.Equal(t, "0000:00:03.0", info.BusInfo)

	perm, err := New(ch, "eth0").PermAddr()
	require.NoError(t, err)
	assert.Equal(t, "52:54:00:12:34:56", perm)
}

func TestNICStats(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	var counters [kernel.NumStats]uint64
	counters[kernel.StatRxPackets] = 12
	counters[kernel.StatTxBytes] = 3400
	require.NoError(t, sim.AddLink(kernel.SimLink{Name: "eth0", Physical: true, Stats: counters}))

	st, err := New(ch, "eth0").NICStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(12), st["rx_packets"])
	assert.Equal(t, uint64(3400), st["tx_bytes"])

	_, err = New(ch, "lo").NICStats()
	assert.True(t, errors.HasErrno(err, unix.EOPNOTSUPP))
}

func TestDeviceCapability(t *testing.T) {
	_, ch := testutil.SimChannel(t)
	var d Device = New(ch, "lo")
	idx, err := d.Index()
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}
