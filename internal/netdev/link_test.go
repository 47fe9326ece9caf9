package netdev

import (
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

func TestLinkInfo(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")
	iface := New(ch, "eth0")

	info, err := iface.LinkInfo()
	require.NoError(t, err)
	assert.Equal(t, 100, info.Speed)
	require.NotNil(t, info.Duplex)
	assert.Equal(t, DuplexFull, *info.Duplex)
	require.NotNil(t, info.Autoneg)
	assert.True(t, *info.Autoneg)
	assert.False(t, info.Up, "link is down until the device is up")

	require.NoError(t, iface.Up())
	info, err = iface.LinkInfo()
	require.NoError(t, err)
	assert.True(t, info.Up)

	require.NoError(t, sim.SetCarrier("eth0", false))
	info, err = iface.LinkInfo()
	require.NoError(t, err)
	assert.False(t, info.Up)
}

func TestLinkInfoWithoutSettings(t *testing.T) {
	_, ch := testutil.SimChannel(t)

	info, err := New(ch, "lo").LinkInfo()
	require.NoError(t, err)
	assert.Equal(t, 0, info.Speed)
	assert.Nil(t, info.Duplex)
	assert.Nil(t, info.Autoneg)
	assert.True(t, info.Up)
}

func TestLinkInfoUnknownValues(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	require.NoError(t, sim.AddLink(kernel.SimLink{
		Name: "eth1",
		Settings: &ifreq.LinkSettings{
			SpeedLo: 0xffff,
			SpeedHi: 0xffff,
			Duplex:  ifreq.DUPLEX_UNKNOWN,
			Autoneg: ifreq.AUTONEG_UNKNOWN,
		},
	}))

	info, err := New(ch, "eth1").LinkInfo()
	require.NoError(t, err)
	assert.Equal(t, 0, info.Speed)
	assert.Nil(t, info.Duplex)
	assert.Nil(t, info.Autoneg)
}

func TestLinkStateFailurePropagates(t *testing.T) {
	mt := new(kernel.MockTransport)
	mt.On("Socket").Return(3, nil)
	mt.On("IoctlRef", 3, uint(ifreq.SIOCETHTOOL), mock.Anything, ifreq.DataOffset, mock.Anything).
		Return(unix.ENODEV)

	ch, err := kernel.OpenWith(mt, kernel.NewSim())
	require.NoError(t, err)

	_, err = New(ch, "gone0").LinkInfo()
	require.Error(t, err)
	assert.True(t, errors.HasErrno(err, unix.ENODEV))
}

func TestSetLinkMode(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")
	iface := New(ch, "eth0")

	speed := 10
	require.NoError(t, iface.SetLinkMode(&speed, nil))
	l, _ := sim.Link("eth0")
	assert.Equal(t, uint32(10), l.Settings.Speed())
	assert.Equal(t, uint8(ifreq.DUPLEX_FULL), l.Settings.Duplex, "duplex left unchanged")
	assert.Equal(t, uint8(ifreq.AUTONEG_DISABLE), l.Settings.Autoneg)

	half := DuplexHalf
	require.NoError(t, iface.SetLinkMode(nil, &half))
	l, _ = sim.Link("eth0")
	assert.Equal(t, uint32(10), l.Settings.Speed())
	assert.Equal(t, uint8(ifreq.DUPLEX_HALF), l.Settings.Duplex)

	bad := 0
	err := iface.SetLinkMode(&bad, nil)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}

func TestSetLinkAutoAdvertisesOnlySupported(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")
	iface := New(ch, "eth0")

	speed := 10
	require.NoError(t, iface.SetLinkMode(&speed, nil))
	require.NoError(t, iface.SetLinkAuto(false, true, true))

	l, _ := sim.Link("eth0")
	assert.Equal(t, uint8(ifreq.AUTONEG_ENABLE), l.Settings.Autoneg)
	assert.Equal(t, []string{"100baseT/Half", "100baseT/Full"}, ifreq.ModeNames(l.Settings.Advertising))
}

func TestSetLinkAutoRequest(t *testing.T) {
	mt := new(kernel.MockTransport)
	mt.On("Socket").Return(3, nil)
	settings := ifreq.LinkSettings{
		Cmd:         ifreq.ETHTOOL_GSET,
		Supported:   ifreq.AdvertisedModes(true, true, true),
		Advertising: ifreq.AdvertisedModes(true, true, true),
		SpeedLo:     1000,
		Duplex:      ifreq.DUPLEX_FULL,
		Port:        3,
		Reserved:    [2]uint32{0xdead, 0xbeef},
	}
	var written ifreq.LinkSettings
	mt.On("IoctlRef", 3, uint(ifreq.SIOCETHTOOL), mock.Anything, ifreq.DataOffset, mock.Anything).
		Run(func(args mock.Arguments) {
			block := args.Get(4).([]byte)
			var in ifreq.LinkSettings
			require.NoError(t, in.UnmarshalBinary(block))
			switch in.Cmd {
			case ifreq.ETHTOOL_GSET:
				b, _ := settings.MarshalBinary()
				copy(block, b)
			case ifreq.ETHTOOL_SSET:
				written = in
			}
		}).Return(nil)

	ch, err := kernel.OpenWith(mt, kernel.NewSim())
	require.NoError(t, err)
	require.NoError(t, New(ch, "eth0").SetLinkAuto(false, true, false))

	assert.Equal(t, uint32(ifreq.ETHTOOL_SSET), written.Cmd)
	assert.Equal(t, uint32(ifreq.ADVERTISED_100baseT_Half|ifreq.ADVERTISED_100baseT_Full), written.Advertising)
	assert.Equal(t, uint8(ifreq.AUTONEG_ENABLE), written.Autoneg)
	assert.Equal(t, uint8(3), written.Port, "unknown fields survive the rewrite")
	assert.Equal(t, [2]uint32{0xdead, 0xbeef}, written.Reserved)
}

func TestPauseParam(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")
	iface := New(ch, "eth0")

	require.NoError(t, iface.SetPauseParam(false, true, false))
	p, err := iface.PauseParam()
	require.NoError(t, err)
	assert.False(t, p.Autoneg)
	assert.True(t, p.RxPause)
	assert.False(t, p.TxPause)

	err = New(ch, "lo").SetPauseParam(true, true, true)
	assert.True(t, errors.HasErrno(err, unix.EOPNOTSUPP))
}

func TestParseDuplex(t *testing.T) {
	d, err := ParseDuplex("FULL")
	require.NoError(t, err)
	assert.Equal(t, DuplexFull, d)
	assert.Equal(t, "half", DuplexHalf.String())

	_, err = ParseDuplex("both")
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}
