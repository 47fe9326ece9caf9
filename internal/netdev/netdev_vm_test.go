//go:build linux

package netdev

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"

	"grimm.is/ifctl/internal/testutil"
)

// dummyLink creates a dummy device through netlink and removes it when the
// test ends.
func dummyLink(t *testing.T, name string) netlink.Link {
	t.Helper()
	link := &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Name: name}}
	require.NoError(t, netlink.LinkAdd(link))
	t.Cleanup(func() { _ = netlink.LinkDel(link) })
	got, err := netlink.LinkByName(name)
	require.NoError(t, err)
	return got
}

func TestInterface_Integration(t *testing.T) {
	ch := testutil.HostChannel(t)
	link := dummyLink(t, "ifctl-t0")
	iface := New(ch, "ifctl-t0")

	idx, err := iface.Index()
	require.NoError(t, err)
	assert.Equal(t, link.Attrs().Index, idx)

	require.NoError(t, iface.Up())
	require.NoError(t, iface.Up())
	link, err = netlink.LinkByName("ifctl-t0")
	require.NoError(t, err)
	assert.NotZero(t, link.Attrs().Flags&0x1, "IFF_UP after Up")

	require.NoError(t, iface.Down())
	link, err = netlink.LinkByName("ifctl-t0")
	require.NoError(t, err)
	assert.Zero(t, link.Attrs().Flags&0x1)

	ip, err := iface.IP()
	require.NoError(t, err)
	assert.False(t, ip.IsValid())

	require.NoError(t, iface.SetIP(netip.MustParseAddr("10.254.0.1")))
	require.NoError(t, iface.SetNetmask(30))
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "10.254.0.1/30", addrs[0].IPNet.String())

	require.NoError(t, iface.SetMACString("02:00:5e:10:20:30"))
	mac, err := iface.MACString()
	require.NoError(t, err)
	assert.Equal(t, "02:00:5e:10:20:30", mac)

	_, ok, err := iface.Stats()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDiscovery_Integration(t *testing.T) {
	ch := testutil.HostChannel(t)
	dummyLink(t, "ifctl-t1")

	all, err := List(ch, false)
	require.NoError(t, err)
	assert.Contains(t, names(all), "ifctl-t1")
	assert.Contains(t, names(all), "lo")

	phys, err := List(ch, true)
	require.NoError(t, err)
	assert.NotContains(t, names(phys), "ifctl-t1")

	_, err = Find(ch, "ifctl-nope")
	assert.Error(t, err)
}
