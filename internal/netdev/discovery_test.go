package netdev

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/testutil"
)

// hiddenTables hides one device from the sysfs listing.
type hiddenTables struct {
	kernel.Tables
	hide string
}

func (h hiddenTables) ReadDir(p string) ([]string, error) {
	names, err := h.Tables.ReadDir(p)
	var out []string
	for _, n := range names {
		if n != h.hide {
			out = append(out, n)
		}
	}
	return out, err
}

func names(ifaces []*Interface) []string {
	out := make([]string, len(ifaces))
	for i, iface := range ifaces {
		out[i] = iface.Name()
	}
	return out
}

func TestList(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")
	require.NoError(t, sim.AddLink(kernel.SimLink{Name: "dummy0", Kind: "dummy"}))

	all, err := List(ch, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"dummy0", "eth0", "lo"}, names(all))

	phys, err := List(ch, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0"}, names(phys))
}

func TestAllRescans(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	seq := All(ch)

	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}
	assert.Equal(t, 1, count())
	addEther(t, sim, "eth0")
	assert.Equal(t, 2, count())
}

func TestAllStopsEarly(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")

	var seen []string
	for iface, err := range All(ch) {
		require.NoError(t, err)
		seen = append(seen, iface.Name())
		break
	}
	assert.Equal(t, []string{"eth0"}, seen)
}

func TestAllIncludesAddressListOnlyDevices(t *testing.T) {
	sim := kernel.NewSim()
	addEther(t, sim, "eth0")
	require.NoError(t, New(mustOpen(t, sim, sim), "eth0").SetIP(mustAddr("192.168.1.10")))

	ch := mustOpen(t, sim, hiddenTables{Tables: sim, hide: "eth0"})
	all, err := List(ch, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"lo", "eth0"}, names(all))
}

func TestFind(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	addEther(t, sim, "eth0")

	iface, err := Find(ch, "eth0")
	require.NoError(t, err)
	assert.Equal(t, "eth0", iface.Name())

	_, err = Find(ch, "eth7")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func mustOpen(t *testing.T, tr kernel.Transport, tables kernel.Tables) *kernel.Channel {
	t.Helper()
	ch, err := kernel.OpenWith(tr, tables)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })
	return ch
}

func mustAddr(s string) netip.Addr { return netip.MustParseAddr(s) }
