package vlan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/kernel"
	"grimm.is/ifctl/internal/testutil"
)

func TestAddQueryDelete(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	require.NoError(t, sim.AddLink(kernel.SimLink{Name: "eth0", Carrier: true}))

	iface, err := Add(ch, "eth0", 100)
	require.NoError(t, err)
	assert.Equal(t, "eth0.100", iface.Name())

	vid, err := VID(ch, "eth0.100")
	require.NoError(t, err)
	assert.Equal(t, 100, vid)

	parent, err := RealDevice(ch, "eth0.100")
	require.NoError(t, err)
	assert.Equal(t, "eth0", parent)

	l, ok := sim.Link("eth0")
	require.True(t, ok)
	mac, err := iface.MAC()
	require.NoError(t, err)
	assert.Equal(t, l.MAC, mac)
	assert.Contains(t, sim.Links(), "eth0.100")

	require.NoError(t, Delete(ch, "eth0.100"))
	assert.False(t, iface.Exists())
}

func TestErrors(t *testing.T) {
	sim, ch := testutil.SimChannel(t)
	require.NoError(t, sim.AddLink(kernel.SimLink{Name: "eth0"}))

	_, err := Add(ch, "eth0", 4095)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))

	_, err = Add(ch, "eth9", 10)
	assert.True(t, errors.HasErrno(err, unix.ENODEV))

	_, err = VID(ch, "eth0")
	assert.True(t, errors.HasErrno(err, unix.EINVAL))

	err = Delete(ch, "eth0")
	assert.True(t, errors.HasErrno(err, unix.EPERM))

	_, err = Add(ch, "verylongname0", 1000)
	assert.Equal(t, errors.KindValidation, errors.GetKind(err))
}
