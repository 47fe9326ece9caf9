package route

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ifctl/internal/errors"
	"grimm.is/ifctl/internal/kernel"
)

func TestDefaultAndGateway(t *testing.T) {
	sim := kernel.NewSim()
	sim.AddRoute(kernel.SimRoute{Iface: "eth0", Dest: netip.MustParsePrefix("192.168.2.0/24")})
	sim.AddRoute(kernel.SimRoute{Iface: "eth0", Dest: netip.MustParsePrefix("0.0.0.0/0"), Gateway: netip.MustParseAddr("192.168.2.1"), Metric: 100})
	sim.AddRoute(kernel.SimRoute{Iface: "eth1", Dest: netip.MustParsePrefix("10.8.0.0/16"), Gateway: netip.MustParseAddr("10.0.0.254")})

	r, ok, err := Default(sim)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "eth0", r.Iface)
	assert.Equal(t, "192.168.2.1", r.Gateway.String())
	assert.Equal(t, 100, r.Metric)
	assert.True(t, r.HasGateway())

	gw, ok, err := Gateway(sim, "eth1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.254", gw.String())

	_, ok, err = Gateway(sim, "eth2")
	require.NoError(t, err)
	assert.False(t, ok)

	routes, err := Routes(sim)
	require.NoError(t, err)
	require.Len(t, routes, 3)
	assert.Equal(t, "192.168.2.0/24", routes[0].Destination.String())
	assert.False(t, routes[0].HasGateway())
	assert.Equal(t, "10.8.0.0/16", routes[2].Destination.String())
}

func TestNoDefault(t *testing.T) {
	sim := kernel.NewSim()
	_, ok, err := Default(sim)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("Iface\tDestination\neth0\t00000000\n"))
	assert.Equal(t, errors.KindDecoding, errors.GetKind(err))

	_, err = Parse([]byte("header\neth0\tZZ\t00000000\t0003\t0\t0\t0\t00000000\t0\t0\t0\n"))
	assert.Equal(t, errors.KindDecoding, errors.GetKind(err))
}
