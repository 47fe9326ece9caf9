package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/ifctl/internal/brand"
	"grimm.is/ifctl/internal/errors"
)

const hostFile = `
bridge "br0" {
  members       = ["eth1", "tap0"]
  stp           = true
  forward_delay = 10
  up            = true
}

tap "tap0" {
  up = true
}

vlan "eth1" {
  id = 100
}

interface "eth0" {
  up      = true
  address = "10.0.0.2/24"
  mac     = "02:00:00:00:00:01"
}
`

func TestParse(t *testing.T) {
	cfg, err := Parse("host.hcl", []byte(hostFile))
	require.NoError(t, err)

	require.Len(t, cfg.Bridges, 1)
	br := cfg.Bridges[0]
	assert.Equal(t, "br0", br.Name)
	assert.Equal(t, []string{"eth1", "tap0"}, br.Members)
	require.NotNil(t, br.STP)
	assert.True(t, *br.STP)
	require.NotNil(t, br.ForwardDelay)
	assert.Equal(t, 10, *br.ForwardDelay)

	require.Len(t, cfg.Taps, 1)
	assert.Nil(t, cfg.Taps[0].Persist)

	require.Len(t, cfg.VLANs, 1)
	assert.Equal(t, "eth1.100", cfg.VLANs[0].Name())
	assert.Nil(t, cfg.VLANs[0].Up)

	require.Len(t, cfg.Interfaces, 1)
	assert.Equal(t, "10.0.0.2/24", cfg.Interfaces[0].Address)
}

func TestParseWithoutSuffix(t *testing.T) {
	cfg, err := Parse("host.conf", []byte(`tap "tap7" {}`))
	require.NoError(t, err)
	require.Len(t, cfg.Taps, 1)
	assert.Equal(t, "tap7", cfg.Taps[0].Name)
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse("host.hcl", []byte(`bridge "br0" {`))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestValidate(t *testing.T) {
	yes, no := true, false
	negative := -1

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "long name",
			cfg:  Config{Taps: []Tap{{Name: "a-very-long-tap-name"}}},
			want: "exceeds 15 bytes",
		},
		{
			name: "duplicate device",
			cfg:  Config{Bridges: []Bridge{{Name: "x0"}}, Taps: []Tap{{Name: "x0"}}},
			want: `tap "x0": already declared as bridge`,
		},
		{
			name: "member of two bridges",
			cfg: Config{Bridges: []Bridge{
				{Name: "br0", Members: []string{"eth0"}},
				{Name: "br1", Members: []string{"eth0"}},
			}},
			want: `member "eth0" already belongs to bridge "br0"`,
		},
		{
			name: "self member",
			cfg:  Config{Bridges: []Bridge{{Name: "br0", Members: []string{"br0"}}}},
			want: "member of itself",
		},
		{
			name: "negative forward delay",
			cfg:  Config{Bridges: []Bridge{{Name: "br0", ForwardDelay: &negative}}},
			want: "forward_delay must not be negative",
		},
		{
			name: "transient tap",
			cfg:  Config{Taps: []Tap{{Name: "tap0", Persist: &no}}},
			want: "must persist",
		},
		{
			name: "vlan id",
			cfg:  Config{VLANs: []VLAN{{Parent: "eth0", ID: 4095}}},
			want: "out of range 1-4094",
		},
		{
			name: "ipv6 address",
			cfg:  Config{Interfaces: []Interface{{Name: "eth0", Address: "fd00::1/64"}}},
			want: "not IPv4",
		},
		{
			name: "bad mac",
			cfg:  Config{Interfaces: []Interface{{Name: "eth0", MAC: "02:00:00"}}},
			want: "invalid mac",
		},
		{
			name: "bridge address",
			cfg: Config{
				Bridges:    []Bridge{{Name: "br0"}},
				Interfaces: []Interface{{Name: "br0", Address: "10.0.0.1/24"}},
			},
			want: "bridges carry no address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindValidation))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("valid", func(t *testing.T) {
		cfg := Config{
			Bridges:    []Bridge{{Name: "br0", Members: []string{"eth0"}, STP: &yes}},
			Taps:       []Tap{{Name: "tap0", Persist: &yes}},
			VLANs:      []VLAN{{Parent: "eth0", ID: 10}},
			Interfaces: []Interface{{Name: "eth0.10", Address: "192.0.2.1/24", MAC: "02:AA:BB:CC:DD:EE"}},
		}
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Config{
		Taps:  []Tap{{Name: ""}},
		VLANs: []VLAN{{Parent: "eth0", ID: 0}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty device name")
	assert.Contains(t, err.Error(), "id 0 out of range")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "host.hcl")
	require.NoError(t, os.WriteFile(path, []byte(hostFile), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Bridges, 1)

	_, err = Load(filepath.Join(dir, "missing.hcl"))
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(brand.ConfigEnvPrefix+"_CONFIG", "/srv/ifctl/host.hcl")
	assert.Equal(t, "/srv/ifctl/host.hcl", DefaultPath())
}
