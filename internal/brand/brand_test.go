package brand

import (
	"path/filepath"
	"testing"
)

func TestGet(t *testing.T) {
	b := Get()
	if b.Name == "" {
		t.Error("Brand name should not be empty")
	}
	if Version == "" {
		t.Error("Global Version should be initialized (to dev default)")
	}
	if ConfigEnvPrefix != "IFCTL" {
		t.Errorf("Expected env prefix IFCTL, got %s", ConfigEnvPrefix)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv(ConfigEnvPrefix+"_CONFIG", "")
	t.Setenv(ConfigEnvPrefix+"_CONFIG_DIR", "")
	t.Setenv(ConfigEnvPrefix+"_PREFIX", "")

	if got, want := ConfigPath(), filepath.Join(DefaultConfigDir, ConfigFileName); got != want {
		t.Errorf("Expected default config path %s, got %s", want, got)
	}

	t.Setenv(ConfigEnvPrefix+"_PREFIX", "/opt/ifctl")
	if got, want := ConfigPath(), filepath.Join("/opt/ifctl", "etc", ConfigFileName); got != want {
		t.Errorf("Expected prefixed config path %s, got %s", want, got)
	}

	t.Setenv(ConfigEnvPrefix+"_CONFIG_DIR", "/tmp/conf")
	if got, want := ConfigPath(), filepath.Join("/tmp/conf", ConfigFileName); got != want {
		t.Errorf("Expected config dir override %s, got %s", want, got)
	}

	t.Setenv(ConfigEnvPrefix+"_CONFIG", "/srv/host.hcl")
	if got := ConfigPath(); got != "/srv/host.hcl" {
		t.Errorf("Expected explicit config path, got %s", got)
	}
}
