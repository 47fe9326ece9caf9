// Package brand holds the product identity. It is read from brand.json at
// compile time so that scripts and packaging can share the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all branding information
type Brand struct {
	Name             string `json:"name"`
	LowerName        string `json:"lowerName"`
	Vendor           string `json:"vendor"`
	Repository       string `json:"repository"`
	Description      string `json:"description"`
	ConfigEnvPrefix  string `json:"configEnvPrefix"`
	DefaultConfigDir string `json:"defaultConfigDir"`
	BinaryName       string `json:"binaryName"`
	ConfigFileName   string `json:"configFileName"`
	License          string `json:"license"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	LowerName = b.LowerName
	Description = b.Description
	ConfigEnvPrefix = b.ConfigEnvPrefix
	DefaultConfigDir = b.DefaultConfigDir
	BinaryName = b.BinaryName
	ConfigFileName = b.ConfigFileName
}

var (
	Name             string
	LowerName        string
	Description      string
	ConfigEnvPrefix  string
	DefaultConfigDir string
	BinaryName       string
	ConfigFileName   string

	// Version is set at build time via -ldflags
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Get returns the full Brand struct
func Get() Brand {
	return b
}

// Env returns the value of the branded environment variable IFCTL_<suffix>.
func Env(suffix string) string {
	return os.Getenv(ConfigEnvPrefix + "_" + suffix)
}

// GetConfigDir returns the config directory, checking env vars first.
// Priority: IFCTL_CONFIG_DIR > IFCTL_PREFIX/etc > DefaultConfigDir
func GetConfigDir() string {
	if dir := Env("CONFIG_DIR"); dir != "" {
		return dir
	}
	if prefix := Env("PREFIX"); prefix != "" {
		return filepath.Join(prefix, "etc")
	}
	return DefaultConfigDir
}

// ConfigPath returns the host config file path.
// Priority: IFCTL_CONFIG > GetConfigDir()/ConfigFileName
func ConfigPath() string {
	if p := Env("CONFIG"); p != "" {
		return p
	}
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// VersionString describes the build.
func VersionString() string {
	return Name + " " + Version + " (" + GitCommit + ", built " + BuildTime + ")"
}
