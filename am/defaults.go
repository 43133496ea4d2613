package am

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides: VVBE_GRAPH_FORMAT=yaml
	EnvPrefix = "VVBE"

	// ConfigFileName is the name of every layered config file
	ConfigFileName = "am.toml"

	// SystemConfigPath is the lowest-precedence config file
	SystemConfigPath = "/etc/verseblueprint/am.toml"

	// UserDirName holds the user config and default data files under $HOME
	UserDirName = ".verseblueprint"

	DefaultDirPermissions = 0750
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("digest.class_suffixes", []string{"_component", "_device"})
	v.SetDefault("digest.search_paths", []string{})
	v.SetDefault("digest.cache_dir", filepath.Join(UserDir(), "digests"))

	v.SetDefault("generator.imports", []string{})
	v.SetDefault("generator.strict", false)

	v.SetDefault("graph.default_name", "NewDevice")
	v.SetDefault("graph.format", "json")

	v.SetDefault("catalog.path", filepath.Join(UserDir(), "catalog.db"))

	v.SetDefault("watch.debounce_ms", 300)
	v.SetDefault("watch.max_per_second", 4.0)
	v.SetDefault("watch.burst", 4)

	v.SetDefault("lsp.addr", "")

	v.SetDefault("mcp.enable_catalog", true)
}

// UserDir is ~/.verseblueprint, or a relative .verseblueprint when the home
// directory is unknown.
func UserDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return UserDirName
	}
	return filepath.Join(home, UserDirName)
}

// Default returns the configuration built from defaults alone.
func Default() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	return LoadWithViper(v)
}
