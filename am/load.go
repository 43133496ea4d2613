package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/verseblueprint/errors"
)

var (
	mu            sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper
)

// Load reads the layered configuration once and caches it.
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	config, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}
	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads defaults plus one config file, ignoring the layered
// files and the environment.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("config file %s", configPath)
		}
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return LoadWithViper(v)
}

// Reset clears the cached configuration
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
	ConfigSources = make(map[string]SourceInfo)
}

func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// ConfigPaths lists the config files in precedence order (lowest first).
// The project file is the first am.toml found walking up from the working
// directory.
func ConfigPaths() []LayeredPath {
	paths := []LayeredPath{
		{Source: SourceSystem, Path: SystemConfigPath},
		{Source: SourceUser, Path: filepath.Join(UserDir(), ConfigFileName)},
	}
	if project := findProjectConfig(); project != "" {
		paths = append(paths, LayeredPath{Source: SourceProject, Path: project})
	}
	return paths
}

// LayeredPath is one config file in the cascade
type LayeredPath struct {
	Source ConfigSource `json:"source"`
	Path   string       `json:"path"`
}

func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// mergeConfigFiles merges every existing config file into v, recording which
// file supplied each key. Environment variables still take precedence.
func mergeConfigFiles(v *viper.Viper) {
	ConfigSources = make(map[string]SourceInfo)

	seen := make(map[string]bool)
	for _, layer := range ConfigPaths() {
		if seen[layer.Path] {
			continue
		}
		seen[layer.Path] = true

		if _, err := os.Stat(layer.Path); err != nil {
			continue
		}

		fileViper := viper.New()
		fileViper.SetConfigFile(layer.Path)
		fileViper.SetConfigType("toml")
		if err := fileViper.ReadInConfig(); err != nil {
			continue
		}

		if err := v.MergeConfigMap(fileViper.AllSettings()); err != nil {
			continue
		}
		for _, key := range fileViper.AllKeys() {
			ConfigSources[key] = SourceInfo{Source: layer.Source, Path: layer.Path}
		}
	}
}
