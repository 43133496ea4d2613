// Package am loads vvbe configuration ("I am") from layered TOML files and
// VVBE_* environment variables.
package am

// Config is the vvbe configuration
type Config struct {
	Digest    DigestConfig    `mapstructure:"digest" toml:"digest" json:"digest" yaml:"digest"`
	Generator GeneratorConfig `mapstructure:"generator" toml:"generator" json:"generator" yaml:"generator"`
	Graph     GraphConfig     `mapstructure:"graph" toml:"graph" json:"graph" yaml:"graph"`
	Catalog   CatalogConfig   `mapstructure:"catalog" toml:"catalog" json:"catalog" yaml:"catalog"`
	Watch     WatchConfig     `mapstructure:"watch" toml:"watch" json:"watch" yaml:"watch"`
	LSP       LSPConfig       `mapstructure:"lsp" toml:"lsp" json:"lsp" yaml:"lsp"`
	MCP       MCPConfig       `mapstructure:"mcp" toml:"mcp" json:"mcp" yaml:"mcp"`
}

// DigestConfig configures digest extraction and discovery
type DigestConfig struct {
	ClassSuffixes []string `mapstructure:"class_suffixes" toml:"class_suffixes" json:"class_suffixes" yaml:"class_suffixes"` // Accepted class name suffixes
	SearchPaths   []string `mapstructure:"search_paths" toml:"search_paths" json:"search_paths" yaml:"search_paths"`         // Directories scanned for *.digest.verse
	CacheDir      string   `mapstructure:"cache_dir" toml:"cache_dir" json:"cache_dir" yaml:"cache_dir"`                     // Destination of `vvbe digest fetch`
}

// GeneratorConfig configures Verse source generation
type GeneratorConfig struct {
	Imports []string `mapstructure:"imports" toml:"imports" json:"imports" yaml:"imports"` // Added to every generated file
	Strict  bool     `mapstructure:"strict" toml:"strict" json:"strict" yaml:"strict"`     // Refuse to export graphs with dangling references
}

// GraphConfig configures graph records
type GraphConfig struct {
	DefaultName string `mapstructure:"default_name" toml:"default_name" json:"default_name" yaml:"default_name"`
	Format      string `mapstructure:"format" toml:"format" json:"format" yaml:"format"` // json, yaml or toml for new records
}

// CatalogConfig configures the SQLite class catalog
type CatalogConfig struct {
	Path string `mapstructure:"path" toml:"path" json:"path" yaml:"path"`
}

// WatchConfig configures `vvbe watch`
type WatchConfig struct {
	DebounceMS   int     `mapstructure:"debounce_ms" toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
	MaxPerSecond float64 `mapstructure:"max_per_second" toml:"max_per_second" json:"max_per_second" yaml:"max_per_second"` // 0 = unlimited
	Burst        int     `mapstructure:"burst" toml:"burst" json:"burst" yaml:"burst"`
}

// LSPConfig configures the language server
type LSPConfig struct {
	Addr string `mapstructure:"addr" toml:"addr" json:"addr" yaml:"addr"` // WebSocket listen address; empty = stdio
}

// MCPConfig configures the MCP tool server
type MCPConfig struct {
	EnableCatalog bool `mapstructure:"enable_catalog" toml:"enable_catalog" json:"enable_catalog" yaml:"enable_catalog"`
}
