package am

import (
	"strings"

	"github.com/teranos/verseblueprint/errors"
)

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	for _, suffix := range c.Digest.ClassSuffixes {
		if strings.TrimSpace(suffix) == "" {
			return errors.New("digest.class_suffixes cannot contain empty suffixes")
		}
	}

	switch c.Graph.Format {
	case "json", "yaml", "toml":
	default:
		return errors.Newf("graph.format must be json, yaml or toml, got %q", c.Graph.Format)
	}

	if strings.TrimSpace(c.Graph.DefaultName) == "" {
		return errors.New("graph.default_name cannot be empty")
	}

	if c.Catalog.Path == "" {
		return errors.New("catalog.path cannot be empty")
	}

	// 0 = regenerate immediately
	if c.Watch.DebounceMS < 0 {
		return errors.Newf("watch.debounce_ms must be >= 0, got %d", c.Watch.DebounceMS)
	}
	// 0 = unlimited
	if c.Watch.MaxPerSecond < 0 {
		return errors.Newf("watch.max_per_second must be >= 0, got %f", c.Watch.MaxPerSecond)
	}
	if c.Watch.MaxPerSecond > 0 && c.Watch.Burst < 1 {
		return errors.Newf("watch.burst must be >= 1 when max_per_second is set, got %d", c.Watch.Burst)
	}

	return nil
}
