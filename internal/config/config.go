// Package config loads the map configuration: which GeoJSON sources exist,
// which one the viewport prefers, and how the viewport is fitted.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/akshaydinakar/wb-builder-exercise/internal/viewport"
)

// Config is the map configuration file.
type Config struct {
	// Sources maps a source name to a reference: a file name under the
	// sources directory or an http(s) URL.
	Sources map[string]string `yaml:"sources" json:"sources"`
	// Preference lists source names in the order their extents are tried.
	Preference []string       `yaml:"preference" json:"preference"`
	Viewport   ViewportConfig `yaml:"viewport" json:"viewport"`
	Fetch      FetchConfig    `yaml:"fetch" json:"fetch"`
}

// ViewportConfig controls the fitted camera.
type ViewportConfig struct {
	Width         int           `yaml:"width" json:"width"`
	Height        int           `yaml:"height" json:"height"`
	Padding       int           `yaml:"padding" json:"padding"`
	MinZoom       float64       `yaml:"minZoom" json:"minZoom"`
	MaxZoom       float64       `yaml:"maxZoom" json:"maxZoom"`
	Duration      time.Duration `yaml:"duration" json:"duration"`
	DefaultCenter [2]float64    `yaml:"defaultCenter" json:"defaultCenter"`
	DefaultZoom   float64       `yaml:"defaultZoom" json:"defaultZoom"`
}

// FetchConfig controls how source documents are fetched.
type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	Concurrency int           `yaml:"concurrency" json:"concurrency"`
}

// Default returns the configuration used when no file is present: a
// regional boundary preferred over point assets, then line features.
func Default() *Config {
	return &Config{
		Sources: map[string]string{
			"boundary": "boundary.geojson",
			"assets":   "assets.geojson",
			"lines":    "lines.geojson",
		},
		Preference: []string{"boundary", "assets", "lines"},
		Viewport: ViewportConfig{
			Width:         1280,
			Height:        800,
			Padding:       40,
			MinZoom:       0,
			MaxZoom:       16,
			Duration:      800 * time.Millisecond,
			DefaultCenter: [2]float64{-122.27, 37.80},
			DefaultZoom:   9,
		},
		Fetch: FetchConfig{
			Timeout:     10 * time.Second,
			Concurrency: 4,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path or a missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	defaults := *cfg
	// Sources replace the defaults wholesale instead of merging into them.
	cfg.Sources, cfg.Preference = nil, nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Sources == nil {
		cfg.Sources = defaults.Sources
		if cfg.Preference == nil {
			cfg.Preference = defaults.Preference
		}
	}
	if len(cfg.Preference) == 0 {
		cfg.Preference = sortedNames(cfg.Sources)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []string

	seen := make(map[string]bool, len(c.Preference))
	for _, name := range c.Preference {
		if _, ok := c.Sources[name]; !ok {
			errs = append(errs, fmt.Sprintf("preference %q is not a configured source", name))
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("preference %q is listed twice", name))
		}
		seen[name] = true
	}
	for name, ref := range c.Sources {
		if strings.TrimSpace(ref) == "" {
			errs = append(errs, fmt.Sprintf("source %q has an empty reference", name))
		}
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		errs = append(errs, fmt.Sprintf("viewport size must be positive, got %dx%d", c.Viewport.Width, c.Viewport.Height))
	}
	if c.Viewport.Padding < 0 {
		errs = append(errs, "viewport.padding must not be negative")
	}
	if c.Viewport.MinZoom < 0 || c.Viewport.MaxZoom <= 0 || c.Viewport.MinZoom > c.Viewport.MaxZoom {
		errs = append(errs, fmt.Sprintf("viewport zoom range %g-%g is invalid", c.Viewport.MinZoom, c.Viewport.MaxZoom))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, "fetch.timeout must be positive")
	}
	if c.Fetch.Concurrency <= 0 {
		errs = append(errs, "fetch.concurrency must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Size returns the configured viewport size.
func (v ViewportConfig) Size() viewport.Size {
	return viewport.Size{Width: v.Width, Height: v.Height}
}

// Options returns the fit options.
func (v ViewportConfig) Options() viewport.Options {
	return viewport.Options{
		Padding:       v.Padding,
		MinZoom:       v.MinZoom,
		MaxZoom:       v.MaxZoom,
		Duration:      v.Duration,
		DefaultCenter: v.DefaultCenter,
		DefaultZoom:   v.DefaultZoom,
	}
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
