// Package config loads the board and runtime configuration of the camera
// configuration core.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pion/camconfig/pkg/prop"
	"gopkg.in/yaml.v3"
)

// DefaultWatchdogInterval is the resume watchdog retry delay.
const DefaultWatchdogInterval = 100 * time.Millisecond

// Config is the file format.
type Config struct {
	// Board selects the entry of Boards to use.
	Board string `yaml:"board"`
	// Boards maps a board name to its photo aspect ratio order.
	Boards map[string]BoardConfig `yaml:"boards"`
	Screen ScreenConfig           `yaml:"screen"`
	// WatchdogInterval overrides DefaultWatchdogInterval.
	WatchdogInterval time.Duration `yaml:"watchdog_interval"`
	Redis            RedisConfig   `yaml:"redis"`
}

// BoardConfig is the profile of one hardware family.
type BoardConfig struct {
	AspectOrder []string `yaml:"aspect_order"`
}

// ScreenConfig is the screen size preview sorting assumes.
type ScreenConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// RedisConfig locates the preference store. An empty Addr keeps
// preferences in memory.
type RedisConfig struct {
	Addr   string `yaml:"addr"`
	DB     int    `yaml:"db"`
	Prefix string `yaml:"prefix"`
}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes and validates a YAML document.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Board != "" {
		if _, ok := c.Boards[c.Board]; !ok {
			return fmt.Errorf("config: unknown board %q", c.Board)
		}
	}
	for name, b := range c.Boards {
		for _, a := range b.AspectOrder {
			if _, err := prop.ParseAspectClass(a); err != nil {
				return fmt.Errorf("config: board %q: %w", name, err)
			}
		}
	}
	if c.Screen.Width < 0 || c.Screen.Height < 0 {
		return fmt.Errorf("config: negative screen size %dx%d", c.Screen.Width, c.Screen.Height)
	}
	if c.WatchdogInterval < 0 {
		return fmt.Errorf("config: negative watchdog interval %v", c.WatchdogInterval)
	}
	return nil
}

// AspectOrder returns the photo aspect ratio order of the selected board,
// or nil when no board is selected.
func (c *Config) AspectOrder() []prop.AspectClass {
	b, ok := c.Boards[c.Board]
	if !ok {
		return nil
	}
	order := make([]prop.AspectClass, 0, len(b.AspectOrder))
	for _, a := range b.AspectOrder {
		order = append(order, prop.AspectClass(a))
	}
	return order
}

// ScreenSize returns the configured screen size.
func (c *Config) ScreenSize() prop.Resolution {
	return prop.Resolution{Width: c.Screen.Width, Height: c.Screen.Height}
}

// Watchdog returns the watchdog interval, defaulted.
func (c *Config) Watchdog() time.Duration {
	if c.WatchdogInterval == 0 {
		return DefaultWatchdogInterval
	}
	return c.WatchdogInterval
}
