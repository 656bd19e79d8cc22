// Package config loads the bench configuration: transport backends, the
// settle delay, named instruments and user defined driver profiles.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of bench.yaml.
type Config struct {
	Log         LogConfig          `yaml:"log"`
	Transport   TransportConfig    `yaml:"transport"`
	Instruments []InstrumentConfig `yaml:"instruments"`
	Profiles    []ProfileConfig    `yaml:"profiles"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type TransportConfig struct {
	SettleDelay time.Duration  `yaml:"settle_delay"`
	Prologix    PrologixConfig `yaml:"prologix"`
	Serial      SerialConfig   `yaml:"serial"`
	USB         USBConfig      `yaml:"usb"`
}

type PrologixConfig struct {
	Port      string `yaml:"port"`
	Addresses []int  `yaml:"addresses"`
}

type SerialConfig struct {
	DevicePattern string        `yaml:"device_pattern"`
	BaudRate      int           `yaml:"baud_rate"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
}

type USBConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// InstrumentConfig names an instrument so commands can refer to it by name.
type InstrumentConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	Profile string `yaml:"profile"`
	Channel int    `yaml:"channel"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Transport: TransportConfig{
			SettleDelay: 100 * time.Millisecond,
			Serial: SerialConfig{
				DevicePattern: "/dev/ttyUSB%d",
				BaudRate:      9600,
				ReadTimeout:   2 * time.Second,
			},
			USB: USBConfig{
				Enabled: true,
				Timeout: 5 * time.Second,
			},
		},
	}
}

// DefaultPath returns the platform config location of bench.yaml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("APPDATA"); dir != "" {
		// Windows: %APPDATA%\OpenTraceBench
		return filepath.Join(dir, "OpenTraceBench", "bench.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "opentracebench", "bench.yaml"), nil
}

// Load reads path over the defaults. A missing file yields Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks cross references and fills zero values with defaults.
func (c *Config) Validate() error {
	def := Default()
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Transport.SettleDelay < 0 {
		return fmt.Errorf("transport.settle_delay must not be negative")
	}
	if c.Transport.Serial.DevicePattern == "" {
		c.Transport.Serial.DevicePattern = def.Transport.Serial.DevicePattern
	}
	if c.Transport.Serial.BaudRate <= 0 {
		c.Transport.Serial.BaudRate = def.Transport.Serial.BaudRate
	}
	for _, n := range c.Transport.Prologix.Addresses {
		if n < 0 || n > 30 {
			return fmt.Errorf("transport.prologix.addresses: %d is not a GPIB primary address", n)
		}
	}

	profiles := make(map[string]bool, len(c.Profiles))
	for i, p := range c.Profiles {
		if p.Name == "" {
			return fmt.Errorf("profiles[%d]: name is required", i)
		}
		if profiles[p.Name] {
			return fmt.Errorf("profiles[%d]: duplicate name %q", i, p.Name)
		}
		profiles[p.Name] = true
	}

	names := make(map[string]bool, len(c.Instruments))
	for i, inst := range c.Instruments {
		switch {
		case inst.Name == "":
			return fmt.Errorf("instruments[%d]: name is required", i)
		case inst.Address == "":
			return fmt.Errorf("instruments[%d] %q: address is required", i, inst.Name)
		case inst.Profile == "":
			return fmt.Errorf("instruments[%d] %q: profile is required", i, inst.Name)
		case names[inst.Name]:
			return fmt.Errorf("instruments[%d]: duplicate name %q", i, inst.Name)
		}
		names[inst.Name] = true
	}
	return nil
}

// Instrument returns the instrument configured under name.
func (c *Config) Instrument(name string) (InstrumentConfig, bool) {
	for _, inst := range c.Instruments {
		if inst.Name == name {
			return inst, true
		}
	}
	return InstrumentConfig{}, false
}
