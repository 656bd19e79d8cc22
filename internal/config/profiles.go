package config

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
)

// ProfileConfig defines a driver profile in YAML. Which fields apply
// depends on Kind.
type ProfileConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Kind        string `yaml:"kind"`

	Output         string `yaml:"output"`
	DCVoltage      string `yaml:"dc_voltage"`
	DCCurrent      string `yaml:"dc_current"`
	ACVoltage      string `yaml:"ac_voltage"`
	ACCurrent      string `yaml:"ac_current"`
	Resistance2W   string `yaml:"resistance_2w"`
	Resistance4W   string `yaml:"resistance_4w"`
	Resistance     string `yaml:"resistance"`
	PowerRange     string `yaml:"power_range"`
	LowRangeMarker string `yaml:"low_range_marker"`

	ChannelSelector string `yaml:"channel_selector"`
	Addressing      string `yaml:"addressing"`

	// Readback is the internal multimeter of sources and loads.
	Readback *ReadbackConfig `yaml:"readback"`
}

type ReadbackConfig struct {
	DCVoltage string `yaml:"dc_voltage"`
	DCCurrent string `yaml:"dc_current"`
}

// Descriptor builds the driver descriptor described by p.
func (p ProfileConfig) Descriptor() (driver.Descriptor, error) {
	kind, err := driver.ParseKind(p.Kind)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", p.Name, err)
	}

	var desc driver.Descriptor
	switch kind {
	case driver.KindMultimeter:
		desc = driver.MultimeterDriver{
			DCVoltage:    p.DCVoltage,
			DCCurrent:    p.DCCurrent,
			ACVoltage:    p.ACVoltage,
			ACCurrent:    p.ACCurrent,
			Resistance2W: p.Resistance2W,
			Resistance4W: p.Resistance4W,
		}
	case driver.KindPowerSupply:
		desc = p.powerSupply()
	case driver.KindMultiChannelPowerSupply:
		addressing, err := driver.AddressingFor(driver.AddressingScheme(p.Addressing))
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
		desc = driver.MultiChannelPowerSupply{
			PowerSupplyDriver: p.powerSupply(),
			ChannelSelector:   p.ChannelSelector,
			Addressing:        addressing,
		}
	case driver.KindDynamicLoad:
		desc = driver.DynamicLoad{
			Output:     p.Output,
			DCVoltage:  p.DCVoltage,
			DCCurrent:  p.DCCurrent,
			Resistance: p.Resistance,
			Readback:   p.readback(),
		}
	}

	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", p.Name, err)
	}
	return desc, nil
}

func (p ProfileConfig) powerSupply() driver.PowerSupplyDriver {
	return driver.PowerSupplyDriver{
		Output:         p.Output,
		DCVoltage:      p.DCVoltage,
		DCCurrent:      p.DCCurrent,
		Readback:       p.readback(),
		PowerRange:     p.PowerRange,
		LowRangeMarker: p.LowRangeMarker,
	}
}

// readback defaults to the standard SCPI measurement queries.
func (p ProfileConfig) readback() driver.MultimeterDriver {
	if p.Readback == nil {
		return driver.StandardMultimeter()
	}
	return driver.MultimeterDriver{
		DCVoltage: p.Readback.DCVoltage,
		DCCurrent: p.Readback.DCCurrent,
	}
}

// RegisterProfiles adds every configured profile to the driver registry.
func (c *Config) RegisterProfiles() error {
	for _, p := range c.Profiles {
		desc, err := p.Descriptor()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if err := driver.Register(driver.Profile{Name: p.Name, Description: p.Description, Descriptor: desc}); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}
