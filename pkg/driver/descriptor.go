// Package driver describes instrument families as immutable command template
// sets. A descriptor never performs I/O; the instrument package binds one to a
// transport and turns logical property access into literal commands.
package driver

import (
	"errors"
	"fmt"
)

// Kind identifies the descriptor family.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindMultimeter
	KindPowerSupply
	KindMultiChannelPowerSupply
	KindDynamicLoad
)

var kindNames = map[Kind]string{
	KindUnknown:                 "unknown",
	KindMultimeter:              "multimeter",
	KindPowerSupply:             "power-supply",
	KindMultiChannelPowerSupply: "multi-channel-power-supply",
	KindDynamicLoad:             "dynamic-load",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind maps a kind name (as printed by String) back to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name && k != KindUnknown {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("driver: unknown kind %q", name)
}

// Descriptor is implemented by every driver family.
type Descriptor interface {
	Kind() Kind
	Capabilities() Capability
	Validate() error
}

// ErrMissingTemplate is returned by Validate when a required template is empty.
var ErrMissingTemplate = errors.New("driver: missing required template")

func missing(kind Kind, field string) error {
	return fmt.Errorf("%w: %s.%s", ErrMissingTemplate, kind, field)
}

// MultimeterDriver holds measurement queries. Empty fields mean the
// instrument does not support that measurement.
type MultimeterDriver struct {
	DCVoltage    string
	DCCurrent    string
	ACVoltage    string
	ACCurrent    string
	Resistance2W string
	Resistance4W string
}

func (MultimeterDriver) Kind() Kind { return KindMultimeter }

func (d MultimeterDriver) Capabilities() Capability {
	caps := CapDCVoltage | CapDCCurrent
	if d.ACVoltage != "" {
		caps |= CapACVoltage
	}
	if d.ACCurrent != "" {
		caps |= CapACCurrent
	}
	if d.Resistance2W != "" {
		caps |= CapResistance2W
	}
	if d.Resistance4W != "" {
		caps |= CapResistance4W
	}
	return caps
}

func (d MultimeterDriver) Validate() error {
	if d.DCVoltage == "" {
		return missing(KindMultimeter, "DCVoltage")
	}
	if d.DCCurrent == "" {
		return missing(KindMultimeter, "DCCurrent")
	}
	return nil
}

// DefaultLowRangeMarker is matched against power range replies when a
// profile does not name its own marker. It is also what SetPowerRange writes
// for the low range.
const DefaultLowRangeMarker = "LOW"

// PowerSupplyDriver describes a single output supply. Readback is the
// internal multimeter used to read voltage and current, which many supplies
// expose through a different path than the setpoint command.
type PowerSupplyDriver struct {
	Output         string
	DCVoltage      string
	DCCurrent      string
	Readback       MultimeterDriver
	PowerRange     string
	LowRangeMarker string
}

func (PowerSupplyDriver) Kind() Kind { return KindPowerSupply }

func (d PowerSupplyDriver) Capabilities() Capability {
	caps := CapOutput | CapDCVoltage | CapDCCurrent | CapSource
	if d.PowerRange != "" {
		caps |= CapPowerRange
	}
	return caps
}

func (d PowerSupplyDriver) Validate() error {
	return d.validate(KindPowerSupply)
}

func (d PowerSupplyDriver) validate(kind Kind) error {
	switch {
	case d.Output == "":
		return missing(kind, "Output")
	case d.DCVoltage == "":
		return missing(kind, "DCVoltage")
	case d.DCCurrent == "":
		return missing(kind, "DCCurrent")
	}
	if err := d.Readback.Validate(); err != nil {
		return fmt.Errorf("%s readback: %w", kind, err)
	}
	return nil
}

// RangeMarker returns the substring that identifies the low range in a
// power range reply.
func (d PowerSupplyDriver) RangeMarker() string {
	if d.LowRangeMarker == "" {
		return DefaultLowRangeMarker
	}
	return d.LowRangeMarker
}

// MultiChannelPowerSupply is a supply whose commands address one of several
// outputs. Without a ChannelSelector the active channel only lives on the
// client and reaches the instrument through Addressing.
type MultiChannelPowerSupply struct {
	PowerSupplyDriver
	ChannelSelector string
	Addressing      Addressing
}

func (MultiChannelPowerSupply) Kind() Kind { return KindMultiChannelPowerSupply }

func (d MultiChannelPowerSupply) Capabilities() Capability {
	caps := d.PowerSupplyDriver.Capabilities() | CapChannels
	if d.ChannelSelector != "" {
		caps |= CapChannelSelector
	}
	return caps
}

func (d MultiChannelPowerSupply) Validate() error {
	return d.PowerSupplyDriver.validate(KindMultiChannelPowerSupply)
}

// DynamicLoad describes an electronic load. Its setpoint templates may carry
// a mode switch ahead of the value command.
type DynamicLoad struct {
	Output     string
	DCVoltage  string
	DCCurrent  string
	Resistance string
	Readback   MultimeterDriver
}

func (DynamicLoad) Kind() Kind { return KindDynamicLoad }

func (d DynamicLoad) Capabilities() Capability {
	return CapOutput | CapDCVoltage | CapDCCurrent | CapSource | CapLoadResistance
}

func (d DynamicLoad) Validate() error {
	switch {
	case d.Output == "":
		return missing(KindDynamicLoad, "Output")
	case d.DCVoltage == "":
		return missing(KindDynamicLoad, "DCVoltage")
	case d.DCCurrent == "":
		return missing(KindDynamicLoad, "DCCurrent")
	case d.Resistance == "":
		return missing(KindDynamicLoad, "Resistance")
	}
	if err := d.Readback.Validate(); err != nil {
		return fmt.Errorf("%s readback: %w", KindDynamicLoad, err)
	}
	return nil
}
