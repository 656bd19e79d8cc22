package instrument

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/codec"
)

// Unknown fills Device fields that could not be identified.
const Unknown = "Unknown"

// Device is the identification record of one discovered instrument.
type Device struct {
	Brand    string
	Model    string
	Serial   string
	Firmware string
	Address  string
}

// PlaceholderDevice returns a record carrying only the address.
func PlaceholderDevice(address string) Device {
	return Device{
		Brand:    Unknown,
		Model:    Unknown,
		Serial:   Unknown,
		Firmware: Unknown,
		Address:  address,
	}
}

// ParseDevice splits an identification reply ("brand,model,serial,firmware")
// into a Device. Missing trailing fields stay Unknown; more than four fields
// is an error.
func ParseDevice(reply, address string) (Device, error) {
	fields, err := codec.SplitIdentification(reply)
	if err != nil {
		return PlaceholderDevice(address), fmt.Errorf("%w: %v", ErrDiscoveryParse, err)
	}
	if len(fields) > 4 {
		return PlaceholderDevice(address), fmt.Errorf("%w: %d fields in %q", ErrDiscoveryParse, len(fields), reply)
	}

	dev := PlaceholderDevice(address)
	targets := []*string{&dev.Brand, &dev.Model, &dev.Serial, &dev.Firmware}
	for i, field := range fields {
		*targets[i] = field
	}
	return dev, nil
}

// Known reports whether the record came from a parsed identification reply.
func (d Device) Known() bool {
	return d.Brand != Unknown || d.Model != Unknown
}

func (d Device) String() string {
	return fmt.Sprintf("%s %s (serial %s, firmware %s) at %s", d.Brand, d.Model, d.Serial, d.Firmware, d.Address)
}
