package driver

import "strings"

// Capability is a bit set of the logical properties a descriptor supports.
type Capability uint16

const (
	CapDCVoltage Capability = 1 << iota
	CapDCCurrent
	CapACVoltage
	CapACCurrent
	CapResistance2W
	CapResistance4W
	CapOutput
	CapSource // DC voltage/current setpoints
	CapPowerRange
	CapChannels
	CapChannelSelector
	CapLoadResistance
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapDCVoltage, "dc-voltage"},
	{CapDCCurrent, "dc-current"},
	{CapACVoltage, "ac-voltage"},
	{CapACCurrent, "ac-current"},
	{CapResistance2W, "resistance-2w"},
	{CapResistance4W, "resistance-4w"},
	{CapOutput, "output"},
	{CapSource, "source"},
	{CapPowerRange, "power-range"},
	{CapChannels, "channels"},
	{CapChannelSelector, "channel-selector"},
	{CapLoadResistance, "load-resistance"},
}

// Has reports whether every bit in want is set.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

func (c Capability) String() string {
	var names []string
	for _, entry := range capabilityNames {
		if c.Has(entry.cap) {
			names = append(names, entry.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}
