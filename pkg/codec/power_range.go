package codec

import "strings"

// PowerRange is the output range of a supply with switchable ranges.
type PowerRange bool

const (
	PowerRangeLow  PowerRange = false
	PowerRangeHigh PowerRange = true
)

func (r PowerRange) String() string {
	if r == PowerRangeHigh {
		return "high"
	}
	return "low"
}

// Command renders the range argument written to the instrument.
func (r PowerRange) Command() string {
	return strings.ToUpper(r.String())
}

// DecodePowerRange classifies raw as low when it contains marker.
func DecodePowerRange(raw, marker string) PowerRange {
	if marker != "" && strings.Contains(raw, marker) {
		return PowerRangeLow
	}
	return PowerRangeHigh
}

// ParsePowerRange accepts "low"/"high" in any case, as typed by a user.
func ParsePowerRange(s string) (PowerRange, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PowerRangeLow, true
	case "high":
		return PowerRangeHigh, true
	}
	return PowerRangeLow, false
}
