package driver

import (
	"fmt"
	"strconv"
	"strings"
)

// QueryFunc turns a channel-agnostic template into a query for one channel.
type QueryFunc func(command string, channel int) string

// WriteFunc turns a template and a rendered value into a write for one
// channel.
type WriteFunc func(command, value string, channel int) string

// AddressingScheme names a channel addressing strategy so that profiles
// loaded from configuration can pick one.
type AddressingScheme string

const (
	SchemeDefault         AddressingScheme = "default"
	SchemeChannelList     AddressingScheme = "channel-list"
	SchemePlaceholder     AddressingScheme = "placeholder"
	SchemeSuffix          AddressingScheme = "suffix"
	SchemeSecondarySuffix AddressingScheme = "secondary-suffix"
)

// ChannelPlaceholder is substituted with the channel number by
// PlaceholderAddressing.
const ChannelPlaceholder = "[n]"

// Addressing carries the two contextualization functions of a multi-channel
// profile. Nil functions fall back to DefaultQuery and DefaultWrite.
type Addressing struct {
	Scheme AddressingScheme
	Query  QueryFunc
	Write  WriteFunc
}

// ContextualizeQuery renders the query for command on channel.
func (a Addressing) ContextualizeQuery(command string, channel int) string {
	if a.Query == nil {
		return DefaultQuery(command, channel)
	}
	return a.Query(command, channel)
}

// ContextualizeWrite renders the write of value to command on channel.
func (a Addressing) ContextualizeWrite(command, value string, channel int) string {
	if a.Write == nil {
		return DefaultWrite(command, value, channel)
	}
	return a.Write(command, value, channel)
}

// ChannelSensitive reports whether the scheme encodes the channel id into
// commands at all.
func (a Addressing) ChannelSensitive() bool {
	return a.Scheme != "" && a.Scheme != SchemeDefault
}

// DefaultQuery appends the SCPI query marker and ignores the channel.
// Templates that already are queries are left alone.
func DefaultQuery(command string, _ int) string {
	return asQuery(command)
}

// DefaultWrite separates command and value with a space and ignores the
// channel.
func DefaultWrite(command, value string, _ int) string {
	return command + " " + value
}

// DefaultAddressing leaves channel selection to a selector command.
func DefaultAddressing() Addressing {
	return Addressing{Scheme: SchemeDefault, Query: DefaultQuery, Write: DefaultWrite}
}

// ChannelListAddressing appends an SCPI channel list, as used by HP/Agilent
// mainframes: "VOLT 5, (@2)" and "VOLT (@2)".
func ChannelListAddressing() Addressing {
	return Addressing{
		Scheme: SchemeChannelList,
		Query: func(command string, channel int) string {
			return fmt.Sprintf("%s (@%d)", command, channel)
		},
		Write: func(command, value string, channel int) string {
			return fmt.Sprintf("%s %s, (@%d)", command, value, channel)
		},
	}
}

// PlaceholderAddressing replaces every "[n]" in the template with the
// channel number: "SOURce[n]:VOLTage" becomes "SOURce2:VOLTage".
func PlaceholderAddressing() Addressing {
	return Addressing{
		Scheme: SchemePlaceholder,
		Query: func(command string, channel int) string {
			return asQuery(substituteChannel(command, channel))
		},
		Write: func(command, value string, channel int) string {
			return substituteChannel(command, channel) + " " + value
		},
	}
}

// SuffixAddressing appends the channel number to the mnemonic ("V1 5") and
// reads back the output value with "V1O?". Writes keep the mnemonic ahead of
// the channel number.
func SuffixAddressing() Addressing {
	return Addressing{
		Scheme: SchemeSuffix,
		Query: func(command string, channel int) string {
			return strings.ReplaceAll(command, "?", "") + strconv.Itoa(channel) + "O?"
		},
		Write: func(command, value string, channel int) string {
			return command + strconv.Itoa(channel) + " " + value
		},
	}
}

// SecondarySuffixAddressing addresses the primary output with the bare
// mnemonic and any further output with a numeric suffix ("VOLT2 5",
// "MEAS:VOLT2?"). Queries carry the suffix too, so readbacks of output 2
// read output 2 rather than the primary.
func SecondarySuffixAddressing() Addressing {
	return Addressing{
		Scheme: SchemeSecondarySuffix,
		Query: func(command string, channel int) string {
			return secondarySuffix(strings.TrimSuffix(command, "?"), channel) + "?"
		},
		Write: func(command, value string, channel int) string {
			return secondarySuffix(command, channel) + " " + value
		},
	}
}

// AddressingFor returns the strategy registered under scheme.
func AddressingFor(scheme AddressingScheme) (Addressing, error) {
	switch scheme {
	case "", SchemeDefault:
		return DefaultAddressing(), nil
	case SchemeChannelList:
		return ChannelListAddressing(), nil
	case SchemePlaceholder:
		return PlaceholderAddressing(), nil
	case SchemeSuffix:
		return SuffixAddressing(), nil
	case SchemeSecondarySuffix:
		return SecondarySuffixAddressing(), nil
	default:
		return Addressing{}, fmt.Errorf("driver: unknown addressing scheme %q", scheme)
	}
}

func asQuery(command string) string {
	if strings.HasSuffix(command, "?") {
		return command
	}
	return command + "?"
}

func substituteChannel(command string, channel int) string {
	return strings.ReplaceAll(command, ChannelPlaceholder, strconv.Itoa(channel))
}

func secondarySuffix(command string, channel int) string {
	if channel > 1 {
		return command + strconv.Itoa(channel)
	}
	return command
}
