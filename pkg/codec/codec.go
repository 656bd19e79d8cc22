// Package codec converts instrument replies into typed values and renders
// typed values into command arguments.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrEmptyReply is returned when a reply carries nothing but whitespace.
var ErrEmptyReply = errors.New("codec: empty reply")

// Unit suffixes some instruments append to numeric replies.
const (
	UnitVolt   = "V"
	UnitAmpere = "A"
	UnitOhm    = "OHM"
)

// Clean strips the line terminators and surrounding blanks every reply
// carries.
func Clean(raw string) string {
	return strings.TrimSpace(strings.Trim(raw, "\r\n"))
}

// DecodeBool parses the leading integer of raw; any nonzero value is true.
func DecodeBool(raw string) (bool, error) {
	s := Clean(raw)
	end := 0
	for end < len(s) {
		c := s[end]
		if !(c >= '0' && c <= '9') && !(end == 0 && (c == '-' || c == '+')) {
			break
		}
		end++
	}
	if end == 0 {
		return false, fmt.Errorf("codec: no integer in %q", s)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return false, fmt.Errorf("codec: parse bool %q: %w", s, err)
	}
	return n != 0, nil
}

// EncodeBool renders v as the SCPI integers 1 and 0.
func EncodeBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// DecodeInt parses raw as a decimal integer.
func DecodeInt(raw string) (int, error) {
	s := Clean(raw)
	if s == "" {
		return 0, ErrEmptyReply
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "+"))
	if err != nil {
		return 0, fmt.Errorf("codec: parse int %q: %w", s, err)
	}
	return n, nil
}

// DecodeDecimal parses raw as an exact decimal. Any of the given unit
// suffixes is removed first, ignoring case, so "5.000V" and "5.000v" both
// decode to 5.
func DecodeDecimal(raw string, units ...string) (decimal.Decimal, error) {
	s := Clean(raw)
	upper := strings.ToUpper(s)
	for _, unit := range units {
		if unit == "" {
			continue
		}
		if strings.HasSuffix(upper, strings.ToUpper(unit)) {
			s = strings.TrimSpace(s[:len(s)-len(unit)])
			break
		}
	}
	if s == "" {
		return decimal.Zero, ErrEmptyReply
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("codec: parse decimal %q: %w", s, err)
	}
	return d, nil
}

// EncodeDecimal renders v in its natural decimal form without a unit.
func EncodeDecimal(v decimal.Decimal) string {
	return v.String()
}

// SplitIdentification splits a *IDN? style reply into its comma separated
// fields after removing newlines.
func SplitIdentification(raw string) ([]string, error) {
	s := strings.NewReplacer("\r", "", "\n", "").Replace(raw)
	if strings.TrimSpace(s) == "" {
		return nil, ErrEmptyReply
	}
	fields := strings.Split(s, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

// CountChannels counts the ':' delimiters of a channel directory reply.
func CountChannels(raw string) int {
	return strings.Count(raw, ":")
}

// DecodeChannelNames parses a channel directory reply of the form
// "GPIB0:PS1;GPIB1:PS2" into the names after the first ':' of each entry.
func DecodeChannelNames(raw string) ([]string, error) {
	s := strings.ReplaceAll(Clean(raw), "\n", "")
	if s == "" {
		return nil, ErrEmptyReply
	}
	var names []string
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		_, name, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("codec: channel entry %q has no ':'", entry)
		}
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[:i]
		}
		names = append(names, name)
	}
	return names, nil
}
