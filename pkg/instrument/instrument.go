// Package instrument binds a driver descriptor to a transport and exposes
// instrument-agnostic properties (voltage, current, output, range, channel).
//
// An Instrument is not safe for concurrent use: each property access issues
// one command and waits for its reply. Wrap it with Locked when several
// goroutines share a connection.
package instrument

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
)

// Transport is the synchronous request/response link to one instrument.
// Replies are returned verbatim, line terminator included.
type Transport interface {
	Write(command string) error
	Query(command string) (string, error)
}

// IEEE 488.2 common commands used regardless of the driver.
const (
	CommandReset            = "*RST"
	CommandIdentify         = "*IDN?"
	CommandChannelDirectory = "*RDT?"
)

// commands is the descriptor flattened at construction time. Empty fields
// are unsupported properties.
type commands struct {
	output         string
	setVoltage     string
	setCurrent     string
	readVoltage    string
	readCurrent    string
	acVoltage      string
	acCurrent      string
	resistance2W   string
	resistance4W   string
	powerRange     string
	lowMarker      string
	selector       string
	loadResistance string
}

// Instrument is the facade over one connection.
type Instrument struct {
	kind       driver.Kind
	caps       driver.Capability
	cmd        commands
	addressing *driver.Addressing

	transport Transport
	logger    *slog.Logger
	address   string

	channel int
}

// Option configures an Instrument.
type Option func(*Instrument)

// WithLogger traces every command and reply at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Instrument) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithAddress records the transport address, used by Identify.
func WithAddress(address string) Option {
	return func(in *Instrument) { in.address = address }
}

// WithChannel sets the initial client-side channel id. It sends nothing;
// drivers with a selector command need SetChannelID to switch the
// instrument.
func WithChannel(id int) Option {
	return func(in *Instrument) {
		if id >= 1 {
			in.channel = id
		}
	}
}

// New binds desc to t. The descriptor is validated and its capability set is
// fixed for the lifetime of the Instrument.
func New(desc driver.Descriptor, t Transport, opts ...Option) (*Instrument, error) {
	if desc == nil {
		return nil, fmt.Errorf("instrument: nil descriptor")
	}
	if t == nil {
		return nil, fmt.Errorf("instrument: nil transport")
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("instrument: %w", err)
	}

	in := &Instrument{
		kind:      desc.Kind(),
		caps:      desc.Capabilities(),
		transport: t,
		logger:    discardLogger(),
		channel:   1,
	}
	if err := in.bind(desc); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

func (in *Instrument) bind(desc driver.Descriptor) error {
	switch d := desc.(type) {
	case driver.MultimeterDriver:
		in.bindMultimeter(d)
	case *driver.MultimeterDriver:
		in.bindMultimeter(*d)
	case driver.PowerSupplyDriver:
		in.bindPowerSupply(d)
	case *driver.PowerSupplyDriver:
		in.bindPowerSupply(*d)
	case driver.MultiChannelPowerSupply:
		in.bindMultiChannel(d)
	case *driver.MultiChannelPowerSupply:
		in.bindMultiChannel(*d)
	case driver.DynamicLoad:
		in.bindLoad(d)
	case *driver.DynamicLoad:
		in.bindLoad(*d)
	default:
		return fmt.Errorf("instrument: unsupported descriptor %T", desc)
	}
	return nil
}

func (in *Instrument) bindMultimeter(d driver.MultimeterDriver) {
	in.cmd = commands{
		readVoltage:  d.DCVoltage,
		readCurrent:  d.DCCurrent,
		acVoltage:    d.ACVoltage,
		acCurrent:    d.ACCurrent,
		resistance2W: d.Resistance2W,
		resistance4W: d.Resistance4W,
	}
}

func (in *Instrument) bindPowerSupply(d driver.PowerSupplyDriver) {
	in.cmd = commands{
		output:      d.Output,
		setVoltage:  d.DCVoltage,
		setCurrent:  d.DCCurrent,
		readVoltage: d.Readback.DCVoltage,
		readCurrent: d.Readback.DCCurrent,
		powerRange:  d.PowerRange,
		lowMarker:   d.RangeMarker(),
	}
}

func (in *Instrument) bindMultiChannel(d driver.MultiChannelPowerSupply) {
	in.bindPowerSupply(d.PowerSupplyDriver)
	in.cmd.selector = d.ChannelSelector
	addressing := d.Addressing
	in.addressing = &addressing
}

func (in *Instrument) bindLoad(d driver.DynamicLoad) {
	in.cmd = commands{
		output:         d.Output,
		setVoltage:     d.DCVoltage,
		setCurrent:     d.DCCurrent,
		readVoltage:    d.Readback.DCVoltage,
		readCurrent:    d.Readback.DCCurrent,
		loadResistance: d.Resistance,
	}
}

// Kind reports the bound descriptor family.
func (in *Instrument) Kind() driver.Kind { return in.kind }

// Capabilities reports what the bound descriptor supports.
func (in *Instrument) Capabilities() driver.Capability { return in.caps }

// Address returns the address given with WithAddress.
func (in *Instrument) Address() string { return in.address }

// Output reports whether the output is enabled.
func (in *Instrument) Output() (bool, error) {
	if err := in.require("Output", driver.CapOutput); err != nil {
		return false, err
	}
	return performQuery(in, in.settingQuery(in.cmd.output), codec.DecodeBool)
}

// SetOutput enables or disables the output.
func (in *Instrument) SetOutput(on bool) error {
	if err := in.require("SetOutput", driver.CapOutput); err != nil {
		return err
	}
	return in.performWrite(in.writeCommand(in.cmd.output, codec.EncodeBool(on)))
}

// VoltageDC measures the DC voltage, through the internal multimeter on
// sources.
func (in *Instrument) VoltageDC() (decimal.Decimal, error) {
	if err := in.require("VoltageDC", driver.CapDCVoltage); err != nil {
		return decimal.Zero, err
	}
	return performQuery(in, in.readbackQuery(in.cmd.readVoltage), decodeUnits(codec.UnitVolt))
}

// SetVoltageDC programs the DC voltage setpoint.
func (in *Instrument) SetVoltageDC(v decimal.Decimal) error {
	if err := in.require("SetVoltageDC", driver.CapSource); err != nil {
		return err
	}
	return in.performWrite(in.writeCommand(in.cmd.setVoltage, codec.EncodeDecimal(v)))
}

// CurrentDC measures the DC current.
func (in *Instrument) CurrentDC() (decimal.Decimal, error) {
	if err := in.require("CurrentDC", driver.CapDCCurrent); err != nil {
		return decimal.Zero, err
	}
	return performQuery(in, in.readbackQuery(in.cmd.readCurrent), decodeUnits(codec.UnitAmpere))
}

// SetCurrentDC programs the DC current setpoint.
func (in *Instrument) SetCurrentDC(v decimal.Decimal) error {
	if err := in.require("SetCurrentDC", driver.CapSource); err != nil {
		return err
	}
	return in.performWrite(in.writeCommand(in.cmd.setCurrent, codec.EncodeDecimal(v)))
}

// VoltageAC measures the AC voltage.
func (in *Instrument) VoltageAC() (decimal.Decimal, error) {
	return in.measure("VoltageAC", driver.CapACVoltage, in.cmd.acVoltage, codec.UnitVolt)
}

// CurrentAC measures the AC current.
func (in *Instrument) CurrentAC() (decimal.Decimal, error) {
	return in.measure("CurrentAC", driver.CapACCurrent, in.cmd.acCurrent, codec.UnitAmpere)
}

// Resistance2W measures resistance with two wires.
func (in *Instrument) Resistance2W() (decimal.Decimal, error) {
	return in.measure("Resistance2W", driver.CapResistance2W, in.cmd.resistance2W, codec.UnitOhm)
}

// Resistance4W measures resistance with four wires.
func (in *Instrument) Resistance4W() (decimal.Decimal, error) {
	return in.measure("Resistance4W", driver.CapResistance4W, in.cmd.resistance4W, codec.UnitOhm)
}

func (in *Instrument) measure(op string, need driver.Capability, template, unit string) (decimal.Decimal, error) {
	if err := in.require(op, need); err != nil {
		return decimal.Zero, err
	}
	return performQuery(in, in.readbackQuery(template), decodeUnits(unit))
}

// SetResistance switches a dynamic load to constant resistance mode at v
// ohms.
func (in *Instrument) SetResistance(v decimal.Decimal) error {
	if err := in.require("SetResistance", driver.CapLoadResistance); err != nil {
		return err
	}
	return in.performWrite(in.writeCommand(in.cmd.loadResistance, codec.EncodeDecimal(v)))
}

// PowerRange reads the active output range. Supplies without range control
// always report the low range without querying.
func (in *Instrument) PowerRange() (codec.PowerRange, error) {
	if !in.isSupply() {
		return codec.PowerRangeLow, in.unsupported("PowerRange")
	}
	if in.cmd.powerRange == "" {
		return codec.PowerRangeLow, nil
	}
	marker := in.cmd.lowMarker
	return performQuery(in, in.cmd.powerRange+"?", func(raw string) (codec.PowerRange, error) {
		return codec.DecodePowerRange(raw, marker), nil
	})
}

// SetPowerRange selects the output range.
func (in *Instrument) SetPowerRange(r codec.PowerRange) error {
	if err := in.require("SetPowerRange", driver.CapPowerRange); err != nil {
		return err
	}
	return in.performWrite(in.cmd.powerRange + " " + r.Command())
}

// ChannelID returns the active channel. Drivers with a selector command ask
// the instrument; otherwise the id is client state.
func (in *Instrument) ChannelID() (int, error) {
	if err := in.requireChannels("ChannelID"); err != nil {
		return 0, err
	}
	if in.cmd.selector == "" {
		return in.channel, nil
	}
	id, err := performQuery(in, in.cmd.selector+"?", codec.DecodeInt)
	if err != nil {
		return 0, err
	}
	in.channel = id
	return id, nil
}

// SetChannelID makes id the active channel. The local id only changes once
// the selector write, if any, has succeeded.
func (in *Instrument) SetChannelID(id int) error {
	if err := in.requireChannels("SetChannelID"); err != nil {
		return err
	}
	if id < 1 {
		return &OperationError{Op: "SetChannelID", Driver: in.kind, Err: ErrInvalidChannel}
	}
	if in.cmd.selector != "" {
		if err := in.performWrite(in.cmd.selector + " " + strconv.Itoa(id)); err != nil {
			return err
		}
	}
	in.channel = id
	return nil
}

// CountChannels asks the instrument for its channel directory and counts
// the entries.
func (in *Instrument) CountChannels() (int, error) {
	if err := in.requireChannels("CountChannels"); err != nil {
		return 0, err
	}
	return performQuery(in, CommandChannelDirectory, func(raw string) (int, error) {
		return codec.CountChannels(raw), nil
	})
}

// ChannelNames lists the device name of every channel. Single channel
// drivers return the identification string as the only entry.
func (in *Instrument) ChannelNames() ([]string, error) {
	if in.addressing != nil {
		return performQuery(in, CommandChannelDirectory, codec.DecodeChannelNames)
	}
	return performQuery(in, CommandIdentify, func(raw string) ([]string, error) {
		return []string{codec.Clean(raw)}, nil
	})
}

// Identify queries *IDN? and parses it into a Device.
func (in *Instrument) Identify() (Device, error) {
	address := in.address
	return performQuery(in, CommandIdentify, func(raw string) (Device, error) {
		return ParseDevice(raw, address)
	})
}

// Reset sends *RST.
func (in *Instrument) Reset() error {
	return in.performWrite(CommandReset)
}

// Write sends command verbatim.
func (in *Instrument) Write(command string) error {
	return in.performWrite(command)
}

// Query sends command verbatim and returns the cleaned reply.
func (in *Instrument) Query(command string) (string, error) {
	return performQuery(in, command, func(raw string) (string, error) {
		return codec.Clean(raw), nil
	})
}

// Close closes the transport when it supports closing.
func (in *Instrument) Close() error {
	if c, ok := in.transport.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (in *Instrument) isSupply() bool {
	return in.kind == driver.KindPowerSupply || in.kind == driver.KindMultiChannelPowerSupply
}

func (in *Instrument) require(op string, need driver.Capability) error {
	if !in.caps.Has(need) {
		return in.unsupported(op)
	}
	return nil
}

func (in *Instrument) requireChannels(op string) error {
	if in.addressing == nil {
		return &OperationError{Op: op, Driver: in.kind, Err: ErrWrongDriverKind}
	}
	return nil
}

func (in *Instrument) unsupported(op string) error {
	return &OperationError{Op: op, Driver: in.kind, Err: ErrUnsupportedOperation}
}

// settingQuery reads back a setting such as the output state.
func (in *Instrument) settingQuery(template string) string {
	if in.addressing != nil {
		return in.addressing.ContextualizeQuery(template, in.channel)
	}
	return template + "?"
}

// readbackQuery renders a measurement template, which already is a query on
// single channel drivers.
func (in *Instrument) readbackQuery(template string) string {
	if in.addressing != nil {
		return in.addressing.ContextualizeQuery(template, in.channel)
	}
	return template
}

func (in *Instrument) writeCommand(template, value string) string {
	if in.addressing != nil {
		return in.addressing.ContextualizeWrite(template, value, in.channel)
	}
	return template + " " + value
}

func (in *Instrument) performWrite(command string) error {
	in.logger.Debug("write", "command", command)
	if err := in.transport.Write(command); err != nil {
		in.logger.Debug("write failed", "command", command, "error", err)
		return err
	}
	return nil
}

func performQuery[T any](in *Instrument, command string, decode func(string) (T, error)) (T, error) {
	var zero T
	in.logger.Debug("query", "command", command)
	raw, err := in.transport.Query(command)
	if err != nil {
		in.logger.Debug("query failed", "command", command, "error", err)
		return zero, err
	}
	in.logger.Debug("reply", "command", command, "reply", raw)
	v, err := decode(raw)
	if err != nil {
		return zero, fmt.Errorf("instrument: decode reply to %q: %w", command, err)
	}
	return v, nil
}

func decodeUnits(units ...string) func(string) (decimal.Decimal, error) {
	return func(raw string) (decimal.Decimal, error) {
		return codec.DecodeDecimal(raw, units...)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
