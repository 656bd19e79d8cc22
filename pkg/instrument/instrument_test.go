package instrument

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
)

// fakeTransport records every command and answers queries from replies.
type fakeTransport struct {
	mu       sync.Mutex
	writes   []string
	queries  []string
	replies  map[string]string
	writeErr error
	queryErr error
	closed   bool
}

func newFake(replies map[string]string) *fakeTransport {
	if replies == nil {
		replies = map[string]string{}
	}
	return &fakeTransport{replies: replies}
}

func (f *fakeTransport) Write(command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, command)
	return f.writeErr
}

func (f *fakeTransport) Query(command string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, command)
	if f.queryErr != nil {
		return "", f.queryErr
	}
	reply, ok := f.replies[command]
	if !ok {
		return "", errors.New("no reply for " + command)
	}
	return reply, nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes) + len(f.queries)
}

func mustNew(t *testing.T, desc driver.Descriptor, f *fakeTransport, opts ...Option) *Instrument {
	t.Helper()
	in, err := New(desc, f, opts...)
	require.NoError(t, err)
	return in
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestNewRejectsInvalidDescriptors(t *testing.T) {
	_, err := New(nil, newFake(nil))
	assert.Error(t, err)

	_, err = New(driver.StandardMultimeter(), nil)
	assert.Error(t, err)

	_, err = New(driver.PowerSupplyDriver{Output: "OUTP"}, newFake(nil))
	assert.True(t, errors.Is(err, driver.ErrMissingTemplate), "got %v", err)
}

func TestNewAcceptsPointerDescriptors(t *testing.T) {
	ps := driver.StandardPowerSupply()
	in := mustNew(t, &ps, newFake(nil))
	assert.Equal(t, driver.KindPowerSupply, in.Kind())
	assert.True(t, in.Capabilities().Has(driver.CapPowerRange))
}

func TestPowerSupplySetVoltage(t *testing.T) {
	f := newFake(nil)
	in := mustNew(t, driver.StandardPowerSupply(), f)

	require.NoError(t, in.SetVoltageDC(dec("5")))
	require.NoError(t, in.SetVoltageDC(dec("5.25")))
	require.NoError(t, in.SetCurrentDC(dec("-0.001")))
	assert.Equal(t, []string{"VOLTage 5", "VOLTage 5.25", "CURRent -0.001"}, f.writes)
}

func TestPowerSupplyReadsThroughInternalMultimeter(t *testing.T) {
	f := newFake(map[string]string{
		"MEASure:VOLTage:DC?": "5.000V\n",
		"MEASure:CURRent:DC?": "0.125a\n",
	})
	in := mustNew(t, driver.StandardPowerSupply(), f)

	v, err := in.VoltageDC()
	require.NoError(t, err)
	assert.True(t, v.Equal(dec("5")), "voltage %s", v)

	c, err := in.CurrentDC()
	require.NoError(t, err)
	assert.True(t, c.Equal(dec("0.125")), "current %s", c)
	assert.Empty(t, f.writes)
}

func TestOutput(t *testing.T) {
	f := newFake(map[string]string{"OUTPUT?": "1\n"})
	in := mustNew(t, driver.StandardPowerSupply(), f)

	on, err := in.Output()
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, in.SetOutput(false))
	require.NoError(t, in.SetOutput(true))
	assert.Equal(t, []string{"OUTPUT 0", "OUTPUT 1"}, f.writes)
}

func TestDecodeFailureIsWrapped(t *testing.T) {
	f := newFake(map[string]string{"OUTPUT?": "ON\n"})
	in := mustNew(t, driver.StandardPowerSupply(), f)

	_, err := in.Output()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"OUTPUT?"`)
}

func TestUnsupportedOperationsSendNothing(t *testing.T) {
	tests := []struct {
		name string
		desc driver.Descriptor
		call func(*Instrument) error
	}{
		{"ac voltage on supply", driver.StandardPowerSupply(), func(in *Instrument) error { _, err := in.VoltageAC(); return err }},
		{"ac current on load", driver.StandardDynamicLoad(), func(in *Instrument) error { _, err := in.CurrentAC(); return err }},
		{"resistance on supply", driver.TTI(), func(in *Instrument) error { _, err := in.Resistance2W(); return err }},
		{"4w resistance on reduced meter", driver.MultimeterDriver{DCVoltage: "V?", DCCurrent: "I?"}, func(in *Instrument) error { _, err := in.Resistance4W(); return err }},
		{"output on meter", driver.StandardMultimeter(), func(in *Instrument) error { _, err := in.Output(); return err }},
		{"set voltage on meter", driver.StandardMultimeter(), func(in *Instrument) error { return in.SetVoltageDC(dec("1")) }},
		{"power range on meter", driver.StandardMultimeter(), func(in *Instrument) error { _, err := in.PowerRange(); return err }},
		{"power range on load", driver.StandardDynamicLoad(), func(in *Instrument) error { _, err := in.PowerRange(); return err }},
		{"set power range without template", driver.TTI(), func(in *Instrument) error { return in.SetPowerRange(codec.PowerRangeHigh) }},
		{"load resistance on supply", driver.StandardPowerSupply(), func(in *Instrument) error { return in.SetResistance(dec("10")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake(nil)
			in := mustNew(t, tt.desc, f)

			err := tt.call(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedOperation), "got %v", err)
			assert.False(t, errors.Is(err, ErrWrongDriverKind))
			assert.Zero(t, f.calls(), "no transport call may be attempted")

			var opErr *OperationError
			require.True(t, errors.As(err, &opErr))
			assert.Equal(t, tt.desc.Kind(), opErr.Driver)
		})
	}
}

func TestChannelOperationsNeedMultiChannelDriver(t *testing.T) {
	calls := map[string]func(*Instrument) error{
		"ChannelID":     func(in *Instrument) error { _, err := in.ChannelID(); return err },
		"SetChannelID":  func(in *Instrument) error { return in.SetChannelID(2) },
		"CountChannels": func(in *Instrument) error { _, err := in.CountChannels(); return err },
	}
	for _, desc := range []driver.Descriptor{driver.StandardPowerSupply(), driver.StandardMultimeter(), driver.StandardDynamicLoad()} {
		for op, call := range calls {
			f := newFake(nil)
			in := mustNew(t, desc, f)
			err := call(in)
			assert.True(t, errors.Is(err, ErrWrongDriverKind), "%s on %s: %v", op, desc.Kind(), err)
			assert.False(t, errors.Is(err, ErrUnsupportedOperation))
			assert.Zero(t, f.calls())
		}
	}
}

func TestPowerRange(t *testing.T) {
	f := newFake(map[string]string{"VOLT:RANGe?": "LOW RANGE ACTIVE\n"})
	in := mustNew(t, driver.StandardPowerSupply(), f)

	r, err := in.PowerRange()
	require.NoError(t, err)
	assert.Equal(t, codec.PowerRangeLow, r)

	f.replies["VOLT:RANGe?"] = "HIGH\n"
	r, err = in.PowerRange()
	require.NoError(t, err)
	assert.Equal(t, codec.PowerRangeHigh, r)

	require.NoError(t, in.SetPowerRange(codec.PowerRangeLow))
	assert.Equal(t, []string{"VOLT:RANGe LOW"}, f.writes)
}

func TestPowerRangeCustomMarker(t *testing.T) {
	ps := driver.StandardPowerSupply()
	ps.LowRangeMarker = "P8V"
	f := newFake(map[string]string{"VOLT:RANGe?": "P8V\n"})
	in := mustNew(t, ps, f)

	r, err := in.PowerRange()
	require.NoError(t, err)
	assert.Equal(t, codec.PowerRangeLow, r)
}

func TestPowerRangeWithoutTemplateIsLow(t *testing.T) {
	f := newFake(nil)
	in := mustNew(t, driver.TTI(), f)

	r, err := in.PowerRange()
	require.NoError(t, err)
	assert.Equal(t, codec.PowerRangeLow, r)
	assert.Zero(t, f.calls(), "a supply without range control is never queried")
}

func TestMultiChannelRigol(t *testing.T) {
	f := newFake(map[string]string{
		"SOURce2:VOLTage?": "5.000\n",
		"OUTP CH2,?":       "1\n",
	})
	in := mustNew(t, driver.RigolDP832(), f, WithChannel(2))

	require.NoError(t, in.SetVoltageDC(dec("5")))
	require.NoError(t, in.SetOutput(true))
	assert.Equal(t, []string{"SOURce2:VOLTage 5", "OUTP CH2, 1"}, f.writes)

	v, err := in.VoltageDC()
	require.NoError(t, err)
	assert.True(t, v.Equal(dec("5")))

	on, err := in.Output()
	require.NoError(t, err)
	assert.True(t, on)
}

func TestMultiChannelHPMainframe(t *testing.T) {
	f := newFake(map[string]string{"MEASure:CURRent:DC? (@3)": "0.5\n"})
	in := mustNew(t, driver.HPMainframe(), f)
	require.NoError(t, in.SetChannelID(3))

	require.NoError(t, in.SetCurrentDC(dec("0.5")))
	assert.Equal(t, []string{"CURRent 0.5, (@3)"}, f.writes)

	c, err := in.CurrentDC()
	require.NoError(t, err)
	assert.True(t, c.Equal(dec("0.5")))
}

func TestMultiChannelTTI(t *testing.T) {
	f := newFake(map[string]string{"V1O?": "12.01V\n", "I1O?": "0.20A\n"})
	in := mustNew(t, driver.TTI(), f)

	require.NoError(t, in.SetVoltageDC(dec("12")))
	assert.Equal(t, []string{"V1 12"}, f.writes)

	v, err := in.VoltageDC()
	require.NoError(t, err)
	assert.True(t, v.Equal(dec("12.01")))

	c, err := in.CurrentDC()
	require.NoError(t, err)
	assert.True(t, c.Equal(dec("0.2")))
}

func TestMultiChannelHPMobileComms(t *testing.T) {
	f := newFake(map[string]string{"MEASure:VOLTage:DC2?": "3.7\n"})
	in := mustNew(t, driver.HPMobileCommsSource(), f)

	require.NoError(t, in.SetVoltageDC(dec("4")))
	require.NoError(t, in.SetChannelID(2))
	require.NoError(t, in.SetVoltageDC(dec("3.7")))
	assert.Equal(t, []string{"VOLT 4", "DISPLAY:CHANNEL 2", "VOLT2 3.7"}, f.writes)

	v, err := in.VoltageDC()
	require.NoError(t, err)
	assert.True(t, v.Equal(dec("3.7")))
}

func TestDistinctChannelsProduceDistinctCommands(t *testing.T) {
	for _, desc := range []driver.MultiChannelPowerSupply{driver.RigolDP832(), driver.HPMainframe(), driver.TTI(), driver.HPMobileCommsSource()} {
		f := newFake(nil)
		in := mustNew(t, desc, f)
		require.NoError(t, in.SetChannelID(1))
		require.NoError(t, in.SetVoltageDC(dec("1")))
		require.NoError(t, in.SetChannelID(2))
		require.NoError(t, in.SetVoltageDC(dec("1")))

		var setpoints []string
		for _, w := range f.writes {
			if !strings.HasPrefix(w, "DISPLAY:CHANNEL") {
				setpoints = append(setpoints, w)
			}
		}
		require.Len(t, setpoints, 2)
		assert.NotEqual(t, setpoints[0], setpoints[1], "addressing %s", desc.Addressing.Scheme)
	}
}

func TestChannelIDClientSide(t *testing.T) {
	f := newFake(nil)
	in := mustNew(t, driver.RigolDP832(), f)

	id, err := in.ChannelID()
	require.NoError(t, err)
	assert.Equal(t, 1, id, "channel defaults to 1")

	require.NoError(t, in.SetChannelID(3))
	id, err = in.ChannelID()
	require.NoError(t, err)
	assert.Equal(t, 3, id)
	assert.Zero(t, f.calls(), "client side channel never reaches the instrument")
}

func TestChannelIDWithSelector(t *testing.T) {
	f := newFake(map[string]string{"INST:NSEL?": "2\n"})
	in := mustNew(t, driver.RohdeSchwarz(), f)

	id, err := in.ChannelID()
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	require.NoError(t, in.SetChannelID(3))
	assert.Equal(t, []string{"INST:NSEL 3"}, f.writes)
}

func TestSetChannelIDKeepsStateOnWriteFailure(t *testing.T) {
	f := newFake(nil)
	in := mustNew(t, driver.RohdeSchwarz(), f)
	require.NoError(t, in.SetChannelID(2))

	linkDown := errors.New("link down")
	f.writeErr = linkDown
	err := in.SetChannelID(3)
	assert.True(t, errors.Is(err, linkDown), "transport errors pass through, got %v", err)

	f.writeErr = nil
	require.NoError(t, in.SetVoltageDC(dec("1")))
	assert.Equal(t, 2, in.channel)
}

func TestSetChannelIDRejectsInvalidIDs(t *testing.T) {
	f := newFake(nil)
	in := mustNew(t, driver.RigolDP832(), f)

	for _, id := range []int{0, -1} {
		err := in.SetChannelID(id)
		assert.True(t, errors.Is(err, ErrInvalidChannel), "id %d: %v", id, err)
	}
	assert.Equal(t, 1, in.channel)
	assert.Zero(t, f.calls())
}

func TestChannelDirectory(t *testing.T) {
	f := newFake(map[string]string{CommandChannelDirectory: "GPIB0:PS1;GPIB1:PS2\n"})
	in := mustNew(t, driver.HPMainframe(), f)

	n, err := in.CountChannels()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	names, err := in.ChannelNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"PS1", "PS2"}, names)
}

func TestChannelNamesSingleChannel(t *testing.T) {
	f := newFake(map[string]string{CommandIdentify: "Acme,Model7,SN123,FW2.1\r\n"})
	in := mustNew(t, driver.StandardPowerSupply(), f)

	names, err := in.ChannelNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme,Model7,SN123,FW2.1"}, names)
}

func TestDynamicLoad(t *testing.T) {
	f := newFake(map[string]string{"MEASure:VOLTage:DC?": "12.004V\n"})
	in := mustNew(t, driver.StandardDynamicLoad(), f)

	require.NoError(t, in.SetCurrentDC(dec("1")))
	require.NoError(t, in.SetResistance(dec("100")))
	assert.Equal(t, []string{"MODE:CURRent:DC;\nCURRent 1", "MODE:RESistance;\nRESistance 100"}, f.writes)

	v, err := in.VoltageDC()
	require.NoError(t, err)
	assert.True(t, v.Equal(dec("12.004")))
}

func TestMultimeterMeasurements(t *testing.T) {
	f := newFake(map[string]string{
		"MEASure:VOLTage:AC?":  "+2.30010000E+02\n",
		"MEASure:CURRent:AC?":  "0.01A\n",
		"MEASure:RESistance?":  "1000.4OHM\n",
		"MEASure:FRESistance?": "+9.99870000E+02\n",
	})
	in := mustNew(t, driver.StandardMultimeter(), f)

	tests := []struct {
		call func() (decimal.Decimal, error)
		want string
	}{
		{in.VoltageAC, "230.01"},
		{in.CurrentAC, "0.01"},
		{in.Resistance2W, "1000.4"},
		{in.Resistance4W, "999.87"},
	}
	for _, tt := range tests {
		got, err := tt.call()
		require.NoError(t, err)
		assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
	}
	assert.Empty(t, f.writes)
}

func TestTransportErrorsPassThrough(t *testing.T) {
	linkDown := errors.New("link down")
	f := newFake(nil)
	f.queryErr = linkDown
	in := mustNew(t, driver.StandardMultimeter(), f)

	_, err := in.VoltageDC()
	assert.True(t, errors.Is(err, linkDown))
	assert.False(t, errors.Is(err, ErrUnsupportedOperation))
}

func TestRawAccess(t *testing.T) {
	f := newFake(map[string]string{"SYST:ERR?": "+0,\"No error\"\r\n"})
	in := mustNew(t, driver.StandardMultimeter(), f, WithAddress("GPIB0::22::INSTR"))

	reply, err := in.Query("SYST:ERR?")
	require.NoError(t, err)
	assert.Equal(t, `+0,"No error"`, reply)

	require.NoError(t, in.Write("*CLS"))
	require.NoError(t, in.Reset())
	assert.Equal(t, []string{"*CLS", CommandReset}, f.writes)
	assert.Equal(t, "GPIB0::22::INSTR", in.Address())

	require.NoError(t, in.Close())
	assert.True(t, f.closed)
}

func TestIdentify(t *testing.T) {
	f := newFake(map[string]string{CommandIdentify: "Acme,Model7,SN123,FW2.1\n"})
	in := mustNew(t, driver.StandardMultimeter(), f, WithAddress("USB0::1"))

	dev, err := in.Identify()
	require.NoError(t, err)
	assert.Equal(t, Device{Brand: "Acme", Model: "Model7", Serial: "SN123", Firmware: "FW2.1", Address: "USB0::1"}, dev)
}

func TestOperationErrorMessage(t *testing.T) {
	in := mustNew(t, driver.StandardMultimeter(), newFake(nil))
	_, err := in.Output()
	assert.EqualError(t, err, "Output (multimeter driver): instrument: operation not supported by driver")
}
