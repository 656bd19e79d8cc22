package instrument

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnumerator struct {
	ids []Identification
	err error
}

func (e fakeEnumerator) DiscoverAll(context.Context) ([]Identification, error) {
	return e.ids, e.err
}

func TestParseDevice(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    Device
		wantErr bool
	}{
		{
			name:  "four fields",
			reply: "Acme,Model7,SN123,FW2.1\n",
			want:  Device{Brand: "Acme", Model: "Model7", Serial: "SN123", Firmware: "FW2.1", Address: "USB0::1"},
		},
		{
			name:  "two fields",
			reply: "Acme,Model7\r\n",
			want:  Device{Brand: "Acme", Model: "Model7", Serial: Unknown, Firmware: Unknown, Address: "USB0::1"},
		},
		{
			name:    "too many fields",
			reply:   "HEWLETT-PACKARD,6632B,0,A.01.05,extra",
			want:    PlaceholderDevice("USB0::1"),
			wantErr: true,
		},
		{
			name:    "empty",
			reply:   "\n",
			want:    PlaceholderDevice("USB0::1"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := ParseDevice(tt.reply, "USB0::1")
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrDiscoveryParse), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, dev)
		})
	}
}

func TestDeviceKnown(t *testing.T) {
	assert.False(t, PlaceholderDevice("GPIB0::5::INSTR").Known())
	dev, err := ParseDevice("Acme,Model7,SN123,FW2.1", "x")
	require.NoError(t, err)
	assert.True(t, dev.Known())
	assert.Equal(t, "Acme Model7 (serial SN123, firmware FW2.1) at x", dev.String())
}

func TestDiscoverDegradesFailures(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	e := fakeEnumerator{ids: []Identification{
		{Address: "GPIB0::5::INSTR", Err: errors.New("timeout")},
		{Address: "USB0::1", Reply: "Acme,Model7,SN123,FW2.1\n"},
		{Address: "ASRL1::INSTR", Reply: "a,b,c,d,e,f"},
	}}

	devices, err := Discover(context.Background(), e, logger)
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, PlaceholderDevice("GPIB0::5::INSTR"), devices[0])
	assert.Equal(t, "Acme", devices[1].Brand)
	assert.Equal(t, "USB0::1", devices[1].Address)
	assert.Equal(t, PlaceholderDevice("ASRL1::INSTR"), devices[2])

	assert.Contains(t, logs.String(), "GPIB0::5::INSTR")
	assert.Contains(t, logs.String(), "ASRL1::INSTR")
	assert.Contains(t, logs.String(), "level=WARN")
}

func TestDiscoverEnumerationFailure(t *testing.T) {
	boom := errors.New("bus unavailable")
	_, err := Discover(context.Background(), fakeEnumerator{err: boom}, nil)
	assert.True(t, errors.Is(err, boom))
}

func TestDiscoverEmptyBus(t *testing.T) {
	devices, err := Discover(context.Background(), fakeEnumerator{}, nil)
	require.NoError(t, err)
	assert.Empty(t, devices)
}
