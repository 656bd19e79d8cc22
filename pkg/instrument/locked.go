package instrument

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/codec"
)

// LockedInstrument serializes access to an Instrument so that at most one
// command is in flight on the connection.
type LockedInstrument struct {
	mu sync.Mutex
	in *Instrument
}

// Locked wraps in for use from several goroutines.
func Locked(in *Instrument) *LockedInstrument {
	return &LockedInstrument{in: in}
}

// Do runs fn with exclusive access, for sequences that must not interleave
// with other callers (select a channel, then program it).
func (l *LockedInstrument) Do(fn func(*Instrument) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.in)
}

func (l *LockedInstrument) Output() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.Output()
}

func (l *LockedInstrument) SetOutput(on bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.SetOutput(on)
}

func (l *LockedInstrument) VoltageDC() (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.VoltageDC()
}

func (l *LockedInstrument) SetVoltageDC(v decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.SetVoltageDC(v)
}

func (l *LockedInstrument) CurrentDC() (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.CurrentDC()
}

func (l *LockedInstrument) SetCurrentDC(v decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.SetCurrentDC(v)
}

func (l *LockedInstrument) PowerRange() (codec.PowerRange, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.PowerRange()
}

func (l *LockedInstrument) SetPowerRange(r codec.PowerRange) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.SetPowerRange(r)
}

func (l *LockedInstrument) ChannelID() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.ChannelID()
}

func (l *LockedInstrument) SetChannelID(id int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.SetChannelID(id)
}

func (l *LockedInstrument) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.in.Close()
}
