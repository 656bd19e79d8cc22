package visa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
)

// ErrNoReply is returned by the simulator for queries it cannot answer, the
// way a real instrument would time out.
var ErrNoReply = errors.New("visa: simulator has no reply")

// SimOpKind distinguishes recorded writes and queries.
type SimOpKind uint8

const (
	SimOpWrite SimOpKind = iota
	SimOpQuery
)

// SimOp is one recorded transport call.
type SimOp struct {
	Kind    SimOpKind
	Command string
}

// QueryHook lets a test script the reply to a query.
type QueryHook func(command string) (string, error)

// SimInstrument is an in-memory SCPI instrument. Writes of the form
// "HEADER value" are remembered and "HEADER?" reads them back; Responses and
// OnQuery override that. Replies carry a trailing newline like real
// instruments.
type SimInstrument struct {
	Identity  string
	Responses map[string]string
	OnQuery   QueryHook

	WriteErr error
	QueryErr error

	mu     sync.Mutex
	state  map[string]string
	ops    []SimOp
	closed bool
}

// NewSimInstrument creates a simulator answering *IDN? with identity.
func NewSimInstrument(identity string) *SimInstrument {
	return &SimInstrument{
		Identity:  identity,
		Responses: make(map[string]string),
		state:     make(map[string]string),
	}
}

func (s *SimInstrument) Write(command string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, SimOp{Kind: SimOpWrite, Command: command})
	if s.WriteErr != nil {
		return s.WriteErr
	}
	if s.state == nil {
		s.state = make(map[string]string)
	}
	for _, part := range strings.Split(command, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		header, value, _ := strings.Cut(part, " ")
		s.state[header] = strings.TrimSpace(value)
	}
	return nil
}

func (s *SimInstrument) Query(command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, SimOp{Kind: SimOpQuery, Command: command})
	if s.QueryErr != nil {
		return "", s.QueryErr
	}
	if s.OnQuery != nil {
		return s.OnQuery(command)
	}
	if reply, ok := s.Responses[command]; ok {
		return reply + "\n", nil
	}
	if command == instrument.CommandIdentify && s.Identity != "" {
		return s.Identity + "\n", nil
	}
	if header, ok := strings.CutSuffix(command, "?"); ok {
		if value, ok := s.state[header]; ok {
			return value + "\n", nil
		}
	}
	return "", fmt.Errorf("%w for %q", ErrNoReply, command)
}

func (s *SimInstrument) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Set stores value as if "header value" had been written, without
// recording an operation.
func (s *SimInstrument) Set(header, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		s.state = make(map[string]string)
	}
	s.state[header] = value
}

// Ops returns a copy of every recorded call.
func (s *SimInstrument) Ops() []SimOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SimOp(nil), s.ops...)
}

// Writes returns the recorded write commands in order.
func (s *SimInstrument) Writes() []string { return s.commands(SimOpWrite) }

// Queries returns the recorded query commands in order.
func (s *SimInstrument) Queries() []string { return s.commands(SimOpQuery) }

func (s *SimInstrument) commands(kind SimOpKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, op := range s.ops {
		if op.Kind == kind {
			out = append(out, op.Command)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (s *SimInstrument) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SimBackend serves SimInstruments under SIM0::<name>::INSTR addresses.
type SimBackend struct {
	mu          sync.Mutex
	instruments map[string]*SimInstrument
	OpenErr     map[string]error
}

// NewSimBackend creates an empty simulated bus.
func NewSimBackend() *SimBackend {
	return &SimBackend{
		instruments: make(map[string]*SimInstrument),
		OpenErr:     make(map[string]error),
	}
}

// Add places inst on the bus and returns its address.
func (b *SimBackend) Add(name string, inst *SimInstrument) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	address := SimAddress(name)
	b.instruments[address] = inst
	return address
}

func (b *SimBackend) Interface() InterfaceKind { return InterfaceSim }

func (b *SimBackend) List(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.instruments))
	for address := range b.instruments {
		out = append(out, address)
	}
	sort.Strings(out)
	return out, nil
}

func (b *SimBackend) Open(addr Address) (Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	address := addr.String()
	if err := b.OpenErr[address]; err != nil {
		return nil, err
	}
	inst, ok := b.instruments[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return inst, nil
}
