// Package visa provides the transports an instrument facade talks through:
// USBTMC over gousb, GPIB through a Prologix controller, RS-232 serial ports
// and an in-memory simulator, all addressed by VISA resource strings.
package visa

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
)

// Resource is an open connection to one instrument.
type Resource interface {
	Write(command string) error
	Query(command string) (string, error)
	Close() error
}

// Backend opens resources of one interface family.
type Backend interface {
	Interface() InterfaceKind
	List(ctx context.Context) ([]string, error)
	Open(addr Address) (Resource, error)
}

var (
	// ErrNoPort is returned by Open when no GPIB id, serial port or USB
	// identifier was given.
	ErrNoPort = errors.New("visa: no port selected")

	// ErrNotFound means no listed resource matched the request.
	ErrNotFound = errors.New("visa: resource not found")

	// ErrNoBackend means no backend handles the address interface.
	ErrNoBackend = errors.New("visa: no backend for interface")
)

// TransportError wraps every failure of the physical link.
type TransportError struct {
	Op      string
	Address string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Address == "" {
		return fmt.Sprintf("visa: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("visa: %s %s: %v", e.Op, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func transportError(op, address string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Op: op, Address: address, Err: err}
}

// Manager dispatches resource strings to the backend of their interface.
type Manager struct {
	backends map[InterfaceKind]Backend
	order    []InterfaceKind
}

// NewManager registers backends; a later backend for the same interface
// replaces an earlier one.
func NewManager(backends ...Backend) *Manager {
	m := &Manager{backends: make(map[InterfaceKind]Backend)}
	for _, b := range backends {
		if b == nil {
			continue
		}
		kind := b.Interface()
		if _, exists := m.backends[kind]; !exists {
			m.order = append(m.order, kind)
		}
		m.backends[kind] = b
	}
	return m
}

// Interfaces lists the interface families the manager can open.
func (m *Manager) Interfaces() []InterfaceKind {
	return append([]InterfaceKind(nil), m.order...)
}

// ListResources returns the resources of every backend. Backends that fail
// are skipped and their errors joined into the returned error.
func (m *Manager) ListResources(ctx context.Context) ([]string, error) {
	var (
		all  []string
		errs []error
	)
	for _, kind := range m.order {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		list, err := m.backends[kind].List(ctx)
		if err != nil {
			errs = append(errs, transportError("list", string(kind), err))
			continue
		}
		sort.Strings(list)
		all = append(all, list...)
	}
	return all, errors.Join(errs...)
}

// OpenResource opens the resource named by address.
func (m *Manager) OpenResource(address string) (Resource, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, transportError("open", address, err)
	}
	b, ok := m.backends[addr.Interface]
	if !ok {
		return nil, transportError("open", address, fmt.Errorf("%w %s", ErrNoBackend, addr.Interface))
	}
	res, err := b.Open(addr)
	if err != nil {
		return nil, transportError("open", address, err)
	}
	return res, nil
}

// DiscoverAll asks every listed resource for its identification. Per
// address failures are reported in the result, not as the error; the error
// is only set when listing failed and nothing was found.
func (m *Manager) DiscoverAll(ctx context.Context) ([]instrument.Identification, error) {
	addresses, listErr := m.ListResources(ctx)
	if len(addresses) == 0 && listErr != nil {
		return nil, listErr
	}

	ids := make([]instrument.Identification, 0, len(addresses))
	for _, address := range addresses {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		ids = append(ids, m.identify(address))
	}
	return ids, nil
}

func (m *Manager) identify(address string) instrument.Identification {
	id := instrument.Identification{Address: address}
	res, err := m.OpenResource(address)
	if err != nil {
		id.Err = err
		return id
	}
	defer res.Close()

	reply, err := res.Query(instrument.CommandIdentify)
	if err != nil {
		id.Err = transportError("identify", address, err)
		return id
	}
	id.Reply = reply
	return id
}
