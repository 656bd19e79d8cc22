package visa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gotmc/prologix"
	"github.com/gotmc/prologix/driver/vcp"
)

// PrologixBackend reaches GPIB instruments through a Prologix (or AR488)
// USB-GPIB controller on a virtual COM port. All instruments share the one
// controller, which is re-addressed whenever another primary address is
// used.
type PrologixBackend struct {
	// Port is the controller's serial device, e.g. /dev/ttyUSB0.
	Port string
	// Addresses are the primary addresses reported by List. GPIB has no
	// cheap enumeration, so only configured instruments are listed.
	Addresses []int

	mu     sync.Mutex
	port   *vcp.VCP
	ctrl   *prologix.Controller
	active int
	refs   int
}

// NewPrologixBackend creates a backend for the controller on port.
func NewPrologixBackend(port string, addresses ...int) *PrologixBackend {
	return &PrologixBackend{Port: port, Addresses: addresses, active: -1}
}

func (b *PrologixBackend) Interface() InterfaceKind { return InterfaceGPIB }

func (b *PrologixBackend) List(_ context.Context) ([]string, error) {
	out := make([]string, len(b.Addresses))
	for i, n := range b.Addresses {
		out[i] = GPIBAddress(n)
	}
	return out, nil
}

func (b *PrologixBackend) Open(addr Address) (Resource, error) {
	primary, err := addr.GPIBPrimary()
	if err != nil {
		return nil, err
	}
	if b.Port == "" {
		return nil, fmt.Errorf("%w: no Prologix controller port configured", ErrNoPort)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.port == nil {
		port, err := vcp.NewVCP(b.Port)
		if err != nil {
			return nil, fmt.Errorf("open controller port %s: %w", b.Port, err)
		}
		b.port = port
		b.active = -1
	}
	b.refs++
	return &gpibResource{backend: b, primary: primary, address: addr.String()}, nil
}

// selectLocked points the controller at primary. Callers hold b.mu.
func (b *PrologixBackend) selectLocked(primary int) (*prologix.Controller, error) {
	if b.port == nil {
		return nil, errors.New("controller port closed")
	}
	if b.ctrl != nil && b.active == primary {
		return b.ctrl, nil
	}
	ctrl, err := prologix.NewController(b.port, primary, false)
	if err != nil {
		return nil, fmt.Errorf("address GPIB %d: %w", primary, err)
	}
	b.ctrl = ctrl
	b.active = primary
	return ctrl, nil
}

// releaseLocked drops one reference. Callers hold b.mu.
func (b *PrologixBackend) releaseLocked() error {
	b.refs--
	if b.refs > 0 || b.port == nil {
		return nil
	}

	var errs []error
	if b.ctrl != nil {
		// Return local control to the front panel.
		errs = append(errs, b.ctrl.FrontPanel(true))
	}
	errs = append(errs, b.port.Flush(), b.port.Close())
	b.port = nil
	b.ctrl = nil
	b.active = -1
	return errors.Join(errs...)
}

type gpibResource struct {
	backend *PrologixBackend
	primary int
	address string
	closed  bool
}

func (r *gpibResource) Write(command string) error {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()
	ctrl, err := r.backend.selectLocked(r.primary)
	if err != nil {
		return &TransportError{Op: "write", Address: r.address, Err: err}
	}
	if err := ctrl.Command(command); err != nil {
		return &TransportError{Op: "write", Address: r.address, Err: err}
	}
	return nil
}

func (r *gpibResource) Query(command string) (string, error) {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()
	ctrl, err := r.backend.selectLocked(r.primary)
	if err != nil {
		return "", &TransportError{Op: "query", Address: r.address, Err: err}
	}
	reply, err := ctrl.Query(command)
	if err != nil && !(errors.Is(err, io.EOF) && reply != "") {
		return "", &TransportError{Op: "query", Address: r.address, Err: err}
	}
	return reply, nil
}

func (r *gpibResource) Close() error {
	r.backend.mu.Lock()
	defer r.backend.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.backend.releaseLocked(); err != nil {
		return &TransportError{Op: "close", Address: r.address, Err: err}
	}
	return nil
}
