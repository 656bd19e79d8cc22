package visa

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/term"
)

const (
	DefaultSerialPattern = "/dev/ttyUSB%d"
	DefaultBaudRate      = 9600
	DefaultReadTimeout   = 2 * time.Second
)

// SerialBackend opens ASRL resources. ASRL<n> maps to the device path
// produced by formatting Pattern with n.
type SerialBackend struct {
	Pattern     string
	BaudRate    int
	ReadTimeout time.Duration
	Terminator  string
}

// NewSerialBackend returns a backend with the package defaults.
func NewSerialBackend() *SerialBackend {
	return &SerialBackend{
		Pattern:     DefaultSerialPattern,
		BaudRate:    DefaultBaudRate,
		ReadTimeout: DefaultReadTimeout,
		Terminator:  "\n",
	}
}

func (b *SerialBackend) Interface() InterfaceKind { return InterfaceSerial }

func (b *SerialBackend) pattern() string {
	if b.Pattern == "" {
		return DefaultSerialPattern
	}
	return b.Pattern
}

// List reports every existing device path that matches Pattern.
func (b *SerialBackend) List(_ context.Context) ([]string, error) {
	pattern := b.pattern()
	paths, err := filepath.Glob(strings.Replace(pattern, "%d", "*", 1))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, path := range paths {
		var n int
		if _, err := fmt.Sscanf(path, pattern, &n); err != nil {
			continue
		}
		out = append(out, SerialAddress(n))
	}
	return out, nil
}

func (b *SerialBackend) Open(addr Address) (Resource, error) {
	path := fmt.Sprintf(b.pattern(), addr.Board)
	baud := b.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	t, err := term.Open(path, term.Speed(baud), term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	timeout := b.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := t.SetReadTimeout(timeout); err != nil {
		t.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}

	terminator := b.Terminator
	if terminator == "" {
		terminator = "\n"
	}
	return &serialResource{
		port:       t,
		reader:     bufio.NewReader(t),
		terminator: terminator,
		address:    addr.String(),
	}, nil
}

type serialResource struct {
	port       *term.Term
	reader     *bufio.Reader
	terminator string
	address    string
}

func (r *serialResource) Write(command string) error {
	if _, err := r.port.Write([]byte(command + r.terminator)); err != nil {
		return &TransportError{Op: "write", Address: r.address, Err: err}
	}
	return nil
}

func (r *serialResource) Query(command string) (string, error) {
	if err := r.Write(command); err != nil {
		return "", err
	}
	last := r.terminator[len(r.terminator)-1]
	reply, err := r.reader.ReadString(last)
	if err != nil {
		return "", &TransportError{Op: "query", Address: r.address, Err: err}
	}
	return reply, nil
}

func (r *serialResource) Close() error {
	if err := r.port.Close(); err != nil {
		return &TransportError{Op: "close", Address: r.address, Err: err}
	}
	return nil
}
