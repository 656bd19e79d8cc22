package visa

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// USBTMC interfaces are application class 0xFE, subclass 0x03.
	usbtmcSubClass = gousb.Class(0x03)

	DefaultUSBTimeout  = 5 * time.Second
	DefaultMaxTransfer = 4096
)

// USBTMCTransport talks to one USBTMC instrument over bulk endpoints.
type USBTMCTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	protocol *USBTMCProtocol
	timeout  time.Duration
	address  string
}

// NewUSBTMCTransport opens the instrument with the given ids. An empty
// serial opens the first match.
func NewUSBTMCTransport(vid, pid uint16, serial string) (*USBTMCTransport, error) {
	ctx := gousb.NewContext()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == vid && uint16(desc.Product) == pid
	})
	var dev *gousb.Device
	for _, d := range devs {
		if dev == nil && serialMatches(d, serial) {
			dev = d
			continue
		}
		d.Close()
	}
	if dev == nil {
		ctx.Close()
		if err != nil {
			return nil, fmt.Errorf("USB error: %w", err)
		}
		return nil, fmt.Errorf("device not found (VID:0x%04X PID:0x%04X serial %q)", vid, pid, serial)
	}

	// Not fatal on all platforms
	_ = dev.SetAutoDetach(true)

	t := &USBTMCTransport{
		ctx:      ctx,
		dev:      dev,
		protocol: NewUSBTMCProtocol(),
		timeout:  DefaultUSBTimeout,
		address:  USBAddress(vid, pid, serial),
	}
	if err := t.claimInterface(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func serialMatches(d *gousb.Device, serial string) bool {
	if serial == "" {
		return true
	}
	got, err := d.SerialNumber()
	return err == nil && got == serial
}

// claimInterface finds the USBTMC interface and its bulk endpoints.
func (t *USBTMCTransport) claimInterface() error {
	cfgNum, intfNum, ok := findUSBTMCInterface(t.dev.Desc)
	if !ok {
		return fmt.Errorf("no USBTMC interface on %s", t.address)
	}

	cfg, err := t.dev.Config(cfgNum)
	if err != nil {
		return fmt.Errorf("failed to get config %d: %w", cfgNum, err)
	}
	t.cfg = cfg

	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		return fmt.Errorf("failed to claim interface %d: %w", intfNum, err)
	}
	t.intf = intf

	var outNum, inNum int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if outNum == 0 {
				outNum = ep.Number
			}
		case gousb.EndpointDirectionIn:
			if inNum == 0 {
				inNum = ep.Number
			}
		}
	}
	if outNum == 0 {
		return fmt.Errorf("bulk OUT endpoint not found")
	}
	if inNum == 0 {
		return fmt.Errorf("bulk IN endpoint not found")
	}

	if t.epOut, err = intf.OutEndpoint(outNum); err != nil {
		return fmt.Errorf("failed to open OUT endpoint: %w", err)
	}
	if t.epIn, err = intf.InEndpoint(inNum); err != nil {
		return fmt.Errorf("failed to open IN endpoint: %w", err)
	}
	return nil
}

func findUSBTMCInterface(desc *gousb.DeviceDesc) (cfgNum, intfNum int, ok bool) {
	for num, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class == gousb.ClassApplication && alt.SubClass == usbtmcSubClass {
					return num, intf.Number, true
				}
			}
		}
	}
	return 0, 0, false
}

// SetTimeout sets the per transfer timeout.
func (t *USBTMCTransport) SetTimeout(timeout time.Duration) {
	t.timeout = timeout
}

// Write sends command terminated by a newline.
func (t *USBTMCTransport) Write(command string) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	packet := t.protocol.EncodeDevDepMsgOut([]byte(command + "\n"))
	if _, err := t.epOut.WriteContext(ctx, packet); err != nil {
		return &TransportError{Op: "write", Address: t.address, Err: fmt.Errorf("USB write failed: %w", err)}
	}
	return nil
}

// Query sends command and collects reply transfers until end of message.
func (t *USBTMCTransport) Query(command string) (string, error) {
	if err := t.Write(command); err != nil {
		return "", err
	}

	var reply []byte
	buf := make([]byte, USBTMCHeaderSize+DefaultMaxTransfer)
	for {
		payload, eom, err := t.readTransfer(buf)
		if err != nil {
			return "", &TransportError{Op: "query", Address: t.address, Err: err}
		}
		reply = append(reply, payload...)
		if eom {
			return string(reply), nil
		}
	}
}

func (t *USBTMCTransport) readTransfer(buf []byte) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	req := t.protocol.EncodeRequestDevDepMsgIn(DefaultMaxTransfer)
	if _, err := t.epOut.WriteContext(ctx, req); err != nil {
		return nil, false, fmt.Errorf("USB request failed: %w", err)
	}
	n, err := t.epIn.ReadContext(ctx, buf)
	if err != nil {
		return nil, false, fmt.Errorf("USB read failed: %w", err)
	}
	return t.protocol.DecodeDevDepMsgIn(buf[:n])
}

// Close releases USB resources
func (t *USBTMCTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.cfg != nil {
		t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}

// USBDevice describes a USBTMC instrument found on the bus.
type USBDevice struct {
	VID          uint16
	PID          uint16
	SerialNumber string
	Description  string
}

// Address returns the VISA resource string of d.
func (d USBDevice) Address() string {
	return USBAddress(d.VID, d.PID, d.SerialNumber)
}

// EnumerateUSBTMC finds every connected device exposing a USBTMC interface.
func EnumerateUSBTMC(ctx context.Context) ([]USBDevice, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		_, _, ok := findUSBTMCInterface(desc)
		return ok
	})
	if err != nil && err != gousb.ErrorAccess && len(devs) == 0 {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]USBDevice, 0, len(devs))
	for _, dev := range devs {
		serial, _ := dev.SerialNumber()
		manufacturer, _ := dev.Manufacturer()
		product, _ := dev.Product()

		devices = append(devices, USBDevice{
			VID:          uint16(dev.Desc.Vendor),
			PID:          uint16(dev.Desc.Product),
			SerialNumber: serial,
			Description:  fmt.Sprintf("%s %s", manufacturer, product),
		})
		dev.Close()
	}
	return devices, nil
}

// USBTMCBackend opens USB resources.
type USBTMCBackend struct {
	Timeout time.Duration
}

func (b *USBTMCBackend) Interface() InterfaceKind { return InterfaceUSB }

func (b *USBTMCBackend) List(ctx context.Context) ([]string, error) {
	devices, err := EnumerateUSBTMC(ctx)
	if err != nil {
		return nil, err
	}
	addresses := make([]string, len(devices))
	for i, d := range devices {
		addresses[i] = d.Address()
	}
	return addresses, nil
}

func (b *USBTMCBackend) Open(addr Address) (Resource, error) {
	vid, pid, serial, err := addr.USBIdentity()
	if err != nil {
		return nil, err
	}
	t, err := NewUSBTMCTransport(vid, pid, serial)
	if err != nil {
		return nil, err
	}
	if b.Timeout > 0 {
		t.SetTimeout(b.Timeout)
	}
	return t, nil
}
