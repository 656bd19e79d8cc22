package visa

import (
	"context"
	"fmt"
	"strings"
)

// ConnectOptions selects the port of an instrument. The first set field in
// the order GPIB, Serial, USB wins.
type ConnectOptions struct {
	GPIB   *int
	Serial *int
	USB    string // substring of the USB resource string, usually the serial
}

// Open resolves opts to a resource string and opens it. It returns the
// resolved address along with the resource.
func Open(ctx context.Context, m *Manager, opts ConnectOptions) (Resource, string, error) {
	address, err := resolve(ctx, m, opts)
	if err != nil {
		return nil, "", err
	}
	res, err := m.OpenResource(address)
	if err != nil {
		return nil, address, err
	}
	return res, address, nil
}

func resolve(ctx context.Context, m *Manager, opts ConnectOptions) (string, error) {
	switch {
	case opts.GPIB != nil:
		return GPIBAddress(*opts.GPIB), nil
	case opts.Serial != nil:
		return SerialAddress(*opts.Serial), nil
	case opts.USB != "":
		addresses, listErr := m.ListResources(ctx)
		for _, address := range addresses {
			if strings.HasPrefix(address, string(InterfaceUSB)) && strings.Contains(address, opts.USB) {
				return address, nil
			}
		}
		err := fmt.Errorf("%w: no USB resource matches %q", ErrNotFound, opts.USB)
		if listErr != nil {
			err = fmt.Errorf("%w (%v)", err, listErr)
		}
		return "", &TransportError{Op: "open", Err: err}
	}
	return "", &TransportError{
		Op: "open",
		Err: fmt.Errorf("%w: cannot connect to the device; check the communication cable "+
			"and give a GPIB address, a serial port or a USB identifier", ErrNoPort),
	}
}
