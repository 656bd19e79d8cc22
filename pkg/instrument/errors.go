package instrument

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
)

var (
	// ErrUnsupportedOperation means the bound descriptor has no template for
	// the requested property. No command was sent.
	ErrUnsupportedOperation = errors.New("instrument: operation not supported by driver")

	// ErrWrongDriverKind means a multi-channel operation was used with a
	// descriptor that does not address channels.
	ErrWrongDriverKind = errors.New("instrument: wrong driver kind, use a multi-channel power supply driver")

	// ErrInvalidChannel rejects channel ids below 1.
	ErrInvalidChannel = errors.New("instrument: channel id must be >= 1")

	// ErrDiscoveryParse marks an identification reply that could not be
	// split into a Device. Discover never returns it.
	ErrDiscoveryParse = errors.New("instrument: malformed identification reply")
)

// OperationError reports which property failed on which driver kind.
type OperationError struct {
	Op     string
	Driver driver.Kind
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s (%s driver): %v", e.Op, e.Driver, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
