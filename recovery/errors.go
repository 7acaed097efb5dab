package recovery

import (
	"errors"
	"fmt"
)

// ErrDeviceNotFound indicates that no device matches the requested vendor and product IDs.
var ErrDeviceNotFound = errors.New("device not found")

// ErrInvalidArgument indicates a precondition violation by the caller.
var ErrInvalidArgument = errors.New("invalid argument")

// DeviceProtocolError indicates that the device descriptors do not expose the
// expected interface and endpoint shape.
type DeviceProtocolError struct {
	// Reason describes what was missing
	Reason string

	// Err is the underlying cause, if any
	Err error
}

func (e *DeviceProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("device protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("device protocol error: %s", e.Reason)
}

func (e *DeviceProtocolError) Unwrap() error {
	return e.Err
}

// TransportError indicates a failure at the USB transfer layer.
type TransportError struct {
	// Op is the operation that failed, e.g. "send LOAD" or "bulk write"
	Op string

	// Err is the error returned by the transport
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError returns true if err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDeviceProtocolError returns true if err is or wraps a DeviceProtocolError.
func IsDeviceProtocolError(err error) bool {
	var pe *DeviceProtocolError
	return errors.As(err, &pe)
}

// errShortWrite is reported when the transport accepts nothing and reports no error.
var errShortWrite = errors.New("bulk write made no progress")
