package protocol

import "fmt"

// PayloadSizeError reports a command payload of the wrong length.
type PayloadSizeError struct {
	// Command is the command whose payload was being decoded
	Command Command

	// Expected is the fixed payload size for Command
	Expected int

	// Actual is the size that was received
	Actual int
}

func (e *PayloadSizeError) Error() string {
	return fmt.Sprintf("%s payload: expected %d bytes, got %d", e.Command, e.Expected, e.Actual)
}

// IsPayloadSizeError returns true if the error is a PayloadSizeError.
func IsPayloadSizeError(err error) bool {
	_, ok := err.(*PayloadSizeError)
	return ok
}
