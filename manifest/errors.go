package manifest

import "strconv"

// LoadError reports a manifest that could not be read or is invalid.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Line is the line number where the error occurred (0 if unknown).
	Line int

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	prefix := e.File
	if prefix == "" {
		prefix = "manifest"
	}
	if e.Line > 0 {
		prefix += ":" + strconv.Itoa(e.Line)
	}
	return prefix + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
