package fuzzer

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ways a probe can fail.
// Callers should use errors.Is() to check for these.
var (
	// ErrTransport indicates a request could not be sent or its response
	// could not be read.
	ErrTransport = errors.New("fuzzer: transport failure")

	// ErrMalformedBody indicates a value could not be serialized or
	// matched against the request body.
	ErrMalformedBody = errors.New("fuzzer: malformed body")

	// ErrParameterNotFound indicates the parameter could not be located
	// for removal or substitution.
	ErrParameterNotFound = errors.New("fuzzer: parameter not found")
)

// ProbeError records why the probe of one insertion point was abandoned
type ProbeError struct {
	Point string
	Kind  string
	URL   string
	Err   error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe of %s parameter %q on %s failed: %v", e.Kind, e.Point, e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}
