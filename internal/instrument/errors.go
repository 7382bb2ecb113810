package instrument

import (
	"errors"
	"fmt"

	"github.com/roach88/filibuster/internal/ir"
)

// ErrUnsupported is returned when the middleware cannot apply a directive
// to the call it intercepted. Callers must allow for it explicitly.
var ErrUnsupported = errors.New("unsupported fault for this call")

// FaultError is an injected exception surfaced to the caller in place of
// the real response.
type FaultError struct {
	Fault          ir.Fault
	Service        string
	Method         string
	ExecutionIndex string
}

// Error implements the error interface.
func (e *FaultError) Error() string {
	return fmt.Sprintf("injected fault %s at %s.%s", e.Fault, e.Service, e.Method)
}

// Exception returns the injected exception, or nil for other fault kinds.
func (e *FaultError) Exception() *ir.Exception {
	return e.Fault.Exception
}

// AsFaultError returns the FaultError in err's chain, if any.
func AsFaultError(err error) (*FaultError, bool) {
	var fe *FaultError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsFaultError reports whether err's chain holds a FaultError.
func IsFaultError(err error) bool {
	_, ok := AsFaultError(err)
	return ok
}
