package dei

import (
	"errors"
	"fmt"
)

// ErrEmptyIndex is returned by Pop on an index with no frames. It signals a
// call/return mismatch in instrumentation and must not be absorbed.
var ErrEmptyIndex = errors.New("execution index out of bounds: pop on empty index")

// SerializationError is returned when an execution index cannot be
// deserialized at all. Only a null input produces it; malformed entries are
// truncated instead.
type SerializationError struct {
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("execution index serialization: %s", e.Reason)
}

// IsSerializationError returns true if err is a SerializationError.
// Uses errors.As to handle wrapped errors.
func IsSerializationError(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}
