package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/filibuster/internal/ir"
)

// marshalFaults converts a fault assignment to canonical JSON TEXT.
// Uses RFC 8785 canonical JSON so equal assignments store identical text.
func marshalFaults(faults []ir.ScheduledFault) (string, error) {
	arr := make(ir.IRArray, 0, len(faults))
	for _, sf := range faults {
		arr = append(arr, ir.IRObject{
			"execution_index": ir.IRString(sf.ExecutionIndex),
			"fault":           sf.Fault.IR(),
		})
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal faults: %w", err)
	}
	return string(data), nil
}

// unmarshalFaults parses the stored fault assignment.
// Returns an empty slice (not nil) for an empty assignment.
func unmarshalFaults(data string) ([]ir.ScheduledFault, error) {
	faults := []ir.ScheduledFault{}
	if data == "" || data == "[]" {
		return faults, nil
	}
	if err := json.Unmarshal([]byte(data), &faults); err != nil {
		return nil, fmt.Errorf("unmarshal faults: %w", err)
	}
	return faults, nil
}

// marshalEvent converts an event to JSON TEXT.
// Uses json.Encoder with HTML escaping disabled so payload text is stored
// verbatim.
func marshalEvent(ev ir.Event) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalEvent parses a stored event body.
func unmarshalEvent(data string) (ir.Event, error) {
	var ev ir.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return ir.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return ev, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
