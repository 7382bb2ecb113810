package ir

// Version constants for the wire format and engine.
const (
	// WireVersion is the instrumentation event schema version.
	WireVersion = "1"

	// EngineVersion is the filibuster engine version.
	EngineVersion = "0.1.0"

	// IndexVersion prefixes every execution index chain value.
	IndexVersion = "V1"
)
