package ir

// Version constants for the wire format and engine.
const (
	// WireVersion is the action payload schema version.
	WireVersion = "1"

	// EngineVersion is the stockroom engine version.
	EngineVersion = "0.1.0"
)
