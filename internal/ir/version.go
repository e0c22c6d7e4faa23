package ir

// Version constants carried on actions and requests for compatibility checks.
const (
	// ProtocolVersion is the request schema version written on every Request
	// and expected on every core action.
	ProtocolVersion = "2.0"

	// EngineVersion is the reqlog engine version.
	EngineVersion = "0.1.0"
)
