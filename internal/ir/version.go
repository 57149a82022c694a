package ir

// Version constants for the record schema and engine.
const (
	// IRVersion is the event log schema version.
	IRVersion = "1"

	// EngineVersion is the rps engine version.
	EngineVersion = "0.1.0"
)
