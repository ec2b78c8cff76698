package rdf

// Version constants for the wire format and the engine.
const (
	// WireVersion is the JSON wire format version spoken by transports and the relay.
	WireVersion = "1"

	// EngineVersion is the triplesync engine version.
	EngineVersion = "0.1.0"
)
