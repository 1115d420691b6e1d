// Package spec holds the wire-level constants shared by the agent and
// controller engines: payload sizing, line markers, and retry timing.
// Nothing here is transport-specific — it describes the text protocol
// layered on top of whatever channel is carrying it.
package spec

import "time"

// Wire line markers. Classification in wire.Parse is purely lexical and
// depends on these exact prefixes appearing at the start of a line.
const (
	MarkerMsgID       = "MSG-ID:"
	MarkerHost        = "Host:"
	MarkerCmdReceived = "Cmd received:"
	MarkerOutput      = "Output:"
	MarkerChunk       = "CHUNK:"
	MarkerMore        = "more "
	MarkerDone        = "Done"
	MarkerOverflow    = "Output too long"
	MarkerNoOutput    = "<no output>"
)

// Payload sizing. MAX_PAYLOAD is a deployment parameter; 200 is the
// conservative default, 230 is also a valid choice for a less lossy link.
const (
	DefaultMaxPayload = 200
	LargeMaxPayload   = 230
)

// Timing defaults (§6 configuration table).
const (
	DefaultCommandTimeout = 20 * time.Second
	DefaultMoreDelay      = 1 * time.Second
	DefaultPortWait       = 30 * time.Second
	DefaultChannelIndex   = 1

	// AckGrace is how long the agent waits after sending an Ack before
	// storing chunks, so the controller has time to latch the command id.
	AckGrace = 100 * time.Millisecond
)

// Controller retry/backoff parameters (§4.7).
const (
	MaxMoreAttempts    = 200
	RetryBackoffFactor = 1.8
	MaxRetryDelay      = 60 * time.Second
	// PollInterval bounds how long the controller waits on a single inbound
	// frame before re-checking the retry/deadline condition.
	PollInterval = 1 * time.Second
)
