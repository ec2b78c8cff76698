package transport

import (
	"context"

	"github.com/roach88/triplesync/internal/rdf"
)

// EventKind classifies connection events.
type EventKind int

const (
	// EventConnected fires once the handshake completed.
	EventConnected EventKind = iota + 1
	// EventNotify fires when the relay reports a change by another replica.
	EventNotify
	// EventDisconnected fires once when the connection ends. Err is nil
	// after a local Close.
	EventDisconnected
	// EventError reports a relay error not tied to a request.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventNotify:
		return "notify"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is delivered on Conn.Events.
type Event struct {
	Kind EventKind
	Err  error
}

// Conn is an established, handshaken connection to a relay.
//
// Push and Pull may be called concurrently. Events is closed after
// EventDisconnected.
type Conn interface {
	// Push sends operations. An empty slice is a no-op.
	Push(ctx context.Context, ops []rdf.Operation) error

	// Pull returns the relay's registers whose writer is not exclude.
	// The result is never nil.
	Pull(ctx context.Context, exclude rdf.ReplicaID) ([]rdf.Triple, error)

	Events() <-chan Event

	Close() error
}

// Transport dials relays on behalf of one replica.
type Transport interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}
