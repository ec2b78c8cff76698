package transport

import (
	"github.com/roach88/triplesync/internal/rdf"
)

// MessageType names a protocol frame.
type MessageType string

const (
	MsgHello   MessageType = "hello"
	MsgWelcome MessageType = "welcome"
	MsgPush    MessageType = "push"
	MsgAck     MessageType = "ack"
	MsgPull    MessageType = "pull"
	MsgTriples MessageType = "triples"
	MsgNotify  MessageType = "notify"
	MsgError   MessageType = "error"
)

// Message is the single frame type of the wire protocol. Fields unused by
// a given Type are omitted.
type Message struct {
	Type       MessageType     `json:"type"`
	ID         string          `json:"id,omitempty"`
	Replica    rdf.ReplicaID   `json:"replica,omitempty"`
	Version    string          `json:"version,omitempty"`
	Operations []rdf.Operation `json:"operations,omitempty"`
	Exclude    rdf.ReplicaID   `json:"exclude,omitempty"`
	Triples    []rdf.Triple    `json:"triples,omitempty"`
	Accepted   int             `json:"accepted,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ErrorReply builds an error frame answering request id.
func ErrorReply(id string, err error) Message {
	return Message{Type: MsgError, ID: id, Error: err.Error()}
}
