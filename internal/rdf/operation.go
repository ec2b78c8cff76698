package rdf

import (
	"fmt"
	"strconv"
	"strings"
)

// OpKind classifies an operation.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Valid reports whether k is a known kind.
func (k OpKind) Valid() bool {
	switch k {
	case OpAdd, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Operation is one causally-atomic local mutation.
// Operations are immutable once created and never rewritten in the log.
type Operation struct {
	ID        string      `json:"id" validate:"required"`
	Kind      OpKind      `json:"kind" validate:"oneof=add update delete"`
	Triples   []Triple    `json:"triples" validate:"required,min=1,dive"`
	Timestamp LogicalTime `json:"timestamp" validate:"gt=0,lte=9007199254740991"`
	ReplicaID ReplicaID   `json:"replica_id" validate:"required"`
}

// OperationID formats the id for an operation: "op-<timestamp>-<replica>".
func OperationID(ts LogicalTime, replica ReplicaID) string {
	return "op-" + strconv.FormatInt(int64(ts), 10) + "-" + string(replica)
}

// ParseOperationID splits an operation id into its timestamp and replica.
func ParseOperationID(id string) (LogicalTime, ReplicaID, error) {
	rest, ok := strings.CutPrefix(id, "op-")
	if !ok {
		return 0, "", fmt.Errorf("operation id %q: missing op- prefix", id)
	}
	tsPart, replica, ok := strings.Cut(rest, "-")
	if !ok || replica == "" {
		return 0, "", fmt.Errorf("operation id %q: missing replica", id)
	}
	ts, err := strconv.ParseInt(tsPart, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("operation id %q: %w", id, err)
	}
	return LogicalTime(ts), ReplicaID(replica), nil
}

// NewOperation builds an operation stamped at ts.
func NewOperation(kind OpKind, triples []Triple, ts LogicalTime, replica ReplicaID) Operation {
	return Operation{
		ID:        OperationID(ts, replica),
		Kind:      kind,
		Triples:   triples,
		Timestamp: ts,
		ReplicaID: replica,
	}
}
