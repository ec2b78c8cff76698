package syncer

import (
	"time"

	"github.com/roach88/triplesync/internal/rdf"
)

// State is the connection state of an Engine.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateSynced     State = "synced"
	StateError      State = "error"
)

// Status is a snapshot of an Engine for display.
type Status struct {
	State      State           `json:"state"`
	Endpoint   string          `json:"endpoint,omitempty"`
	Generation uint64          `json:"generation"`
	Watermark  rdf.LogicalTime `json:"watermark"`
	LastSync   time.Time       `json:"last_sync,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	Rounds     int             `json:"rounds"`
	LastReport Report          `json:"last_report"`
}

// Report describes one sync round.
type Report struct {
	Pushed  int `json:"pushed"`
	Pulled  int `json:"pulled"`
	Changed int `json:"changed"`

	PushErr error `json:"-"`
	PullErr error `json:"-"`
	// PersistErr is set when merged triples were applied in memory but the
	// durable write failed.
	PersistErr error `json:"-"`

	// Discarded is set when the connection was replaced mid-round and the
	// pulled triples were dropped.
	Discarded bool `json:"discarded,omitempty"`
}

// OK reports whether both halves of the round succeeded.
func (r Report) OK() bool {
	return r.PushErr == nil && r.PullErr == nil && !r.Discarded
}

func (r Report) result() string {
	switch {
	case r.Discarded:
		return "discarded"
	case r.PushErr != nil && r.PullErr != nil:
		return "failed"
	case r.PushErr != nil || r.PullErr != nil:
		return "partial"
	}
	return "ok"
}
