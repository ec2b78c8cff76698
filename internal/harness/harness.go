package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/triplesync/internal/engine"
	"github.com/roach88/triplesync/internal/projection"
	"github.com/roach88/triplesync/internal/rdf"
	"github.com/roach88/triplesync/internal/relay"
	"github.com/roach88/triplesync/internal/store/memstore"
	"github.com/roach88/triplesync/internal/syncer"
	"github.com/roach88/triplesync/internal/testutil"
)

// DefaultStart is the initial wall-clock reading when a scenario sets none.
const DefaultStart = 1000

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Replica string `json:"replica,omitempty"`
	Action  string `json:"action"`
	ID      string `json:"id,omitempty"`
	Pushed  int    `json:"pushed,omitempty"`
	Changed int    `json:"changed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReplicaState is the final state of one replica.
type ReplicaState struct {
	Digest string            `json:"digest"`
	Tasks  []projection.Task `json:"tasks"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as declared and every
	// assertion held.
	Pass     bool                    `json:"pass"`
	Trace    []TraceEvent            `json:"trace"`
	Errors   []string                `json:"errors,omitempty"`
	Replicas map[string]ReplicaState `json:"replicas"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Replicas: make(map[string]ReplicaState),
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// stepIDs hands out the id of the step being executed.
type stepIDs struct {
	next string
}

func (g *stepIDs) Generate() string {
	return g.next
}

// node is one replica under test with its clock, persistence and syncer.
type node struct {
	name    string
	wall    *testutil.ManualWallClock
	ids     *stepIDs
	store   *memstore.Store
	replica *engine.Replica
	sync    *syncer.Engine
}

// Harness executes scenarios against an in-process relay.
type Harness struct {
	hub    *relay.Hub
	nodes  map[string]*node
	order  []string
	room   string
	logger *slog.Logger
}

// Run executes a scenario and returns the result. The returned error is
// reserved for setup failures; step and assertion failures are reported in
// the result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := relay.NewMemoryBackend()
	h := &Harness{
		hub:    relay.NewHub(backend, relay.WithHubLogger(logger)),
		nodes:  make(map[string]*node, len(scenario.Replicas)),
		order:  scenario.Replicas,
		room:   scenario.Name,
		logger: logger,
	}
	defer func() {
		for _, n := range h.nodes {
			n.sync.Disconnect()
		}
		h.hub.Shutdown()
		_ = backend.Close()
	}()

	start := scenario.Start
	if start == 0 {
		start = DefaultStart
	}
	for _, name := range scenario.Replicas {
		n := &node{
			name:  name,
			wall:  testutil.NewManualWallClock(start),
			ids:   &stepIDs{},
			store: memstore.New(),
		}
		if err := h.open(ctx, n); err != nil {
			return nil, fmt.Errorf("replica %s: %w", name, err)
		}
		h.nodes[name] = n
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.execute(ctx, i+1, step, result)
	}

	for _, name := range h.order {
		n := h.nodes[name]
		digest, err := n.replica.Digest()
		if err != nil {
			return nil, fmt.Errorf("replica %s: digest: %w", name, err)
		}
		result.Replicas[name] = ReplicaState{Digest: digest, Tasks: n.replica.List()}
	}
	for i, a := range scenario.Assertions {
		if err := h.check(a, result); err != nil {
			result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return result, nil
}

func (h *Harness) open(ctx context.Context, n *node) error {
	r, err := engine.Open(ctx,
		engine.WithReplicaID(rdf.ReplicaID(n.name)),
		engine.WithPersistence(n.store),
		engine.WithWallClock(n.wall.Millis),
		engine.WithIDGenerator(n.ids),
		engine.WithLogger(h.logger),
	)
	if err != nil {
		return err
	}
	n.replica = r
	n.sync = syncer.New(r, h.hub.Transport(h.room, r.ID()),
		syncer.Config{Endpoint: "inproc://" + h.room},
		syncer.WithLogger(h.logger),
	)
	return nil
}

func (h *Harness) execute(ctx context.Context, seq int, step Step, result *Result) {
	if step.Action == ActionSyncAll {
		for pass := 0; pass < 2; pass++ {
			for _, name := range h.order {
				ev := h.syncNode(ctx, h.nodes[name])
				ev.Seq = seq
				h.record(result, step, ev)
			}
		}
		return
	}

	n := h.nodes[step.Replica]
	if step.At != 0 {
		n.wall.Set(step.At)
	}

	ev := TraceEvent{Seq: seq, Replica: n.name, Action: step.Action, ID: step.ID}
	var err error
	switch step.Action {
	case ActionAdd:
		n.ids.next = step.ID
		_, err = n.replica.CreateTask(ctx, step.Title)
	case ActionRename:
		err = n.replica.SetField(ctx, step.ID, "title", rdf.String(step.Title))
	case ActionToggle:
		_, err = n.replica.ToggleField(ctx, step.ID, "completed")
	case ActionDelete:
		err = n.replica.Delete(ctx, step.ID)
	case ActionSync:
		ev = h.syncNode(ctx, n)
		ev.Seq = seq
	case ActionDisconnect:
		n.sync.Disconnect()
	case ActionRestart:
		n.sync.Disconnect()
		err = h.open(ctx, n)
	}
	if err != nil {
		ev.Error = err.Error()
	}
	h.record(result, step, ev)
}

func (h *Harness) syncNode(ctx context.Context, n *node) TraceEvent {
	ev := TraceEvent{Replica: n.name, Action: ActionSync}
	if n.sync.Status().State != syncer.StateSynced {
		if err := n.sync.Connect(ctx); err != nil {
			ev.Error = err.Error()
			return ev
		}
		// Connect ran the first round already.
		last := n.sync.Status().LastReport
		ev.Pushed, ev.Changed = last.Pushed, last.Changed
		ev.Error = reportError(last)
		return ev
	}
	report := n.sync.Sync(ctx)
	ev.Pushed, ev.Changed = report.Pushed, report.Changed
	ev.Error = reportError(report)
	return ev
}

func reportError(r syncer.Report) string {
	if err := errors.Join(r.PushErr, r.PullErr, r.PersistErr); err != nil {
		return err.Error()
	}
	return ""
}

func (h *Harness) record(result *Result, step Step, ev TraceEvent) {
	result.Trace = append(result.Trace, ev)
	switch {
	case step.ExpectError && ev.Error == "":
		result.AddError(fmt.Sprintf("step %d (%s on %s): expected an error", ev.Seq, ev.Action, ev.Replica))
	case !step.ExpectError && ev.Error != "":
		result.AddError(fmt.Sprintf("step %d (%s on %s): %s", ev.Seq, ev.Action, ev.Replica, ev.Error))
	}
}
