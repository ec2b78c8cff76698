package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/triplesync/internal/projection"
	"github.com/roach88/triplesync/internal/rdf"
)

// Replica is one independent copy of the store and the API the application
// calls into.
//
// Every local mutation is one transaction under a single mutex: read the
// current registers, build the triples, apply them, append the operation and
// write through to persistence. Listeners run after the mutex is released,
// so they may read the replica or mutate it again.
//
// Thread-safety model:
//   - All exported methods are safe from any goroutine
//   - Mutations are serialized; reads return snapshots
//   - Remote merges go through the same mutex as local writes
type Replica struct {
	mu sync.Mutex

	id       rdf.ReplicaID
	clock    *Clock
	triples  *TripleStore
	log      *OperationLog
	store    Persistence
	ontology rdf.Ontology
	ids      IDGenerator
	wall     WallClock
	logger   *slog.Logger

	listeners *listenerSet

	// dirty is set after a failed durable write. The next write then
	// rewrites the full state and re-appends unsaved operations.
	dirty   bool
	unsaved []rdf.Operation
}

// Option configures a Replica.
type Option func(*Replica)

// WithPersistence writes every mutation through p and loads state from it
// on Open. Without it the replica is memory-only.
func WithPersistence(p Persistence) Option {
	return func(r *Replica) {
		r.store = p
	}
}

// WithReplicaID pins the replica id instead of loading or generating one.
func WithReplicaID(id rdf.ReplicaID) Option {
	return func(r *Replica) {
		r.id = id
	}
}

// WithWallClock injects the wall-clock source of the replica clock.
func WithWallClock(w WallClock) Option {
	return func(r *Replica) {
		r.wall = w
	}
}

// WithIDGenerator sets the entity id generator (default UUIDv7Generator).
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Replica) {
		r.ids = g
	}
}

// WithOntology overrides rdf.DefaultOntology.
func WithOntology(o rdf.Ontology) Option {
	return func(r *Replica) {
		r.ontology = o
	}
}

// WithLogger sets the structured logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(r *Replica) {
		r.logger = l
	}
}

// Open constructs a replica and restores its persisted state.
//
// The replica id comes from WithReplicaID, else from an IdentityStore
// adapter, else is generated (and saved when the adapter can). The clock
// resumes past the highest timestamp found in the loaded triples and
// operations.
func Open(ctx context.Context, opts ...Option) (*Replica, error) {
	r := &Replica{
		triples:   NewTripleStore(),
		log:       NewOperationLog(),
		ontology:  rdf.DefaultOntology,
		ids:       UUIDv7Generator{},
		logger:    slog.Default(),
		listeners: newListenerSet(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.resolveID(ctx); err != nil {
		return nil, err
	}

	var start rdf.LogicalTime
	if r.store != nil {
		loaded, err := r.store.LoadTriples(ctx)
		if err != nil {
			return nil, NewPersistenceError("open", fmt.Errorf("load triples: %w", err))
		}
		if _, err := r.triples.Apply(loaded); err != nil {
			return nil, fmt.Errorf("open: persisted triples: %w", err)
		}

		ops, err := r.store.LoadOperations(ctx, 0)
		if err != nil {
			return nil, NewPersistenceError("open", fmt.Errorf("load operations: %w", err))
		}
		for _, op := range ops {
			r.log.Append(op)
		}
		start = r.triples.MaxTimestamp()
		if last, ok := r.log.Last(); ok {
			start = max(start, last.Timestamp)
		}
	}
	r.clock = NewClockAt(start, r.wall)

	r.logger.Debug("replica opened",
		"replica", r.id,
		"triples", r.triples.Len(),
		"operations", r.log.Len(),
		"clock", start,
	)
	return r, nil
}

func (r *Replica) resolveID(ctx context.Context) error {
	if r.id != "" {
		return nil
	}
	ident, ok := r.store.(IdentityStore)
	if !ok {
		r.id = NewReplicaID()
		return nil
	}
	id, err := ident.LoadReplicaID(ctx)
	if err != nil {
		return NewPersistenceError("open", fmt.Errorf("load replica id: %w", err))
	}
	if id != "" {
		r.id = id
		return nil
	}
	r.id = NewReplicaID()
	if err := ident.SaveReplicaID(ctx, r.id); err != nil {
		return NewPersistenceError("open", fmt.Errorf("save replica id: %w", err))
	}
	r.logger.Info("generated replica id", "replica", r.id)
	return nil
}

// ID returns the replica id.
func (r *Replica) ID() rdf.ReplicaID {
	return r.id
}

// Ontology returns the ontology used for projection and attribute names.
func (r *Replica) Ontology() rdf.Ontology {
	return r.ontology
}

// Clock returns the replica clock.
func (r *Replica) Clock() *Clock {
	return r.clock
}

// commit runs one local mutation as a single transaction. build is called
// under the mutex with the operation's timestamp and returns the triples to
// write; it may read the current registers.
func (r *Replica) commit(
	ctx context.Context,
	opName string,
	kind rdf.OpKind,
	build func(ts rdf.LogicalTime) ([]rdf.Triple, error),
) (rdf.Operation, error) {
	r.mu.Lock()

	ts := r.clock.Next()
	triples, err := build(ts)
	if err != nil {
		r.mu.Unlock()
		return rdf.Operation{}, err
	}

	op := rdf.NewOperation(kind, triples, ts, r.id)
	if err := ValidateOperation(opName, op); err != nil {
		r.mu.Unlock()
		return rdf.Operation{}, err
	}
	changed, err := r.triples.Apply(triples)
	if err != nil {
		r.mu.Unlock()
		return rdf.Operation{}, err
	}
	r.log.Append(op)
	perr := r.persist(ctx, opName, changed, &op)
	r.mu.Unlock()

	r.logger.Debug("applied local operation",
		"op", op.ID,
		"kind", op.Kind,
		"triples", len(triples),
		"changed", len(changed),
	)

	// In-memory state is authoritative even when the durable write failed,
	// so listeners always see the change.
	r.listeners.notify(Change{Origin: OriginLocal, Changed: changed, Operation: &op})
	return op, perr
}

// persist writes a change through to the adapter. Must hold r.mu.
func (r *Replica) persist(ctx context.Context, opName string, changed []rdf.Triple, op *rdf.Operation) error {
	if r.store == nil {
		return nil
	}

	var err error
	switch bw, ok := r.store.(BatchWriter); {
	case r.dirty:
		err = r.saveAll(ctx, op)
	case ok:
		err = bw.WriteBatch(ctx, changed, op)
	default:
		if len(changed) > 0 {
			err = r.store.SaveTriples(ctx, r.triples.All())
		}
		if err == nil && op != nil {
			err = r.store.AppendOperation(ctx, *op)
		}
	}

	if err != nil {
		r.dirty = true
		if op != nil {
			r.unsaved = append(r.unsaved, *op)
		}
		r.logger.Error("persistence write failed",
			"op", opName,
			"unsaved_operations", len(r.unsaved),
			"error", err,
		)
		return NewPersistenceError(opName, err)
	}
	if r.dirty {
		r.logger.Info("persistence recovered", "op", opName, "operations", len(r.unsaved))
	}
	r.dirty = false
	r.unsaved = nil
	return nil
}

// saveAll rewrites the full state after an earlier failure. Must hold r.mu.
func (r *Replica) saveAll(ctx context.Context, op *rdf.Operation) error {
	if err := r.store.SaveTriples(ctx, r.triples.All()); err != nil {
		return err
	}
	for _, pending := range r.unsaved {
		if err := r.store.AppendOperation(ctx, pending); err != nil {
			return err
		}
	}
	if op != nil {
		return r.store.AppendOperation(ctx, *op)
	}
	return nil
}

// Flush retries a failed durable write. It is a no-op when nothing is
// pending.
func (r *Replica) Flush(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil || !r.dirty {
		return nil
	}
	if err := r.saveAll(ctx, nil); err != nil {
		return NewPersistenceError("flush", err)
	}
	r.dirty = false
	r.unsaved = nil
	return nil
}

// Dirty reports whether a durable write is pending after a failure.
func (r *Replica) Dirty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// normalize applies NFC to string literals.
func normalize(v rdf.Value) rdf.Value {
	if s, ok := v.(rdf.String); ok {
		return rdf.String(norm.NFC.String(string(s)))
	}
	return v
}

// CreateEntity writes a new task subject with the given attributes as one
// add operation and returns its id. Attribute names are ontology field names
// ("title", "completed", ...) or full predicate IRIs.
func (r *Replica) CreateEntity(ctx context.Context, attrs map[string]rdf.Value) (string, error) {
	type attr struct {
		predicate string
		value     rdf.Value
	}
	resolved := make([]attr, 0, len(attrs))
	for name, v := range attrs {
		predicate, ok := r.ontology.Field(name)
		if !ok {
			return "", NewValidationError("create", -1, name, "unknown attribute")
		}
		if v == nil || rdf.IsDeleted(v) {
			return "", NewValidationError("create", -1, name, "value is required")
		}
		if predicate == r.ontology.Type {
			continue
		}
		resolved = append(resolved, attr{predicate: predicate, value: normalize(v)})
	}
	slices.SortFunc(resolved, func(a, b attr) int { return strings.Compare(a.predicate, b.predicate) })

	id := r.ids.Generate()
	subject := projection.SubjectFor(r.ontology, id)
	_, err := r.commit(ctx, "create", rdf.OpAdd, func(ts rdf.LogicalTime) ([]rdf.Triple, error) {
		triples := make([]rdf.Triple, 0, len(resolved)+1)
		triples = append(triples, r.triple(subject, r.ontology.Type, rdf.IRI(r.ontology.TaskClass), ts))
		for _, a := range resolved {
			triples = append(triples, r.triple(subject, a.predicate, a.value, ts))
		}
		return triples, nil
	})
	if err != nil && !IsPersistenceError(err) {
		return "", err
	}
	return id, err
}

// CreateTask creates a task with the given title, not completed: three
// triples (type, title, completed) in one operation.
func (r *Replica) CreateTask(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", NewValidationError("create", -1, "title", "is required")
	}
	return r.CreateEntity(ctx, map[string]rdf.Value{
		"title":     rdf.String(title),
		"completed": rdf.Bool(false),
	})
}

func (r *Replica) triple(subject, predicate string, v rdf.Value, ts rdf.LogicalTime) rdf.Triple {
	return rdf.Triple{Subject: subject, Predicate: predicate, Object: v, Timestamp: ts, ReplicaID: r.id}
}

// requireEntity fails with NOT_FOUND unless subject has a live type triple.
// Must hold r.mu.
func (r *Replica) requireEntity(opName, id, subject string) error {
	if _, ok := r.triples.Live(subject, r.ontology.Type); !ok {
		return NewNotFoundError(opName, id)
	}
	return nil
}

// ToggleField flips a boolean attribute and stamps updatedAt, reading and
// writing in one transaction. An absent attribute reads as false. It returns
// the new value.
func (r *Replica) ToggleField(ctx context.Context, id, field string) (bool, error) {
	predicate, ok := r.ontology.Field(field)
	if !ok {
		return false, NewValidationError("toggle", -1, field, "unknown attribute")
	}
	subject := projection.SubjectFor(r.ontology, id)

	var next bool
	_, err := r.commit(ctx, "toggle", rdf.OpUpdate, func(ts rdf.LogicalTime) ([]rdf.Triple, error) {
		if err := r.requireEntity("toggle", id, subject); err != nil {
			return nil, err
		}
		var cur bool
		if t, ok := r.triples.Live(subject, predicate); ok {
			b, isBool := rdf.AsBool(t.Object)
			if !isBool {
				return nil, NewValidationError("toggle", -1, field, "current value is not a boolean")
			}
			cur = b
		}
		next = !cur
		return r.withUpdatedAt(subject, predicate, []rdf.Triple{
			r.triple(subject, predicate, rdf.Bool(next), ts),
		}, ts), nil
	})
	return next, err
}

// SetField overwrites one attribute and stamps updatedAt.
func (r *Replica) SetField(ctx context.Context, id, field string, value rdf.Value) error {
	predicate, ok := r.ontology.Field(field)
	if !ok {
		return NewValidationError("set", -1, field, "unknown attribute")
	}
	if value == nil || rdf.IsDeleted(value) {
		return NewValidationError("set", -1, field, "value is required")
	}
	if predicate == r.ontology.Title {
		s, _ := rdf.AsString(value)
		if strings.TrimSpace(s) == "" {
			return NewValidationError("set", -1, field, "is required")
		}
		value = rdf.String(strings.TrimSpace(s))
	}
	value = normalize(value)
	subject := projection.SubjectFor(r.ontology, id)

	_, err := r.commit(ctx, "set", rdf.OpUpdate, func(ts rdf.LogicalTime) ([]rdf.Triple, error) {
		if err := r.requireEntity("set", id, subject); err != nil {
			return nil, err
		}
		return r.withUpdatedAt(subject, predicate, []rdf.Triple{
			r.triple(subject, predicate, value, ts),
		}, ts), nil
	})
	return err
}

func (r *Replica) withUpdatedAt(subject, predicate string, triples []rdf.Triple, ts rdf.LogicalTime) []rdf.Triple {
	if predicate == r.ontology.UpdatedAt {
		return triples
	}
	return append(triples, r.triple(subject, r.ontology.UpdatedAt, rdf.Int(ts), ts))
}

// Delete tombstones every live register of the entity. The type tombstone
// is what removes it from List; the rest keeps exports clean.
func (r *Replica) Delete(ctx context.Context, id string) error {
	subject := projection.SubjectFor(r.ontology, id)
	_, err := r.commit(ctx, "delete", rdf.OpDelete, func(ts rdf.LogicalTime) ([]rdf.Triple, error) {
		if err := r.requireEntity("delete", id, subject); err != nil {
			return nil, err
		}
		var triples []rdf.Triple
		for _, t := range r.triples.ForSubject(subject) {
			if !t.IsTombstone() {
				triples = append(triples, r.triple(subject, t.Predicate, rdf.Deleted, ts))
			}
		}
		return triples, nil
	})
	return err
}

// Remove tombstones a single register. Physical deletion never happens: a
// tombstone with a fresh timestamp is what lets a removal out-race older
// concurrent updates on other replicas.
func (r *Replica) Remove(ctx context.Context, subject, predicate string) error {
	_, err := r.commit(ctx, "remove", rdf.OpDelete, func(ts rdf.LogicalTime) ([]rdf.Triple, error) {
		if _, ok := r.triples.Live(subject, predicate); !ok {
			return nil, NewNotFoundError("remove", rdf.RegisterKey(subject, predicate))
		}
		return []rdf.Triple{r.triple(subject, predicate, rdf.Deleted, ts)}, nil
	})
	return err
}

// Merge folds remote triples into the replica: apply(merge(local, remote)).
// The clock witnesses every remote timestamp. It returns how many registers
// changed; listeners are notified only when that is non-zero.
func (r *Replica) Merge(ctx context.Context, remote []rdf.Triple) (int, error) {
	if err := ValidateTriples("merge", remote); err != nil {
		return 0, err
	}

	r.mu.Lock()
	merged := Merge(r.triples.All(), remote)
	changed, err := r.triples.Apply(merged)
	if err != nil {
		r.mu.Unlock()
		return 0, err
	}
	for _, t := range remote {
		r.clock.Witness(t.Timestamp)
	}
	var perr error
	if len(changed) > 0 {
		perr = r.persist(ctx, "merge", changed, nil)
	}
	r.mu.Unlock()

	if len(changed) > 0 {
		r.logger.Debug("merged remote triples", "received", len(remote), "changed", len(changed))
		r.listeners.notify(Change{Origin: OriginRemote, Changed: changed})
	}
	return len(changed), perr
}

// List projects the current triples into tasks in display order.
func (r *Replica) List() []projection.Task {
	return projection.SortForDisplay(projection.Project(r.triples.All(), r.ontology))
}

// Task returns one projected task.
func (r *Replica) Task(id string) (projection.Task, bool) {
	subject := projection.SubjectFor(r.ontology, id)
	tasks := projection.Project(r.triples.ForSubject(subject), r.ontology)
	if len(tasks) == 0 {
		return projection.Task{}, false
	}
	return tasks[0], true
}

// Triples returns a sorted snapshot of every register, tombstones included.
func (r *Replica) Triples() []rdf.Triple {
	return r.triples.All()
}

// TriplesFor returns a sorted snapshot of one subject's registers.
func (r *Replica) TriplesFor(subject string) []rdf.Triple {
	return r.triples.ForSubject(subject)
}

// OperationsSince returns logged operations with timestamp > ts.
func (r *Replica) OperationsSince(ts rdf.LogicalTime) []rdf.Operation {
	return r.log.Since(ts)
}

// Operation looks up one operation by id, preferring the durable record
// when the adapter can read it.
func (r *Replica) Operation(ctx context.Context, id string) (rdf.Operation, error) {
	ts, _, err := rdf.ParseOperationID(id)
	if err != nil {
		return rdf.Operation{}, NewValidationError("operation", -1, "ID", err.Error())
	}
	if reader, ok := r.store.(OperationReader); ok {
		op, found, err := reader.ReadOperation(ctx, id)
		if err != nil {
			return rdf.Operation{}, NewPersistenceError("operation", err)
		}
		if found {
			return op, nil
		}
	}
	for _, op := range r.log.Since(ts - 1) {
		if op.ID == id {
			return op, nil
		}
	}
	return rdf.Operation{}, &Error{
		Code:    ErrCodeNotFound,
		Op:      "operation",
		Index:   -1,
		Message: fmt.Sprintf("operation %q not found", id),
	}
}

// Subscribe registers fn to run after every apply that changed state.
func (r *Replica) Subscribe(fn Listener) Subscription {
	return r.listeners.add(fn)
}

// Unsubscribe removes the listener behind sub.
func (r *Replica) Unsubscribe(sub Subscription) {
	sub.Unsubscribe()
}

// Digest returns the content hash of the triple set.
func (r *Replica) Digest() (string, error) {
	return rdf.Digest(r.triples.All())
}

// Export syntaxes accepted by ExportGraph.
const (
	SyntaxTurtle = "turtle"
	SyntaxJSON   = "json"
)

// ExportGraph writes the graph in a human-readable form: Turtle (live
// triples only) or indented JSON (every register, tombstones included).
func (r *Replica) ExportGraph(w io.Writer, syntax string) error {
	triples := r.triples.All()
	switch syntax {
	case SyntaxTurtle, "":
		return rdf.WriteTurtle(w, triples)
	case SyntaxJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(triples)
	}
	return fmt.Errorf("export: unknown syntax %q (want %s or %s)", syntax, SyntaxTurtle, SyntaxJSON)
}

// Stats summarizes the replica for status output.
type Stats struct {
	ReplicaID  rdf.ReplicaID   `json:"replica_id"`
	Registers  int             `json:"registers"`
	Live       int             `json:"live"`
	Tasks      int             `json:"tasks"`
	Operations int             `json:"operations"`
	Clock      rdf.LogicalTime `json:"clock"`
	Digest     string          `json:"digest"`
	Dirty      bool            `json:"dirty"`
}

// Stats returns counts and the graph digest.
func (r *Replica) Stats() (Stats, error) {
	triples := r.triples.All()
	live := 0
	for _, t := range triples {
		if !t.IsTombstone() {
			live++
		}
	}
	digest, err := rdf.Digest(triples)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		ReplicaID:  r.id,
		Registers:  len(triples),
		Live:       live,
		Tasks:      len(projection.Project(triples, r.ontology)),
		Operations: r.log.Len(),
		Clock:      r.clock.Current(),
		Digest:     digest,
		Dirty:      r.Dirty(),
	}, nil
}
