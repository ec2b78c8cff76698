package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/roach88/triplesync/internal/engine"
	"github.com/roach88/triplesync/internal/rdf"
	"github.com/roach88/triplesync/internal/transport"
)

// ErrNotConnected is reported by Sync when there is no live connection.
var ErrNotConnected = errors.New("sync: not connected")

// ErrStale is returned by Connect when the endpoint changed or Disconnect
// was called while dialing.
var ErrStale = errors.New("sync: connection superseded")

// Defaults.
const (
	DefaultInterval       = 30 * time.Second
	DefaultRetryDelay     = 3 * time.Second
	DefaultRequestTimeout = 10 * time.Second
)

// Config tunes an Engine. Zero values take the defaults.
type Config struct {
	Endpoint string

	// Interval between periodic rounds while synced.
	Interval time.Duration

	// RetryDelay is the reconnect delay. With MaxRetryDelay set, it is the
	// first delay of a capped exponential backoff; otherwise it is flat.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration

	// RequestTimeout bounds each push and pull.
	RequestTimeout time.Duration

	// PushOnChange runs a round after every local mutation.
	PushOnChange bool
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	return c
}

func (c Config) backOff() backoff.BackOff {
	if c.MaxRetryDelay <= c.RetryDelay {
		return backoff.NewConstantBackOff(c.RetryDelay)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.RetryDelay
	b.MaxInterval = c.MaxRetryDelay
	b.Reset()
	return b
}

// Engine drives sync rounds for one replica.
//
// Thread-safety: all methods are safe for concurrent use. Rounds are
// serialized; state changes are guarded by mu.
type Engine struct {
	replica   *engine.Replica
	transport transport.Transport
	cfg       Config
	logger    *slog.Logger

	roundMu sync.Mutex

	// applyMu is held while pulled triples are checked against the
	// generation and merged. Teardown takes it before mu, so nothing pulled
	// on a connection is applied once that connection is torn down.
	applyMu sync.Mutex

	mu        sync.Mutex
	state     State
	endpoint  string
	wanted    bool
	conn      transport.Conn
	dialing   chan struct{}
	gen       uint64
	watermark rdf.LogicalTime
	lastSync  time.Time
	lastErr   string
	rounds    int
	last      Report
	backoff   backoff.BackOff
	observers map[int]func(Status)
	nextObs   int

	// kick and reconnect wake the Run loop. Buffered with size 1 so that
	// repeated signals coalesce.
	kick      chan struct{}
	reconnect chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an idle engine. cfg.Endpoint, when set, is used by the first
// Connect.
func New(replica *engine.Replica, tr transport.Transport, cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		replica:   replica,
		transport: tr,
		cfg:       cfg,
		logger:    slog.Default(),
		state:     StateIdle,
		endpoint:  cfg.Endpoint,
		backoff:   cfg.backOff(),
		observers: make(map[int]func(Status)),
		kick:      make(chan struct{}, 1),
		reconnect: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Kick asks the Run loop for a round as soon as possible.
func (e *Engine) Kick() {
	signal(e.kick)
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

func (e *Engine) statusLocked() Status {
	return Status{
		State:      e.state,
		Endpoint:   e.endpoint,
		Generation: e.gen,
		Watermark:  e.watermark,
		LastSync:   e.lastSync,
		LastError:  e.lastErr,
		Rounds:     e.rounds,
		LastReport: e.last,
	}
}

// OnStatus registers fn to run after every state change. The returned
// function unregisters it.
func (e *Engine) OnStatus(fn func(Status)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.observers, id)
	}
}

// setState must be called with mu held; it returns the observers to notify
// and the snapshot to give them once mu is released.
func (e *Engine) setState(s State, err error) (func(), bool) {
	changed := e.state != s
	e.state = s
	if err != nil {
		e.lastErr = err.Error()
	} else if s != StateError {
		e.lastErr = ""
	}
	snap := e.statusLocked()
	fns := make([]func(Status), 0, len(e.observers))
	for _, fn := range e.observers {
		fns = append(fns, fn)
	}
	return func() {
		for _, fn := range fns {
			fn(snap)
		}
	}, changed
}

// Configure sets the relay endpoint. An empty endpoint tears the connection
// down and leaves the engine idle; a different endpoint replaces the
// current connection and wakes the Run loop to reconnect.
func (e *Engine) Configure(endpoint string) {
	e.applyMu.Lock()
	e.mu.Lock()
	if endpoint == e.endpoint && (endpoint == "" || e.conn != nil || e.state == StateConnecting) {
		e.mu.Unlock()
		e.applyMu.Unlock()
		return
	}
	old := e.teardownLocked()
	e.endpoint = endpoint
	e.wanted = endpoint != ""
	e.backoff.Reset()
	notify, _ := e.setState(StateIdle, nil)
	e.mu.Unlock()
	e.applyMu.Unlock()

	closeConn(old)
	notify()
	if endpoint != "" {
		signal(e.reconnect)
	}
	e.logger.Info("sync endpoint configured", "endpoint", endpoint)
}

// teardownLocked bumps the generation and detaches the connection. The
// caller closes the returned conn after releasing mu.
func (e *Engine) teardownLocked() transport.Conn {
	e.gen++
	c := e.conn
	e.conn = nil
	return c
}

func closeConn(c transport.Conn) {
	if c != nil {
		_ = c.Close()
	}
}

// Connect dials the configured endpoint and runs an initial round. It is a
// no-op when already connected. A Run loop keeps the connection up after
// Connect until Disconnect.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.endpoint == "" {
		e.mu.Unlock()
		return errors.New("sync: no endpoint configured")
	}
	e.wanted = true
	if e.conn != nil {
		e.mu.Unlock()
		return nil
	}
	e.gen++
	gen := e.gen
	endpoint := e.endpoint
	ready := make(chan struct{})
	e.dialing = ready
	notify, _ := e.setState(StateConnecting, nil)
	e.mu.Unlock()
	notify()

	conn, err := e.transport.Dial(ctx, endpoint)

	e.mu.Lock()
	// Waiters in Sync re-read the state once mu is released.
	close(ready)
	if gen != e.gen {
		e.mu.Unlock()
		closeConn(conn)
		return ErrStale
	}
	if err != nil {
		notify, _ = e.setState(StateError, err)
		e.mu.Unlock()
		notify()
		connectAttempts.WithLabelValues("error").Inc()
		e.logger.Warn("connect failed", "endpoint", endpoint, "error", err)
		return fmt.Errorf("connect: %w", err)
	}
	e.conn = conn
	e.backoff.Reset()
	notify, _ = e.setState(StateSynced, nil)
	e.mu.Unlock()
	notify()
	connectAttempts.WithLabelValues("ok").Inc()
	e.logger.Info("connected", "endpoint", endpoint, "generation", gen)

	go e.watch(conn, gen)

	report := e.Sync(ctx)
	if !report.OK() {
		e.logger.Warn("initial sync incomplete",
			"push_error", report.PushErr,
			"pull_error", report.PullErr,
		)
	}
	return nil
}

// watch turns connection events into kicks and reconnects.
func (e *Engine) watch(conn transport.Conn, gen uint64) {
	for ev := range conn.Events() {
		switch ev.Kind {
		case transport.EventNotify:
			e.Kick()
		case transport.EventError:
			e.logger.Warn("relay error", "error", ev.Err)
		case transport.EventDisconnected:
			e.lost(gen, ev.Err)
		}
	}
}

// lost handles a dropped connection of generation gen.
func (e *Engine) lost(gen uint64, cause error) {
	e.applyMu.Lock()
	e.mu.Lock()
	if gen != e.gen || e.conn == nil {
		e.mu.Unlock()
		e.applyMu.Unlock()
		return
	}
	old := e.teardownLocked()
	if cause == nil {
		cause = errors.New("connection closed by relay")
	}
	notify, _ := e.setState(StateError, cause)
	e.mu.Unlock()
	e.applyMu.Unlock()

	closeConn(old)
	notify()
	e.logger.Warn("connection lost", "error", cause)
	signal(e.reconnect)
}

// Disconnect tears the connection down and leaves the engine idle until
// the next Connect or Configure; a Run loop does not reconnect on its own.
// Local state is untouched; the endpoint is kept for a later Connect. A
// merge already in progress completes before Disconnect returns, so it must
// not be called from a replica listener.
func (e *Engine) Disconnect() {
	e.applyMu.Lock()
	e.mu.Lock()
	e.wanted = false
	old := e.teardownLocked()
	notify, changed := e.setState(StateIdle, nil)
	e.mu.Unlock()
	e.applyMu.Unlock()

	closeConn(old)
	if changed {
		notify()
		e.logger.Info("disconnected")
	}
}

// awaitHandshake blocks while a Connect is dialing.
func (e *Engine) awaitHandshake(ctx context.Context) error {
	for {
		e.mu.Lock()
		dialing := e.dialing
		waiting := e.conn == nil && e.state == StateConnecting
		e.mu.Unlock()
		if !waiting {
			return nil
		}
		select {
		case <-dialing:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sync runs one push-then-pull round on the current connection. Called
// while Connecting, it waits for the handshake and runs after the initial
// round.
func (e *Engine) Sync(ctx context.Context) Report {
	var report Report
	if err := e.awaitHandshake(ctx); err != nil {
		report.PushErr = err
		report.PullErr = err
		return report
	}

	e.roundMu.Lock()
	defer e.roundMu.Unlock()

	start := time.Now()
	e.mu.Lock()
	conn, gen, watermark := e.conn, e.gen, e.watermark
	e.mu.Unlock()

	if conn == nil {
		report.PushErr = ErrNotConnected
		report.PullErr = ErrNotConnected
		return report
	}

	// Push.
	ops := e.replica.OperationsSince(watermark)
	if len(ops) > 0 {
		pctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
		err := conn.Push(pctx, ops)
		cancel()
		if err != nil {
			report.PushErr = err
			e.logger.Warn("push failed", "operations", len(ops), "error", err)
		} else {
			report.Pushed = len(ops)
			operationsPushed.Add(float64(len(ops)))
			e.mu.Lock()
			if gen == e.gen {
				e.watermark = max(e.watermark, ops[len(ops)-1].Timestamp)
			}
			e.mu.Unlock()
		}
	}

	// Pull.
	pctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	remote, err := conn.Pull(pctx, e.replica.ID())
	cancel()
	if err != nil {
		report.PullErr = err
		e.logger.Warn("pull failed", "error", err)
	} else {
		report.Pulled = len(remote)
		triplesPulled.Add(float64(len(remote)))

		e.applyMu.Lock()
		e.mu.Lock()
		stale := gen != e.gen
		e.mu.Unlock()
		if stale {
			report.Discarded = true
			e.logger.Debug("discarding stale pull", "generation", gen, "triples", len(remote))
		} else {
			changed, err := e.replica.Merge(ctx, remote)
			report.Changed = changed
			if err != nil {
				if engine.IsPersistenceError(err) {
					report.PersistErr = err
				} else {
					report.PullErr = err
				}
				e.logger.Error("merge failed", "error", err)
			}
		}
		e.applyMu.Unlock()
	}

	roundsTotal.WithLabelValues(report.result()).Inc()
	roundDuration.Observe(time.Since(start).Seconds())
	e.finishRound(gen, report)

	e.logger.Debug("sync round",
		"pushed", report.Pushed,
		"pulled", report.Pulled,
		"changed", report.Changed,
		"result", report.result(),
	)
	return report
}

// finishRound records the outcome of a round on generation gen. A pull
// that failed on the network marks the connection as broken.
func (e *Engine) finishRound(gen uint64, r Report) {
	e.applyMu.Lock()
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		e.applyMu.Unlock()
		return
	}
	e.rounds++
	e.last = r
	if r.PushErr == nil && r.PullErr == nil {
		e.lastSync = time.Now()
		e.lastErr = ""
		e.mu.Unlock()
		e.applyMu.Unlock()
		return
	}

	err := errors.Join(r.PushErr, r.PullErr)
	if !transport.IsNetworkError(r.PullErr) {
		e.lastErr = err.Error()
		e.mu.Unlock()
		e.applyMu.Unlock()
		return
	}
	old := e.teardownLocked()
	notify, _ := e.setState(StateError, err)
	e.mu.Unlock()
	e.applyMu.Unlock()

	closeConn(old)
	notify()
	signal(e.reconnect)
}

func (e *Engine) syncIfConnected(ctx context.Context) {
	e.mu.Lock()
	connected := e.conn != nil
	e.mu.Unlock()
	if connected {
		e.Sync(ctx)
	}
}

func (e *Engine) wantsConnection() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wanted && e.endpoint != "" && e.conn == nil
}

// Run connects (retrying per the backoff policy) and runs rounds until ctx
// is cancelled. It returns ctx.Err(). After Disconnect the loop stays idle
// until Connect or Configure asks for a connection again.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.wanted = true
	e.mu.Unlock()

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	if e.cfg.PushOnChange {
		sub := e.replica.Subscribe(func(c engine.Change) {
			if c.Origin == engine.OriginLocal {
				e.Kick()
			}
		})
		defer sub.Unsubscribe()
	}
	defer e.Disconnect()

	var retryAt time.Time
	for {
		var retry <-chan time.Time
		if e.wantsConnection() {
			if wait := time.Until(retryAt); wait > 0 {
				retry = time.After(wait)
			} else if err := e.Connect(ctx); err != nil && !errors.Is(err, ErrStale) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.mu.Lock()
				delay := e.backoff.NextBackOff()
				e.mu.Unlock()
				if delay == backoff.Stop {
					delay = e.cfg.RetryDelay
				}
				e.logger.Info("retrying connect", "delay", delay)
				retryAt = time.Now().Add(delay)
				retry = time.After(delay)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-retry:
		case <-e.reconnect:
			retryAt = time.Time{}
		case <-ticker.C:
			e.syncIfConnected(ctx)
		case <-e.kick:
			e.syncIfConnected(ctx)
		}
	}
}
