package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/roach88/triplesync/internal/rdf"
)

// clientConn implements Conn over any Framer.
//
// A single read goroutine owns the Framer's read side and routes replies to
// the waiting request by id. Frames without an id become events.
type clientConn struct {
	framer   Framer
	endpoint string
	logger   *slog.Logger

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan Message
	closed  bool // local Close called
	stopped bool // read loop stopped; no reply will arrive
	ended   bool // events closed

	events chan Event
	done   chan struct{}
}

// Handshake sends hello over f, waits for welcome and starts the read
// loop. On failure f is closed.
func Handshake(ctx context.Context, f Framer, endpoint string, replica rdf.ReplicaID, logger *slog.Logger) (Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &clientConn{
		framer:   f,
		endpoint: endpoint,
		logger:   logger,
		pending:  make(map[string]chan Message),
		events:   make(chan Event, 32),
		done:     make(chan struct{}),
	}
	go c.readLoop()

	reply, err := c.request(ctx, "handshake", Message{
		Type:    MsgHello,
		Replica: replica,
		Version: rdf.WireVersion,
	}, MsgWelcome)
	if err != nil {
		c.Close()
		return nil, err
	}
	if reply.Version != rdf.WireVersion {
		c.Close()
		return nil, &NetworkError{
			Op:       "handshake",
			Endpoint: endpoint,
			Err:      fmt.Errorf("wire version %q, want %q", reply.Version, rdf.WireVersion),
		}
	}
	c.emit(Event{Kind: EventConnected})
	logger.Debug("connected", "endpoint", endpoint, "replica", replica)
	return c, nil
}

func (c *clientConn) Events() <-chan Event {
	return c.events
}

func (c *clientConn) Push(ctx context.Context, ops []rdf.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	_, err := c.request(ctx, "push", Message{Type: MsgPush, Operations: ops}, MsgAck)
	return err
}

func (c *clientConn) Pull(ctx context.Context, exclude rdf.ReplicaID) ([]rdf.Triple, error) {
	reply, err := c.request(ctx, "pull", Message{Type: MsgPull, Exclude: exclude}, MsgTriples)
	if err != nil {
		return nil, err
	}
	if reply.Triples == nil {
		return []rdf.Triple{}, nil
	}
	return reply.Triples, nil
}

func (c *clientConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.framer.Close()
	<-c.done
	return err
}

// request writes m with a fresh id and waits for the reply of type want.
func (c *clientConn) request(ctx context.Context, op string, m Message, want MessageType) (Message, error) {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	m.ID = id
	ch := make(chan Message, 1)

	c.mu.Lock()
	if c.closed || c.stopped {
		c.mu.Unlock()
		return Message{}, c.fail(op, ErrClosed)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.framer.WriteMessage(ctx, m); err != nil {
		return Message{}, c.fail(op, err)
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return Message{}, c.fail(op, ErrClosed)
		}
		if reply.Type == MsgError {
			return Message{}, c.fail(op, &RemoteError{Message: reply.Error})
		}
		if reply.Type != want {
			return Message{}, c.fail(op, fmt.Errorf("unexpected reply %q, want %q", reply.Type, want))
		}
		return reply, nil
	case <-ctx.Done():
		return Message{}, c.fail(op, ctx.Err())
	}
}

func (c *clientConn) fail(op string, err error) error {
	return &NetworkError{Op: op, Endpoint: c.endpoint, Err: err}
}

func (c *clientConn) readLoop() {
	defer close(c.done)

	var readErr error
	for {
		m, err := c.framer.ReadMessage()
		if err != nil {
			readErr = err
			break
		}

		if m.ID != "" {
			c.mu.Lock()
			ch, ok := c.pending[m.ID]
			c.mu.Unlock()
			if ok {
				ch <- m
				continue
			}
			c.logger.Debug("dropping reply without waiter", "id", m.ID, "type", m.Type)
			continue
		}

		switch m.Type {
		case MsgNotify:
			c.emit(Event{Kind: EventNotify})
		case MsgError:
			c.emit(Event{Kind: EventError, Err: &RemoteError{Message: m.Error}})
		default:
			c.logger.Debug("ignoring unsolicited message", "type", m.Type)
		}
	}

	c.mu.Lock()
	closed := c.closed
	c.stopped = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()

	var ev Event
	ev.Kind = EventDisconnected
	if !closed && !errors.Is(readErr, ErrClosed) {
		ev.Err = c.fail("read", readErr)
	}
	c.emit(ev)

	c.mu.Lock()
	c.ended = true
	close(c.events)
	c.mu.Unlock()
}

// emit delivers ev without blocking. Notifications coalesce, so a full
// buffer only drops redundant wakeups.
func (c *clientConn) emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return
	}
	select {
	case c.events <- ev:
	default:
		if ev.Kind != EventNotify {
			c.logger.Warn("event buffer full, dropping event", "kind", ev.Kind.String())
		}
	}
}
