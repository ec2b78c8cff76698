package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/triplesync/internal/rdf"
	"github.com/roach88/triplesync/internal/transport"
)

// Hub routes sessions to rooms and serves the sync protocol over any
// transport.Framer.
//
// Thread-safety: all methods are safe for concurrent use. Each session is
// served by its own goroutine; fan-out writes go through the session's
// Framer, which serializes writes.
type Hub struct {
	backend Backend
	logger  *slog.Logger

	mu       sync.Mutex
	rooms    map[string]map[*session]struct{}
	draining bool
	wg       sync.WaitGroup
}

type session struct {
	room    string
	replica rdf.ReplicaID
	framer  transport.Framer
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubLogger sets the logger (default slog.Default()).
func WithHubLogger(l *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l
	}
}

// NewHub creates a hub over backend.
func NewHub(backend Backend, opts ...HubOption) *Hub {
	h := &Hub{
		backend: backend,
		logger:  slog.Default(),
		rooms:   make(map[string]map[*session]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Serve runs one session until f fails or ctx is cancelled, then closes f.
// The first frame must be hello.
func (h *Hub) Serve(ctx context.Context, room string, f transport.Framer) error {
	h.mu.Lock()
	if h.draining {
		h.mu.Unlock()
		f.Close()
		return errors.New("relay: shutting down")
	}
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		f.Close()
	}()

	hello, err := f.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Type != transport.MsgHello || hello.Replica == "" {
		_ = f.WriteMessage(ctx, transport.ErrorReply(hello.ID, errors.New("expected hello with replica id")))
		return fmt.Errorf("relay: bad handshake frame %q", hello.Type)
	}
	if hello.Version != rdf.WireVersion {
		_ = f.WriteMessage(ctx, transport.ErrorReply(hello.ID,
			fmt.Errorf("unsupported wire version %q", hello.Version)))
		return fmt.Errorf("relay: client wire version %q", hello.Version)
	}

	s := &session{room: room, replica: hello.Replica, framer: f}
	h.join(s)
	defer h.leave(s)

	if err := f.WriteMessage(ctx, transport.Message{
		Type:    transport.MsgWelcome,
		ID:      hello.ID,
		Version: rdf.WireVersion,
	}); err != nil {
		return fmt.Errorf("write welcome: %w", err)
	}
	h.logger.Info("session joined", "room", room, "replica", s.replica)

	for {
		m, err := f.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			h.logger.Debug("session ended", "room", room, "replica", s.replica, "error", err)
			return nil
		}
		reply := h.handle(ctx, s, m)
		if err := f.WriteMessage(ctx, reply); err != nil {
			return fmt.Errorf("write %s: %w", reply.Type, err)
		}
	}
}

func (h *Hub) handle(ctx context.Context, s *session, m transport.Message) transport.Message {
	start := time.Now()
	typ := string(m.Type)
	defer func() {
		requestDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
	}()

	switch m.Type {
	case transport.MsgPush:
		changed, err := h.backend.Apply(ctx, s.room, m.Operations)
		if err != nil {
			requestsTotal.WithLabelValues(typ, "error").Inc()
			h.logger.Warn("push rejected", "room", s.room, "replica", s.replica, "error", err)
			return transport.ErrorReply(m.ID, err)
		}
		requestsTotal.WithLabelValues(typ, "ok").Inc()
		registersChanged.Add(float64(changed))
		h.logger.Debug("push applied",
			"room", s.room,
			"replica", s.replica,
			"operations", len(m.Operations),
			"changed", changed,
		)
		if changed > 0 {
			h.notify(ctx, s)
		}
		return transport.Message{Type: transport.MsgAck, ID: m.ID, Accepted: len(m.Operations)}

	case transport.MsgPull:
		exclude := m.Exclude
		if exclude == "" {
			exclude = s.replica
		}
		triples, err := h.backend.Pull(ctx, s.room, exclude)
		if err != nil {
			requestsTotal.WithLabelValues(typ, "error").Inc()
			return transport.ErrorReply(m.ID, err)
		}
		requestsTotal.WithLabelValues(typ, "ok").Inc()
		return transport.Message{Type: transport.MsgTriples, ID: m.ID, Triples: triples}
	}

	requestsTotal.WithLabelValues(typ, "error").Inc()
	return transport.ErrorReply(m.ID, fmt.Errorf("unexpected message type %q", m.Type))
}

// notify tells every other session in from's room that state changed.
func (h *Hub) notify(ctx context.Context, from *session) {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.rooms[from.room]))
	for s := range h.rooms[from.room] {
		if s != from {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		if err := s.framer.WriteMessage(ctx, transport.Message{Type: transport.MsgNotify}); err != nil {
			h.logger.Debug("notify failed", "room", s.room, "replica", s.replica, "error", err)
			continue
		}
		notifiesSent.Inc()
	}
}

func (h *Hub) join(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[s.room]
	if !ok {
		members = make(map[*session]struct{})
		h.rooms[s.room] = members
	}
	members[s] = struct{}{}
	sessionsActive.Inc()
}

func (h *Hub) leave(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[s.room]
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, s.room)
	}
	sessionsActive.Dec()
	h.logger.Info("session left", "room", s.room, "replica", s.replica)
}

// Sessions returns the number of joined sessions in room.
func (h *Hub) Sessions(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Shutdown closes every session and waits for their goroutines.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.draining = true
	var all []*session
	for _, members := range h.rooms {
		for s := range members {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.framer.Close()
	}
	h.wg.Wait()
}

// Transport returns an in-process transport whose connections are served
// by this hub in room. Used by tests and the scenario harness.
func (h *Hub) Transport(room string, replica rdf.ReplicaID) transport.Transport {
	return &inProcess{hub: h, room: room, replica: replica}
}

type inProcess struct {
	hub     *Hub
	room    string
	replica rdf.ReplicaID
}

func (p *inProcess) Dial(ctx context.Context, endpoint string) (transport.Conn, error) {
	client, server := transport.Pipe()
	go func() {
		if err := p.hub.Serve(context.Background(), p.room, server); err != nil {
			p.hub.logger.Debug("in-process session ended", "room", p.room, "error", err)
		}
	}()
	return transport.Handshake(ctx, client, endpoint, p.replica, p.hub.logger)
}
