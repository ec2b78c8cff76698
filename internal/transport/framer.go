package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Framer reads and writes whole protocol messages. ReadMessage is called
// from one goroutine; WriteMessage may be called concurrently.
type Framer interface {
	ReadMessage() (Message, error)
	WriteMessage(ctx context.Context, m Message) error
	Close() error
}

// wsFramer frames messages as WebSocket text frames holding JSON.
type wsFramer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewWebSocketFramer wraps an established gorilla connection. Used on both
// ends: the client after Dial, the relay after Upgrade.
func NewWebSocketFramer(conn *websocket.Conn) Framer {
	return &wsFramer{conn: conn}
}

func (f *wsFramer) ReadMessage() (Message, error) {
	var m Message
	if err := f.conn.ReadJSON(&m); err != nil {
		return Message{}, err
	}
	return m, nil
}

func (f *wsFramer) WriteMessage(ctx context.Context, m Message) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := f.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return f.conn.WriteJSON(m)
}

func (f *wsFramer) Close() error {
	f.writeMu.Lock()
	_ = f.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	f.writeMu.Unlock()
	return f.conn.Close()
}

// pipeFramer is one end of an in-memory framer pair. Messages cross as
// JSON so both ends see exactly what a network peer would.
type pipeFramer struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

// Pipe returns two connected in-memory framers. Closing either end closes
// both.
func Pipe() (Framer, Framer) {
	a := make(chan []byte, 64)
	b := make(chan []byte, 64)
	done := make(chan struct{})
	once := new(sync.Once)
	return &pipeFramer{in: a, out: b, done: done, once: once},
		&pipeFramer{in: b, out: a, done: done, once: once}
}

func (p *pipeFramer) ReadMessage() (Message, error) {
	select {
	case data := <-p.in:
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			return Message{}, fmt.Errorf("decode message: %w", err)
		}
		return m, nil
	case <-p.done:
		return Message{}, ErrClosed
	}
}

func (p *pipeFramer) WriteMessage(ctx context.Context, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- data:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeFramer) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
