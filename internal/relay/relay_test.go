package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triplesync/internal/rdf"
	"github.com/roach88/triplesync/internal/transport"
)

func task(subject, title string, ts rdf.LogicalTime, replica rdf.ReplicaID) []rdf.Triple {
	return []rdf.Triple{
		{Subject: subject, Predicate: rdf.RDFType, Object: rdf.IRI(rdf.TodoTask), Timestamp: ts, ReplicaID: replica},
		{Subject: subject, Predicate: rdf.SchemaName, Object: rdf.String(title), Timestamp: ts, ReplicaID: replica},
	}
}

func objectOf(triples []rdf.Triple, predicate string) rdf.Value {
	for _, t := range triples {
		if t.Predicate == predicate {
			return t.Object
		}
	}
	return nil
}

func op(triples []rdf.Triple) rdf.Operation {
	return rdf.NewOperation(rdf.OpAdd, triples, triples[0].Timestamp, triples[0].ReplicaID)
}

// backends returns every Backend implementation that runs without external
// services.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	sqlite, err := OpenSQL(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": sqlite,
	}
}

func TestBackend_ApplyAndPull(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			n, err := b.Apply(ctx, "room", []rdf.Operation{op(task("urn:t1", "old", 10, "a"))})
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			// Newer title from b wins; an older one from c loses.
			n, err = b.Apply(ctx, "room", []rdf.Operation{
				op(task("urn:t1", "new", 20, "b")[1:]),
				op(task("urn:t1", "stale", 5, "c")[1:]),
			})
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			all, err := b.Pull(ctx, "room", "")
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, rdf.String("new"), objectOf(all, rdf.SchemaName))

			notA, err := b.Pull(ctx, "room", "a")
			require.NoError(t, err)
			require.Len(t, notA, 1)
			assert.Equal(t, rdf.ReplicaID("b"), notA[0].ReplicaID)

			other, err := b.Pull(ctx, "elsewhere", "")
			require.NoError(t, err)
			assert.NotNil(t, other)
			assert.Empty(t, other)
		})
	}
}

func TestBackend_EqualTimestampTieBreak(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := b.Apply(ctx, "room", []rdf.Operation{op(task("urn:t", "from-z", 7, "replica-z"))})
			require.NoError(t, err)
			_, err = b.Apply(ctx, "room", []rdf.Operation{op(task("urn:t", "from-a", 7, "replica-a"))})
			require.NoError(t, err)

			all, err := b.Pull(ctx, "room", "")
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, rdf.String("from-z"), objectOf(all, rdf.SchemaName))
			for _, tr := range all {
				assert.Equal(t, rdf.ReplicaID("replica-z"), tr.ReplicaID)
			}
		})
	}
}

func TestBackend_RejectsInvalid(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			bad := rdf.Operation{ID: "op-1-x", Kind: rdf.OpAdd, Timestamp: 1, ReplicaID: "x",
				Triples: []rdf.Triple{{Subject: "", Predicate: "p", Object: rdf.Int(1), Timestamp: 1, ReplicaID: "x"}}}
			_, err := b.Apply(context.Background(), "room", []rdf.Operation{bad})
			assert.Error(t, err)
		})
	}
}

func TestBackend_RejectsTimestampPastCeiling(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ts := rdf.MaxLogicalTime + 1
			bad := rdf.Operation{ID: rdf.OperationID(ts, "x"), Kind: rdf.OpAdd, Timestamp: ts, ReplicaID: "x",
				Triples: []rdf.Triple{{Subject: "s", Predicate: "p", Object: rdf.Int(1), Timestamp: ts, ReplicaID: "x"}}}
			_, err := b.Apply(context.Background(), "room", []rdf.Operation{bad})
			assert.Error(t, err)

			got, err := b.Pull(context.Background(), "room", "")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestSQLBackend_RepushIsSkipped(t *testing.T) {
	ctx := context.Background()
	b, err := OpenSQL(ctx, DriverSQLite, filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	defer b.Close()

	o := op(task("urn:t", "x", 3, "a"))
	n, err := b.Apply(ctx, "room", []rdf.Operation{o})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = b.Apply(ctx, "room", []rdf.Operation{o})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenSQL_Errors(t *testing.T) {
	_, err := OpenSQL(context.Background(), "mysql", "x")
	assert.Error(t, err)
	_, err = OpenSQL(context.Background(), DriverSQLite, "")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &SQLBackend{driver: DriverPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &SQLBackend{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func waitEvent(t *testing.T, c transport.Conn, kind transport.EventKind) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "events closed before %s", kind)
			if ev.Kind == kind {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestHub_InProcessNotify(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(NewMemoryBackend())
	defer hub.Shutdown()

	a, err := hub.Transport("room", "a").Dial(ctx, "inproc://room")
	require.NoError(t, err)
	defer a.Close()
	b, err := hub.Transport("room", "b").Dial(ctx, "inproc://room")
	require.NoError(t, err)
	defer b.Close()
	waitEvent(t, b, transport.EventConnected)

	require.Eventually(t, func() bool { return hub.Sessions("room") == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, a.Push(ctx, []rdf.Operation{op(task("urn:t", "hi", 1, "a"))}))
	waitEvent(t, b, transport.EventNotify)

	got, err := b.Pull(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	mine, err := a.Pull(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestHub_PushErrorReply(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(NewMemoryBackend())
	defer hub.Shutdown()

	c, err := hub.Transport("room", "a").Dial(ctx, "inproc://room")
	require.NoError(t, err)
	defer c.Close()

	bad := rdf.Operation{ID: "op-1-a", Kind: "merge", Timestamp: 1, ReplicaID: "a",
		Triples: task("urn:t", "x", 1, "a")}
	err = c.Push(ctx, []rdf.Operation{bad})
	require.Error(t, err)
	var remote *transport.RemoteError
	assert.ErrorAs(t, err, &remote)
}

func TestHub_RejectsBadHello(t *testing.T) {
	hub := NewHub(NewMemoryBackend())
	client, server := transport.Pipe()
	done := make(chan error, 1)
	go func() { done <- hub.Serve(context.Background(), "room", server) }()

	require.NoError(t, client.WriteMessage(context.Background(), transport.Message{Type: transport.MsgPull, ID: "1"}))
	reply, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, transport.MsgError, reply.Type)
	assert.Error(t, <-done)
}

func TestServer_WebSocketAndGraph(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewHub(NewMemoryBackend())
	srv := httptest.NewServer(NewServer(hub, nil).Handler())
	defer srv.Close()
	defer hub.Shutdown()

	conn, err := transport.NewWebSocket("a").Dial(ctx, srv.URL+"/rooms/demo/sync")
	require.NoError(t, err)
	require.NoError(t, conn.Push(ctx, []rdf.Operation{op(task(rdf.TaskNamespace+"t1", "Buy milk", 5, "a"))}))
	require.NoError(t, conn.Close())

	resp, err := http.Get(srv.URL + "/rooms/demo/graph")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/turtle")
	assert.Contains(t, string(body), `"Buy milk"`)

	resp, err = http.Get(srv.URL + "/rooms/demo/graph?format=json")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `"replica_id"`)
}

func TestServer_Endpoints(t *testing.T) {
	srv := httptest.NewServer(NewServer(NewHub(NewMemoryBackend()), nil).Handler())
	defer srv.Close()

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/healthz", http.StatusOK, "ok"},
		{"/metrics", http.StatusOK, "triplesync_relay_sessions_active"},
		{"/rooms/bad%20name/graph", http.StatusNotFound, ""},
		{"/nowhere", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			body, _ := io.ReadAll(resp.Body)
			assert.True(t, strings.Contains(string(body), tt.want))
		})
	}
}
