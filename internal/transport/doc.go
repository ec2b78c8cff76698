// Package transport moves operations and triples between a replica and a
// relay.
//
// A Transport dials an endpoint and returns a Conn. Conn exposes the two
// halves of a sync round as request/response calls (Push, Pull) plus an
// event channel for connection state and server-initiated notifications.
//
// Two transports ship:
//   - WebSocket: JSON messages over gorilla/websocket
//   - the relay package's in-process transport, used by tests and the
//     scenario harness
//
// # Wire protocol
//
// Every frame is one JSON Message. Requests carry an id that the reply
// echoes:
//
//	client                         relay
//	hello{replica,version}   ->
//	                         <-    welcome{version}
//	push{operations}         ->
//	                         <-    ack{accepted}
//	pull{exclude}            ->
//	                         <-    triples{triples}
//	                         <-    notify            (no id; remote change)
//	                         <-    error{error}      (id of the failed request, if any)
package transport
