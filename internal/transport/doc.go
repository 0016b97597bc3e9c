// Package transport is the websocket front door of a gateway.
//
// A Server upgrades HTTP requests on "/" to websocket sessions and hands
// every new session to the OnConnect callback. The same handler serves the
// occupancy status on "/status", a liveness probe on "/health" and, when a
// Prometheus gatherer is supplied, the collectors on "/metrics".
//
// Each session is a Conn. Send only queues the message; a per-session writer
// goroutine puts it on the wire, and a session whose queue overflows is
// closed with ErrSlowConsumer. Close sends a
// websocket close frame carrying the reason text before dropping the socket,
// and runs the session's OnClose hooks exactly once, whichever side closed.
//
// Panics raised by callbacks are recovered, logged at error level and
// reported through OnError; they never take the process down.
package transport
