// Package session orchestrates the per-connection lifecycle: registration
// with a join notice, inbound envelope handling, and teardown with a leave
// notice. It is transport-agnostic; the server package drives it from the
// WebSocket read loop.
package session
