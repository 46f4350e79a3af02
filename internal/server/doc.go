// Package server owns the TCP front door.
//
// Ownership boundary:
// - listener and accept loop
// - per-connection session: handshake then decode pump
// - the metrics endpoint
//
// Session orchestration beyond routing lives with the application, not here.
package server
