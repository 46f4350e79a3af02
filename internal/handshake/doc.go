// Package handshake owns RTMP session establishment.
//
// Ownership boundary:
// - keyed digest primitive and payload generation
// - client/server handshake tokens
// - server and client negotiator state machines
package handshake
