// Package core owns logical stream lifecycle for one session.
//
// Ownership boundary:
// - stream id assignment and reuse
// - the control stream and the stream registry
// - teardown of every stream when the session ends
package core
