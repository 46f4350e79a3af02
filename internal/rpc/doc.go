// Package rpc owns remote call correlation.
//
// Ownership boundary:
// - call id assignment and the active-call registry
// - invoke send paths, with and without an expected response
// - routing of inbound result/error responses to waiting callers
package rpc
