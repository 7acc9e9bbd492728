// Package server implements the DittoWeb core: a bounded connection
// dispatcher feeding a fixed worker pool, and the per-connection HTTP/1.x
// protocol state machine (keep-alive negotiation, idle timeouts, request
// caps, Host validation, GET/POST routing).
//
// The package depends on internal/httpwire for the wire codec and on
// pkg/store for resource access; everything else is self-contained.
package server
