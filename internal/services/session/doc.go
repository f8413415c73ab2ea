// Package session establishes and tracks X3DH sessions.
//
// It performs the initiator handshake against a fetched bundle, persists
// session material before returning, and exposes lookups for the message
// service.
package session
