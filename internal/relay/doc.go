// Package relay implements the HTTP client for the bundle/mailbox relay.
//
// The relay is an untrusted store-and-forward service: it sees only opaque
// envelopes and public bundle material. Bundle distribution is not an
// authenticated channel; peers verify the signed-prekey signature
// themselves and nothing here should be assumed secure.
package relay
