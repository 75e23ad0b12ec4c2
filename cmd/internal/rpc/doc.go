// Package rpc exposes the account session manager over a WebSocket gateway.
//
// Frames are JSON envelopes ({v, type, id, ts, method, payload}) on the
// "ssod.rpc.v1" subprotocol. A client sends call frames; the gateway answers
// each with a result frame (followed by an account frame on success when the
// result carries one), or a reply frame for synchronous queries. Frames the
// gateway cannot act on are answered with an error frame. All answers carry
// the id of the call.
package rpc
