// Package rpc implements the pulse backend RPC client.
//
// A logical call is one POST to <server>/rpc/<name> executed as one or more
// physical attempts. Attempts are strictly sequential, separated by
// exponential backoff, and bounded by a per-attempt response-header timeout.
// Server errors (5xx) and recognized transport failures are retried;
// client errors (4xx) are surfaced immediately as a structured *RPCError.
//
// Successful response bodies are JSON-decoded and normalized behind one
// call-site contract: single-element arrays are unwrapped and "result"
// envelopes are substituted, repeatedly, until a bare value remains.
package rpc
