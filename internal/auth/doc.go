// Package auth implements the interactive login flow for the pulse CLI.
//
// The flow is OAuth 2.1 Authorization Code with PKCE for a public client
// that has no pre-registered redirect endpoint: a short-lived HTTP listener
// is bound to the loopback interface, the browser is pointed at the identity
// provider with the PKCE challenge and a CSRF state, and the listener waits
// for exactly one terminal redirect. The resulting authorization code is
// exchanged for a backend token through the resilient RPC client.
//
// The callback listener settles its outcome exactly once across all trigger
// sources (terminal request, timeout, external stop), and frees its port
// shortly after settling so a follow-up login can rebind it.
package auth
