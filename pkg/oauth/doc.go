// Package oauth provides the shared OAuth 2.1 building blocks used by the
// pulse CLI: PKCE challenge generation, CSRF state generation, token types,
// and server URL normalization.
//
// The package is intentionally free of HTTP and storage concerns. The
// interactive login flow lives in internal/auth; this package only supplies
// the deterministic, testable primitives it is built on.
package oauth
