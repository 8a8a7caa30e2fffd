package auth

import "errors"

// ErrStateMismatch is returned when the state echoed by the identity
// provider does not match the state generated for this login attempt.
// This is treated as a potential CSRF attack and is never silently ignored.
var ErrStateMismatch = errors.New("oauth state mismatch - possible CSRF attack")

// ErrCallbackTimeout is returned when no terminal redirect arrived within
// the callback window. The user should retry the login.
var ErrCallbackTimeout = errors.New("timed out waiting for the login callback")

// AuthorizationError is returned when the identity provider reported an
// error on the redirect (e.g. the user denied access).
type AuthorizationError struct {
	// Code is the OAuth error code (e.g. "access_denied").
	Code string

	// Description is the provider's human-readable description, if any.
	Description string
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return "authorization failed: " + e.Code + " - " + e.Description
	}
	return "authorization failed: " + e.Code
}
