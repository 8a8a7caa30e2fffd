package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// RPCError is a structured error for a non-2xx backend response. It carries
// enough to drive the retry decision and to render an actionable message
// without re-running in a debug mode.
type RPCError struct {
	// RPCName is the logical RPC that failed.
	RPCName string

	// StatusCode is the HTTP status of the failing response.
	StatusCode int

	// Message, Details, and Hint are the parsed error body fields when the
	// backend returned its structured error shape.
	Message string
	Details string
	Hint    string

	// Code is the backend's error code, if present.
	Code string

	// RawBody preserves the response body when it could not be parsed.
	RawBody string
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rpc %s failed with status %d", e.RPCName, e.StatusCode)

	switch {
	case e.Message != "":
		b.WriteString(": " + e.Message)
		if e.Details != "" {
			b.WriteString(" (" + e.Details + ")")
		}
		if e.Hint != "" {
			b.WriteString("; hint: " + e.Hint)
		}
	case e.RawBody != "":
		b.WriteString(": " + e.RawBody)
	}

	return b.String()
}

// Retryable reports whether the error is worth retrying. Only server-side
// failures (5xx) qualify; 4xx responses are never retried.
func (e *RPCError) Retryable() bool {
	return e.StatusCode >= 500
}

// parseRPCError builds an RPCError from a non-2xx response body. The backend
// usually returns {"message": ..., "details": ..., "hint": ..., "code": ...};
// anything else keeps the raw text for display.
func parseRPCError(rpcName string, statusCode int, body []byte) *RPCError {
	rpcErr := &RPCError{
		RPCName:    rpcName,
		StatusCode: statusCode,
	}

	var parsed struct {
		Message string `json:"message"`
		Details string `json:"details"`
		Hint    string `json:"hint"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		rpcErr.Message = parsed.Message
		rpcErr.Details = parsed.Details
		rpcErr.Hint = parsed.Hint
		rpcErr.Code = parsed.Code
		return rpcErr
	}

	rpcErr.RawBody = strings.TrimSpace(string(body))
	return rpcErr
}

// isRetryable reports whether err should trigger another attempt: a 5xx
// RPCError, or a transport-level failure from the recognized set (timeout,
// connection refused/reset, DNS failure).
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Retryable()
	}

	return isTransportError(err)
}

// isTransportError recognizes the fixed set of network-level failures that
// are safe to retry. Timeouts show up here rather than as RPCErrors because
// the per-attempt deadline fires before any response status exists.
func isTransportError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
