package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// CallbackPath is the fixed sub-path the identity provider redirects to.
const CallbackPath = "/callback"

// DefaultCallbackTimeout is how long the listener waits for the redirect
// before settling a timeout outcome.
const DefaultCallbackTimeout = 5 * time.Minute

// shutdownDelay is how long the listener stays up after a terminal response
// has been written, so the response body reaches the browser before the
// socket closes. Callers may observe the settled outcome up to this long
// before the port is actually released.
const shutdownDelay = 100 * time.Millisecond

// OutcomeKind classifies the terminal outcome of a callback listener.
type OutcomeKind int

const (
	// OutcomeSuccess means the provider redirected with an authorization code
	// and a matching state.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeOAuthError means the provider reported an error (e.g. the user
	// denied access).
	OutcomeOAuthError

	// OutcomeStateMismatch means the redirect carried a state that does not
	// match the one generated for this attempt. Treated as a potential CSRF
	// attack and always surfaced.
	OutcomeStateMismatch

	// OutcomeTimeout means no terminal redirect arrived within the window.
	OutcomeTimeout
)

// String returns the string representation of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeOAuthError:
		return "oauth_error"
	case OutcomeStateMismatch:
		return "state_mismatch"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// CallbackResult is the terminal outcome of one callback listener instance.
// Exactly one result is ever produced per listener.
type CallbackResult struct {
	// Kind classifies the outcome.
	Kind OutcomeKind

	// Code is the authorization code from the provider (success only).
	Code string

	// State is the state parameter echoed by the provider.
	State string

	// Error is the OAuth error code if the authorization failed.
	Error string

	// ErrorDescription is a human-readable error description.
	ErrorDescription string
}

// IsError returns true if the result represents anything but a successful
// authorization.
func (r *CallbackResult) IsError() bool {
	return r.Kind != OutcomeSuccess
}

// CallbackServer is a temporary loopback HTTP server for receiving one OAuth
// redirect. It binds, waits for a single terminal request (or times out),
// settles its outcome exactly once, and shuts down.
type CallbackServer struct {
	port          int
	expectedState string
	timeout       time.Duration

	mu      sync.Mutex
	settled bool
	result  *CallbackResult

	done     chan struct{}
	serveErr chan error

	server   *http.Server
	listener net.Listener
	timer    *time.Timer

	serverURL string
}

// NewCallbackServer creates a callback server for one login attempt.
// Port 0 binds an ephemeral port. expectedState, when non-empty, is compared
// exactly against the state echoed by the provider; a mismatch is a terminal
// outcome. timeout 0 uses DefaultCallbackTimeout.
func NewCallbackServer(port int, expectedState string, timeout time.Duration) *CallbackServer {
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}

	return &CallbackServer{
		port:          port,
		expectedState: expectedState,
		timeout:       timeout,
		done:          make(chan struct{}),
		serveErr:      make(chan error, 1),
	}
}

// Start binds the loopback socket and begins listening for the redirect.
// Binding happens synchronously: a port-in-use failure is returned here,
// distinct from the callback outcome. The timeout timer starts on return.
// The server stops automatically when ctx is cancelled.
//
// Returns the redirect URI to use in the authorization request.
func (s *CallbackServer) Start(ctx context.Context) (string, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", s.port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.serverURL = fmt.Sprintf("http://127.0.0.1:%d", s.port)

	// Only the callback path is registered; the mux answers unrelated probes
	// with 404 without touching the outcome.
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case s.serveErr <- err:
			default:
			}
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.timer = time.AfterFunc(s.timeout, func() {
		if s.settle(&CallbackResult{Kind: OutcomeTimeout}) {
			slog.Debug("OAuth callback timed out", "port", s.port, "timeout", s.timeout)
			s.Stop()
		}
	})

	return s.RedirectURI(), nil
}

// Wait blocks until the outcome settles, the server fails, or ctx is
// cancelled. Observation is idempotent: once settled, every call returns the
// same result.
func (s *CallbackServer) Wait(ctx context.Context) (*CallbackResult, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result, nil
	case err := <-s.serveErr:
		return nil, fmt.Errorf("callback server failed: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// settle records the terminal result if none has been recorded yet.
// This is the single check-and-set guarding all three settlement paths
// (terminal request, timeout, late duplicate); it returns false when the
// outcome was already settled, in which case res is discarded.
func (s *CallbackServer) settle(res *CallbackResult) bool {
	s.mu.Lock()
	if s.settled {
		s.mu.Unlock()
		return false
	}
	s.settled = true
	s.result = res
	s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.done)
	return true
}

// isSettled reports whether a terminal outcome has been recorded.
func (s *CallbackServer) isSettled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

// handleCallback processes one inbound request on the callback path.
//
// Priority order: an already-settled listener answers neutrally; a
// provider-reported error settles the outcome; a request missing code or
// state gets a 400 without settling (the listener keeps waiting, tolerating
// browser/provider probes); a state mismatch settles; otherwise success.
func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if s.isSettled() {
		// Duplicate provider retry or browser prefetch after resolution.
		w.WriteHeader(http.StatusOK)
		_ = handledPage.Execute(w, nil)
		return
	}

	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		res := &CallbackResult{
			Kind:             OutcomeOAuthError,
			Error:            errCode,
			ErrorDescription: query.Get("error_description"),
		}
		if !s.settle(res) {
			w.WriteHeader(http.StatusOK)
			_ = handledPage.Execute(w, nil)
			return
		}
		slog.Debug("OAuth callback reported provider error",
			"error", res.Error,
			"error_description", res.ErrorDescription,
		)
		w.WriteHeader(http.StatusBadRequest)
		_ = errorPage.Execute(w, map[string]string{"Message": res.ErrorDescription})
		s.scheduleStop()
		return
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		// Malformed request: do not burn the one-shot outcome, keep waiting
		// for the real redirect within the timeout window.
		w.WriteHeader(http.StatusBadRequest)
		_ = errorPage.Execute(w, map[string]string{"Message": "The login response was incomplete."})
		return
	}

	if s.expectedState != "" && state != s.expectedState {
		res := &CallbackResult{Kind: OutcomeStateMismatch, State: state}
		if !s.settle(res) {
			w.WriteHeader(http.StatusOK)
			_ = handledPage.Execute(w, nil)
			return
		}
		slog.Warn("OAuth state mismatch detected - possible CSRF attack",
			"expected_state_len", len(s.expectedState),
			"received_state_len", len(state),
		)
		w.WriteHeader(http.StatusBadRequest)
		_ = errorPage.Execute(w, map[string]string{"Message": "The login response could not be verified."})
		s.scheduleStop()
		return
	}

	res := &CallbackResult{Kind: OutcomeSuccess, Code: code, State: state}
	if !s.settle(res) {
		w.WriteHeader(http.StatusOK)
		_ = handledPage.Execute(w, nil)
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = successPage.Execute(w, nil)
	s.scheduleStop()
}

// scheduleStop tears the server down after shutdownDelay so the response
// already written can flush to the browser first. Settle-then-deferred-stop
// ordering lets the caller resume (e.g. exchange the code) while the success
// page is still being delivered.
func (s *CallbackServer) scheduleStop() {
	time.AfterFunc(shutdownDelay, s.Stop)
}

// Stop shuts the callback server down and frees the port. Safe to call
// multiple times and after natural resolution. Stop never settles a pending
// outcome: a caller stopping before resolution abandons the flow.
func (s *CallbackServer) Stop() {
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// RedirectURI returns the redirect URI for the authorization request.
// Valid once Start has returned.
func (s *CallbackServer) RedirectURI() string {
	return s.serverURL + CallbackPath
}

// Port returns the bound port. Valid once Start has returned.
func (s *CallbackServer) Port() int {
	return s.port
}
