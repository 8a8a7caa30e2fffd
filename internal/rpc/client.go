package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgoauth "pulse/pkg/oauth"
)

// DefaultAttemptTimeout bounds a single attempt from request start until the
// response headers arrive. Once headers are in, the timeout no longer
// applies: slow bodies are allowed to stream.
const DefaultAttemptTimeout = 30 * time.Second

// Client issues logical RPC calls against the pulse backend.
// It holds no per-call state beyond the credential; calls are independent
// and safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig

	mu         sync.RWMutex
	credential string
}

// ClientConfig configures the RPC client.
type ClientConfig struct {
	// ServerURL is the backend base URL. Normalized (trailing slash trimmed,
	// must parse) before use.
	ServerURL string

	// Credential is the bearer credential sent with each call. It is carried
	// both in the access-token header and in the request body; gateways that
	// strip custom headers still see the body copy.
	Credential string

	// Retry overrides the default retry policy. Zero fields fall back to
	// the defaults.
	Retry RetryConfig

	// AttemptTimeout overrides DefaultAttemptTimeout.
	AttemptTimeout time.Duration

	// HTTPClient is an optional custom HTTP client. When set, the caller is
	// responsible for its timeout behavior.
	HTTPClient *http.Client
}

// NewClient creates an RPC client for the given backend.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL, err := pkgoauth.NormalizeServerURL(cfg.ServerURL)
	if err != nil {
		return nil, err
	}

	attemptTimeout := cfg.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: attemptTimeout,
				}).DialContext,
				ResponseHeaderTimeout: attemptTimeout,
			},
		}
	}

	return &Client{
		baseURL:    baseURL,
		credential: cfg.Credential,
		httpClient: httpClient,
		retry:      cfg.Retry.withDefaults(),
	}, nil
}

// SetCredential replaces the credential used for subsequent calls.
// Safe to call concurrently with in-flight calls, which keep the credential
// they started with.
func (c *Client) SetCredential(credential string) {
	c.mu.Lock()
	c.credential = credential
	c.mu.Unlock()
}

// HasCredential reports whether a credential is currently set.
func (c *Client) HasCredential() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential != ""
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Call executes the named RPC with the default retry policy.
func (c *Client) Call(ctx context.Context, name string, params map[string]any) (any, error) {
	return c.CallWithRetry(ctx, name, params, c.retry)
}

// CallWithRetry executes the named RPC with an explicit retry policy.
//
// Attempts are strictly sequential; a later attempt never starts before the
// prior attempt's backoff delay has elapsed. The error of the final attempt
// is the one surfaced; earlier errors reach retry.Observer only.
func (c *Client) CallWithRetry(ctx context.Context, name string, params map[string]any, retry RetryConfig) (any, error) {
	retry = retry.withDefaults()

	body, err := c.buildBody(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rpc %s request: %w", name, err)
	}

	var lastErr error
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		result, err := c.doAttempt(ctx, name, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) || attempt == retry.MaxAttempts {
			break
		}

		delay := retry.delayFor(attempt)
		slog.Debug("rpc attempt failed, backing off",
			"rpc", name,
			"attempt", attempt,
			"delay", delay,
			"error", err.Error(),
		)
		if retry.Observer != nil {
			retry.Observer(attempt, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// buildBody encodes the request payload with the credential threaded in.
// The same credential value goes into the access-token header; the body copy
// defends against gateways that strip custom headers.
func (c *Client) buildBody(params map[string]any) ([]byte, error) {
	payload := make(map[string]any, len(params)+1)
	for k, v := range params {
		payload[k] = v
	}

	c.mu.RLock()
	if c.credential != "" {
		payload["access_token"] = c.credential
	}
	c.mu.RUnlock()

	return json.Marshal(payload)
}

// doAttempt performs one physical POST to /rpc/<name>.
func (c *Client) doAttempt(ctx context.Context, name string, body []byte) (any, error) {
	endpoint := c.baseURL + "/rpc/" + name

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build rpc %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	req.Header.Set("X-Request-Id", uuid.NewString())

	c.mu.RLock()
	if c.credential != "" {
		req.Header.Set("access-token", c.credential)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s request failed: %w", name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rpc %s response read failed: %w", name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseRPCError(name, resp.StatusCode, respBody)
	}

	if len(respBody) == 0 {
		return nil, nil
	}

	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("rpc %s returned invalid JSON: %w", name, err)
	}

	return normalizeResponse(decoded), nil
}

// normalizeResponse unwraps the backend's response envelopes until a bare
// value remains: a single-element array becomes its element, and an object
// carrying a "result" field becomes that field's value. Normalization is a
// fixpoint, so nested envelopes collapse and already-bare values pass
// through unchanged.
func normalizeResponse(v any) any {
	for {
		switch val := v.(type) {
		case []any:
			if len(val) == 1 {
				v = val[0]
				continue
			}
		case map[string]any:
			if inner, ok := val["result"]; ok {
				v = inner
				continue
			}
		}
		return v
	}
}
