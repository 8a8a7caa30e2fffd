package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	pkgoauth "pulse/pkg/oauth"
)

// CodeExchanger exchanges an authorization code for a backend token.
// Satisfied by *rpc.Client; the flow only needs the one call.
type CodeExchanger interface {
	Call(ctx context.Context, name string, params map[string]any) (any, error)
}

// ExchangeRPC is the backend RPC that trades an authorization code (plus the
// PKCE verifier) for an access token.
const ExchangeRPC = "exchange_auth_code"

// FlowConfig configures one interactive login flow.
type FlowConfig struct {
	// AuthorizeURL is the identity provider's authorization endpoint.
	AuthorizeURL string

	// ClientID identifies this CLI at the identity provider.
	ClientID string

	// Scopes are the OAuth scopes to request. Defaults to
	// "openid profile email offline_access" when empty.
	Scopes []string

	// CallbackPort is the loopback port for the callback listener.
	// 0 binds an ephemeral port.
	CallbackPort int

	// CallbackTimeout bounds how long the listener waits for the redirect.
	// 0 uses DefaultCallbackTimeout.
	CallbackTimeout time.Duration

	// Exchanger performs the code-for-token exchange against the backend.
	Exchanger CodeExchanger
}

// Flow drives one OAuth login attempt: generate PKCE and state, start the
// callback listener, hand out the authorization URL, await the redirect,
// and exchange the code for a token.
type Flow struct {
	cfg FlowConfig
}

// NewFlow validates the configuration and creates a login flow.
func NewFlow(cfg FlowConfig) (*Flow, error) {
	if cfg.AuthorizeURL == "" {
		return nil, errors.New("authorize URL is required")
	}
	if _, err := url.Parse(cfg.AuthorizeURL); err != nil {
		return nil, fmt.Errorf("invalid authorize URL: %w", err)
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.Exchanger == nil {
		return nil, errors.New("code exchanger is required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "profile", "email", "offline_access"}
	}

	return &Flow{cfg: cfg}, nil
}

// Start begins the login flow. It returns the authorization URL the user
// must open in a browser and a wait function that blocks until the callback
// arrives (or the window times out) and completes the token exchange.
//
// The wait function returns ErrCallbackTimeout, ErrStateMismatch, or an
// *AuthorizationError for the corresponding terminal outcomes.
func (f *Flow) Start(ctx context.Context) (string, func(context.Context) (*pkgoauth.Token, error), error) {
	pkce, err := pkgoauth.GeneratePKCE()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate PKCE: %w", err)
	}

	state, err := pkgoauth.GenerateState()
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate state: %w", err)
	}

	server := NewCallbackServer(f.cfg.CallbackPort, state, f.cfg.CallbackTimeout)
	redirectURI, err := server.Start(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	authURL, err := f.buildAuthorizeURL(redirectURI, state, pkce)
	if err != nil {
		server.Stop()
		return "", nil, fmt.Errorf("failed to build authorization URL: %w", err)
	}

	slog.Debug("OAuth login flow started",
		"redirect_uri", redirectURI,
		"callback_timeout", server.timeout,
	)

	waitFn := func(waitCtx context.Context) (*pkgoauth.Token, error) {
		defer server.Stop()
		return f.await(waitCtx, server, pkce, redirectURI)
	}

	return authURL, waitFn, nil
}

// await blocks on the listener outcome and exchanges the code on success.
func (f *Flow) await(ctx context.Context, server *CallbackServer, pkce *pkgoauth.PKCEChallenge, redirectURI string) (*pkgoauth.Token, error) {
	result, err := server.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("callback failed: %w", err)
	}

	switch result.Kind {
	case OutcomeTimeout:
		return nil, ErrCallbackTimeout
	case OutcomeStateMismatch:
		return nil, ErrStateMismatch
	case OutcomeOAuthError:
		return nil, &AuthorizationError{Code: result.Error, Description: result.ErrorDescription}
	}

	token, err := f.exchangeCode(ctx, result.Code, pkce.CodeVerifier, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	slog.Info("OAuth authentication successful")
	return token, nil
}

// buildAuthorizeURL constructs the provider authorization URL with the PKCE
// challenge and state bound to this attempt.
func (f *Flow) buildAuthorizeURL(redirectURI, state string, pkce *pkgoauth.PKCEChallenge) (string, error) {
	authURL, err := url.Parse(f.cfg.AuthorizeURL)
	if err != nil {
		return "", err
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {f.cfg.ClientID},
		"redirect_uri":          {redirectURI},
		"state":                 {state},
		"code_challenge":        {pkce.CodeChallenge},
		"code_challenge_method": {pkce.CodeChallengeMethod},
		"scope":                 {strings.Join(f.cfg.Scopes, " ")},
	}

	authURL.RawQuery = params.Encode()
	return authURL.String(), nil
}

// exchangeCode trades the authorization code for a backend token via the
// RPC client, which applies its usual retry policy.
func (f *Flow) exchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*pkgoauth.Token, error) {
	raw, err := f.cfg.Exchanger.Call(ctx, ExchangeRPC, map[string]any{
		"code":          code,
		"code_verifier": codeVerifier,
		"redirect_uri":  redirectURI,
	})
	if err != nil {
		return nil, err
	}

	// The RPC client has already unwrapped the response envelope; re-encode
	// the generic value into the token shape.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("unexpected exchange response: %w", err)
	}

	var token pkgoauth.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("unexpected exchange response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("exchange response is missing access_token")
	}

	token.SetExpiresAtFromExpiresIn()
	return &token, nil
}
