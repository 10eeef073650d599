package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// upstream response bodies are surfaced as error detail; cap how much we read
const maxErrorBody = 4 * 1024

// Client performs the synchronous provider calls of a flow: code exchange,
// userinfo fetch, and RFC 7009 revocation. There are no automatic retries;
// a failed call surfaces to the caller, who decides whether it is fatal.
type Client struct {
	HTTPClient *http.Client
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ExchangeCode trades an authorization code (plus the transaction's PKCE
// verifier) for the provider's token response. The response is kept as an
// opaque bag; providers disagree on the exact field set.
func (c *Client) ExchangeCode(ctx context.Context, cfg *ProviderConfig, code, redirectURI, codeVerifier string) (map[string]any, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {cfg.ClientID},
		"code_verifier": {codeVerifier},
	}
	if cfg.ClientSecret != "" {
		form.Set("client_secret", cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// some providers (GitHub) return urlencoded bodies without this
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, Upstream(CodeTokenExchangeFailed, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, Upstream(CodeTokenExchangeFailed, string(detail))
	}

	var token map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, Upstream(CodeTokenExchangeFailed, fmt.Sprintf("decoding token response: %v", err))
	}
	return token, nil
}

// FetchUserinfo retrieves the provider's userinfo document with a bearer
// access token. Callers on best-effort paths swallow the error.
func (c *Client) FetchUserinfo(ctx context.Context, cfg *ProviderConfig, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.UserinfoEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("userinfo fetch: unexpected status %d", resp.StatusCode)
	}

	var user map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}
	return user, nil
}

// Revoke asks the provider to invalidate a token (RFC 7009). Logout treats
// the result as best-effort.
func (c *Client) Revoke(ctx context.Context, cfg *ProviderConfig, token, tokenTypeHint string) error {
	if cfg.RevokeEndpoint == "" {
		return nil
	}
	form := url.Values{
		"token":           {token},
		"token_type_hint": {tokenTypeHint},
		"client_id":       {cfg.ClientID},
	}
	if cfg.ClientSecret != "" {
		form.Set("client_secret", cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.RevokeEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("token revocation: unexpected status %d", resp.StatusCode)
	}
	return nil
}
