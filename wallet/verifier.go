package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrInvalidToken means the wallet-auth service rejected the proof token.
var ErrInvalidToken = errors.New("invalid wallet token")

// Verifier resolves a wallet-proof bearer token to the address it proves
// control of. Implemented by the external wallet-authentication system.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// HTTPVerifier delegates to the wallet-auth service's validate endpoint.
// The endpoint echoes the verified token payload as {"user": {"sub": addr}}
// on success and 401s otherwise.
type HTTPVerifier struct {
	Endpoint   string
	HTTPClient *http.Client
}

var _ Verifier = (*HTTPVerifier)(nil)

func NewHTTPVerifier(endpoint string) *HTTPVerifier {
	return &HTTPVerifier{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.Endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("wallet verifier unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrInvalidToken
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("wallet verifier: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		User struct {
			Sub string `json:"sub"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("wallet verifier: decoding response: %w", err)
	}
	if body.User.Sub == "" {
		return "", ErrInvalidToken
	}
	return body.User.Sub, nil
}
