package oauth

import (
	"encoding/json"
	"fmt"
	"os"
)

// OIDCConfig holds the extra provider settings needed to verify a
// client-supplied ID token without a round trip to the provider. Either
// JWKSURI or DiscoveryURL must be set.
type OIDCConfig struct {
	Issuer               string   `json:"issuer"`
	DiscoveryURL         string   `json:"discovery_url,omitempty"`
	JWKSURI              string   `json:"jwks_uri,omitempty"`
	AcceptableAudiences  []string `json:"acceptable_audiences,omitempty"`
	RequireEmailVerified bool     `json:"require_email_verified,omitempty"`
}

// ProviderConfig is the immutable per-provider configuration. One entry per
// provider key in the registry file.
type ProviderConfig struct {
	ClientID          string `json:"client_id"`
	ClientSecret      string `json:"client_secret,omitempty"`
	AuthorizeEndpoint string `json:"authorize_endpoint"`
	TokenEndpoint     string `json:"token_endpoint"`
	UserinfoEndpoint  string `json:"userinfo_endpoint,omitempty"`
	RevokeEndpoint    string `json:"revoke_endpoint,omitempty"`
	Scope             string `json:"scope"`

	OIDC *OIDCConfig `json:"oidc,omitempty"`
}

// Registry maps provider keys ("google", "apple", ...) to their config. It is
// loaded once at startup and passed in to handlers; never a process global.
type Registry map[string]*ProviderConfig

func (r Registry) Get(name string) (*ProviderConfig, bool) {
	cfg, ok := r[name]
	return cfg, ok
}

// LoadRegistry reads a provider registry from a JSON file and validates that
// each entry carries the fields the authorization-code flow needs.
func LoadRegistry(path string) (Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading provider registry: %w", err)
	}
	return ParseRegistry(b)
}

func ParseRegistry(b []byte) (Registry, error) {
	var reg Registry
	if err := json.Unmarshal(b, &reg); err != nil {
		return nil, fmt.Errorf("parsing provider registry: %w", err)
	}
	for name, cfg := range reg {
		if cfg == nil {
			return nil, fmt.Errorf("provider %s: empty config", name)
		}
		if cfg.ClientID == "" {
			return nil, fmt.Errorf("provider %s: client_id is required", name)
		}
		if cfg.AuthorizeEndpoint == "" || cfg.TokenEndpoint == "" {
			return nil, fmt.Errorf("provider %s: authorize_endpoint and token_endpoint are required", name)
		}
		if cfg.OIDC != nil {
			if cfg.OIDC.Issuer == "" {
				return nil, fmt.Errorf("provider %s: oidc.issuer is required", name)
			}
			if cfg.OIDC.JWKSURI == "" && cfg.OIDC.DiscoveryURL == "" {
				return nil, fmt.Errorf("provider %s: oidc needs jwks_uri or discovery_url", name)
			}
		}
	}
	return reg, nil
}
