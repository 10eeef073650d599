package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var (
	redisJWKSPrefix      = "jwks:"
	redisDiscoveryPrefix = "oidc-disc:"
)

// KeySetTTL bounds provider load; a stale-by-minutes key set is acceptable
// because providers roll keys gradually.
const KeySetTTL = 5 * time.Minute

const maxKeySetBody = 1 << 20

// KeySetResolver fetches and caches provider JSON Web Key Sets, following
// the discovery document when no jwks_uri is configured directly. Fetches
// are cached (redis plus an in-process TinyLFU layer) and rate limited.
//
// Unlike the flow calls in Client, key set fetches retry on transient
// failures; they are idempotent GETs.
type KeySetResolver struct {
	cache      *cache.Cache
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewKeySetResolver creates a resolver. redisURL may be empty, in which case
// only the in-process cache layer is used.
func NewKeySetResolver(redisURL string) (*KeySetResolver, error) {
	opts := &cache.Options{
		LocalCache: cache.NewTinyLFU(1000, KeySetTTL),
	}
	if redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(opt)
		_, err = rdb.Ping(context.TODO()).Result()
		if err != nil {
			return nil, err
		}
		opts.Redis = rdb
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	httpClient := retryClient.StandardClient()
	httpClient.Timeout = 10 * time.Second

	return &KeySetResolver{
		cache:      cache.New(opts),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
	}, nil
}

// Resolve returns the verification key set for an OIDC-enabled provider.
func (r *KeySetResolver) Resolve(ctx context.Context, cfg *ProviderConfig) (jwk.Set, error) {
	o := cfg.OIDC
	if o == nil {
		return nil, errors.New("provider has no oidc config")
	}

	uri := o.JWKSURI
	if uri == "" {
		if o.DiscoveryURL == "" {
			return nil, errors.New("provider has neither jwks_uri nor discovery_url")
		}
		var err error
		uri, err = r.discoverJWKSURI(ctx, o.DiscoveryURL)
		if err != nil {
			return nil, err
		}
	}

	raw, err := r.fetchCached(ctx, redisJWKSPrefix+uri, uri)
	if err != nil {
		return nil, fmt.Errorf("fetching jwks: %w", err)
	}
	set, err := jwk.Parse([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing jwks: %w", err)
	}
	return set, nil
}

func (r *KeySetResolver) discoverJWKSURI(ctx context.Context, discoveryURL string) (string, error) {
	raw, err := r.fetchCached(ctx, redisDiscoveryPrefix+discoveryURL, discoveryURL)
	if err != nil {
		return "", fmt.Errorf("fetching discovery document: %w", err)
	}
	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("parsing discovery document: %w", err)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("discovery document has no jwks_uri")
	}
	return doc.JWKSURI, nil
}

func (r *KeySetResolver) fetchCached(ctx context.Context, key, uri string) (string, error) {
	var raw string
	err := r.cache.Get(ctx, key, &raw)
	if err == nil {
		return raw, nil
	}
	if err != cache.ErrCacheMiss {
		return "", err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, uri)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBody))
	if err != nil {
		return "", err
	}

	raw = string(b)
	if err := r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: raw,
		TTL:   KeySetTTL,
	}); err != nil {
		return "", err
	}
	return raw, nil
}
