package wsgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// jwksCacheTTL is the 10-minute, kid-keyed JWKS cache lifetime of
// spec.md §4.5/§9. coreos/go-oidc's oidc.NewProvider caches JWKS
// opaquely with no exposed kid-TTL knob (confirmed by reading
// wisbric-nightowl's internal/auth/oidc.go), so this cache is a
// deliberately hand-rolled component sitting in front of go-jose's
// signature verification, not a replacement for it.
const jwksCacheTTL = 10 * time.Minute

// leeway is the clock-skew tolerance spec.md §4.5 allows when validating
// exp/nbf/iat.
const leeway = 30 * time.Second

type jwksEntry struct {
	key       jose.JSONWebKey
	fetchedAt time.Time
}

// JWKSCache resolves a kid to a verification key, refreshing the whole
// key set from jwksURL whenever a kid is unknown or its cached entry has
// expired.
type JWKSCache struct {
	jwksURL string
	client  *http.Client

	mu    sync.Mutex
	byKid map[string]jwksEntry
}

func NewJWKSCache(jwksURL string) *JWKSCache {
	return &JWKSCache{
		jwksURL: jwksURL,
		client:  &http.Client{Timeout: 5 * time.Second},
		byKid:   make(map[string]jwksEntry),
	}
}

func (c *JWKSCache) resolve(ctx context.Context, kid string) (jose.JSONWebKey, error) {
	c.mu.Lock()
	entry, ok := c.byKid[kid]
	c.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < jwksCacheTTL {
		return entry.key, nil
	}

	if err := c.refresh(ctx); err != nil {
		return jose.JSONWebKey{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok = c.byKid[kid]
	if !ok {
		return jose.JSONWebKey{}, fmt.Errorf("no JWKS key found for kid %q", kid)
	}
	return entry.key, nil
}

func (c *JWKSCache) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("building JWKS request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading JWKS response: %w", err)
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return fmt.Errorf("decoding JWKS response: %w", err)
	}

	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range set.Keys {
		c.byKid[key.KeyID] = jwksEntry{key: key, fetchedAt: now}
	}
	return nil
}

// Claims is the subset of access-token claims the gateway checks,
// per spec.md §4.5: issuer, audience, typ=Bearer, 30s leeway, and sub
// must equal the handshake's user_id.
type Claims struct {
	Subject string
}

// Validate parses and verifies rawToken (RS256) against the JWKS, and
// checks issuer/audience/type, per spec.md §4.5.
func (c *JWKSCache) Validate(ctx context.Context, rawToken, issuer, audience string) (Claims, error) {
	parsed, err := jwt.ParseSigned(rawToken, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return Claims{}, fmt.Errorf("parsing access token: %w", err)
	}
	if len(parsed.Headers) == 0 {
		return Claims{}, fmt.Errorf("access token carries no header")
	}
	kid := parsed.Headers[0].KeyID

	key, err := c.resolve(ctx, kid)
	if err != nil {
		return Claims{}, err
	}

	var claims struct {
		jwt.Claims
		Type string `json:"typ"`
	}
	if err := parsed.Claims(key.Public(), &claims); err != nil {
		return Claims{}, fmt.Errorf("verifying access token signature: %w", err)
	}

	expected := jwt.Expected{
		Issuer:      issuer,
		AnyAudience: jwt.Audience{audience},
		Time:        time.Now(),
	}
	if err := claims.Claims.ValidateWithLeeway(expected, leeway); err != nil {
		return Claims{}, fmt.Errorf("validating access token claims: %w", err)
	}
	if claims.Type != "" && claims.Type != "Bearer" {
		return Claims{}, fmt.Errorf("access token has unexpected typ %q", claims.Type)
	}

	return Claims{Subject: claims.Subject}, nil
}
