// Package keycloak verifies Keycloak-issued bearer tokens for the HTTP API.
package keycloak

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

// Config holds the realm the verifier trusts.
type Config struct {
	BaseURL  string
	Realm    string
	ClientID string
	// JWKSRefresh is the interval of the background key refresh.
	JWKSRefresh    time.Duration
	RequestTimeout time.Duration
}

// Claims are the verified token claims the API cares about.
type Claims struct {
	Subject           string
	PreferredUsername string
	Email             string
	Issuer            string
	Audience          []string
	ExpiresAt         time.Time
	RealmRoles        []string
	// ClientRoles are the roles granted on the configured client.
	ClientRoles []string
}

// HasRole reports whether role is a realm role or a client role.
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.RealmRoles {
		if r == role {
			return true
		}
	}
	for _, r := range c.ClientRoles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, rawToken string) (*Claims, error)
}

// VerifierFunc adapts a function to TokenVerifier.
type VerifierFunc func(ctx context.Context, rawToken string) (*Claims, error)

func (f VerifierFunc) VerifyToken(ctx context.Context, rawToken string) (*Claims, error) {
	return f(ctx, rawToken)
}

var (
	ErrTokenExpired          = errors.New(errors.ErrCodeUnauthorized, "token expired")
	ErrTokenInvalidSignature = errors.New(errors.ErrCodeUnauthorized, "invalid token signature")
	ErrTokenInvalidIssuer    = errors.New(errors.ErrCodeUnauthorized, "invalid token issuer")
	ErrTokenInvalidAudience  = errors.New(errors.ErrCodeUnauthorized, "invalid token audience")
	ErrTokenMalformed        = errors.New(errors.ErrCodeUnauthorized, "malformed token")
	ErrKeycloakUnavailable   = errors.New(errors.ErrCodeResourceUnavailable, "keycloak unavailable")
)

// Verifier checks RS256 tokens against the realm's published keys.
type Verifier struct {
	cfg    Config
	issuer string
	keys   *jwksCache
	logger logging.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewVerifier fetches the realm keys and starts refreshing them every
// cfg.JWKSRefresh until Close.
func NewVerifier(ctx context.Context, cfg Config, logger logging.Logger) (*Verifier, error) {
	if cfg.BaseURL == "" {
		return nil, errors.InvalidParam("keycloak base_url is required")
	}
	if cfg.Realm == "" {
		return nil, errors.InvalidParam("keycloak realm is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.InvalidParam("keycloak client_id is required")
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.JWKSRefresh == 0 {
		cfg.JWKSRefresh = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	realmURL := fmt.Sprintf("%s/realms/%s", strings.TrimRight(cfg.BaseURL, "/"), cfg.Realm)
	v := &Verifier{
		cfg:    cfg,
		issuer: realmURL,
		keys: &jwksCache{
			client: &http.Client{Timeout: cfg.RequestTimeout},
			url:    realmURL + "/protocol/openid-connect/certs",
			logger: logger,
		},
		logger: logger,
		stop:   make(chan struct{}),
	}
	if err := v.keys.refresh(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeResourceUnavailable, "failed to fetch JWKS")
	}
	go v.refreshLoop()
	return v, nil
}

func (v *Verifier) refreshLoop() {
	ticker := time.NewTicker(v.cfg.JWKSRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), v.cfg.RequestTimeout)
			if err := v.keys.refresh(ctx); err != nil {
				v.logger.Error("failed to refresh JWKS", logging.Err(err))
			}
			cancel()
		}
	}
}

// VerifyToken checks the signature, expiry, issuer and audience of rawToken.
// The audience check accepts the client id in aud or azp.
func (v *Verifier) VerifyToken(ctx context.Context, rawToken string) (*Claims, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, ErrTokenMalformed
		}
		return v.keys.key(ctx, kid)
	}, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"}), jwt.WithExpirationRequired())
	if err != nil {
		switch {
		case stderrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case stderrors.Is(err, jwt.ErrTokenMalformed), stderrors.Is(err, ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.IsResourceUnavailable(err):
			return nil, ErrKeycloakUnavailable
		case stderrors.Is(err, jwt.ErrTokenSignatureInvalid), stderrors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrTokenInvalidSignature
		}
		return nil, errors.Wrap(err, errors.ErrCodeUnauthorized, "token verification failed")
	}
	if !token.Valid {
		return nil, ErrTokenInvalidSignature
	}

	if iss, err := claims.GetIssuer(); err != nil || iss != v.issuer {
		return nil, ErrTokenInvalidIssuer
	}
	aud, _ := claims.GetAudience()
	if !contains(aud, v.cfg.ClientID) {
		if azp, _ := claims["azp"].(string); azp != v.cfg.ClientID {
			return nil, ErrTokenInvalidAudience
		}
	}

	out := &Claims{Issuer: v.issuer, Audience: aud}
	out.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	out.PreferredUsername, _ = claims["preferred_username"].(string)
	out.Email, _ = claims["email"].(string)
	if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
		out.RealmRoles = stringSlice(realm["roles"])
	}
	if resources, ok := claims["resource_access"].(map[string]interface{}); ok {
		if client, ok := resources[v.cfg.ClientID].(map[string]interface{}); ok {
			out.ClientRoles = stringSlice(client["roles"])
		}
	}
	return out, nil
}

// Health fetches the realm keys.
func (v *Verifier) Health(ctx context.Context) error {
	return v.keys.refresh(ctx)
}

// Close stops the background refresh.
func (v *Verifier) Close() error {
	v.stopOnce.Do(func() { close(v.stop) })
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// jwksCache holds the realm signing keys by kid. Concurrent refreshes
// share one request.
type jwksCache struct {
	client *http.Client
	url    string
	logger logging.Logger

	mu    sync.RWMutex
	keys  map[string]*rsa.PublicKey
	group singleflight.Group
}

type jwks struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		Use string `json:"use"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

// key returns the key for kid, refreshing once when it is unknown so
// rotated keys are picked up before the next scheduled refresh.
func (c *jwksCache) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if k := c.lookup(kid); k != nil {
		return k, nil
	}
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	if k := c.lookup(kid); k != nil {
		return k, nil
	}
	return nil, ErrTokenInvalidSignature
}

func (c *jwksCache) lookup(kid string) *rsa.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys[kid]
}

func (c *jwksCache) refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return nil, c.fetch(ctx)
	})
	return err
}

func (c *jwksCache) fetch(ctx context.Context) error {
	c.logger.Debug("refreshing JWKS", logging.String("url", c.url))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeResourceUnavailable, ErrKeycloakUnavailable.Message)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.ErrCodeResourceUnavailable, ErrKeycloakUnavailable.Message).WithDetail(resp.Status)
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return errors.Wrap(err, errors.ErrCodeResourceUnavailable, "malformed JWKS")
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			c.logger.Warn("failed to decode modulus", logging.String("kid", k.Kid), logging.Err(err))
			continue
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			c.logger.Warn("failed to decode exponent", logging.String("kid", k.Kid), logging.Err(err))
			continue
		}
		exp := 0
		for _, b := range e {
			exp = exp<<8 | int(b)
		}
		keys[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: exp}
	}

	c.mu.Lock()
	c.keys = keys
	c.mu.Unlock()
	return nil
}
