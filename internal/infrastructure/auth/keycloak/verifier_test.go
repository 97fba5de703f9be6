package keycloak

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molscore/pkg/errors"
)

const (
	testRealm  = "chem"
	testClient = "molscore-api"
)

// mockKeycloak serves the JWKS of a realm.
type mockKeycloak struct {
	server   *httptest.Server
	requests atomic.Int32
	down     atomic.Bool

	mu  sync.Mutex
	kid string
	key *rsa.PrivateKey
}

func newMockKeycloak(t *testing.T) *mockKeycloak {
	t.Helper()
	mk := &mockKeycloak{kid: "kid-1", key: generateKey(t)}
	mk.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mk.requests.Add(1)
		if mk.down.Load() || r.URL.Path != "/realms/"+testRealm+"/protocol/openid-connect/certs" {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		mk.mu.Lock()
		pub := mk.key.PublicKey
		kid := mk.kid
		mk.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{
			{"kid": "enc-key", "kty": "RSA", "use": "enc", "n": "AQAB", "e": "AQAB"},
			{
				"kid": kid,
				"kty": "RSA",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			},
		}})
	}))
	t.Cleanup(mk.server.Close)
	return mk
}

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func (mk *mockKeycloak) rotate(kid string, key *rsa.PrivateKey) {
	mk.mu.Lock()
	defer mk.mu.Unlock()
	mk.kid, mk.key = kid, key
}

func (mk *mockKeycloak) issuer() string {
	return mk.server.URL + "/realms/" + testRealm
}

func (mk *mockKeycloak) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	mk.mu.Lock()
	kid, key := mk.kid, mk.key
	mk.mu.Unlock()
	return signWith(t, key, kid, claims)
}

func signWith(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func (mk *mockKeycloak) claims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":                "user-1",
		"preferred_username": "chemist",
		"email":              "chemist@example.com",
		"iss":                mk.issuer(),
		"aud":                []string{testClient, "account"},
		"exp":                time.Now().Add(time.Hour).Unix(),
		"iat":                time.Now().Unix(),
		"realm_access":       map[string]any{"roles": []string{"offline_access", "scorer"}},
		"resource_access": map[string]any{
			testClient: map[string]any{"roles": []string{"runs-reader"}},
			"account":  map[string]any{"roles": []string{"manage-account"}},
		},
	}
}

func newTestVerifier(t *testing.T, mk *mockKeycloak) *Verifier {
	t.Helper()
	v, err := NewVerifier(context.Background(), Config{
		BaseURL:  mk.server.URL + "/",
		Realm:    testRealm,
		ClientID: testClient,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v
}

func TestNewVerifier_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing base url", Config{Realm: "r", ClientID: "c"}},
		{"missing realm", Config{BaseURL: "http://kc", ClientID: "c"}},
		{"missing client", Config{BaseURL: "http://kc", Realm: "r"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVerifier(context.Background(), tt.cfg, nil)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidParam))
		})
	}
}

func TestNewVerifier_JWKSUnavailable(t *testing.T) {
	mk := newMockKeycloak(t)
	mk.down.Store(true)

	_, err := NewVerifier(context.Background(), Config{BaseURL: mk.server.URL, Realm: testRealm, ClientID: testClient}, nil)
	assert.True(t, errors.IsResourceUnavailable(err))
}

func TestVerifyToken_Valid(t *testing.T) {
	mk := newMockKeycloak(t)
	v := newTestVerifier(t, mk)

	claims, err := v.VerifyToken(context.Background(), mk.sign(t, mk.claims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "chemist", claims.PreferredUsername)
	assert.Equal(t, mk.issuer(), claims.Issuer)
	assert.Equal(t, []string{"offline_access", "scorer"}, claims.RealmRoles)
	assert.Equal(t, []string{"runs-reader"}, claims.ClientRoles)
	assert.True(t, claims.HasRole("scorer"))
	assert.True(t, claims.HasRole("runs-reader"))
	assert.False(t, claims.HasRole("manage-account"))
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestVerifyToken_AuthorizedPartyAccepted(t *testing.T) {
	mk := newMockKeycloak(t)
	v := newTestVerifier(t, mk)

	c := mk.claims()
	c["aud"] = "account"
	c["azp"] = testClient
	_, err := v.VerifyToken(context.Background(), mk.sign(t, c))
	assert.NoError(t, err)
}

func TestVerifyToken_Rejections(t *testing.T) {
	mk := newMockKeycloak(t)
	v := newTestVerifier(t, mk)
	other := generateKey(t)

	tests := []struct {
		name  string
		token func() string
		want  error
	}{
		{"expired", func() string {
			c := mk.claims()
			c["exp"] = time.Now().Add(-time.Minute).Unix()
			return mk.sign(t, c)
		}, ErrTokenExpired},
		{"wrong issuer", func() string {
			c := mk.claims()
			c["iss"] = "https://evil.example.com/realms/" + testRealm
			return mk.sign(t, c)
		}, ErrTokenInvalidIssuer},
		{"wrong audience", func() string {
			c := mk.claims()
			c["aud"] = "another-client"
			c["azp"] = "another-client"
			return mk.sign(t, c)
		}, ErrTokenInvalidAudience},
		{"unknown kid", func() string {
			return signWith(t, mk.key, "kid-unknown", mk.claims())
		}, ErrTokenInvalidSignature},
		{"wrong key", func() string {
			return signWith(t, other, "kid-1", mk.claims())
		}, ErrTokenInvalidSignature},
		{"missing kid", func() string {
			return signWith(t, mk.key, "", mk.claims())
		}, ErrTokenMalformed},
		{"hmac", func() string {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, mk.claims())
			token.Header["kid"] = "kid-1"
			signed, err := token.SignedString([]byte("secret"))
			require.NoError(t, err)
			return signed
		}, ErrTokenInvalidSignature},
		{"garbage", func() string { return "not.a.token" }, ErrTokenMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.VerifyToken(context.Background(), tt.token())
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))
		})
	}
}

func TestVerifyToken_MissingExpiry(t *testing.T) {
	mk := newMockKeycloak(t)
	v := newTestVerifier(t, mk)

	c := mk.claims()
	delete(c, "exp")
	_, err := v.VerifyToken(context.Background(), mk.sign(t, c))
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnauthorized))
}

func TestVerifyToken_KeyRotation(t *testing.T) {
	mk := newMockKeycloak(t)
	v := newTestVerifier(t, mk)
	before := mk.requests.Load()

	mk.rotate("kid-2", generateKey(t))
	claims, err := v.VerifyToken(context.Background(), mk.sign(t, mk.claims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, before+1, mk.requests.Load())

	// The new key is cached.
	_, err = v.VerifyToken(context.Background(), mk.sign(t, mk.claims()))
	require.NoError(t, err)
	assert.Equal(t, before+1, mk.requests.Load())
}

func TestVerifyToken_KeycloakDownDuringRefresh(t *testing.T) {
	mk := newMockKeycloak(t)
	v := newTestVerifier(t, mk)
	mk.down.Store(true)

	_, err := v.VerifyToken(context.Background(), signWith(t, mk.key, "kid-9", mk.claims()))
	assert.ErrorIs(t, err, ErrKeycloakUnavailable)
}

func TestVerifier_HealthAndClose(t *testing.T) {
	mk := newMockKeycloak(t)
	v := newTestVerifier(t, mk)

	assert.NoError(t, v.Health(context.Background()))
	mk.down.Store(true)
	assert.Error(t, v.Health(context.Background()))

	assert.NoError(t, v.Close())
	assert.NoError(t, v.Close())
}
