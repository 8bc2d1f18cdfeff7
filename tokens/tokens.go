/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package tokens issues subscriber session tokens (SATs) through the
// LiveWire backend and reads their expiry.
package tokens

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/tejzpr/livewire-go/livewiresdk"
)

// SessionToken is a short-lived credential for the relay connection.
type SessionToken struct {
	// Raw is the token exactly as issued.
	Raw string
	// ExpiresAt is read from the JWT "exp" claim. Zero for opaque tokens.
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at now, allowing for
// leeway. Tokens without an expiry never expire.
func (t *SessionToken) Expired(now time.Time, leeway time.Duration) bool {
	if t == nil {
		return true
	}
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(leeway).Before(t.ExpiresAt)
}

// String returns the raw token.
func (t *SessionToken) String() string {
	if t == nil {
		return ""
	}
	return t.Raw
}

// signatureAlgorithms are the algorithms accepted when parsing the token's
// claims. The signature itself is verified by the relay, not here.
var signatureAlgorithms = []jose.SignatureAlgorithm{
	jose.HS256, jose.HS384, jose.HS512,
	jose.RS256, jose.RS384, jose.RS512,
	jose.PS256, jose.PS384, jose.PS512,
	jose.ES256, jose.ES384, jose.ES512,
	jose.EdDSA,
}

// Parse wraps a raw token and extracts its expiry when it is a signed JWT.
// Tokens that are not JWTs are accepted as opaque.
func Parse(raw string) (*SessionToken, error) {
	if raw == "" {
		return nil, fmt.Errorf("session token is empty")
	}

	token := &SessionToken{Raw: raw}

	parsed, err := jwt.ParseSigned(raw, signatureAlgorithms)
	if err != nil {
		return token, nil
	}

	var claims jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return token, nil
	}
	if claims.Expiry != nil {
		token.ExpiresAt = claims.Expiry.Time()
	}
	return token, nil
}

// Config holds the configuration for the Tokens plugin
type Config struct {
	// Path is the token endpoint relative to the backend base URL.
	Path string
}

// DefaultConfig returns the default configuration for the Tokens plugin
func DefaultConfig() *Config {
	return &Config{
		Path: "api/create_sat",
	}
}

// Client is the session token API client
type Client struct {
	livewireClient *livewiresdk.Client
	config         *Config
}

// New creates a new Tokens plugin
func New(livewireClient *livewiresdk.Client, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		livewireClient: livewireClient,
		config:         config,
	}
}

// createResponse is the data portion of the create_sat envelope.
type createResponse struct {
	Token string `json:"token"`
}

// Create requests a fresh subscriber session token.
func (c *Client) Create(ctx context.Context) (*SessionToken, error) {
	var data createResponse
	if err := c.livewireClient.DoEnvelope(ctx, http.MethodPost, c.config.Path, map[string]interface{}{}, nil, &data); err != nil {
		return nil, err
	}
	if data.Token == "" {
		return nil, fmt.Errorf("token endpoint returned an empty token")
	}
	return Parse(data.Token)
}
