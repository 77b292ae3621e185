package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKey is the storage key of the bearer token.
const TokenKey = "auth_token"

// TokenStore holds the bearer token. It is the single source of truth for
// whether the user is logged in.
type TokenStore struct {
	kv *KVStore
}

func NewTokenStore(kv *KVStore) *TokenStore {
	return &TokenStore{kv: kv}
}

func (t *TokenStore) Get() string {
	return t.kv.Get(TokenKey)
}

func (t *TokenStore) Set(token string) error {
	if token == "" {
		return t.Clear()
	}
	return t.kv.Set(TokenKey, token)
}

func (t *TokenStore) Clear() error {
	return t.kv.Delete(TokenKey)
}

// TokenInfo is what can be read from a token without the signing key.
// Tokens that are not JWTs are opaque and report JWT false.
type TokenInfo struct {
	Present   bool       `json:"present"`
	JWT       bool       `json:"jwt"`
	Subject   string     `json:"subject,omitempty"`
	Email     string     `json:"email,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// InspectToken decodes the claims of token without verifying its signature.
// The result is advisory only; the backend stays the authority.
func InspectToken(token string, now time.Time) TokenInfo {
	if token == "" {
		return TokenInfo{}
	}
	info := TokenInfo{Present: true}

	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return info
	}
	info.JWT = true
	info.Subject = claims.Subject
	info.Email = claims.Email
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.Time
		info.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		info.ExpiresAt = &t
		info.Expired = !now.Before(t)
	}
	return info
}

// errStaleToken is returned when a stored token is known to have expired.
var errStaleToken = errors.New("stored token has expired")
