package backend

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential is returned when no usable bearer token is cached.
var ErrNoCredential = errors.New("no backend credential")

// Credentials caches the bearer token handed over by the auth flow.
// Signature verification is the backend's job; only exp is inspected here.
type Credentials struct {
	mu    sync.RWMutex
	token string
	exp   time.Time
	now   func() time.Time
}

func NewCredentials() *Credentials {
	return &Credentials{now: time.Now}
}

// Set caches token. JWTs that are already expired are refused; opaque
// tokens are kept without expiry.
func (c *Credentials) Set(token string) error {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return ErrNoCredential
	}
	exp := expiryOf(token)
	if !exp.IsZero() && !c.now().Before(exp) {
		return ErrNoCredential
	}
	c.mu.Lock()
	c.token, c.exp = token, exp
	c.mu.Unlock()
	return nil
}

// Token returns the cached token, dropping it once expired.
func (c *Credentials) Token() (string, error) {
	c.mu.RLock()
	token, exp := c.token, c.exp
	c.mu.RUnlock()

	if token == "" {
		return "", ErrNoCredential
	}
	if !exp.IsZero() && !c.now().Before(exp) {
		c.Clear()
		return "", ErrNoCredential
	}
	return token, nil
}

// Present reports whether a usable token is cached.
func (c *Credentials) Present() bool {
	_, err := c.Token()
	return err == nil
}

func (c *Credentials) Clear() {
	c.mu.Lock()
	c.token, c.exp = "", time.Time{}
	c.mu.Unlock()
}

func expiryOf(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
