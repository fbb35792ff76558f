// Package auth implements the credential primitives: JWT access tokens,
// bcrypt password and share-code hashing, and opaque refresh tokens.
//
// Nothing here touches storage. The session store (pkg/session) persists
// refresh token hashes; the HTTP layer (internal/api) wires the two
// together.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/marmos91/filedepot/pkg/depot"
)

// Issuer is the iss claim stamped on every access token.
const Issuer = "filedepot"

// tokenLeeway absorbs clock skew between the server and its clients
// when validating exp/iat.
const tokenLeeway = 30 * time.Second

// DefaultAccessTokenTTL applies when the manager is built with a
// non-positive TTL.
const DefaultAccessTokenTTL = 30 * time.Minute

// ErrInvalidToken is returned by Verify for any token that fails
// validation. The cause is deliberately not exposed: expired, forged and
// malformed tokens all look the same to the client.
var ErrInvalidToken = errors.New("invalid token")

// Claims carried by an access token.
type Claims struct {
	// Email of the account at issue time
	Email string `json:"email"`

	// Role of the account at issue time
	Role depot.Role `json:"role"`

	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// Manager issues and verifies HS256 access tokens.
//
// Thread safety: safe for concurrent use.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a token manager. The secret must not be empty;
// ttl falls back to DefaultAccessTokenTTL when non-positive.
func NewManager(secret []byte, ttl time.Duration) (*Manager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}
	return &Manager{secret: secret, ttl: ttl}, nil
}

// TTL returns the configured access token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a new access token for the user and returns it with its
// expiry instant.
func (m *Manager) Issue(user *depot.User) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.ttl)

	claims := &Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates an access token, returning its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithLeeway(tokenLeeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
