package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/depot"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testUser() *depot.User {
	return &depot.User{
		ID:    "f47ac10b-58cc-4372-a567-0e02b2c3d479",
		Email: "alice@example.com",
		Role:  depot.RoleUser,
	}
}

func TestManager_IssueVerify(t *testing.T) {
	m, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)

	user := testUser()
	token, expiresAt, err := m.Issue(user)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID())
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, depot.RoleUser, claims.Role)
	assert.Equal(t, auth.Issuer, claims.Issuer)
}

func TestManager_RequiresSecret(t *testing.T) {
	_, err := auth.NewManager(nil, time.Hour)
	assert.Error(t, err)
}

func TestManager_DefaultTTL(t *testing.T) {
	m, err := auth.NewManager(testSecret, 0)
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultAccessTokenTTL, m.TTL())
}

func TestManager_RejectsExpired(t *testing.T) {
	m, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)

	// Expired well past the validation leeway
	claims := &auth.Claims{
		Email: "alice@example.com",
		Role:  depot.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			Issuer:    auth.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestManager_RejectsWrongSecret(t *testing.T) {
	m1, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)
	m2, err := auth.NewManager([]byte("another-secret-another-secret!!!"), time.Hour)
	require.NoError(t, err)

	token, _, err := m1.Issue(testUser())
	require.NoError(t, err)

	_, err = m2.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestManager_RejectsWrongAlgorithm(t *testing.T) {
	m, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)

	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			Issuer:    auth.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestManager_RejectsWrongIssuer(t *testing.T) {
	m, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)

	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "f47ac10b-58cc-4372-a567-0e02b2c3d479",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestManager_RejectsGarbage(t *testing.T) {
	m, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := m.Verify(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken, "token %q", token)
	}
}
