package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/depot"
)

func TestHashPassword(t *testing.T) {
	hash, err := auth.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, auth.VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, auth.VerifyPassword(hash, "wrong password"))
	assert.False(t, auth.VerifyPassword("", "correct horse battery staple"))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, auth.ValidatePassword("12345678"))
	assert.NoError(t, auth.ValidatePassword("a much longer passphrase"))

	err := auth.ValidatePassword("short")
	require.Error(t, err)
	assert.True(t, depot.IsCode(err, depot.ErrInvalidArgument))
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		code, err := auth.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, auth.CodeLength)
		require.NoError(t, auth.ValidateCode(code))
		seen[code] = true
	}
	// 100 draws from 10000 values collide sometimes, but never collapse
	// to a handful
	assert.Greater(t, len(seen), 50)
}

func TestValidateCode(t *testing.T) {
	assert.NoError(t, auth.ValidateCode("0000"))
	assert.NoError(t, auth.ValidateCode("1234"))
	assert.NoError(t, auth.ValidateCode("9999"))

	for _, code := range []string{"", "123", "12345", "12a4", "12.4", "-123", "１２３４"} {
		err := auth.ValidateCode(code)
		require.Error(t, err, "code %q", code)
		assert.True(t, depot.IsCode(err, depot.ErrInvalidArgument), "code %q", code)
	}
}

func TestHashCode(t *testing.T) {
	hash, err := auth.HashCode("4821")
	require.NoError(t, err)

	assert.True(t, auth.VerifyCode(hash, "4821"))
	assert.False(t, auth.VerifyCode(hash, "4822"))
	assert.False(t, auth.VerifyCode(hash, ""))
}
