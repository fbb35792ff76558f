package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/filedepot/pkg/depot"
)

// CodeLength is the exact length of a share access code.
const CodeLength = 4

// MinPasswordLength is the shortest password accepted at registration
// and password change.
const MinPasswordLength = 8

// HashPassword returns the bcrypt hash of a password at the default cost.
func HashPassword(password string) (string, error) {
	return HashPasswordCost(password, bcrypt.DefaultCost)
}

// HashPasswordCost returns the bcrypt hash of a password at the given
// cost. A cost outside bcrypt's range falls back to the default.
func HashPasswordCost(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether the password matches the bcrypt hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword checks the password policy at registration time.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &depot.StoreError{
			Code:    depot.ErrInvalidArgument,
			Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength),
		}
	}
	return nil
}

// GenerateCode returns a random share access code of exactly CodeLength
// ASCII digits, zero-padded.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate share code: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// ValidateCode checks that a client-supplied share code is exactly
// CodeLength ASCII digits.
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return &depot.StoreError{
			Code:    depot.ErrInvalidArgument,
			Message: fmt.Sprintf("share code must be exactly %d digits", CodeLength),
		}
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return &depot.StoreError{
				Code:    depot.ErrInvalidArgument,
				Message: fmt.Sprintf("share code must be exactly %d digits", CodeLength),
			}
		}
	}
	return nil
}

// HashCode returns the bcrypt hash of a share access code. Only the hash
// is persisted; the plaintext code is shown to the owner once.
func HashCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash share code: %w", err)
	}
	return string(hash), nil
}

// VerifyCode reports whether the code matches the bcrypt hash.
func VerifyCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
