package depot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2025, 3, 9, 15, 4, 5, 0, time.UTC)

	key := ObjectKey("Alice@Example.com", "report.PDF", now)

	parts := strings.Split(key, "/")
	require.Len(t, parts, 5)
	assert.Equal(t, "2025", parts[0])
	assert.Equal(t, "03", parts[1])
	assert.Equal(t, "09", parts[2])
	assert.Len(t, parts[3], 8, "owner segment is the first 8 hex chars of the email digest")
	assert.True(t, strings.HasSuffix(parts[4], ".pdf"), "extension is lowercased: %s", parts[4])

	// Same owner, same day: stable prefix, unique object name
	key2 := ObjectKey("alice@example.com", "report.pdf", now)
	assert.Equal(t, parts[3], strings.Split(key2, "/")[3], "email digest is case-insensitive")
	assert.NotEqual(t, key, key2)
}

func TestObjectKey_NoExtension(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	key := ObjectKey("a@b.c", "README", now)
	assert.NotContains(t, strings.Split(key, "/")[4], ".")
}

func TestNormalizeFolder(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"empty is root", "", "/", false},
		{"root", "/", "/", false},
		{"plain", "/docs", "/docs", false},
		{"relative becomes absolute", "docs/reports", "/docs/reports", false},
		{"trailing slash stripped", "/docs/", "/docs", false},
		{"dot segments resolved", "/docs/./a/../b", "/docs/b", false},
		{"cannot escape root", "/../..", "/", false},
		{"backslash rejected", "\\docs", "", true},
		{"nul rejected", "/do\x00cs", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeFolder(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsCode(err, ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("report (final).pdf"))
	assert.NoError(t, ValidateFilename("数据.txt"))

	assert.Error(t, ValidateFilename(""))
	assert.Error(t, ValidateFilename("."))
	assert.Error(t, ValidateFilename("a/b"))
	assert.Error(t, ValidateFilename("line\nbreak.txt"))
	assert.Error(t, ValidateFilename(strings.Repeat("x", 256)))
}

func TestShareExpired(t *testing.T) {
	now := time.Now()

	permanent := &Share{}
	assert.False(t, permanent.Expired(now))

	past := now.Add(-time.Minute)
	expired := &Share{ExpiresAt: &past}
	assert.True(t, expired.Expired(now))

	future := now.Add(time.Minute)
	live := &Share{ExpiresAt: &future}
	assert.False(t, live.Expired(now))

	// Boundary: the expiry instant itself counts as expired
	at := now
	boundary := &Share{ExpiresAt: &at}
	assert.True(t, boundary.Expired(now))
}

func TestErrorCodeRoundtrip(t *testing.T) {
	err := &StoreError{Code: ErrQuotaExceeded, Message: "quota exceeded", Key: "user-1"}

	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrQuotaExceeded, code)
	assert.Equal(t, "quota exceeded: user-1", err.Error())
	assert.True(t, IsCode(err, ErrQuotaExceeded))
	assert.False(t, IsNotFound(err))

	_, ok = CodeOf(assert.AnError)
	assert.False(t, ok)
}
