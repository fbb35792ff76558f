// Package testing provides a conformance suite for store.Store
// implementations.
//
// It tests the interface contract, not implementation details, so the
// same suite runs against the memory store (unit tests), the sqlite
// store on a temp file (unit tests), and the sqlite store on a real
// database path (integration tests).
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
)

// StoreTestSuite is a conformance test suite for store.Store.
//
// Usage:
//
//	func TestMemoryStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) store.Store {
//	            s, err := memory.NewMemoryStore(context.Background())
//	            require.NoError(t, err)
//	            return s
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test. The suite
	// closes it when the test finishes.
	NewStore func(t *testing.T) store.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Users", suite.RunUserTests)
	t.Run("Files", suite.RunFileTests)
	t.Run("Shares", suite.RunShareTests)
	t.Run("Ping", suite.testPing)
}

func (suite *StoreTestSuite) newStore(t *testing.T) store.Store {
	t.Helper()
	s := suite.NewStore(t)
	t.Cleanup(func() { s.Close() })
	return s
}

func (suite *StoreTestSuite) testPing(t *testing.T) {
	s := suite.newStore(t)
	require.NoError(t, s.Ping(context.Background()))
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

// ============================================================================
// Seed helpers
// ============================================================================

// now returns a deterministic-enough timestamp for seeding records. UTC
// with microsecond precision survives every backend round trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newUser(email string) *depot.User {
	ts := now()
	return &depot.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     "tester",
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
		Role:         depot.RoleUser,
		QuotaBytes:   1 << 30,
		Active:       true,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
}

func seedUser(t *testing.T, s store.Store, email string) *depot.User {
	t.Helper()
	user := newUser(email)
	require.NoError(t, s.CreateUser(testContext(), user))
	return user
}

func newFile(ownerID, filename string, createdAt time.Time) *depot.File {
	return &depot.File{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Filename:    filename,
		Folder:      "/",
		Size:        1024,
		ContentType: "text/plain",
		MD5:         "9e107d9d372bb6826bd81d3542a419d6",
		ObjectKey:   depot.ObjectKey("owner@example.com", filename, createdAt),
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

func seedFile(t *testing.T, s store.Store, ownerID, filename string) *depot.File {
	t.Helper()
	file := newFile(ownerID, filename, now())
	require.NoError(t, s.CreateFile(testContext(), file))
	return file
}

func newShare(file *depot.File, typ depot.ShareType, expiresAt *time.Time) *depot.Share {
	ts := now()
	share := &depot.Share{
		ID:        uuid.NewString(),
		FileID:    file.ID,
		OwnerID:   file.OwnerID,
		Type:      typ,
		ExpiresAt: expiresAt,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if typ == depot.ShareWithPassword {
		share.CodeHash = "$2a$10$fakecodehashfakecodehash"
	}
	return share
}

func seedShare(t *testing.T, s store.Store, file *depot.File, typ depot.ShareType, expiresAt *time.Time) *depot.Share {
	t.Helper()
	share := newShare(file, typ, expiresAt)
	require.NoError(t, s.CreateShare(testContext(), share))
	return share
}

// ============================================================================
// Assertion helpers
// ============================================================================

// AssertErrorCode checks that an error carries the expected StoreError code.
func AssertErrorCode(t *testing.T, expected depot.ErrorCode, err error, msgAndArgs ...any) {
	t.Helper()
	require.Error(t, err, msgAndArgs...)
	code, ok := depot.CodeOf(err)
	require.True(t, ok, "expected a *depot.StoreError, got %T: %v", err, err)
	require.Equal(t, expected, code, msgAndArgs...)
}

// assertSameTime compares instants, ignoring location and monotonic parts.
func assertSameTime(t *testing.T, want, got time.Time) {
	t.Helper()
	require.True(t, want.Equal(got), "want %v, got %v", want, got)
}
