package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
	"github.com/marmos91/filedepot/pkg/store/sqlite"
	storetesting "github.com/marmos91/filedepot/pkg/store/testing"
)

func newStore(t *testing.T) *sqlite.SQLiteStore {
	t.Helper()
	s, err := sqlite.NewSQLiteStore(context.Background(), sqlite.SQLiteStoreConfig{
		Path: filepath.Join(t.TempDir(), "depot.db"),
	})
	require.NoError(t, err)
	return s
}

func TestSQLiteStore_Conformance(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) store.Store {
			return newStore(t)
		},
	}
	suite.Run(t)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "depot.db")

	s, err := sqlite.NewSQLiteStore(ctx, sqlite.SQLiteStoreConfig{Path: path})
	require.NoError(t, err)

	ts := time.Now().UTC().Truncate(time.Microsecond)
	user := &depot.User{
		ID:           "u1",
		Email:        "persist@example.com",
		PasswordHash: "hash",
		Role:         depot.RoleAdmin,
		Active:       true,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	require.NoError(t, s.CreateUser(ctx, user))
	require.NoError(t, s.Close())

	// Reopen the same file; schema creation must be idempotent and the
	// record still there.
	s, err = sqlite.NewSQLiteStore(ctx, sqlite.SQLiteStoreConfig{Path: path})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetUserByEmail(ctx, "persist@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Equal(t, depot.RoleAdmin, got.Role)
	assert.True(t, ts.Equal(got.CreatedAt))
}

func TestSQLiteStore_InMemory(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.NewSQLiteStore(ctx, sqlite.SQLiteStoreConfig{Path: ":memory:"})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(ctx))

	user := &depot.User{ID: "u1", Email: "m@example.com", PasswordHash: "h", Role: depot.RoleUser, Active: true}
	require.NoError(t, s.CreateUser(ctx, user))

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "m@example.com", got.Email)
}

func TestSQLiteStore_PathRequired(t *testing.T) {
	_, err := sqlite.NewSQLiteStore(context.Background(), sqlite.SQLiteStoreConfig{})
	require.Error(t, err)
}
