package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
)

// RunUserTests executes all user operation tests in the suite.
func (suite *StoreTestSuite) RunUserTests(t *testing.T) {
	t.Run("CreateAndGet", suite.testUserCreateAndGet)
	t.Run("GetByEmail", suite.testUserGetByEmail)
	t.Run("DuplicateEmail", suite.testUserDuplicateEmail)
	t.Run("Update", suite.testUserUpdate)
	t.Run("UpdateEmailCollision", suite.testUserUpdateEmailCollision)
	t.Run("Delete", suite.testUserDelete)
	t.Run("DeleteWithFiles", suite.testUserDeleteWithFiles)
	t.Run("List", suite.testUserList)
}

func (suite *StoreTestSuite) testUserCreateAndGet(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	want := newUser("alice@example.com")
	want.Role = depot.RoleAdmin
	want.QuotaBytes = 42
	require.NoError(t, s.CreateUser(ctx, want))

	got, err := s.GetUser(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Email, got.Email)
	assert.Equal(t, want.Username, got.Username)
	assert.Equal(t, want.PasswordHash, got.PasswordHash)
	assert.Equal(t, depot.RoleAdmin, got.Role)
	assert.Equal(t, int64(42), got.QuotaBytes)
	assert.True(t, got.Active)
	assertSameTime(t, want.CreatedAt, got.CreatedAt)
	assertSameTime(t, want.UpdatedAt, got.UpdatedAt)

	_, err = s.GetUser(ctx, "missing-id")
	AssertErrorCode(t, depot.ErrNotFound, err)
}

func (suite *StoreTestSuite) testUserGetByEmail(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	want := seedUser(t, s, "bob@example.com")

	got, err := s.GetUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)

	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	AssertErrorCode(t, depot.ErrNotFound, err)
}

func (suite *StoreTestSuite) testUserDuplicateEmail(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	seedUser(t, s, "dup@example.com")

	err := s.CreateUser(ctx, newUser("dup@example.com"))
	AssertErrorCode(t, depot.ErrExists, err)
}

func (suite *StoreTestSuite) testUserUpdate(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	user := seedUser(t, s, "carol@example.com")

	user.Username = "carol"
	user.QuotaBytes = 7
	user.Active = false
	user.UpdatedAt = user.UpdatedAt.Add(time.Second)
	require.NoError(t, s.UpdateUser(ctx, user))

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", got.Username)
	assert.Equal(t, int64(7), got.QuotaBytes)
	assert.False(t, got.Active)
	assertSameTime(t, user.UpdatedAt, got.UpdatedAt)

	ghost := newUser("ghost@example.com")
	AssertErrorCode(t, depot.ErrNotFound, s.UpdateUser(ctx, ghost))
}

func (suite *StoreTestSuite) testUserUpdateEmailCollision(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	seedUser(t, s, "first@example.com")
	second := seedUser(t, s, "second@example.com")

	second.Email = "first@example.com"
	AssertErrorCode(t, depot.ErrExists, s.UpdateUser(ctx, second))

	// The old email must still resolve after the failed update
	_, err := s.GetUserByEmail(ctx, "second@example.com")
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testUserDelete(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	user := seedUser(t, s, "gone@example.com")
	require.NoError(t, s.DeleteUser(ctx, user.ID))

	_, err := s.GetUser(ctx, user.ID)
	AssertErrorCode(t, depot.ErrNotFound, err)

	// The email is free again
	require.NoError(t, s.CreateUser(ctx, newUser("gone@example.com")))

	AssertErrorCode(t, depot.ErrNotFound, s.DeleteUser(ctx, user.ID))
}

func (suite *StoreTestSuite) testUserDeleteWithFiles(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	user := seedUser(t, s, "owner@example.com")
	seedFile(t, s, user.ID, "keep.txt")

	AssertErrorCode(t, depot.ErrConstraint, s.DeleteUser(ctx, user.ID))

	// Still present
	_, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
}

func (suite *StoreTestSuite) testUserList(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	base := now()
	for i, email := range []string{"u1@example.com", "u2@example.com", "u3@example.com"} {
		u := newUser(email)
		u.CreatedAt = base.Add(time.Duration(i) * time.Second)
		u.UpdatedAt = u.CreatedAt
		require.NoError(t, s.CreateUser(ctx, u))
	}

	page1, total, err := s.ListUsers(ctx, store.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "u3@example.com", page1[0].Email, "newest first")
	assert.Equal(t, "u2@example.com", page1[1].Email)

	page2, total, err := s.ListUsers(ctx, store.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page2, 1)
	assert.Equal(t, "u1@example.com", page2[0].Email)

	empty, _, err := s.ListUsers(ctx, store.Page{Number: 9, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
