package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
)

// RunShareTests executes all share operation tests in the suite.
func (suite *StoreTestSuite) RunShareTests(t *testing.T) {
	t.Run("CreateAndGet", suite.testShareCreateAndGet)
	t.Run("PermanentShare", suite.testSharePermanent)
	t.Run("OneSharePerFile", suite.testShareOnePerFile)
	t.Run("UnknownFile", suite.testShareUnknownFile)
	t.Run("GetByFileID", suite.testShareGetByFileID)
	t.Run("Update", suite.testShareUpdate)
	t.Run("Delete", suite.testShareDelete)
	t.Run("DeleteByFileID", suite.testShareDeleteByFileID)
	t.Run("ListByOwner", suite.testShareListByOwner)
	t.Run("AccessCount", suite.testShareAccessCount)
	t.Run("PurgeExpired", suite.testSharePurgeExpired)
}

func (suite *StoreTestSuite) testShareCreateAndGet(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "shared.pdf")

	expiry := now().Add(7 * 24 * time.Hour)
	want := newShare(file, depot.ShareWithPassword, &expiry)
	require.NoError(t, s.CreateShare(ctx, want))

	got, err := s.GetShare(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, file.ID, got.FileID)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, depot.ShareWithPassword, got.Type)
	assert.Equal(t, want.CodeHash, got.CodeHash)
	require.NotNil(t, got.ExpiresAt)
	assertSameTime(t, expiry, *got.ExpiresAt)
	assert.Zero(t, got.AccessCount)

	_, err = s.GetShare(ctx, "missing-id")
	AssertErrorCode(t, depot.ErrNotFound, err)
}

func (suite *StoreTestSuite) testSharePermanent(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "forever.txt")
	share := seedShare(t, s, file, depot.SharePublic, nil)

	got, err := s.GetShare(ctx, share.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresAt, "nil expiry means permanent")
	assert.Empty(t, got.CodeHash)
}

func (suite *StoreTestSuite) testShareOnePerFile(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "once.txt")
	seedShare(t, s, file, depot.SharePublic, nil)

	AssertErrorCode(t, depot.ErrExists, s.CreateShare(ctx, newShare(file, depot.SharePublic, nil)))
}

func (suite *StoreTestSuite) testShareUnknownFile(t *testing.T) {
	s := suite.newStore(t)

	ghost := &depot.File{ID: "no-such-file", OwnerID: "nobody"}
	err := s.CreateShare(testContext(), newShare(ghost, depot.SharePublic, nil))
	AssertErrorCode(t, depot.ErrConstraint, err)
}

func (suite *StoreTestSuite) testShareGetByFileID(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "find-me.txt")
	want := seedShare(t, s, file, depot.SharePublic, nil)

	got, err := s.GetShareByFileID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)

	other := seedFile(t, s, owner.ID, "unshared.txt")
	_, err = s.GetShareByFileID(ctx, other.ID)
	AssertErrorCode(t, depot.ErrNotFound, err)
}

func (suite *StoreTestSuite) testShareUpdate(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "mutable.txt")
	share := seedShare(t, s, file, depot.SharePublic, nil)

	expiry := now().Add(24 * time.Hour)
	share.Type = depot.ShareWithPassword
	share.CodeHash = "$2a$10$updatedcodehashupdated"
	share.ExpiresAt = &expiry
	share.UpdatedAt = share.UpdatedAt.Add(time.Second)
	require.NoError(t, s.UpdateShare(ctx, share))

	got, err := s.GetShare(ctx, share.ID)
	require.NoError(t, err)
	assert.Equal(t, depot.ShareWithPassword, got.Type)
	assert.Equal(t, share.CodeHash, got.CodeHash)
	require.NotNil(t, got.ExpiresAt)
	assertSameTime(t, expiry, *got.ExpiresAt)

	// Back to permanent
	share.ExpiresAt = nil
	require.NoError(t, s.UpdateShare(ctx, share))
	got, err = s.GetShare(ctx, share.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExpiresAt)

	ghost := newShare(file, depot.SharePublic, nil)
	AssertErrorCode(t, depot.ErrNotFound, s.UpdateShare(ctx, ghost))
}

func (suite *StoreTestSuite) testShareDelete(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "cancel.txt")
	share := seedShare(t, s, file, depot.SharePublic, nil)

	require.NoError(t, s.DeleteShare(ctx, share.ID))

	_, err := s.GetShare(ctx, share.ID)
	AssertErrorCode(t, depot.ErrNotFound, err)

	// The file can be shared again with a fresh UUID
	require.NoError(t, s.CreateShare(ctx, newShare(file, depot.SharePublic, nil)))

	AssertErrorCode(t, depot.ErrNotFound, s.DeleteShare(ctx, share.ID))
}

func (suite *StoreTestSuite) testShareDeleteByFileID(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "byfile.txt")
	share := seedShare(t, s, file, depot.SharePublic, nil)

	require.NoError(t, s.DeleteShareByFileID(ctx, file.ID))
	_, err := s.GetShare(ctx, share.ID)
	AssertErrorCode(t, depot.ErrNotFound, err)

	// Idempotent: deleting a never-shared file's share is fine
	require.NoError(t, s.DeleteShareByFileID(ctx, file.ID))
}

func (suite *StoreTestSuite) testShareListByOwner(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	other := seedUser(t, s, "other@example.com")

	base := now()
	for i := 0; i < 3; i++ {
		file := seedFile(t, s, owner.ID, fmt.Sprintf("s%d.txt", i))
		share := newShare(file, depot.SharePublic, nil)
		share.CreatedAt = base.Add(time.Duration(i) * time.Second)
		share.UpdatedAt = share.CreatedAt
		require.NoError(t, s.CreateShare(ctx, share))
	}
	otherFile := seedFile(t, s, other.ID, "theirs.txt")
	seedShare(t, s, otherFile, depot.SharePublic, nil)

	shares, total, err := s.ListSharesByOwner(ctx, owner.ID, store.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, shares, 2)
	for _, sh := range shares {
		assert.Equal(t, owner.ID, sh.OwnerID)
	}
	assert.True(t, shares[0].CreatedAt.After(shares[1].CreatedAt) ||
		shares[0].CreatedAt.Equal(shares[1].CreatedAt), "newest first")
}

func (suite *StoreTestSuite) testShareAccessCount(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "counted.txt")
	share := seedShare(t, s, file, depot.SharePublic, nil)

	require.NoError(t, s.IncrementAccessCount(ctx, share.ID))
	require.NoError(t, s.IncrementAccessCount(ctx, share.ID))
	require.NoError(t, s.IncrementAccessCount(ctx, share.ID))

	got, err := s.GetShare(ctx, share.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.AccessCount)

	AssertErrorCode(t, depot.ErrNotFound, s.IncrementAccessCount(ctx, "missing"))
}

func (suite *StoreTestSuite) testSharePurgeExpired(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	cutoff := now()

	longGone := cutoff.Add(-48 * time.Hour)
	justExpired := cutoff.Add(-time.Minute)
	stillLive := cutoff.Add(time.Hour)

	expired1 := seedShare(t, s, seedFile(t, s, owner.ID, "e1.txt"), depot.SharePublic, &longGone)
	expired2 := seedShare(t, s, seedFile(t, s, owner.ID, "e2.txt"), depot.ShareWithPassword, &justExpired)
	live := seedShare(t, s, seedFile(t, s, owner.ID, "live.txt"), depot.SharePublic, &stillLive)
	permanent := seedShare(t, s, seedFile(t, s, owner.ID, "perm.txt"), depot.SharePublic, nil)

	purged, err := s.PurgeExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	for _, gone := range []*depot.Share{expired1, expired2} {
		_, err := s.GetShare(ctx, gone.ID)
		AssertErrorCode(t, depot.ErrNotFound, err)
	}
	for _, kept := range []*depot.Share{live, permanent} {
		_, err := s.GetShare(ctx, kept.ID)
		require.NoError(t, err)
	}

	// Second purge finds nothing
	purged, err = s.PurgeExpired(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, purged)
}
