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

// RunFileTests executes all file operation tests in the suite.
func (suite *StoreTestSuite) RunFileTests(t *testing.T) {
	t.Run("CreateAndGet", suite.testFileCreateAndGet)
	t.Run("CreateUnknownOwner", suite.testFileCreateUnknownOwner)
	t.Run("Update", suite.testFileUpdate)
	t.Run("Delete", suite.testFileDelete)
	t.Run("DeleteWhileShared", suite.testFileDeleteWhileShared)
	t.Run("ListByOwner", suite.testFileListByOwner)
	t.Run("ListByFolder", suite.testFileListByFolder)
	t.Run("Search", suite.testFileSearch)
	t.Run("ListPagination", suite.testFileListPagination)
	t.Run("ListFolders", suite.testListFolders)
	t.Run("DownloadCount", suite.testDownloadCount)
	t.Run("Stats", suite.testFileStats)
	t.Run("ForEachObjectKey", suite.testForEachObjectKey)
}

func (suite *StoreTestSuite) testFileCreateAndGet(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	want := newFile(owner.ID, "report.pdf", now())
	want.Folder = "/docs"
	want.ContentType = "application/pdf"
	want.Size = 4096
	require.NoError(t, s.CreateFile(ctx, want))

	got, err := s.GetFile(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, "report.pdf", got.Filename)
	assert.Equal(t, "/docs", got.Folder)
	assert.Equal(t, int64(4096), got.Size)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, want.MD5, got.MD5)
	assert.Equal(t, want.ObjectKey, got.ObjectKey)
	assert.Zero(t, got.DownloadCount)
	assertSameTime(t, want.CreatedAt, got.CreatedAt)

	_, err = s.GetFile(ctx, "missing-id")
	AssertErrorCode(t, depot.ErrNotFound, err)

	// Same ID twice
	AssertErrorCode(t, depot.ErrExists, s.CreateFile(ctx, want))
}

func (suite *StoreTestSuite) testFileCreateUnknownOwner(t *testing.T) {
	s := suite.newStore(t)

	file := newFile("no-such-owner", "orphan.txt", now())
	AssertErrorCode(t, depot.ErrConstraint, s.CreateFile(testContext(), file))
}

func (suite *StoreTestSuite) testFileUpdate(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "draft.txt")

	file.Filename = "final.txt"
	file.Folder = "/archive"
	file.UpdatedAt = file.UpdatedAt.Add(time.Second)
	require.NoError(t, s.UpdateFile(ctx, file))

	got, err := s.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "final.txt", got.Filename)
	assert.Equal(t, "/archive", got.Folder)

	ghost := newFile(owner.ID, "ghost.txt", now())
	AssertErrorCode(t, depot.ErrNotFound, s.UpdateFile(ctx, ghost))
}

func (suite *StoreTestSuite) testFileDelete(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "temp.txt")

	require.NoError(t, s.DeleteFile(ctx, file.ID))

	_, err := s.GetFile(ctx, file.ID)
	AssertErrorCode(t, depot.ErrNotFound, err)

	AssertErrorCode(t, depot.ErrNotFound, s.DeleteFile(ctx, file.ID))
}

func (suite *StoreTestSuite) testFileDeleteWhileShared(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "shared.txt")
	seedShare(t, s, file, depot.SharePublic, nil)

	AssertErrorCode(t, depot.ErrConstraint, s.DeleteFile(ctx, file.ID))

	// After removing the share the delete goes through
	require.NoError(t, s.DeleteShareByFileID(ctx, file.ID))
	require.NoError(t, s.DeleteFile(ctx, file.ID))
}

func (suite *StoreTestSuite) testFileListByOwner(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	alice := seedUser(t, s, "alice@example.com")
	bob := seedUser(t, s, "bob@example.com")
	seedFile(t, s, alice.ID, "a1.txt")
	seedFile(t, s, alice.ID, "a2.txt")
	seedFile(t, s, bob.ID, "b1.txt")

	files, total, err := s.ListFiles(ctx, store.FileFilter{OwnerID: alice.ID}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.Equal(t, alice.ID, f.OwnerID)
	}

	// Empty owner filter sees everything (admin listings)
	all, total, err := s.ListFiles(ctx, store.FileFilter{}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)
}

func (suite *StoreTestSuite) testFileListByFolder(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	inDocs := newFile(owner.ID, "manual.md", now())
	inDocs.Folder = "/docs"
	require.NoError(t, s.CreateFile(ctx, inDocs))
	seedFile(t, s, owner.ID, "root.txt")

	files, total, err := s.ListFiles(ctx,
		store.FileFilter{OwnerID: owner.ID, Folder: "/docs"}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, files, 1)
	assert.Equal(t, "manual.md", files[0].Filename)
}

func (suite *StoreTestSuite) testFileSearch(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	seedFile(t, s, owner.ID, "Quarterly Report.pdf")
	seedFile(t, s, owner.ID, "notes.txt")
	seedFile(t, s, owner.ID, "100% done.txt")

	files, total, err := s.ListFiles(ctx,
		store.FileFilter{OwnerID: owner.ID, Search: "report"}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, files, 1)
	assert.Equal(t, "Quarterly Report.pdf", files[0].Filename, "search is case-insensitive")

	// LIKE metacharacters in the search term are literal
	files, total, err = s.ListFiles(ctx,
		store.FileFilter{OwnerID: owner.ID, Search: "100%"}, store.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, files, 1)
	assert.Equal(t, "100% done.txt", files[0].Filename)

	_, total, err = s.ListFiles(ctx,
		store.FileFilter{OwnerID: owner.ID, Search: "zzz"}, store.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func (suite *StoreTestSuite) testFileListPagination(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	base := now()
	for i := 0; i < 5; i++ {
		f := newFile(owner.ID, fmt.Sprintf("f%d.txt", i), base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.CreateFile(ctx, f))
	}

	page1, total, err := s.ListFiles(ctx,
		store.FileFilter{OwnerID: owner.ID}, store.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page1, 2)
	assert.Equal(t, "f4.txt", page1[0].Filename, "newest first")
	assert.Equal(t, "f3.txt", page1[1].Filename)

	page3, _, err := s.ListFiles(ctx,
		store.FileFilter{OwnerID: owner.ID}, store.Page{Number: 3, Size: 2})
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "f0.txt", page3[0].Filename)
}

func (suite *StoreTestSuite) testListFolders(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	for _, folder := range []string{"/docs", "/", "/docs", "/media/photos"} {
		f := newFile(owner.ID, "x.txt", now())
		f.Folder = folder
		require.NoError(t, s.CreateFile(ctx, f))
	}

	folders, err := s.ListFolders(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/docs", "/media/photos"}, folders)

	none, err := s.ListFolders(ctx, "no-such-owner")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func (suite *StoreTestSuite) testDownloadCount(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	file := seedFile(t, s, owner.ID, "hot.bin")

	require.NoError(t, s.IncrementDownloadCount(ctx, file.ID))
	require.NoError(t, s.IncrementDownloadCount(ctx, file.ID))

	got, err := s.GetFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.DownloadCount)

	AssertErrorCode(t, depot.ErrNotFound, s.IncrementDownloadCount(ctx, "missing"))
}

func (suite *StoreTestSuite) testFileStats(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")

	stats, err := s.Stats(ctx, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
	assert.Zero(t, stats.TotalBytes)

	for _, size := range []int64{100, 250} {
		f := newFile(owner.ID, "x.bin", now())
		f.Size = size
		require.NoError(t, s.CreateFile(ctx, f))
	}

	stats, err = s.Stats(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, int64(350), stats.TotalBytes)
}

func (suite *StoreTestSuite) testForEachObjectKey(t *testing.T) {
	s := suite.newStore(t)
	ctx := testContext()

	owner := seedUser(t, s, "owner@example.com")
	want := map[string]bool{}
	for i := 0; i < 3; i++ {
		f := seedFile(t, s, owner.ID, fmt.Sprintf("k%d.txt", i))
		want[f.ObjectKey] = true
	}

	got := map[string]bool{}
	err := s.ForEachObjectKey(ctx, func(key string) error {
		got[key] = true
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// A callback error stops iteration and propagates
	calls := 0
	err = s.ForEachObjectKey(ctx, func(string) error {
		calls++
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}
