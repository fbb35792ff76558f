package testing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/depot"
)

// RunStatTests executes the Stat contract tests.
func (suite *BlobTestSuite) RunStatTests(t *testing.T) {
	t.Run("Describes", suite.testStatDescribes)
	t.Run("Missing", suite.testStatMissing)
}

func (suite *BlobTestSuite) testStatDescribes(t *testing.T) {
	s := suite.newStore(t)

	before := time.Now().Add(-time.Minute)
	putString(t, s, testKey, "stat me")

	info, err := s.Stat(testContext(), testKey)
	require.NoError(t, err)
	assert.Equal(t, testKey, info.Key)
	assert.Equal(t, int64(len("stat me")), info.Size)
	assert.True(t, info.ModTime.After(before), "mod time %v not after %v", info.ModTime, before)
}

func (suite *BlobTestSuite) testStatMissing(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.Stat(testContext(), "2024/01/01/nope/missing.bin")
	require.Error(t, err)
	assert.True(t, depot.IsNotFound(err), "expected not-found, got %v", err)
}

// RunDeleteTests executes the Delete contract tests.
func (suite *BlobTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("RemovesObject", suite.testDeleteRemoves)
	t.Run("MissingIsNoop", suite.testDeleteMissing)
}

func (suite *BlobTestSuite) testDeleteRemoves(t *testing.T) {
	s := suite.newStore(t)

	putString(t, s, testKey, "doomed")
	require.NoError(t, s.Delete(testContext(), testKey))

	_, err := s.Get(testContext(), testKey)
	assert.True(t, depot.IsNotFound(err), "expected not-found, got %v", err)
}

func (suite *BlobTestSuite) testDeleteMissing(t *testing.T) {
	s := suite.newStore(t)

	// The janitor retries deletes, so a missing key must not error
	require.NoError(t, s.Delete(testContext(), "2024/01/01/nope/missing.bin"))
}

// RunListTests executes the Lister contract tests. Stores that do not
// implement blob.Lister skip them.
func (suite *BlobTestSuite) RunListTests(t *testing.T) {
	t.Run("PrefixFilter", suite.testListPrefix)
	t.Run("StopsOnError", suite.testListStopsOnError)
}

func (suite *BlobTestSuite) testListPrefix(t *testing.T) {
	s := suite.newStore(t)
	lister, ok := s.(blob.Lister)
	if !ok {
		t.Skip("store does not implement blob.Lister")
	}

	putString(t, s, "2024/06/15/aaaa0000/one.txt", "one")
	putString(t, s, "2024/06/15/aaaa0000/two.txt", "two")
	putString(t, s, "2024/06/16/bbbb1111/three.txt", "three")

	var keys []string
	err := lister.List(testContext(), "2024/06/15/", func(info blob.ObjectInfo) error {
		keys = append(keys, info.Key)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"2024/06/15/aaaa0000/one.txt",
		"2024/06/15/aaaa0000/two.txt",
	}, keys)

	// Empty prefix lists everything
	keys = keys[:0]
	err = lister.List(testContext(), "", func(info blob.ObjectInfo) error {
		keys = append(keys, info.Key)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, keys, 3)
}

func (suite *BlobTestSuite) testListStopsOnError(t *testing.T) {
	s := suite.newStore(t)
	lister, ok := s.(blob.Lister)
	if !ok {
		t.Skip("store does not implement blob.Lister")
	}

	putString(t, s, "2024/06/15/aaaa0000/one.txt", "one")
	putString(t, s, "2024/06/15/aaaa0000/two.txt", "two")

	sentinel := &depot.StoreError{Code: depot.ErrIOError, Message: "stop here"}
	calls := 0
	err := lister.List(testContext(), "", func(info blob.ObjectInfo) error {
		calls++
		return sentinel
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "iteration should stop on the first error")
}
