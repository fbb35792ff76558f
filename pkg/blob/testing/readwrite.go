package testing

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/depot"
)

// testKey mirrors the layout real uploads use (see depot.ObjectKey) so
// stores exercise nested prefixes, not just flat names.
const testKey = "2024/06/15/abcd1234/550e8400-e29b-41d4-a716-446655440000.txt"

func putString(t *testing.T, s blob.Store, key, content string) {
	t.Helper()
	err := s.Put(testContext(), key, strings.NewReader(content), int64(len(content)), "text/plain")
	require.NoError(t, err)
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

// RunReadWriteTests executes the Put/Get contract tests.
func (suite *BlobTestSuite) RunReadWriteTests(t *testing.T) {
	t.Run("RoundTrip", suite.testRoundTrip)
	t.Run("Overwrite", suite.testOverwrite)
	t.Run("GetMissing", suite.testGetMissing)
	t.Run("EmptyObject", suite.testEmptyObject)
	t.Run("BinaryContent", suite.testBinaryContent)
}

func (suite *BlobTestSuite) testRoundTrip(t *testing.T) {
	s := suite.newStore(t)

	putString(t, s, testKey, "the quick brown fox")

	rc, err := s.Get(testContext(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "the quick brown fox", readAll(t, rc))
}

func (suite *BlobTestSuite) testOverwrite(t *testing.T) {
	s := suite.newStore(t)

	putString(t, s, testKey, "first version")
	putString(t, s, testKey, "second version, longer than the first")

	rc, err := s.Get(testContext(), testKey)
	require.NoError(t, err)
	assert.Equal(t, "second version, longer than the first", readAll(t, rc))
}

func (suite *BlobTestSuite) testGetMissing(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.Get(testContext(), "2024/01/01/nope/missing.bin")
	require.Error(t, err)
	assert.True(t, depot.IsNotFound(err), "expected not-found, got %v", err)
}

func (suite *BlobTestSuite) testEmptyObject(t *testing.T) {
	s := suite.newStore(t)

	err := s.Put(testContext(), testKey, bytes.NewReader(nil), 0, "application/octet-stream")
	require.NoError(t, err)

	rc, err := s.Get(testContext(), testKey)
	require.NoError(t, err)
	assert.Empty(t, readAll(t, rc))

	info, err := s.Stat(testContext(), testKey)
	require.NoError(t, err)
	assert.Zero(t, info.Size)
}

func (suite *BlobTestSuite) testBinaryContent(t *testing.T) {
	s := suite.newStore(t)

	// Every byte value, twice, so nothing gets mangled in transit.
	data := make([]byte, 512)
	for i := range data {
		data[i] = byte(i % 256)
	}
	err := s.Put(testContext(), testKey, bytes.NewReader(data), int64(len(data)), "application/octet-stream")
	require.NoError(t, err)

	rc, err := s.Get(testContext(), testKey)
	require.NoError(t, err)
	assert.Equal(t, string(data), readAll(t, rc))
}
