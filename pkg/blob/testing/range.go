package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/depot"
)

// RunRangeTests executes the GetRange contract tests, which back the
// HTTP download handler's Range support.
func (suite *BlobTestSuite) RunRangeTests(t *testing.T) {
	t.Run("Middle", suite.testRangeMiddle)
	t.Run("ToEnd", suite.testRangeToEnd)
	t.Run("Suffix", suite.testRangeSuffix)
	t.Run("WholeObject", suite.testRangeWhole)
	t.Run("Missing", suite.testRangeMissing)
}

func (suite *BlobTestSuite) testRangeMiddle(t *testing.T) {
	s := suite.newStore(t)
	putString(t, s, testKey, "0123456789")

	rc, err := s.GetRange(testContext(), testKey, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "23456", readAll(t, rc))
}

func (suite *BlobTestSuite) testRangeToEnd(t *testing.T) {
	s := suite.newStore(t)
	putString(t, s, testKey, "0123456789")

	// Negative length means "from offset to the end"
	rc, err := s.GetRange(testContext(), testKey, 7, -1)
	require.NoError(t, err)
	assert.Equal(t, "789", readAll(t, rc))
}

func (suite *BlobTestSuite) testRangeSuffix(t *testing.T) {
	s := suite.newStore(t)
	putString(t, s, testKey, "0123456789")

	// A length running past the end is truncated, not an error
	rc, err := s.GetRange(testContext(), testKey, 8, 100)
	require.NoError(t, err)
	assert.Equal(t, "89", readAll(t, rc))
}

func (suite *BlobTestSuite) testRangeWhole(t *testing.T) {
	s := suite.newStore(t)
	putString(t, s, testKey, "0123456789")

	rc, err := s.GetRange(testContext(), testKey, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", readAll(t, rc))
}

func (suite *BlobTestSuite) testRangeMissing(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.GetRange(testContext(), "2024/01/01/nope/missing.bin", 0, 4)
	require.Error(t, err)
	assert.True(t, depot.IsNotFound(err), "expected not-found, got %v", err)
}
