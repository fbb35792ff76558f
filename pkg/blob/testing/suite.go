// Package testing provides a conformance suite for blob.Store
// implementations.
//
// It tests the interface contract, not implementation details, so the
// same suite runs against the memory store and the fs store in unit
// tests and against a live MinIO endpoint in the integration tests.
package testing

import (
	"context"
	"testing"

	"github.com/marmos91/filedepot/pkg/blob"
)

// BlobTestSuite is a conformance test suite for blob.Store.
//
// Usage:
//
//	func TestFSBlobStore(t *testing.T) {
//	    suite := &blobtesting.BlobTestSuite{
//	        NewStore: func(t *testing.T) blob.Store {
//	            s, err := fs.NewFSBlobStore(context.Background(), t.TempDir())
//	            require.NoError(t, err)
//	            return s
//	        },
//	    }
//	    suite.Run(t)
//	}
type BlobTestSuite struct {
	// NewStore creates a fresh, empty store for each test. The suite
	// closes it when the test finishes.
	NewStore func(t *testing.T) blob.Store
}

// Run executes all tests in the suite.
func (suite *BlobTestSuite) Run(t *testing.T) {
	t.Run("PutGet", suite.RunReadWriteTests)
	t.Run("Range", suite.RunRangeTests)
	t.Run("Stat", suite.RunStatTests)
	t.Run("Delete", suite.RunDeleteTests)
	t.Run("List", suite.RunListTests)
}

func (suite *BlobTestSuite) newStore(t *testing.T) blob.Store {
	t.Helper()
	s := suite.NewStore(t)
	t.Cleanup(func() { s.Close() })
	return s
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}
