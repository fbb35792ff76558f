// Package testing provides a conformance suite for session.Store
// implementations, run against both the memory and badger backends.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/session"
)

// SessionTestSuite is a conformance test suite for session.Store.
type SessionTestSuite struct {
	// NewStore creates a fresh, empty store for each test. The suite
	// closes it when the test finishes.
	NewStore func(t *testing.T) session.Store
}

// Run executes all tests in the suite.
func (suite *SessionTestSuite) Run(t *testing.T) {
	t.Run("SaveLookup", suite.testSaveLookup)
	t.Run("LookupMissing", suite.testLookupMissing)
	t.Run("LookupExpired", suite.testLookupExpired)
	t.Run("SaveRejectsExpired", suite.testSaveRejectsExpired)
	t.Run("SaveRejectsEmpty", suite.testSaveRejectsEmpty)
	t.Run("Delete", suite.testDelete)
	t.Run("DeleteMissingIsNoop", suite.testDeleteMissing)
	t.Run("DeleteForUser", suite.testDeleteForUser)
}

func (suite *SessionTestSuite) newStore(t *testing.T) session.Store {
	t.Helper()
	s := suite.NewStore(t)
	t.Cleanup(func() { s.Close() })
	return s
}

func testContext() context.Context {
	return context.Background()
}

const (
	aliceID = "f47ac10b-58cc-4372-a567-0e02b2c3d479"
	bobID   = "9b2f8c1a-7d3e-4b5a-8c6d-1e2f3a4b5c6d"
)

func (suite *SessionTestSuite) testSaveLookup(t *testing.T) {
	s := suite.newStore(t)

	err := s.Save(testContext(), "hash-1", aliceID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	userID, err := s.Lookup(testContext(), "hash-1")
	require.NoError(t, err)
	assert.Equal(t, aliceID, userID)
}

func (suite *SessionTestSuite) testLookupMissing(t *testing.T) {
	s := suite.newStore(t)

	_, err := s.Lookup(testContext(), "no-such-hash")
	require.Error(t, err)
	assert.True(t, depot.IsNotFound(err), "expected not-found, got %v", err)
}

func (suite *SessionTestSuite) testLookupExpired(t *testing.T) {
	s := suite.newStore(t)

	// Badger's entry TTLs have one-second granularity, so the expiry
	// and the sleep are sized to land safely past it.
	require.NoError(t, s.Save(testContext(), "hash-short", aliceID, time.Now().Add(time.Second)))
	time.Sleep(1500 * time.Millisecond)

	_, err := s.Lookup(testContext(), "hash-short")
	require.Error(t, err)
	assert.True(t, depot.IsNotFound(err), "expected not-found, got %v", err)
}

func (suite *SessionTestSuite) testSaveRejectsExpired(t *testing.T) {
	s := suite.newStore(t)

	err := s.Save(testContext(), "hash-past", aliceID, time.Now().Add(-time.Minute))
	require.Error(t, err)
	assert.True(t, depot.IsCode(err, depot.ErrInvalidArgument))
}

func (suite *SessionTestSuite) testSaveRejectsEmpty(t *testing.T) {
	s := suite.newStore(t)
	expiry := time.Now().Add(time.Hour)

	assert.Error(t, s.Save(testContext(), "", aliceID, expiry))
	assert.Error(t, s.Save(testContext(), "hash-1", "", expiry))
}

func (suite *SessionTestSuite) testDelete(t *testing.T) {
	s := suite.newStore(t)

	require.NoError(t, s.Save(testContext(), "hash-1", aliceID, time.Now().Add(time.Hour)))
	require.NoError(t, s.Delete(testContext(), "hash-1"))

	_, err := s.Lookup(testContext(), "hash-1")
	assert.True(t, depot.IsNotFound(err))
}

func (suite *SessionTestSuite) testDeleteMissing(t *testing.T) {
	s := suite.newStore(t)
	assert.NoError(t, s.Delete(testContext(), "no-such-hash"))
}

func (suite *SessionTestSuite) testDeleteForUser(t *testing.T) {
	s := suite.newStore(t)
	expiry := time.Now().Add(time.Hour)

	require.NoError(t, s.Save(testContext(), "alice-1", aliceID, expiry))
	require.NoError(t, s.Save(testContext(), "alice-2", aliceID, expiry))
	require.NoError(t, s.Save(testContext(), "bob-1", bobID, expiry))

	require.NoError(t, s.DeleteForUser(testContext(), aliceID))

	_, err := s.Lookup(testContext(), "alice-1")
	assert.True(t, depot.IsNotFound(err), "alice-1 should be revoked")
	_, err = s.Lookup(testContext(), "alice-2")
	assert.True(t, depot.IsNotFound(err), "alice-2 should be revoked")

	// Other users' sessions are untouched
	userID, err := s.Lookup(testContext(), "bob-1")
	require.NoError(t, err)
	assert.Equal(t, bobID, userID)
}
