package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/filedepot/internal/logger"
	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/blob"
	blobmemory "github.com/marmos91/filedepot/pkg/blob/memory"
	"github.com/marmos91/filedepot/pkg/depot"
	sessionmemory "github.com/marmos91/filedepot/pkg/session/memory"
	"github.com/marmos91/filedepot/pkg/store"
	storememory "github.com/marmos91/filedepot/pkg/store/memory"
)

func TestMain(m *testing.M) {
	// Per-request log lines drown the test output otherwise
	logger.SetLevel("ERROR")
	os.Exit(m.Run())
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// testEnv drives the assembled router against in-memory backends.
type testEnv struct {
	t       *testing.T
	handler http.Handler
	store   store.Store
	blobs   blob.Store
}

type envOption func(cfg *Config, deps *Deps)

func withConfig(fn func(cfg *Config)) envOption {
	return func(cfg *Config, _ *Deps) { fn(cfg) }
}

func withDeps(fn func(deps *Deps)) envOption {
	return func(_ *Config, deps *Deps) { fn(deps) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	st, err := storememory.NewMemoryStore(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	sessions := sessionmemory.NewMemorySessionStore()
	t.Cleanup(func() { sessions.Close() })

	tokens, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)

	// MinCost keeps the bcrypt work factor out of the test runtime
	cfg := Config{
		BcryptCost:       bcrypt.MinCost,
		DefaultShareDays: 7,
		MaxShareDays:     365,
	}
	deps := Deps{
		Store:    st,
		Blobs:    blobmemory.NewMemoryBlobStore(),
		Sessions: sessions,
		Tokens:   tokens,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}

	srv, err := New(cfg, deps)
	require.NoError(t, err)

	return &testEnv{t: t, handler: srv.Handler(), store: deps.Store, blobs: deps.Blobs}
}

// do runs one JSON request through the router.
func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// testEnvelope mirrors the response envelope with the data left raw so
// each test can unmarshal it into the shape it expects.
type testEnvelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decode unmarshals the envelope, checks it mirrors the HTTP status,
// and fills dst from the data field when dst is non-nil.
func decode(t *testing.T, rr *httptest.ResponseRecorder, dst any) testEnvelope {
	t.Helper()

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), "body: %s", rr.Body.String())
	require.Equal(t, rr.Code, env.Code, "envelope code must mirror the HTTP status")
	if dst != nil {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}

func (e *testEnv) register(email, username, password string) userPayload {
	e.t.Helper()

	rr := e.do(http.MethodPost, "/api/auth/register", "", registerRequest{
		Email:    email,
		Username: username,
		Password: password,
	})
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())

	var user userPayload
	decode(e.t, rr, &user)
	return user
}

func (e *testEnv) login(email, password string) tokenResponse {
	e.t.Helper()

	rr := e.do(http.MethodPost, "/api/auth/login", "", loginRequest{Email: email, Password: password})
	require.Equal(e.t, http.StatusOK, rr.Code, rr.Body.String())

	var tokens tokenResponse
	decode(e.t, rr, &tokens)
	return tokens
}

func (e *testEnv) registerAndLogin(email, username, password string) (userPayload, tokenResponse) {
	e.t.Helper()
	user := e.register(email, username, password)
	return user, e.login(email, password)
}

// promote flips an account to the admin role behind the API's back.
// Tokens snapshot the role at issue time, so callers must log in again
// afterwards.
func (e *testEnv) promote(userID string) {
	e.t.Helper()

	ctx := context.Background()
	user, err := e.store.GetUser(ctx, userID)
	require.NoError(e.t, err)
	user.Role = depot.RoleAdmin
	require.NoError(e.t, e.store.UpdateUser(ctx, user))
}

// uploadRaw posts a multipart upload and returns the raw response.
func (e *testEnv) uploadRaw(token, filename, folder, content string) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if folder != "" {
		require.NoError(e.t, mw.WriteField("folder", folder))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(e.t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(e.t, err)
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) upload(token, filename, folder, content string) filePayload {
	e.t.Helper()

	rr := e.uploadRaw(token, filename, folder, content)
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())

	var file filePayload
	decode(e.t, rr, &file)
	return file
}

func ptr[T any](v T) *T { return &v }

func TestNew_RequiredDeps(t *testing.T) {
	st, err := storememory.NewMemoryStore(context.Background())
	require.NoError(t, err)
	defer st.Close()

	blobs := blobmemory.NewMemoryBlobStore()
	sessions := sessionmemory.NewMemorySessionStore()
	defer sessions.Close()
	tokens, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name string
		deps Deps
		want string
	}{
		{"missing store", Deps{Blobs: blobs, Sessions: sessions, Tokens: tokens}, "metadata store is required"},
		{"missing blobs", Deps{Store: st, Sessions: sessions, Tokens: tokens}, "blob store is required"},
		{"missing sessions", Deps{Store: st, Blobs: blobs, Tokens: tokens}, "session store is required"},
		{"missing tokens", Deps{Store: st, Blobs: blobs, Sessions: sessions}, "token manager is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(Config{}, tc.deps)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestServer_Name(t *testing.T) {
	st, err := storememory.NewMemoryStore(context.Background())
	require.NoError(t, err)
	defer st.Close()

	sessions := sessionmemory.NewMemorySessionStore()
	defer sessions.Close()
	tokens, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)

	srv, err := New(Config{}, Deps{
		Store:    st,
		Blobs:    blobmemory.NewMemoryBlobStore(),
		Sessions: sessions,
		Tokens:   tokens,
	})
	require.NoError(t, err)
	require.Equal(t, "api", srv.Name())
}

func TestServer_StopUnblocksServe(t *testing.T) {
	st, err := storememory.NewMemoryStore(context.Background())
	require.NoError(t, err)
	defer st.Close()

	sessions := sessionmemory.NewMemorySessionStore()
	defer sessions.Close()
	tokens, err := auth.NewManager(testSecret, time.Hour)
	require.NoError(t, err)

	srv, err := New(Config{ListenAddr: "127.0.0.1:0"}, Deps{
		Store:    st,
		Blobs:    blobmemory.NewMemoryBlobStore(),
		Sessions: sessions,
		Tokens:   tokens,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	// Give the listener a moment to come up before tearing it down
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, srv.Stop(context.Background()))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var status map[string]string
	decode(t, rr, &status)
	require.Equal(t, "ok", status["status"])
}

func TestHealth_DegradedWhenStoreDown(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Close())

	rr := env.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var detail map[string]string
	env2 := decode(t, rr, &detail)
	require.Equal(t, "degraded", env2.Message)
	require.Equal(t, "unreachable", detail["store"])
}
