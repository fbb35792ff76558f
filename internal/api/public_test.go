package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filedepot/pkg/blob"
	blobmemory "github.com/marmos91/filedepot/pkg/blob/memory"
	"github.com/marmos91/filedepot/pkg/depot"
)

// presigningBlobStore adds a canned presigner on top of the in-memory
// backend so the URL-issuing paths can run without MinIO.
type presigningBlobStore struct {
	blob.Store
	lastKey  string
	lastOpts blob.PresignOptions
}

func (p *presigningBlobStore) PresignGet(_ context.Context, key string, opts blob.PresignOptions) (string, error) {
	p.lastKey, p.lastOpts = key, opts
	return "https://blobs.test/" + key, nil
}

// publicShare publishes the file and returns the share payload.
func publicShare(t *testing.T, env *testEnv, tokens tokenResponse, req createShareRequest) sharePayload {
	t.Helper()

	rr := env.do(http.MethodPost, "/api/shares", tokens.AccessToken, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var share sharePayload
	decode(t, rr, &share)
	return share
}

func TestShareCheck(t *testing.T) {
	env, tokens, file := shareEnv(t)
	share := publicShare(t, env, tokens, createShareRequest{FileID: file.ID, ShareType: "public"})

	rr := env.do(http.MethodGet, "/api/public/shares/"+share.ShareUUID+"/check", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var check struct {
		RequiresPassword bool       `json:"requires_password"`
		Filename         string     `json:"filename"`
		Size             int64      `json:"size"`
		ContentType      string     `json:"content_type"`
		ExpiresAt        *time.Time `json:"expires_at"`
	}
	decode(t, rr, &check)
	assert.False(t, check.RequiresPassword)
	assert.Equal(t, "shared.txt", check.Filename)
	assert.Equal(t, file.Size, check.Size)
	assert.NotNil(t, check.ExpiresAt)
}

func TestShareCheck_PasswordProtected(t *testing.T) {
	env, tokens, file := shareEnv(t)
	share := publicShare(t, env, tokens, createShareRequest{FileID: file.ID, ShareType: "with_password", Code: "1234"})

	rr := env.do(http.MethodGet, "/api/public/shares/"+share.ShareUUID+"/check", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var check struct {
		RequiresPassword bool `json:"requires_password"`
	}
	decode(t, rr, &check)
	assert.True(t, check.RequiresPassword)
}

// Unknown, expired, and orphaned shares must all answer the same 404.
func TestShareCheck_DeadLinksIndistinguishable(t *testing.T) {
	env, tokens, file := shareEnv(t)
	share := publicShare(t, env, tokens, createShareRequest{FileID: file.ID, ShareType: "public"})

	unknown := env.do(http.MethodGet, "/api/public/shares/no-such-uuid/check", "", nil)
	require.Equal(t, http.StatusNotFound, unknown.Code)

	env.expire(share.ShareUUID)
	expired := env.do(http.MethodGet, "/api/public/shares/"+share.ShareUUID+"/check", "", nil)
	require.Equal(t, http.StatusNotFound, expired.Code)

	assert.Equal(t, unknown.Body.String(), expired.Body.String())
}

func TestPublicDownload_StreamsWithoutPresigner(t *testing.T) {
	env, tokens, file := shareEnv(t)
	share := publicShare(t, env, tokens, createShareRequest{FileID: file.ID, ShareType: "public"})

	rr := env.do(http.MethodPost, "/api/public/shares/"+share.ShareUUID+"/download", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "shared contents", rr.Body.String())
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "attachment")

	// The download bumps both counters
	var fetched sharePayload
	decode(t, env.do(http.MethodGet, "/api/shares/"+share.ShareUUID, tokens.AccessToken, nil), &fetched)
	assert.Equal(t, int64(1), fetched.AccessCount)

	var got filePayload
	decode(t, env.do(http.MethodGet, "/api/files/"+file.ID, tokens.AccessToken, nil), &got)
	assert.Equal(t, int64(1), got.DownloadCount)
}

func TestPublicDownload_CodeEnforced(t *testing.T) {
	env, tokens, file := shareEnv(t)
	share := publicShare(t, env, tokens, createShareRequest{FileID: file.ID, ShareType: "with_password", Code: "1234"})
	path := "/api/public/shares/" + share.ShareUUID + "/download"

	rr := env.do(http.MethodPost, path, "", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Message, "access code required")

	rr = env.do(http.MethodPost, path, "", publicDownloadRequest{Code: "9999"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Message, "invalid access code")

	rr = env.do(http.MethodPost, path, "", publicDownloadRequest{Code: "1234"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "shared contents", rr.Body.String())
}

func TestPublicDownload_DeadLink(t *testing.T) {
	env, tokens, file := shareEnv(t)
	share := publicShare(t, env, tokens, createShareRequest{FileID: file.ID, ShareType: "public"})
	env.expire(share.ShareUUID)

	rr := env.do(http.MethodPost, "/api/public/shares/"+share.ShareUUID+"/download", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Message, "share not found or expired")
}

func TestPublicDownload_PresignedLink(t *testing.T) {
	presigning := &presigningBlobStore{Store: blobmemory.NewMemoryBlobStore()}
	env, tokens, file := shareEnv(t, withDeps(func(d *Deps) { d.Blobs = presigning }))
	share := publicShare(t, env, tokens, createShareRequest{FileID: file.ID, ShareType: "public"})

	rr := env.do(http.MethodPost, "/api/public/shares/"+share.ShareUUID+"/download", "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var link struct {
		URL       string `json:"url"`
		Filename  string `json:"filename"`
		ExpiresIn int64  `json:"expires_in"`
	}
	env2 := decode(t, rr, &link)
	assert.Equal(t, "download link issued", env2.Message)
	assert.Equal(t, "https://blobs.test/"+presigning.lastKey, link.URL)
	assert.Equal(t, "shared.txt", link.Filename)

	// A week of remaining share life clamps to the 24h presign ceiling
	assert.Equal(t, int64((24*time.Hour).Seconds()), link.ExpiresIn)
	assert.Equal(t, 24*time.Hour, presigning.lastOpts.Expiry)
	assert.False(t, presigning.lastOpts.Inline)
	assert.Equal(t, "shared.txt", presigning.lastOpts.Filename)
}

func TestPreview_PresignedInline(t *testing.T) {
	presigning := &presigningBlobStore{Store: blobmemory.NewMemoryBlobStore()}
	env, tokens, file := shareEnv(t, withDeps(func(d *Deps) { d.Blobs = presigning }))

	rr := env.do(http.MethodGet, "/api/files/"+file.ID+"/preview", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var link struct {
		URL       string `json:"url"`
		ExpiresIn int64  `json:"expires_in"`
	}
	decode(t, rr, &link)
	assert.Equal(t, "https://blobs.test/"+presigning.lastKey, link.URL)
	assert.Equal(t, int64(600), link.ExpiresIn)
	assert.True(t, presigning.lastOpts.Inline, "previews render in the browser")
}

func TestPublicLinkTTL(t *testing.T) {
	now := time.Now().UTC()
	at := func(d time.Duration) *time.Time {
		v := now.Add(d)
		return &v
	}

	cases := []struct {
		name  string
		share *depot.Share
		want  time.Duration
	}{
		{"permanent", &depot.Share{}, 24 * time.Hour},
		{"nearly expired", &depot.Share{ExpiresAt: at(time.Minute)}, 10 * time.Minute},
		{"mid life", &depot.Share{ExpiresAt: at(2 * time.Hour)}, 2 * time.Hour},
		{"long lived", &depot.Share{ExpiresAt: at(48 * time.Hour)}, 24 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, publicLinkTTL(tc.share, now))
		})
	}
}
