package api

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// download fetches a file's bytes, optionally with a Range header.
func (e *testEnv) download(token, fileID, rangeHeader string) *httptest.ResponseRecorder {
	e.t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/files/"+fileID+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func TestUpload(t *testing.T) {
	env := newTestEnv(t)
	user, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")

	file := env.upload(tokens.AccessToken, "notes.txt", "/docs", "hello world")

	assert.NotEmpty(t, file.ID)
	assert.Equal(t, user.ID, file.OwnerID)
	assert.Equal(t, "notes.txt", file.Filename)
	assert.Equal(t, "/docs", file.Folder)
	assert.Equal(t, int64(11), file.Size)
	assert.Equal(t, fmt.Sprintf("%x", md5.Sum([]byte("hello world"))), file.MD5)
	assert.Contains(t, file.ContentType, "text/plain")
	assert.Zero(t, file.DownloadCount)

	// The bytes landed in the blob store under the recorded key
	row, err := env.store.GetFile(context.Background(), file.ID)
	require.NoError(t, err)
	info, err := env.blobs.Stat(context.Background(), row.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size)
}

func TestUpload_FolderNormalized(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")

	// Dot segments resolve and cannot climb above the root
	file := env.upload(tokens.AccessToken, "a.txt", "docs/sub/../x", "data")
	assert.Equal(t, "/docs/x", file.Folder)

	file = env.upload(tokens.AccessToken, "b.txt", "/../../etc", "data")
	assert.Equal(t, "/etc", file.Folder)
}

func TestUpload_ClientPathStripped(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")

	// Browsers on some platforms send full client paths
	file := env.upload(tokens.AccessToken, `C:\Users\alice\report.pdf`, "", "%PDF-1.4 stub")
	assert.Equal(t, "report.pdf", file.Filename)
}

func TestUpload_Validation(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")

	t.Run("not multipart", func(t *testing.T) {
		rr := env.do(http.MethodPost, "/api/files", tokens.AccessToken, map[string]string{"file": "nope"})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decode(t, rr, nil).Message, "expected multipart/form-data")
	})

	t.Run("missing file field", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("folder", "/docs"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		rr := httptest.NewRecorder()
		env.handler.ServeHTTP(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decode(t, rr, nil).Message, `multipart field "file" is required`)
	})

	t.Run("reserved filename", func(t *testing.T) {
		rr := env.uploadRaw(tokens.AccessToken, "..", "", "data")
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid folder", func(t *testing.T) {
		rr := env.uploadRaw(tokens.AccessToken, "a.txt", `docs\evil`, "data")
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decode(t, rr, nil).Message, "invalid characters")
	})
}

func TestUpload_SizeCapped(t *testing.T) {
	env := newTestEnv(t, withConfig(func(cfg *Config) { cfg.MaxUploadBytes = 16 }))
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")

	rr := env.uploadRaw(tokens.AccessToken, "big.bin", "", strings.Repeat("x", 17))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())
	assert.Contains(t, decode(t, rr, nil).Message, "maximum upload size")

	// At the cap exactly is fine
	file := env.upload(tokens.AccessToken, "fits.bin", "", strings.Repeat("x", 16))
	assert.Equal(t, int64(16), file.Size)
}

func TestUpload_QuotaEnforced(t *testing.T) {
	env := newTestEnv(t, withConfig(func(cfg *Config) { cfg.DefaultQuotaBytes = 10 }))
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")

	env.upload(tokens.AccessToken, "a.bin", "", "12345")

	rr := env.uploadRaw(tokens.AccessToken, "b.bin", "", "123456")
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())
	assert.Contains(t, decode(t, rr, nil).Message, "storage quota")

	// Filling the quota to the byte is allowed
	env.upload(tokens.AccessToken, "c.bin", "", "67890")
}

func TestListFiles(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")

	env.upload(tokens.AccessToken, "report.pdf", "/docs", "%PDF-1.4 stub")
	env.upload(tokens.AccessToken, "photo.png", "/pics", "not a real png")
	env.upload(tokens.AccessToken, "notes.txt", "", "hello")

	type listing struct {
		Files    []filePayload `json:"files"`
		Total    int           `json:"total"`
		Page     int           `json:"page"`
		PageSize int           `json:"page_size"`
	}

	rr := env.do(http.MethodGet, "/api/files", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var all listing
	decode(t, rr, &all)
	assert.Equal(t, 3, all.Total)

	rr = env.do(http.MethodGet, "/api/files?folder=/docs", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var docs listing
	decode(t, rr, &docs)
	require.Equal(t, 1, docs.Total)
	assert.Equal(t, "report.pdf", docs.Files[0].Filename)

	// Search matches filenames case-insensitively
	rr = env.do(http.MethodGet, "/api/files?search=PHOTO", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var found listing
	decode(t, rr, &found)
	require.Equal(t, 1, found.Total)
	assert.Equal(t, "photo.png", found.Files[0].Filename)
}

func TestListFiles_OwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceTokens := env.registerAndLogin("alice@example.com", "alice", "password123")
	_, bobTokens := env.registerAndLogin("bob@example.com", "bob", "password123")

	env.upload(aliceTokens.AccessToken, "mine.txt", "", "alice data")

	type listing struct {
		Files []filePayload `json:"files"`
		Total int           `json:"total"`
	}

	rr := env.do(http.MethodGet, "/api/files", bobTokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var bobs listing
	decode(t, rr, &bobs)
	assert.Zero(t, bobs.Total)

	// owner_id is an admin-only lever
	rr = env.do(http.MethodGet, "/api/files?owner_id="+alice.ID, bobTokens.AccessToken, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Message, "owner_id requires admin access")

	admin := env.register("admin@example.com", "admin", "password123")
	env.promote(admin.ID)
	adminTokens := env.login("admin@example.com", "password123")

	rr = env.do(http.MethodGet, "/api/files?owner_id="+alice.ID, adminTokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var view listing
	decode(t, rr, &view)
	assert.Equal(t, 1, view.Total)
}

// Someone else's file ids read as absent, not forbidden, so the id space
// cannot be probed.
func TestGetFile_OtherOwnerReadsAsMissing(t *testing.T) {
	env := newTestEnv(t)
	_, aliceTokens := env.registerAndLogin("alice@example.com", "alice", "password123")
	_, bobTokens := env.registerAndLogin("bob@example.com", "bob", "password123")

	file := env.upload(aliceTokens.AccessToken, "secret.txt", "", "classified")

	for _, probe := range []struct {
		name   string
		method string
		path   string
	}{
		{"get", http.MethodGet, "/api/files/" + file.ID},
		{"download", http.MethodGet, "/api/files/" + file.ID + "/download"},
		{"delete", http.MethodDelete, "/api/files/" + file.ID},
	} {
		t.Run(probe.name, func(t *testing.T) {
			rr := env.do(probe.method, probe.path, bobTokens.AccessToken, nil)
			require.Equal(t, http.StatusNotFound, rr.Code)
		})
	}

	// Admins retain access
	admin := env.register("admin@example.com", "admin", "password123")
	env.promote(admin.ID)
	adminTokens := env.login("admin@example.com", "password123")

	rr := env.do(http.MethodGet, "/api/files/"+file.ID, adminTokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")
	content := "0123456789"
	file := env.upload(tokens.AccessToken, "digits.bin", "", content)

	rr := env.download(tokens.AccessToken, file.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, content, rr.Body.String())
	assert.Equal(t, "bytes", rr.Header().Get("Accept-Ranges"))
	assert.Equal(t, `"`+file.MD5+`"`, rr.Header().Get("ETag"))
	assert.Equal(t, "10", rr.Header().Get("Content-Length"))
	disposition := rr.Header().Get("Content-Disposition")
	assert.Contains(t, disposition, "attachment")
	assert.Contains(t, disposition, "digits.bin")

	var got filePayload
	decode(t, env.do(http.MethodGet, "/api/files/"+file.ID, tokens.AccessToken, nil), &got)
	assert.Equal(t, int64(1), got.DownloadCount)
}

func TestDownload_Ranges(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")
	file := env.upload(tokens.AccessToken, "digits.bin", "", "0123456789")

	cases := []struct {
		name      string
		header    string
		wantBody  string
		wantRange string
	}{
		{"closed", "bytes=2-5", "2345", "bytes 2-5/10"},
		{"open end", "bytes=4-", "456789", "bytes 4-9/10"},
		{"suffix", "bytes=-3", "789", "bytes 7-9/10"},
		{"end clamped", "bytes=8-99", "89", "bytes 8-9/10"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.download(tokens.AccessToken, file.ID, tc.header)
			require.Equal(t, http.StatusPartialContent, rr.Code, rr.Body.String())
			assert.Equal(t, tc.wantBody, rr.Body.String())
			assert.Equal(t, tc.wantRange, rr.Header().Get("Content-Range"))
			assert.Equal(t, strconv.Itoa(len(tc.wantBody)), rr.Header().Get("Content-Length"))
		})
	}

	t.Run("malformed ignored", func(t *testing.T) {
		rr := env.download(tokens.AccessToken, file.ID, "bytes=five-ten")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "0123456789", rr.Body.String())
	})

	t.Run("multi-range ignored", func(t *testing.T) {
		rr := env.download(tokens.AccessToken, file.ID, "bytes=0-1,4-5")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "0123456789", rr.Body.String())
	})

	t.Run("unsatisfiable", func(t *testing.T) {
		rr := env.download(tokens.AccessToken, file.ID, "bytes=10-")
		require.Equal(t, http.StatusRequestedRangeNotSatisfiable, rr.Code)
		assert.Equal(t, "bytes */10", rr.Header().Get("Content-Range"))
	})
}

// Resumed transfers bump the download count only once, when the first
// chunk is fetched.
func TestDownload_ResumeCountsOnce(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")
	file := env.upload(tokens.AccessToken, "digits.bin", "", "0123456789")

	count := func() int64 {
		var got filePayload
		decode(t, env.do(http.MethodGet, "/api/files/"+file.ID, tokens.AccessToken, nil), &got)
		return got.DownloadCount
	}

	rr := env.download(tokens.AccessToken, file.ID, "bytes=0-4")
	require.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Equal(t, int64(1), count())

	rr = env.download(tokens.AccessToken, file.ID, "bytes=5-")
	require.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Equal(t, int64(1), count(), "a resumed chunk is not another download")
}

// A metadata row whose object vanished is a backend fault, not a client
// error.
func TestDownload_MissingObject(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")
	file := env.upload(tokens.AccessToken, "gone.txt", "", "drifting")

	ctx := context.Background()
	row, err := env.store.GetFile(ctx, file.ID)
	require.NoError(t, err)
	require.NoError(t, env.blobs.Delete(ctx, row.ObjectKey))

	rr := env.download(tokens.AccessToken, file.ID, "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Message, "storage backend error")
}

func TestPreview_RequiresPresigningBackend(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")
	file := env.upload(tokens.AccessToken, "pic.png", "", "not a real png")

	// The in-memory backend cannot mint URLs
	rr := env.do(http.MethodGet, "/api/files/"+file.ID+"/preview", tokens.AccessToken, nil)
	require.Equal(t, http.StatusNotImplemented, rr.Code)
	assert.Contains(t, decode(t, rr, nil).Message, "does not support presigned links")
}

func TestUpdateFile(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")
	file := env.upload(tokens.AccessToken, "draft.txt", "", "v1")

	rr := env.do(http.MethodPatch, "/api/files/"+file.ID, tokens.AccessToken, updateFileRequest{
		Filename: ptr("final.txt"),
		Folder:   ptr("/archive"),
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var updated filePayload
	decode(t, rr, &updated)
	assert.Equal(t, "final.txt", updated.Filename)
	assert.Equal(t, "/archive", updated.Folder)

	rr = env.do(http.MethodPatch, "/api/files/"+file.ID, tokens.AccessToken, updateFileRequest{})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(http.MethodPatch, "/api/files/"+file.ID, tokens.AccessToken, updateFileRequest{Filename: ptr("bad/name")})
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeleteFile(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")
	file := env.upload(tokens.AccessToken, "doomed.txt", "", "short lived")

	ctx := context.Background()
	row, err := env.store.GetFile(ctx, file.ID)
	require.NoError(t, err)

	rr := env.do(http.MethodPost, "/api/shares", tokens.AccessToken, createShareRequest{
		FileID:    file.ID,
		ShareType: "public",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var share sharePayload
	decode(t, rr, &share)

	rr = env.do(http.MethodDelete, "/api/files/"+file.ID, tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	// Row, share, and object are all gone
	_, err = env.store.GetFile(ctx, file.ID)
	require.Error(t, err)
	rr = env.do(http.MethodGet, "/api/shares/"+share.ShareUUID, tokens.AccessToken, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	_, err = env.blobs.Stat(ctx, row.ObjectKey)
	require.Error(t, err)
}

func TestFileStats(t *testing.T) {
	env := newTestEnv(t, withConfig(func(cfg *Config) { cfg.DefaultQuotaBytes = 100 }))
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")

	env.upload(tokens.AccessToken, "a.txt", "", "hello")
	env.upload(tokens.AccessToken, "b.txt", "", "world!!")

	rr := env.do(http.MethodGet, "/api/files/stats", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var stats struct {
		FileCount  int   `json:"file_count"`
		TotalBytes int64 `json:"total_bytes"`
		QuotaBytes int64 `json:"quota_bytes"`
	}
	decode(t, rr, &stats)
	assert.Equal(t, 2, stats.FileCount)
	assert.Equal(t, int64(12), stats.TotalBytes)
	assert.Equal(t, int64(100), stats.QuotaBytes)
}

func TestListFolders(t *testing.T) {
	env := newTestEnv(t)
	_, tokens := env.registerAndLogin("alice@example.com", "alice", "password123")

	env.upload(tokens.AccessToken, "root.txt", "", "a")
	env.upload(tokens.AccessToken, "one.txt", "/docs", "b")
	env.upload(tokens.AccessToken, "two.txt", "/docs", "c")

	rr := env.do(http.MethodGet, "/api/folders", tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var listing struct {
		Folders []string `json:"folders"`
	}
	decode(t, rr, &listing)
	assert.Equal(t, []string{"/", "/docs"}, listing.Folders)
}

func TestParseRange(t *testing.T) {
	const size = 100

	cases := []struct {
		name   string
		header string
		want   *byteRange
		err    error
	}{
		{"absent", "", nil, nil},
		{"non-byte unit", "items=0-5", nil, nil},
		{"multi-range", "bytes=0-1,5-6", nil, nil},
		{"malformed", "bytes=five-ten", nil, nil},
		{"no dash", "bytes=5", nil, nil},
		{"inverted", "bytes=5-2", nil, nil},
		{"closed", "bytes=10-19", &byteRange{start: 10, length: 10}, nil},
		{"open end", "bytes=90-", &byteRange{start: 90, length: 10}, nil},
		{"suffix", "bytes=-10", &byteRange{start: 90, length: 10}, nil},
		{"suffix exceeding size", "bytes=-500", &byteRange{start: 0, length: 100}, nil},
		{"end clamped", "bytes=90-200", &byteRange{start: 90, length: 10}, nil},
		{"start at size", "bytes=100-", nil, errUnsatisfiableRange},
		{"zero suffix", "bytes=-0", nil, errUnsatisfiableRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseRange(tc.header, size)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
