package api

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/marmos91/filedepot/pkg/audit"
	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
)

// uploadOverhead is the multipart framing allowance added to the file
// cap when bounding the request body.
const uploadOverhead = 1 << 20

// folderFieldLimit bounds the folder form value in an upload.
const folderFieldLimit = 4096

// previewLinkTTL is how long a preview presigned URL stays valid.
const previewLinkTTL = 10 * time.Minute

// filePayload is the file record shape serialized to clients. The
// object key stays internal.
type filePayload struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Filename      string    `json:"filename"`
	Folder        string    `json:"folder"`
	Size          int64     `json:"size"`
	ContentType   string    `json:"content_type"`
	MD5           string    `json:"md5"`
	DownloadCount int64     `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func fileDTO(f *depot.File) filePayload {
	return filePayload{
		ID:            f.ID,
		OwnerID:       f.OwnerID,
		Filename:      f.Filename,
		Folder:        f.Folder,
		Size:          f.Size,
		ContentType:   f.ContentType,
		MD5:           f.MD5,
		DownloadCount: f.DownloadCount,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

type updateFileRequest struct {
	Filename *string `json:"filename"`
	Folder   *string `json:"folder"`
}

// handleUpload stores a new file. POST /api/files
//
// The request is multipart/form-data with the content in a "file" field
// and an optional "folder" field. The content is spooled to a temp file
// while its MD5 is computed, so nothing is buffered in memory and the
// exact size is known before the quota check and the blob write.
func (h *handlers) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := claimsFrom(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+uploadOverhead)
	// The header deadline already passed; a slow body shouldn't be cut
	// off by the server-wide read timeout
	_ = http.NewResponseController(w).SetReadDeadline(time.Time{})

	mr, err := r.MultipartReader()
	if err != nil {
		respondErr(w, r, badRequest("expected multipart/form-data"))
		return
	}

	var (
		filename    string
		clientType  string
		folderValue string
		spool       *os.File
		spoolSize   int64
		md5hex      string
	)
	defer func() {
		if spool != nil {
			spool.Close()
			os.Remove(spool.Name())
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			respondErr(w, r, err)
			return
		}

		switch part.FormName() {
		case "folder":
			data, err := io.ReadAll(io.LimitReader(part, folderFieldLimit))
			if err != nil {
				respondErr(w, r, err)
				return
			}
			folderValue = strings.TrimSpace(string(data))

		case "file":
			if spool != nil {
				respondErr(w, r, badRequest("request contains more than one file part"))
				return
			}
			filename = baseName(part.FileName())
			if err := depot.ValidateFilename(filename); err != nil {
				respondErr(w, r, err)
				return
			}
			clientType = part.Header.Get("Content-Type")

			spool, err = os.CreateTemp("", "filedepot-upload-*")
			if err != nil {
				respondErr(w, r, err)
				return
			}
			hasher := md5.New()
			spoolSize, err = io.Copy(io.MultiWriter(spool, hasher), part)
			if err != nil {
				respondErr(w, r, err)
				return
			}
			md5hex = hex.EncodeToString(hasher.Sum(nil))
		}
	}

	if spool == nil {
		respondErr(w, r, badRequest(`multipart field "file" is required`))
		return
	}
	if spoolSize > h.cfg.MaxUploadBytes {
		respondErr(w, r, &depot.StoreError{
			Code:    depot.ErrQuotaExceeded,
			Message: fmt.Sprintf("file exceeds the maximum upload size of %s", humanize.IBytes(uint64(h.cfg.MaxUploadBytes))),
		})
		return
	}

	folder := "/"
	if folderValue != "" {
		folder, err = depot.NormalizeFolder(folderValue)
		if err != nil {
			respondErr(w, r, err)
			return
		}
	}

	user, err := h.store.GetUser(ctx, claims.UserID())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	if user.QuotaBytes > 0 {
		stats, err := h.store.Stats(ctx, user.ID)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		if stats.TotalBytes+spoolSize > user.QuotaBytes {
			respondErr(w, r, &depot.StoreError{
				Code:    depot.ErrQuotaExceeded,
				Message: fmt.Sprintf("upload would exceed the %s storage quota", humanize.IBytes(uint64(user.QuotaBytes))),
			})
			return
		}
	}

	contentType := sniffContentType(spool, clientType)
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		respondErr(w, r, err)
		return
	}

	now := time.Now().UTC()
	key := depot.ObjectKey(user.Email, filename, now)

	putStart := time.Now()
	err = h.blobs.Put(ctx, key, spool, spoolSize, contentType)
	h.metrics.Blob.RecordOperation("put", spoolSize, time.Since(putStart), err)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	file := &depot.File{
		ID:          uuid.NewString(),
		OwnerID:     user.ID,
		Filename:    filename,
		Folder:      folder,
		Size:        spoolSize,
		ContentType: contentType,
		MD5:         md5hex,
		ObjectKey:   key,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.CreateFile(ctx, file); err != nil {
		// The object is already stored; try to remove it instead of
		// leaving an orphan for the janitor
		if delErr := h.blobs.Delete(ctx, key); delErr != nil {
			zerolog.Ctx(ctx).Warn().Err(delErr).Str("key", key).Msg("failed to remove object after metadata failure")
		}
		respondErr(w, r, err)
		return
	}

	h.audit.Record(ctx, audit.Event{
		Action:     audit.ActionFileUpload,
		ActorID:    user.ID,
		ActorEmail: user.Email,
		ObjectID:   file.ID,
		Detail: map[string]string{
			"filename": file.Filename,
			"size":     strconv.FormatInt(file.Size, 10),
			"ip":       clientIP(r),
		},
	})

	respond(w, http.StatusCreated, "file uploaded", fileDTO(file))
}

// handleListFiles pages through file records. GET /api/files
//
// Callers see their own files; admins may pass owner_id to inspect
// another account.
func (h *handlers) handleListFiles(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	q := r.URL.Query()

	filter := store.FileFilter{
		OwnerID: claims.UserID(),
		Search:  q.Get("search"),
	}

	if owner := q.Get("owner_id"); owner != "" && owner != claims.UserID() {
		if !claims.Role.Admin() {
			respondErr(w, r, forbidden("owner_id requires admin access"))
			return
		}
		filter.OwnerID = owner
	}

	if folder := q.Get("folder"); folder != "" {
		normalized, err := depot.NormalizeFolder(folder)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		filter.Folder = normalized
	}

	page := parsePage(q)
	files, total, err := h.store.ListFiles(r.Context(), filter, page)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	payload := make([]filePayload, 0, len(files))
	for _, f := range files {
		payload = append(payload, fileDTO(f))
	}

	respond(w, http.StatusOK, "files", map[string]any{
		"files":     payload,
		"total":     total,
		"page":      page.Number,
		"page_size": page.Size,
	})
}

// handleGetFile returns one file record. GET /api/files/{id}
func (h *handlers) handleGetFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.loadFileFor(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, "file", fileDTO(file))
}

// handleDownload streams the file's bytes. GET /api/files/{id}/download
func (h *handlers) handleDownload(w http.ResponseWriter, r *http.Request) {
	file, err := h.loadFileFor(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	h.streamFile(w, r, file, func(offset int64) {
		// A resumed transfer counts once, at its first chunk
		if offset != 0 {
			return
		}
		if err := h.store.IncrementDownloadCount(r.Context(), file.ID); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("file_id", file.ID).Msg("failed to bump download count")
		}
		claims, _ := claimsFrom(r.Context())
		h.audit.Record(r.Context(), audit.Event{
			Action:     audit.ActionFileDownload,
			ActorID:    claims.UserID(),
			ActorEmail: claims.Email,
			ObjectID:   file.ID,
			Detail:     map[string]string{"filename": file.Filename, "ip": clientIP(r)},
		})
	})
}

// handlePreview issues a short-lived presigned URL with an inline
// disposition so browsers render the file instead of downloading it.
// GET /api/files/{id}/preview
func (h *handlers) handlePreview(w http.ResponseWriter, r *http.Request) {
	file, err := h.loadFileFor(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	presigner, ok := h.blobs.(blob.Presigner)
	if !ok {
		writeJSON(w, http.StatusNotImplemented, envelope{
			Code:    http.StatusNotImplemented,
			Message: "the storage backend does not support presigned links",
		})
		return
	}

	presignStart := time.Now()
	url, err := presigner.PresignGet(r.Context(), file.ObjectKey, blob.PresignOptions{
		Expiry:   previewLinkTTL,
		Filename: file.Filename,
		Inline:   true,
	})
	h.metrics.Blob.RecordOperation("presign", 0, time.Since(presignStart), err)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, "preview link issued", map[string]any{
		"url":        url,
		"filename":   file.Filename,
		"expires_in": int64(previewLinkTTL.Seconds()),
	})
}

// handleUpdateFile renames or moves a file. PATCH /api/files/{id}
func (h *handlers) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.loadFileFor(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	var req updateFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if req.Filename == nil && req.Folder == nil {
		respondErr(w, r, badRequest("nothing to update"))
		return
	}

	if req.Filename != nil {
		name := strings.TrimSpace(*req.Filename)
		if err := depot.ValidateFilename(name); err != nil {
			respondErr(w, r, err)
			return
		}
		file.Filename = name
	}

	if req.Folder != nil {
		folder, err := depot.NormalizeFolder(*req.Folder)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		file.Folder = folder
	}

	file.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateFile(r.Context(), file); err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, "file updated", fileDTO(file))
}

// handleDeleteFile removes the share, the metadata row, then the object.
// DELETE /api/files/{id}
func (h *handlers) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	file, err := h.loadFileFor(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	if err := h.store.DeleteShareByFileID(ctx, file.ID); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.store.DeleteFile(ctx, file.ID); err != nil {
		respondErr(w, r, err)
		return
	}

	// Object removal is best-effort; the janitor sweeps anything missed
	delStart := time.Now()
	if err := h.blobs.Delete(ctx, file.ObjectKey); err != nil {
		h.metrics.Blob.RecordOperation("delete", 0, time.Since(delStart), err)
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", file.ObjectKey).Msg("failed to delete object, leaving it for gc")
	} else {
		h.metrics.Blob.RecordOperation("delete", 0, time.Since(delStart), nil)
	}

	claims, _ := claimsFrom(ctx)
	h.audit.Record(ctx, audit.Event{
		Action:     audit.ActionFileDelete,
		ActorID:    claims.UserID(),
		ActorEmail: claims.Email,
		ObjectID:   file.ID,
		Detail:     map[string]string{"filename": file.Filename, "ip": clientIP(r)},
	})

	respond(w, http.StatusOK, "file deleted", nil)
}

// handleFileStats summarizes the caller's storage. GET /api/files/stats
func (h *handlers) handleFileStats(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	stats, err := h.store.Stats(r.Context(), claims.UserID())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	user, err := h.store.GetUser(r.Context(), claims.UserID())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, "stats", map[string]any{
		"file_count":  stats.Count,
		"total_bytes": stats.TotalBytes,
		"quota_bytes": user.QuotaBytes,
	})
}

// handleListFolders returns the caller's distinct folder paths.
// GET /api/folders
func (h *handlers) handleListFolders(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	folders, err := h.store.ListFolders(r.Context(), claims.UserID())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, "folders", map[string]any{"folders": folders})
}

// loadFileFor fetches the file in the route and checks the caller may
// touch it. Files owned by someone else read as absent rather than
// forbidden, so ids cannot be probed.
func (h *handlers) loadFileFor(r *http.Request) (*depot.File, error) {
	claims, _ := claimsFrom(r.Context())

	file, err := h.store.GetFile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return nil, err
	}
	if file.OwnerID != claims.UserID() && !claims.Role.Admin() {
		return nil, notFound("file not found")
	}
	return file, nil
}

// ============================================================================
// Byte serving
// ============================================================================

var errUnsatisfiableRange = errors.New("requested range not satisfiable")

type byteRange struct {
	start, length int64
}

// parseRange interprets a single-range Range header against an object of
// the given size. A nil range means the whole object: absent headers,
// non-byte units, multi-range and malformed specs are all ignored rather
// than rejected, which RFC 9110 permits.
func parseRange(header string, size int64) (*byteRange, error) {
	if header == "" {
		return nil, nil
	}
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return nil, nil
	}

	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return nil, nil
	}

	if first == "" {
		// Suffix form: the last N bytes
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return nil, nil
		}
		if n == 0 || size == 0 {
			return nil, errUnsatisfiableRange
		}
		if n > size {
			n = size
		}
		return &byteRange{start: size - n, length: n}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return nil, nil
	}
	if start >= size {
		return nil, errUnsatisfiableRange
	}
	if last == "" {
		return &byteRange{start: start, length: size - start}, nil
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return nil, nil
	}
	if end >= size {
		end = size - 1
	}
	return &byteRange{start: start, length: end - start + 1}, nil
}

// streamFile writes the object's bytes as an attachment, honoring a
// single-range Range header. onStart, when set, runs once the blob is
// open and the response is committed, with the offset the body starts
// at. The response is fully written when streamFile returns.
func (h *handlers) streamFile(w http.ResponseWriter, r *http.Request, file *depot.File, onStart func(offset int64)) {
	ctx := r.Context()

	rng, err := parseRange(r.Header.Get("Range"), file.Size)
	if errors.Is(err, errUnsatisfiableRange) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", file.Size))
		writeJSON(w, http.StatusRequestedRangeNotSatisfiable, envelope{
			Code:    http.StatusRequestedRangeNotSatisfiable,
			Message: "requested range not satisfiable",
		})
		return
	}

	var (
		body   io.ReadCloser
		status = http.StatusOK
		offset int64
		length = file.Size
	)
	openStart := time.Now()
	if rng != nil {
		body, err = h.blobs.GetRange(ctx, file.ObjectKey, rng.start, rng.length)
		offset, length, status = rng.start, rng.length, http.StatusPartialContent
	} else {
		body, err = h.blobs.Get(ctx, file.ObjectKey)
	}
	if err != nil {
		h.metrics.Blob.RecordOperation("get", 0, time.Since(openStart), err)
		if depot.IsNotFound(err) {
			// Metadata row without its object: backend drift, not a
			// client error
			err = &depot.StoreError{Code: depot.ErrIOError, Message: "object missing from blob store", Key: file.ObjectKey}
		}
		respondErr(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.Header().Set("ETag", `"`+file.MD5+`"`)
	w.Header().Set("Content-Disposition", contentDisposition(file.Filename))
	if status == http.StatusPartialContent {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, file.Size))
	}
	w.WriteHeader(status)

	if onStart != nil {
		onStart(offset)
	}

	// The server-wide write deadline would cut a slow transfer short
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	n, err := io.Copy(w, body)
	h.metrics.Blob.RecordOperation("get", n, time.Since(openStart), err)
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Str("file_id", file.ID).Msg("download interrupted")
	}
}

// contentDisposition builds an RFC 6266 attachment header. Non-ASCII
// names get the RFC 5987 encoded form via mime.FormatMediaType.
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return `attachment; filename="download"`
}

// baseName strips any path the client sent along with the filename.
func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}

// sniffContentType detects the MIME type from the spooled content,
// preferring detection over the client-declared type unless detection
// is inconclusive.
func sniffContentType(spool *os.File, clientType string) string {
	detected := ""
	if _, err := spool.Seek(0, io.SeekStart); err == nil {
		if mtype, err := mimetype.DetectReader(spool); err == nil {
			detected = mtype.String()
		}
	}

	switch {
	case detected != "" && detected != "application/octet-stream":
		return detected
	case clientType != "":
		return clientType
	case detected != "":
		return detected
	default:
		return "application/octet-stream"
	}
}
