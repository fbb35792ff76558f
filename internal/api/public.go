package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/marmos91/filedepot/pkg/audit"
	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/blob"
	"github.com/marmos91/filedepot/pkg/depot"
)

// Public presigned URLs stay valid at least publicLinkMin, so an
// authorized click always has time to complete, and at most
// publicLinkMax, which stays inside backend presign limits.
const (
	publicLinkMin = 10 * time.Minute
	publicLinkMax = 24 * time.Hour
)

type publicDownloadRequest struct {
	Code string `json:"code"`
}

// handleShareCheck describes a share before download so clients know
// whether to prompt for a code. GET /api/public/shares/{uuid}/check
//
// Missing and expired shares are indistinguishable 404s.
func (h *handlers) handleShareCheck(w http.ResponseWriter, r *http.Request) {
	share, file, err := h.resolvePublicShare(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, "share", map[string]any{
		"requires_password": share.RequiresCode(),
		"filename":          file.Filename,
		"size":              file.Size,
		"content_type":      file.ContentType,
		"expires_at":        share.ExpiresAt,
	})
}

// handleShareDownload authorizes a public download and hands out the
// bytes. POST /api/public/shares/{uuid}/download
//
// With a presigning backend the response carries a short-lived URL the
// client fetches directly; otherwise the file is streamed inline so
// filesystem-backed deployments still work.
func (h *handlers) handleShareDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	share, file, err := h.resolvePublicShare(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	var req publicDownloadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	if share.RequiresCode() {
		if req.Code == "" {
			respondErr(w, r, unauthorizedError("access code required"))
			return
		}
		if !auth.VerifyCode(share.CodeHash, req.Code) {
			respondErr(w, r, unauthorizedError("invalid access code"))
			return
		}
	}

	h.metrics.Auth.RecordShareAccess()

	// Counter bumps are advisory; an unreachable counter must not block
	// an authorized download
	if err := h.store.IncrementAccessCount(ctx, share.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("share_id", share.ID).Msg("failed to bump share access count")
	}
	if err := h.store.IncrementDownloadCount(ctx, file.ID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("file_id", file.ID).Msg("failed to bump download count")
	}

	h.audit.Record(ctx, audit.Event{
		Action:   audit.ActionShareAccess,
		ObjectID: file.ID,
		Detail: map[string]string{
			"share_id": share.ID,
			"filename": file.Filename,
			"ip":       clientIP(r),
		},
	})

	presigner, ok := h.blobs.(blob.Presigner)
	if !ok {
		h.streamFile(w, r, file, nil)
		return
	}

	expiry := publicLinkTTL(share, time.Now().UTC())
	presignStart := time.Now()
	url, err := presigner.PresignGet(ctx, file.ObjectKey, blob.PresignOptions{
		Expiry:   expiry,
		Filename: file.Filename,
	})
	h.metrics.Blob.RecordOperation("presign", 0, time.Since(presignStart), err)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, "download link issued", map[string]any{
		"url":        url,
		"filename":   file.Filename,
		"expires_in": int64(expiry.Seconds()),
	})
}

// resolvePublicShare loads a live share and its file. Unknown uuids,
// expired shares and shares whose file is gone all read the same.
func (h *handlers) resolvePublicShare(r *http.Request) (*depot.Share, *depot.File, error) {
	ctx := r.Context()

	share, err := h.store.GetShare(ctx, mux.Vars(r)["uuid"])
	if err != nil {
		if depot.IsNotFound(err) {
			return nil, nil, notFound("share not found or expired")
		}
		return nil, nil, err
	}
	if share.Expired(time.Now().UTC()) {
		return nil, nil, notFound("share not found or expired")
	}

	file, err := h.store.GetFile(ctx, share.FileID)
	if err != nil {
		if depot.IsNotFound(err) {
			return nil, nil, notFound("share not found or expired")
		}
		return nil, nil, err
	}
	return share, file, nil
}

// publicLinkTTL computes how long a public presigned URL stays valid:
// the share's remaining life clamped into [publicLinkMin, publicLinkMax].
// Permanent shares get the maximum.
func publicLinkTTL(share *depot.Share, now time.Time) time.Duration {
	if share.ExpiresAt == nil {
		return publicLinkMax
	}
	remaining := share.ExpiresAt.Sub(now)
	if remaining < publicLinkMin {
		return publicLinkMin
	}
	if remaining > publicLinkMax {
		return publicLinkMax
	}
	return remaining
}
