package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/marmos91/filedepot/pkg/audit"
	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/depot"
)

type createShareRequest struct {
	FileID    string `json:"file_id"`
	ShareType string `json:"share_type"`
	Code      string `json:"code"`
	// ExpireDays: absent applies the configured default, zero makes the
	// share permanent
	ExpireDays *int `json:"expire_days"`
}

type updateShareRequest struct {
	ShareType *string `json:"share_type"`
	Code      *string `json:"code"`
	// ExpireDays: absent leaves the expiry unchanged, zero makes the
	// share permanent
	ExpireDays *int `json:"expire_days"`
}

// shareFilePayload is the shared file's summary attached to share
// listings.
type shareFilePayload struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// sharePayload is the share shape serialized to its owner. Code is set
// exactly once, in the response to the request that set it; only the
// hash is stored.
type sharePayload struct {
	ShareUUID   string            `json:"share_uuid"`
	ShareURL    string            `json:"share_url"`
	ShareType   depot.ShareType   `json:"share_type"`
	Code        string            `json:"code,omitempty"`
	FileID      string            `json:"file_id"`
	File        *shareFilePayload `json:"file,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at"`
	AccessCount int64             `json:"access_count"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (h *handlers) shareDTO(s *depot.Share, file *depot.File, plainCode string) sharePayload {
	p := sharePayload{
		ShareUUID:   s.ID,
		ShareURL:    h.shareURL(s.ID),
		ShareType:   s.Type,
		Code:        plainCode,
		FileID:      s.FileID,
		ExpiresAt:   s.ExpiresAt,
		AccessCount: s.AccessCount,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if file != nil {
		p.File = &shareFilePayload{
			Filename:    file.Filename,
			Size:        file.Size,
			ContentType: file.ContentType,
		}
	}
	return p
}

// shareURL builds the public link for a share.
func (h *handlers) shareURL(id string) string {
	return strings.TrimSuffix(h.cfg.BaseURL, "/") + "/share/" + id
}

// handleCreateShare publishes a file. POST /api/shares
//
// A file carries at most one share. Sharing an already-shared file
// updates the live share in place so the published URL keeps working;
// an expired share is replaced under a fresh UUID so dead links stay
// dead.
func (h *handlers) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := claimsFrom(ctx)

	var req createShareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if req.FileID == "" {
		respondErr(w, r, badRequest("file_id is required"))
		return
	}
	shareType := depot.ShareType(req.ShareType)
	if !shareType.Valid() {
		respondErr(w, r, badRequest("share_type must be public or with_password"))
		return
	}

	file, err := h.store.GetFile(ctx, req.FileID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if file.OwnerID != claims.UserID() && !claims.Role.Admin() {
		respondErr(w, r, notFound("file not found"))
		return
	}

	codeHash, plainCode, err := resolveShareCode(shareType, req.Code)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	now := time.Now().UTC()
	expiresAt, err := h.resolveExpiry(req.ExpireDays, now)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	existing, err := h.store.GetShareByFileID(ctx, file.ID)
	switch {
	case err == nil && !existing.Expired(now):
		// Live share: update in place, the published URL stays valid
		existing.Type = shareType
		existing.CodeHash = codeHash
		existing.ExpiresAt = expiresAt
		existing.UpdatedAt = now
		if err := h.store.UpdateShare(ctx, existing); err != nil {
			respondErr(w, r, err)
			return
		}
		h.recordShareEvent(r, audit.ActionShareUpdate, existing, file)
		respond(w, http.StatusOK, "share updated", h.shareDTO(existing, file, plainCode))
		return

	case err == nil:
		// Expired share: the old UUID must not come back to life
		if err := h.store.DeleteShare(ctx, existing.ID); err != nil {
			respondErr(w, r, err)
			return
		}

	case !depot.IsNotFound(err):
		respondErr(w, r, err)
		return
	}

	share := &depot.Share{
		ID:        uuid.NewString(),
		FileID:    file.ID,
		OwnerID:   file.OwnerID,
		Type:      shareType,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateShare(ctx, share); err != nil {
		respondErr(w, r, err)
		return
	}

	h.recordShareEvent(r, audit.ActionShareCreate, share, file)
	respond(w, http.StatusCreated, "share created", h.shareDTO(share, file, plainCode))
}

// handleListShares pages through the caller's shares. GET /api/shares
func (h *handlers) handleListShares(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := claimsFrom(ctx)

	page := parsePage(r.URL.Query())
	shares, total, err := h.store.ListSharesByOwner(ctx, claims.UserID(), page)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	payload := make([]sharePayload, 0, len(shares))
	for _, s := range shares {
		file, err := h.store.GetFile(ctx, s.FileID)
		if err != nil {
			// A share whose file is gone mid-listing still lists
			file = nil
		}
		payload = append(payload, h.shareDTO(s, file, ""))
	}

	respond(w, http.StatusOK, "shares", map[string]any{
		"shares":    payload,
		"total":     total,
		"page":      page.Number,
		"page_size": page.Size,
	})
}

// handleGetShare returns one share. GET /api/shares/{uuid}
func (h *handlers) handleGetShare(w http.ResponseWriter, r *http.Request) {
	share, err := h.loadShareFor(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	file, err := h.store.GetFile(r.Context(), share.FileID)
	if err != nil {
		file = nil
	}

	respond(w, http.StatusOK, "share", h.shareDTO(share, file, ""))
}

// handleUpdateShare changes a share's protection or expiry.
// PATCH /api/shares/{uuid}
func (h *handlers) handleUpdateShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	share, err := h.loadShareFor(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	var req updateShareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if req.ShareType == nil && req.Code == nil && req.ExpireDays == nil {
		respondErr(w, r, badRequest("nothing to update"))
		return
	}

	newType := share.Type
	if req.ShareType != nil {
		newType = depot.ShareType(*req.ShareType)
		if !newType.Valid() {
			respondErr(w, r, badRequest("share_type must be public or with_password"))
			return
		}
	}

	plainCode := ""
	switch {
	case newType == depot.SharePublic:
		share.CodeHash = ""

	case req.Code != nil && *req.Code != "":
		if err := auth.ValidateCode(*req.Code); err != nil {
			respondErr(w, r, err)
			return
		}
		hash, err := auth.HashCode(*req.Code)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		share.CodeHash, plainCode = hash, *req.Code

	case share.CodeHash == "":
		// Switching to password protection without supplying a code
		code, err := auth.GenerateCode()
		if err != nil {
			respondErr(w, r, err)
			return
		}
		hash, err := auth.HashCode(code)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		share.CodeHash, plainCode = hash, code
	}
	share.Type = newType

	now := time.Now().UTC()
	if req.ExpireDays != nil {
		expiresAt, err := h.resolveExpiry(req.ExpireDays, now)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		share.ExpiresAt = expiresAt
	}

	share.UpdatedAt = now
	if err := h.store.UpdateShare(ctx, share); err != nil {
		respondErr(w, r, err)
		return
	}

	file, err := h.store.GetFile(ctx, share.FileID)
	if err != nil {
		file = nil
	}

	h.recordShareEvent(r, audit.ActionShareUpdate, share, file)
	respond(w, http.StatusOK, "share updated", h.shareDTO(share, file, plainCode))
}

// handleDeleteShare cancels a share. DELETE /api/shares/{uuid}
func (h *handlers) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	share, err := h.loadShareFor(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	if err := h.store.DeleteShare(r.Context(), share.ID); err != nil {
		respondErr(w, r, err)
		return
	}

	h.recordShareEvent(r, audit.ActionShareCancel, share, nil)
	respond(w, http.StatusOK, "share cancelled", nil)
}

// loadShareFor fetches the share in the route and checks the caller may
// touch it. Shares owned by someone else read as absent rather than
// forbidden, so uuids cannot be probed.
func (h *handlers) loadShareFor(r *http.Request) (*depot.Share, error) {
	claims, _ := claimsFrom(r.Context())

	share, err := h.store.GetShare(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		return nil, err
	}
	if share.OwnerID != claims.UserID() && !claims.Role.Admin() {
		return nil, notFound("share not found")
	}
	return share, nil
}

// resolveShareCode validates or generates the access code for a
// password-protected share and returns its hash with the plaintext.
// Public shares carry no code; one supplied anyway is ignored, matching
// lenient clients that always send the field.
func resolveShareCode(shareType depot.ShareType, code string) (hash, plain string, err error) {
	if shareType != depot.ShareWithPassword {
		return "", "", nil
	}

	if code == "" {
		code, err = auth.GenerateCode()
		if err != nil {
			return "", "", err
		}
	} else if err := auth.ValidateCode(code); err != nil {
		return "", "", err
	}

	hash, err = auth.HashCode(code)
	if err != nil {
		return "", "", err
	}
	return hash, code, nil
}

// resolveExpiry turns the expire_days request field into an expiry
// instant. nil applies the configured default; zero means permanent;
// anything above the configured maximum is rejected.
func (h *handlers) resolveExpiry(expireDays *int, now time.Time) (*time.Time, error) {
	days := h.cfg.DefaultShareDays
	if expireDays != nil {
		days = *expireDays
	}

	switch {
	case days == 0:
		return nil, nil
	case days < 0:
		return nil, badRequest("expire_days must not be negative")
	case h.cfg.MaxShareDays > 0 && days > h.cfg.MaxShareDays:
		return nil, badRequest(fmt.Sprintf("expire_days exceeds the maximum of %d", h.cfg.MaxShareDays))
	}

	expiresAt := now.AddDate(0, 0, days)
	return &expiresAt, nil
}

func (h *handlers) recordShareEvent(r *http.Request, action audit.Action, share *depot.Share, file *depot.File) {
	claims, _ := claimsFrom(r.Context())
	detail := map[string]string{
		"share_type": string(share.Type),
		"ip":         clientIP(r),
	}
	if file != nil {
		detail["filename"] = file.Filename
	}
	h.audit.Record(r.Context(), audit.Event{
		Action:     action,
		ActorID:    claims.UserID(),
		ActorEmail: claims.Email,
		ObjectID:   share.ID,
		Detail:     detail,
	})
}
