package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/depot"
	"github.com/marmos91/filedepot/pkg/store"
)

// userPayload is the account shape serialized to clients. The password
// hash never leaves the store layer.
type userPayload struct {
	ID         string     `json:"id"`
	Email      string     `json:"email"`
	Username   string     `json:"username"`
	Role       depot.Role `json:"role"`
	QuotaBytes int64      `json:"quota_bytes"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func userDTO(u *depot.User) userPayload {
	return userPayload{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		Role:       u.Role,
		QuotaBytes: u.QuotaBytes,
		Active:     u.Active,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

type usagePayload struct {
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
}

type updateMeRequest struct {
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	OldPassword string  `json:"old_password"`
}

type updateUserRequest struct {
	Role       *string `json:"role"`
	QuotaBytes *int64  `json:"quota_bytes"`
	Active     *bool   `json:"active"`
}

// handleMe returns the caller's profile and storage usage.
// GET /api/users/me
func (h *handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	user, err := h.store.GetUser(r.Context(), claims.UserID())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	stats, err := h.store.Stats(r.Context(), user.ID)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, "profile", struct {
		userPayload
		Usage usagePayload `json:"usage"`
	}{
		userPayload: userDTO(user),
		Usage:       usagePayload{UsedBytes: stats.TotalBytes, QuotaBytes: user.QuotaBytes},
	})
}

// handleUpdateMe changes the caller's username or password.
// PATCH /api/users/me
//
// A password change requires the current password and revokes every
// refresh token the account holds.
func (h *handlers) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())

	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if req.Username == nil && req.Password == nil {
		respondErr(w, r, badRequest("nothing to update"))
		return
	}

	user, err := h.store.GetUser(r.Context(), claims.UserID())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	if req.Username != nil {
		if err := validateUsername(*req.Username); err != nil {
			respondErr(w, r, err)
			return
		}
		user.Username = *req.Username
	}

	passwordChanged := false
	if req.Password != nil {
		if !auth.VerifyPassword(user.PasswordHash, req.OldPassword) {
			respondErr(w, r, forbidden("old password is incorrect"))
			return
		}
		if err := auth.ValidatePassword(*req.Password); err != nil {
			respondErr(w, r, err)
			return
		}
		hash, err := auth.HashPasswordCost(*req.Password, h.cfg.BcryptCost)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		user.PasswordHash = hash
		passwordChanged = true
	}

	user.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		respondErr(w, r, err)
		return
	}

	if passwordChanged {
		if err := h.sessions.DeleteForUser(r.Context(), user.ID); err != nil {
			respondErr(w, r, err)
			return
		}
	}

	respond(w, http.StatusOK, "profile updated", userDTO(user))
}

// handleListUsers pages through all accounts. GET /api/users (admin)
func (h *handlers) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page := parsePage(r.URL.Query())

	users, total, err := h.store.ListUsers(r.Context(), page)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	payload := make([]userPayload, 0, len(users))
	for _, u := range users {
		payload = append(payload, userDTO(u))
	}

	respond(w, http.StatusOK, "users", map[string]any{
		"users":     payload,
		"total":     total,
		"page":      page.Number,
		"page_size": page.Size,
	})
}

// handleUpdateUser changes another account's role, quota, or active
// flag. PATCH /api/users/{id} (admin)
func (h *handlers) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	id := mux.Vars(r)["id"]

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if req.Role == nil && req.QuotaBytes == nil && req.Active == nil {
		respondErr(w, r, badRequest("nothing to update"))
		return
	}

	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	if req.Role != nil {
		role := depot.Role(*req.Role)
		if !role.Valid() {
			respondErr(w, r, badRequest("invalid role"))
			return
		}
		if user.ID == claims.UserID() && !role.Admin() {
			respondErr(w, r, forbidden("cannot demote your own account"))
			return
		}
		user.Role = role
	}

	if req.QuotaBytes != nil {
		if *req.QuotaBytes < 0 {
			respondErr(w, r, badRequest("quota_bytes must not be negative"))
			return
		}
		user.QuotaBytes = *req.QuotaBytes
	}

	deactivated := false
	if req.Active != nil {
		if user.ID == claims.UserID() && !*req.Active {
			respondErr(w, r, forbidden("cannot deactivate your own account"))
			return
		}
		deactivated = user.Active && !*req.Active
		user.Active = *req.Active
	}

	user.UpdatedAt = time.Now().UTC()
	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		respondErr(w, r, err)
		return
	}

	// A deactivated account must not keep refreshing tokens
	if deactivated {
		if err := h.sessions.DeleteForUser(r.Context(), user.ID); err != nil {
			respondErr(w, r, err)
			return
		}
	}

	respond(w, http.StatusOK, "user updated", userDTO(user))
}

// handleDeleteUser removes an account that owns no files.
// DELETE /api/users/{id} (admin)
func (h *handlers) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	id := mux.Vars(r)["id"]

	if id == claims.UserID() {
		respondErr(w, r, forbidden("cannot delete your own account"))
		return
	}

	if err := h.store.DeleteUser(r.Context(), id); err != nil {
		respondErr(w, r, err)
		return
	}

	if err := h.sessions.DeleteForUser(r.Context(), id); err != nil {
		respondErr(w, r, err)
		return
	}

	respond(w, http.StatusOK, "user deleted", nil)
}

// parsePage reads page/page_size query values, clamped to store bounds.
// Unparsable values fall back to the defaults.
func parsePage(q url.Values) store.Page {
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return store.Page{Number: page, Size: size}.Normalize()
}
