package api

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/marmos91/filedepot/pkg/audit"
	"github.com/marmos91/filedepot/pkg/auth"
	"github.com/marmos91/filedepot/pkg/depot"
)

// maxUsernameLen bounds display names.
const maxUsernameLen = 64

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// tokenResponse is the payload of login and refresh.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// handleRegister creates a regular account. POST /api/auth/register
func (h *handlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if err := validateUsername(req.Username); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		respondErr(w, r, err)
		return
	}

	hash, err := auth.HashPasswordCost(req.Password, h.cfg.BcryptCost)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	now := time.Now().UTC()
	user := &depot.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         depot.RoleUser,
		QuotaBytes:   h.cfg.DefaultQuotaBytes,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.store.CreateUser(r.Context(), user); err != nil {
		respondErr(w, r, err)
		return
	}

	h.audit.Record(r.Context(), audit.Event{
		Action:     audit.ActionUserRegister,
		ActorID:    user.ID,
		ActorEmail: user.Email,
		ObjectID:   user.ID,
		Detail:     map[string]string{"ip": clientIP(r)},
	})

	respond(w, http.StatusCreated, "user registered", userDTO(user))
}

// handleLogin exchanges credentials for a token pair. POST /api/auth/login
//
// Unknown emails and wrong passwords produce the same 401 so the endpoint
// cannot be used to enumerate accounts.
func (h *handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondErr(w, r, badRequest("email and password are required"))
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.store.GetUserByEmail(r.Context(), email)
	if err != nil || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		if err != nil && !depot.IsNotFound(err) {
			respondErr(w, r, err)
			return
		}
		h.metrics.Auth.RecordLogin(false)
		h.audit.Record(r.Context(), audit.Event{
			Action: audit.ActionUserLoginFailed,
			Detail: map[string]string{"email": email, "ip": clientIP(r)},
		})
		respondErr(w, r, unauthorizedError("invalid email or password"))
		return
	}

	if !user.Active {
		h.metrics.Auth.RecordLogin(false)
		respondErr(w, r, forbidden("account is deactivated"))
		return
	}

	tokens, err := h.issueTokens(r, user)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	h.metrics.Auth.RecordLogin(true)
	h.audit.Record(r.Context(), audit.Event{
		Action:     audit.ActionUserLogin,
		ActorID:    user.ID,
		ActorEmail: user.Email,
		ObjectID:   user.ID,
		Detail:     map[string]string{"ip": clientIP(r)},
	})

	respond(w, http.StatusOK, "login successful", tokens)
}

// handleRefresh rotates a refresh token. POST /api/auth/refresh
func (h *handlers) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		respondErr(w, r, badRequest("refresh_token is required"))
		return
	}

	oldHash := auth.HashRefreshToken(req.RefreshToken)
	userID, err := h.sessions.Lookup(r.Context(), oldHash)
	if err != nil {
		if depot.IsNotFound(err) {
			respondErr(w, r, unauthorizedError("invalid refresh token"))
			return
		}
		respondErr(w, r, err)
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil || !user.Active {
		// The session outlived the account; drop it
		if delErr := h.sessions.Delete(r.Context(), oldHash); delErr != nil {
			zerolog.Ctx(r.Context()).Warn().Err(delErr).Msg("failed to drop stale session")
		}
		if err != nil && !depot.IsNotFound(err) {
			respondErr(w, r, err)
			return
		}
		if err == nil {
			respondErr(w, r, forbidden("account is deactivated"))
			return
		}
		respondErr(w, r, unauthorizedError("invalid refresh token"))
		return
	}

	if err := h.sessions.Delete(r.Context(), oldHash); err != nil {
		respondErr(w, r, err)
		return
	}

	tokens, err := h.issueTokens(r, user)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	h.metrics.Auth.RecordTokenRefresh()
	respond(w, http.StatusOK, "token refreshed", tokens)
}

// handleLogout revokes a refresh token. POST /api/auth/logout
//
// Idempotent: revoking an unknown or already-revoked token still
// succeeds, so clients can always clear their state.
func (h *handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondErr(w, r, err)
		return
	}

	if req.RefreshToken != "" {
		if err := h.sessions.Delete(r.Context(), auth.HashRefreshToken(req.RefreshToken)); err != nil {
			respondErr(w, r, err)
			return
		}
	}

	respond(w, http.StatusOK, "logged out", nil)
}

// issueTokens mints an access token and registers a fresh refresh token.
func (h *handlers) issueTokens(r *http.Request, user *depot.User) (*tokenResponse, error) {
	accessToken, _, err := h.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	refreshToken, refreshHash, err := auth.NewRefreshToken()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(h.cfg.RefreshTokenTTL)
	if err := h.sessions.Save(r.Context(), refreshHash, user.ID, expiresAt); err != nil {
		return nil, err
	}

	return &tokenResponse{
		AccessToken:  accessToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(h.tokens.TTL().Seconds()),
		RefreshToken: refreshToken,
	}, nil
}

// normalizeEmail validates and lowercases a registration email.
func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", badRequest("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", badRequest("invalid email address")
	}
	return strings.ToLower(email), nil
}

func validateUsername(username string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return badRequest("username is required")
	case len(username) > maxUsernameLen:
		return badRequest("username too long")
	}
	return nil
}
