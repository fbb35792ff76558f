package framework

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
	"time"
)

// Envelope is the JSON wrapper every API response uses. Data stays raw
// so callers can decode it into whatever payload the endpoint returns.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Decode unmarshals the envelope's data into out.
func (e *Envelope) Decode(t testing.TB, out any) {
	t.Helper()
	if err := json.Unmarshal(e.Data, out); err != nil {
		t.Fatalf("Failed to decode envelope data: %v\ndata: %s", err, e.Data)
	}
}

// UserPayload mirrors the API's user representation.
type UserPayload struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	Role       string    `json:"role"`
	QuotaBytes int64     `json:"quota_bytes"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TokenPayload mirrors the login/refresh response.
type TokenPayload struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// FilePayload mirrors the API's file representation.
type FilePayload struct {
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

// FileListPayload mirrors the file listing response.
type FileListPayload struct {
	Files    []FilePayload `json:"files"`
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// StatsPayload mirrors the storage stats response.
type StatsPayload struct {
	FileCount  int64 `json:"file_count"`
	TotalBytes int64 `json:"total_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
}

// SharePayload mirrors the API's share representation.
type SharePayload struct {
	ShareUUID   string     `json:"share_uuid"`
	ShareURL    string     `json:"share_url"`
	ShareType   string     `json:"share_type"`
	Code        string     `json:"code,omitempty"`
	FileID      string     `json:"file_id"`
	ExpiresAt   *time.Time `json:"expires_at"`
	AccessCount int64      `json:"access_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ShareCheckPayload mirrors the public share check response.
type ShareCheckPayload struct {
	RequiresPassword bool       `json:"requires_password"`
	Filename         string     `json:"filename"`
	Size             int64      `json:"size"`
	ContentType      string     `json:"content_type"`
	ExpiresAt        *time.Time `json:"expires_at"`
}

// Client drives the API the way an external caller would: plain HTTP
// against the test server's port, bearer token in the header.
//
// Happy-path helpers fail the test on unexpected status codes; the
// Request method is the raw escape hatch for error-path assertions.
type Client struct {
	t       testing.TB
	baseURL string
	http    *http.Client

	// AccessToken and RefreshToken hold the current session credentials.
	// Login and Refresh update them in place.
	AccessToken  string
	RefreshToken string
}

// NewClient creates an API client for the given server.
func NewClient(t testing.TB, server *TestServer) *Client {
	t.Helper()
	return &Client{
		t:       t,
		baseURL: server.BaseURL(),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Request performs one API call and decodes the response envelope.
// Body may be nil for body-less requests.
func (c *Client) Request(method, path string, body any) (int, *Envelope) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		c.t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("Request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.t.Fatalf("Failed to decode response from %s %s: %v", method, path, err)
	}
	return resp.StatusCode, &env
}

// expect runs a request and fails the test unless it returns wantStatus.
func (c *Client) expect(wantStatus int, method, path string, body any) *Envelope {
	c.t.Helper()
	status, env := c.Request(method, path, body)
	if status != wantStatus {
		c.t.Fatalf("%s %s: expected status %d, got %d (%s)", method, path, wantStatus, status, env.Message)
	}
	return env
}

// Register creates an account and returns its payload.
func (c *Client) Register(email, username, password string) UserPayload {
	c.t.Helper()
	env := c.expect(http.StatusCreated, http.MethodPost, "/api/auth/register", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	})
	var user UserPayload
	env.Decode(c.t, &user)
	return user
}

// Login exchanges credentials for tokens and stores them on the client.
func (c *Client) Login(email, password string) TokenPayload {
	c.t.Helper()
	env := c.expect(http.StatusOK, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	var tokens TokenPayload
	env.Decode(c.t, &tokens)
	c.AccessToken = tokens.AccessToken
	c.RefreshToken = tokens.RefreshToken
	return tokens
}

// Refresh rotates the session tokens.
func (c *Client) Refresh() TokenPayload {
	c.t.Helper()
	env := c.expect(http.StatusOK, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": c.RefreshToken,
	})
	var tokens TokenPayload
	env.Decode(c.t, &tokens)
	c.AccessToken = tokens.AccessToken
	c.RefreshToken = tokens.RefreshToken
	return tokens
}

// Logout revokes the current refresh token.
func (c *Client) Logout() {
	c.t.Helper()
	c.expect(http.StatusOK, http.MethodPost, "/api/auth/logout", map[string]string{
		"refresh_token": c.RefreshToken,
	})
	c.AccessToken = ""
	c.RefreshToken = ""
}

// Me fetches the caller's profile.
func (c *Client) Me() UserPayload {
	c.t.Helper()
	env := c.expect(http.StatusOK, http.MethodGet, "/api/users/me", nil)
	var payload struct {
		UserPayload
		Usage struct {
			UsedBytes  int64 `json:"used_bytes"`
			QuotaBytes int64 `json:"quota_bytes"`
		} `json:"usage"`
	}
	env.Decode(c.t, &payload)
	return payload.UserPayload
}

// Upload stores a file through the multipart endpoint.
func (c *Client) Upload(filename, folder string, content []byte) FilePayload {
	c.t.Helper()
	status, env := c.TryUpload(filename, folder, content)
	if status != http.StatusCreated {
		c.t.Fatalf("Upload of %s: expected status 201, got %d (%s)", filename, status, env.Message)
	}
	var file FilePayload
	env.Decode(c.t, &file)
	return file
}

// TryUpload is Upload without the status assertion, for error paths.
func (c *Client) TryUpload(filename, folder string, content []byte) (int, *Envelope) {
	c.t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if folder != "" {
		if err := writer.WriteField("folder", folder); err != nil {
			c.t.Fatalf("Failed to write folder field: %v", err)
		}
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		c.t.Fatalf("Failed to create file part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		c.t.Fatalf("Failed to write file content: %v", err)
	}
	if err := writer.Close(); err != nil {
		c.t.Fatalf("Failed to finish multipart body: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/files", &buf)
	if err != nil {
		c.t.Fatalf("Failed to create upload request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("Upload request failed: %v", err)
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.t.Fatalf("Failed to decode upload response: %v", err)
	}
	return resp.StatusCode, &env
}

// ListFiles pages through the caller's files. The query string may carry
// search, folder, page and page_size parameters.
func (c *Client) ListFiles(query string) FileListPayload {
	c.t.Helper()
	path := "/api/files"
	if query != "" {
		path += "?" + query
	}
	env := c.expect(http.StatusOK, http.MethodGet, path, nil)
	var list FileListPayload
	env.Decode(c.t, &list)
	return list
}

// Download fetches a file's bytes through the authenticated endpoint.
func (c *Client) Download(fileID string) []byte {
	c.t.Helper()
	body, status, _ := c.DownloadRange(fileID, "")
	if status != http.StatusOK {
		c.t.Fatalf("Download of %s: expected status 200, got %d", fileID, status)
	}
	return body
}

// DownloadRange fetches file bytes with an optional Range header and
// returns the body, the status code and the Content-Range header.
func (c *Client) DownloadRange(fileID, rangeHeader string) ([]byte, int, string) {
	c.t.Helper()

	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/api/files/"+fileID+"/download", nil)
	if err != nil {
		c.t.Fatalf("Failed to create download request: %v", err)
	}
	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("Download request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("Failed to read download body: %v", err)
	}
	return body, resp.StatusCode, resp.Header.Get("Content-Range")
}

// UpdateFile renames or moves a file.
func (c *Client) UpdateFile(fileID string, patch map[string]any) FilePayload {
	c.t.Helper()
	env := c.expect(http.StatusOK, http.MethodPatch, "/api/files/"+fileID, patch)
	var file FilePayload
	env.Decode(c.t, &file)
	return file
}

// DeleteFile removes a file and its content.
func (c *Client) DeleteFile(fileID string) {
	c.t.Helper()
	c.expect(http.StatusOK, http.MethodDelete, "/api/files/"+fileID, nil)
}

// Stats summarizes the caller's storage usage.
func (c *Client) Stats() StatsPayload {
	c.t.Helper()
	env := c.expect(http.StatusOK, http.MethodGet, "/api/files/stats", nil)
	var stats StatsPayload
	env.Decode(c.t, &stats)
	return stats
}

// ListFolders returns the caller's distinct folders.
func (c *Client) ListFolders() []string {
	c.t.Helper()
	env := c.expect(http.StatusOK, http.MethodGet, "/api/folders", nil)
	var payload struct {
		Folders []string `json:"folders"`
	}
	env.Decode(c.t, &payload)
	return payload.Folders
}

// CreateShare publishes a file. Returns the status so callers can tell
// a fresh share (201) from an updated one (200).
func (c *Client) CreateShare(body map[string]any) (int, SharePayload) {
	c.t.Helper()
	status, env := c.Request(http.MethodPost, "/api/shares", body)
	if status != http.StatusCreated && status != http.StatusOK {
		c.t.Fatalf("CreateShare: expected status 200 or 201, got %d (%s)", status, env.Message)
	}
	var share SharePayload
	env.Decode(c.t, &share)
	return status, share
}

// ListShares returns the caller's shares.
func (c *Client) ListShares() []SharePayload {
	c.t.Helper()
	env := c.expect(http.StatusOK, http.MethodGet, "/api/shares", nil)
	var payload struct {
		Shares []SharePayload `json:"shares"`
		Total  int            `json:"total"`
	}
	env.Decode(c.t, &payload)
	return payload.Shares
}

// UpdateShare patches a share's type, code or expiry.
func (c *Client) UpdateShare(uuid string, patch map[string]any) SharePayload {
	c.t.Helper()
	env := c.expect(http.StatusOK, http.MethodPatch, "/api/shares/"+uuid, patch)
	var share SharePayload
	env.Decode(c.t, &share)
	return share
}

// DeleteShare revokes a share link.
func (c *Client) DeleteShare(uuid string) {
	c.t.Helper()
	c.expect(http.StatusOK, http.MethodDelete, "/api/shares/"+uuid, nil)
}

// ShareCheck probes a public share without credentials.
func (c *Client) ShareCheck(uuid string) (int, *Envelope) {
	c.t.Helper()
	return c.anonymousRequest(http.MethodGet, "/api/public/shares/"+uuid+"/check", nil)
}

// ShareDownload performs a public download. For non-presigning backends
// the bytes stream directly; the raw response is returned so tests can
// handle both shapes.
func (c *Client) ShareDownload(uuid, code string) *http.Response {
	c.t.Helper()

	body := map[string]string{}
	if code != "" {
		body["code"] = code
	}
	data, err := json.Marshal(body)
	if err != nil {
		c.t.Fatalf("Failed to marshal download request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/public/shares/"+uuid+"/download", bytes.NewReader(data))
	if err != nil {
		c.t.Fatalf("Failed to create download request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("Public download request failed: %v", err)
	}
	return resp
}

// anonymousRequest is Request without the Authorization header.
func (c *Client) anonymousRequest(method, path string, body any) (int, *Envelope) {
	c.t.Helper()
	token := c.AccessToken
	c.AccessToken = ""
	defer func() { c.AccessToken = token }()
	return c.Request(method, path, body)
}

// RandomBytes produces deterministic pseudo-random content for uploads.
func RandomBytes(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 13)
	}
	return data
}

// FormatEmail builds a unique email for the given test name.
func FormatEmail(name string) string {
	return fmt.Sprintf("%s@e2e.test", name)
}
