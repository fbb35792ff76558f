package suites

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/marmos91/filedepot/test/e2e/framework"
)

// TestEdgeCases exercises the rejection paths a well-behaved client
// never hits.
func TestEdgeCases(t *testing.T, stores framework.StoreType) {
	server := framework.NewTestServer(t, framework.TestServerConfig{
		Stores:         stores,
		MaxUploadBytes: 1024,
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	client := framework.NewClient(t, server)
	email := framework.FormatEmail(fmt.Sprintf("edge-%s", stores))
	client.Register(email, "edge-user", "correct horse battery")
	client.Login(email, "correct horse battery")

	t.Run("DuplicateEmail", func(t *testing.T) {
		status, env := client.Request(http.MethodPost, "/api/auth/register", map[string]string{
			"email":    strings.ToUpper(email), // same address, different case
			"username": "imposter",
			"password": "correct horse battery",
		})
		if status != http.StatusConflict {
			t.Fatalf("Expected 409 for a duplicate email, got %d (%s)", status, env.Message)
		}
	})

	t.Run("WrongPassword", func(t *testing.T) {
		status, _ := client.Request(http.MethodPost, "/api/auth/login", map[string]string{
			"email":    email,
			"password": "not the password",
		})
		if status != http.StatusUnauthorized {
			t.Fatalf("Expected 401 for a wrong password, got %d", status)
		}
	})

	t.Run("UnknownAccountLooksTheSame", func(t *testing.T) {
		status, env := client.Request(http.MethodPost, "/api/auth/login", map[string]string{
			"email":    "nobody@e2e.test",
			"password": "whatever password",
		})
		if status != http.StatusUnauthorized {
			t.Fatalf("Expected 401 for an unknown account, got %d", status)
		}
		if !strings.Contains(env.Message, "invalid email or password") {
			t.Fatalf("Unknown accounts must read like wrong passwords, got %q", env.Message)
		}
	})

	t.Run("OversizedUpload", func(t *testing.T) {
		status, env := client.TryUpload("big.bin", "", framework.RandomBytes(4096))
		if status != http.StatusRequestEntityTooLarge {
			t.Fatalf("Expected 413 for an oversized upload, got %d (%s)", status, env.Message)
		}
	})

	t.Run("UploadWithoutFile", func(t *testing.T) {
		status, env := client.Request(http.MethodPost, "/api/files", map[string]string{"folder": "/"})
		if status != http.StatusBadRequest {
			t.Fatalf("Expected 400 for a JSON body on the upload endpoint, got %d (%s)", status, env.Message)
		}
	})

	t.Run("BadFolderPath", func(t *testing.T) {
		status, env := client.TryUpload("escape.txt", `windows\style`, []byte("nope"))
		if status != http.StatusBadRequest {
			t.Fatalf("Expected 400 for a backslash folder, got %d (%s)", status, env.Message)
		}
	})

	t.Run("TraversalFolderStaysInsideRoot", func(t *testing.T) {
		file := client.Upload("rooted.txt", "../../etc", []byte("rooted"))
		if file.Folder != "/etc" {
			t.Fatalf("Expected dot segments to resolve inside the root, got %q", file.Folder)
		}
	})

	t.Run("ForeignFileReadsAsMissing", func(t *testing.T) {
		mine := client.Upload("private.txt", "", []byte("mine alone"))

		other := framework.NewClient(t, server)
		otherEmail := framework.FormatEmail(fmt.Sprintf("edge-other-%s", stores))
		other.Register(otherEmail, "edge-other", "correct horse battery")
		other.Login(otherEmail, "correct horse battery")

		status, _ := other.Request(http.MethodGet, "/api/files/"+mine.ID, nil)
		if status != http.StatusNotFound {
			t.Fatalf("Expected foreign files to read as 404, got %d", status)
		}

		status, _ = other.Request(http.MethodDelete, "/api/files/"+mine.ID, nil)
		if status != http.StatusNotFound {
			t.Fatalf("Expected foreign deletes to read as 404, got %d", status)
		}
	})

	t.Run("UnknownShare", func(t *testing.T) {
		status, _ := client.ShareCheck(uuid.NewString())
		if status != http.StatusNotFound {
			t.Fatalf("Expected 404 for an unknown share, got %d", status)
		}
	})

	t.Run("ShareExpiryOverCap", func(t *testing.T) {
		file := client.Upload("capped.txt", "", []byte("capped"))
		status, env := client.Request(http.MethodPost, "/api/shares", map[string]any{
			"file_id":     file.ID,
			"share_type":  "public",
			"expire_days": 100000,
		})
		if status != http.StatusBadRequest {
			t.Fatalf("Expected 400 for an expiry over the cap, got %d (%s)", status, env.Message)
		}
	})

	t.Run("MalformedShareCode", func(t *testing.T) {
		file := client.Upload("coded.txt", "", []byte("coded"))
		status, env := client.Request(http.MethodPost, "/api/shares", map[string]any{
			"file_id":    file.ID,
			"share_type": "with_password",
			"code":       "12345", // five digits
		})
		if status != http.StatusBadRequest {
			t.Fatalf("Expected 400 for a five-digit code, got %d (%s)", status, env.Message)
		}
	})

	t.Run("StaleRefreshToken", func(t *testing.T) {
		stale := client.RefreshToken
		client.Refresh()

		status, _ := client.Request(http.MethodPost, "/api/auth/refresh", map[string]string{
			"refresh_token": stale,
		})
		if status != http.StatusUnauthorized {
			t.Fatalf("Expected 401 for a rotated-out refresh token, got %d", status)
		}
	})

	t.Run("MissingToken", func(t *testing.T) {
		anon := framework.NewClient(t, server)
		status, _ := anon.Request(http.MethodGet, "/api/files", nil)
		if status != http.StatusUnauthorized {
			t.Fatalf("Expected 401 without a token, got %d", status)
		}
	})

	t.Run("UnknownRoute", func(t *testing.T) {
		status, env := client.Request(http.MethodGet, "/api/unknown", nil)
		if status != http.StatusNotFound {
			t.Fatalf("Expected 404 for an unknown route, got %d", status)
		}
		if env.Code != http.StatusNotFound {
			t.Fatalf("Expected the envelope to repeat the status, got %d", env.Code)
		}
	})
}
