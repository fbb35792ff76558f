// Package suites holds reusable end-to-end scenarios that run against
// every backend combination.
package suites

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/marmos91/filedepot/test/e2e/framework"
)

// TestBasicOperations walks the fundamental account and file lifecycle.
func TestBasicOperations(t *testing.T, stores framework.StoreType) {
	server := framework.NewTestServer(t, framework.TestServerConfig{Stores: stores})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	client := framework.NewClient(t, server)
	email := framework.FormatEmail(fmt.Sprintf("basic-%s", stores))

	t.Run("RegisterAndLogin", func(t *testing.T) {
		user := client.Register(email, "basic-user", "correct horse battery")
		if user.Email != email {
			t.Fatalf("Expected email %q, got %q", email, user.Email)
		}
		if user.Role != "user" {
			t.Fatalf("Expected role user, got %q", user.Role)
		}

		tokens := client.Login(email, "correct horse battery")
		if tokens.AccessToken == "" || tokens.RefreshToken == "" {
			t.Fatal("Expected both tokens to be issued")
		}
		if tokens.TokenType != "bearer" {
			t.Fatalf("Expected token type bearer, got %q", tokens.TokenType)
		}

		me := client.Me()
		if me.Email != email {
			t.Fatalf("Expected profile email %q, got %q", email, me.Email)
		}
	})

	var uploaded framework.FilePayload
	content := []byte("Hello, FileDepot!")

	t.Run("UploadAndDownload", func(t *testing.T) {
		uploaded = client.Upload("hello.txt", "", content)
		if uploaded.Filename != "hello.txt" {
			t.Fatalf("Expected filename hello.txt, got %q", uploaded.Filename)
		}
		if uploaded.Folder != "/" {
			t.Fatalf("Expected folder /, got %q", uploaded.Folder)
		}
		if uploaded.Size != int64(len(content)) {
			t.Fatalf("Expected size %d, got %d", len(content), uploaded.Size)
		}

		sum := md5.Sum(content)
		if uploaded.MD5 != hex.EncodeToString(sum[:]) {
			t.Fatalf("Expected MD5 %s, got %s", hex.EncodeToString(sum[:]), uploaded.MD5)
		}

		downloaded := client.Download(uploaded.ID)
		if !bytes.Equal(downloaded, content) {
			t.Fatalf("Downloaded content mismatch:\nExpected: %q\nGot: %q", content, downloaded)
		}
	})

	t.Run("ListAndStats", func(t *testing.T) {
		list := client.ListFiles("")
		if list.Total != 1 {
			t.Fatalf("Expected 1 file, got %d", list.Total)
		}
		if list.Files[0].ID != uploaded.ID {
			t.Fatalf("Expected file %s in listing, got %s", uploaded.ID, list.Files[0].ID)
		}

		stats := client.Stats()
		if stats.FileCount != 1 {
			t.Fatalf("Expected file count 1, got %d", stats.FileCount)
		}
		if stats.TotalBytes != int64(len(content)) {
			t.Fatalf("Expected total bytes %d, got %d", len(content), stats.TotalBytes)
		}
	})

	t.Run("DownloadCountsOnce", func(t *testing.T) {
		before := client.ListFiles("").Files[0].DownloadCount
		client.Download(uploaded.ID)
		after := client.ListFiles("").Files[0].DownloadCount
		if after != before+1 {
			t.Fatalf("Expected download count %d, got %d", before+1, after)
		}
	})

	t.Run("DeleteFile", func(t *testing.T) {
		client.DeleteFile(uploaded.ID)

		list := client.ListFiles("")
		if list.Total != 0 {
			t.Fatalf("Expected empty listing after delete, got %d files", list.Total)
		}

		stats := client.Stats()
		if stats.TotalBytes != 0 {
			t.Fatalf("Expected zero bytes after delete, got %d", stats.TotalBytes)
		}
	})

	t.Run("RefreshAndLogout", func(t *testing.T) {
		oldRefresh := client.RefreshToken
		client.Refresh()
		if client.RefreshToken == oldRefresh {
			t.Fatal("Expected refresh to rotate the refresh token")
		}

		client.Logout()

		status, _ := client.Request("GET", "/api/users/me", nil)
		if status != 401 {
			t.Fatalf("Expected 401 after logout, got %d", status)
		}
	})
}
