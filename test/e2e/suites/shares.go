package suites

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/filedepot/test/e2e/framework"
)

// TestShareOperations covers the share lifecycle end to end: publishing,
// anonymous checks and downloads, access codes, updates and revocation.
func TestShareOperations(t *testing.T, stores framework.StoreType) {
	server := framework.NewTestServer(t, framework.TestServerConfig{Stores: stores})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	client := framework.NewClient(t, server)
	email := framework.FormatEmail(fmt.Sprintf("shares-%s", stores))
	client.Register(email, "share-user", "correct horse battery")
	client.Login(email, "correct horse battery")

	content := []byte("shared file body")
	file := client.Upload("shared.txt", "", content)

	var publicShare framework.SharePayload

	t.Run("CreatePublicShare", func(t *testing.T) {
		status, share := client.CreateShare(map[string]any{
			"file_id":    file.ID,
			"share_type": "public",
		})
		if status != http.StatusCreated {
			t.Fatalf("Expected 201 for a fresh share, got %d", status)
		}
		if share.ShareUUID == "" {
			t.Fatal("Expected a share UUID")
		}
		if share.ShareURL == "" {
			t.Fatal("Expected a share URL")
		}
		if share.ExpiresAt == nil {
			t.Fatal("Expected a default expiry on the share")
		}
		publicShare = share
	})

	t.Run("AnonymousCheck", func(t *testing.T) {
		status, env := client.ShareCheck(publicShare.ShareUUID)
		if status != http.StatusOK {
			t.Fatalf("Expected 200 from check, got %d", status)
		}

		var check framework.ShareCheckPayload
		env.Decode(t, &check)
		if check.RequiresPassword {
			t.Fatal("Public share must not require a password")
		}
		if check.Filename != "shared.txt" {
			t.Fatalf("Expected filename shared.txt, got %q", check.Filename)
		}
		if check.Size != int64(len(content)) {
			t.Fatalf("Expected size %d, got %d", len(content), check.Size)
		}
	})

	t.Run("AnonymousDownload", func(t *testing.T) {
		resp := client.ShareDownload(publicShare.ShareUUID, "")
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200 from download, got %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("Failed to read download body: %v", err)
		}

		// A presigning backend answers with a link, the rest stream the
		// bytes inline.
		if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
			var env framework.Envelope
			if err := json.Unmarshal(body, &env); err != nil {
				t.Fatalf("Failed to decode download envelope: %v", err)
			}
			var link struct {
				URL string `json:"url"`
			}
			env.Decode(t, &link)
			if link.URL == "" {
				t.Fatal("Expected a presigned URL in the response")
			}
			return
		}

		if !bytes.Equal(body, content) {
			t.Fatalf("Downloaded content mismatch:\nExpected: %q\nGot: %q", content, body)
		}
	})

	t.Run("UpsertKeepsUUID", func(t *testing.T) {
		status, share := client.CreateShare(map[string]any{
			"file_id":    file.ID,
			"share_type": "public",
		})
		if status != http.StatusOK {
			t.Fatalf("Expected 200 when re-sharing a live file, got %d", status)
		}
		if share.ShareUUID != publicShare.ShareUUID {
			t.Fatalf("Re-share must keep the UUID: expected %s, got %s", publicShare.ShareUUID, share.ShareUUID)
		}
	})

	t.Run("ProtectWithCode", func(t *testing.T) {
		updated := client.UpdateShare(publicShare.ShareUUID, map[string]any{
			"share_type": "with_password",
			"code":       "4321",
		})
		if updated.Code != "4321" {
			t.Fatalf("Expected the code to echo back once, got %q", updated.Code)
		}

		status, env := client.ShareCheck(publicShare.ShareUUID)
		if status != http.StatusOK {
			t.Fatalf("Expected 200 from check, got %d", status)
		}
		var check framework.ShareCheckPayload
		env.Decode(t, &check)
		if !check.RequiresPassword {
			t.Fatal("Expected the share to require a password")
		}

		resp := client.ShareDownload(publicShare.ShareUUID, "")
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("Expected 401 without a code, got %d", resp.StatusCode)
		}

		resp = client.ShareDownload(publicShare.ShareUUID, "0000")
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("Expected 401 with a wrong code, got %d", resp.StatusCode)
		}

		resp = client.ShareDownload(publicShare.ShareUUID, "4321")
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected 200 with the right code, got %d", resp.StatusCode)
		}
	})

	t.Run("AccessCountGrows", func(t *testing.T) {
		shares := client.ListShares()
		if len(shares) != 1 {
			t.Fatalf("Expected 1 share, got %d", len(shares))
		}
		if shares[0].AccessCount == 0 {
			t.Fatal("Expected a non-zero access count after downloads")
		}
	})

	t.Run("PermanentShare", func(t *testing.T) {
		permanent := client.UpdateShare(publicShare.ShareUUID, map[string]any{
			"expire_days": 0,
		})
		if permanent.ExpiresAt != nil {
			t.Fatalf("Expected no expiry on a permanent share, got %v", permanent.ExpiresAt)
		}
	})

	t.Run("ExpiryWithinCap", func(t *testing.T) {
		updated := client.UpdateShare(publicShare.ShareUUID, map[string]any{
			"expire_days": 3,
		})
		if updated.ExpiresAt == nil {
			t.Fatal("Expected an expiry to be set")
		}
		until := time.Until(*updated.ExpiresAt)
		if until < 71*time.Hour || until > 73*time.Hour {
			t.Fatalf("Expected expiry about 72h out, got %v", until)
		}
	})

	t.Run("RevokeShare", func(t *testing.T) {
		client.DeleteShare(publicShare.ShareUUID)

		status, _ := client.ShareCheck(publicShare.ShareUUID)
		if status != http.StatusNotFound {
			t.Fatalf("Expected 404 after revocation, got %d", status)
		}

		if shares := client.ListShares(); len(shares) != 0 {
			t.Fatalf("Expected no shares after revocation, got %d", len(shares))
		}
	})

	t.Run("DeleteFileKillsShare", func(t *testing.T) {
		doc := client.Upload("doomed.txt", "", []byte("doomed"))
		_, share := client.CreateShare(map[string]any{
			"file_id":    doc.ID,
			"share_type": "public",
		})

		client.DeleteFile(doc.ID)

		status, _ := client.ShareCheck(share.ShareUUID)
		if status != http.StatusNotFound {
			t.Fatalf("Expected 404 after the file was deleted, got %d", status)
		}
	})
}
