package suites

import (
	"fmt"
	"testing"

	"github.com/marmos91/filedepot/test/e2e/framework"
)

// TestFolderOperations covers folder placement, moves, renames and search.
func TestFolderOperations(t *testing.T, stores framework.StoreType) {
	server := framework.NewTestServer(t, framework.TestServerConfig{Stores: stores})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })

	client := framework.NewClient(t, server)
	email := framework.FormatEmail(fmt.Sprintf("folders-%s", stores))
	client.Register(email, "folder-user", "correct horse battery")
	client.Login(email, "correct horse battery")

	t.Run("UploadIntoNestedFolder", func(t *testing.T) {
		file := client.Upload("report.pdf", "/projects/alpha", []byte("%PDF-1.4 fake"))
		if file.Folder != "/projects/alpha" {
			t.Fatalf("Expected folder /projects/alpha, got %q", file.Folder)
		}
	})

	t.Run("FolderPathIsNormalized", func(t *testing.T) {
		file := client.Upload("notes.txt", "projects//beta/", []byte("beta notes"))
		if file.Folder != "/projects/beta" {
			t.Fatalf("Expected normalized folder /projects/beta, got %q", file.Folder)
		}
	})

	t.Run("ListFolders", func(t *testing.T) {
		client.Upload("root.txt", "", []byte("root file"))

		folders := client.ListFolders()
		want := map[string]bool{"/": false, "/projects/alpha": false, "/projects/beta": false}
		for _, f := range folders {
			if _, ok := want[f]; ok {
				want[f] = true
			}
		}
		for folder, seen := range want {
			if !seen {
				t.Fatalf("Expected folder %q in listing, got %v", folder, folders)
			}
		}
	})

	t.Run("FilterByFolder", func(t *testing.T) {
		list := client.ListFiles("folder=%2Fprojects%2Falpha")
		if list.Total != 1 {
			t.Fatalf("Expected 1 file in /projects/alpha, got %d", list.Total)
		}
		if list.Files[0].Filename != "report.pdf" {
			t.Fatalf("Expected report.pdf, got %q", list.Files[0].Filename)
		}
	})

	t.Run("MoveFile", func(t *testing.T) {
		list := client.ListFiles("search=report.pdf")
		if list.Total != 1 {
			t.Fatalf("Expected to find report.pdf, got %d results", list.Total)
		}

		moved := client.UpdateFile(list.Files[0].ID, map[string]any{"folder": "/archive"})
		if moved.Folder != "/archive" {
			t.Fatalf("Expected folder /archive after move, got %q", moved.Folder)
		}

		after := client.ListFiles("folder=%2Fprojects%2Falpha")
		if after.Total != 0 {
			t.Fatalf("Expected /projects/alpha to be empty after move, got %d files", after.Total)
		}
	})

	t.Run("RenameFile", func(t *testing.T) {
		list := client.ListFiles("search=notes.txt")
		if list.Total != 1 {
			t.Fatalf("Expected to find notes.txt, got %d results", list.Total)
		}

		renamed := client.UpdateFile(list.Files[0].ID, map[string]any{"filename": "notes-v2.txt"})
		if renamed.Filename != "notes-v2.txt" {
			t.Fatalf("Expected filename notes-v2.txt, got %q", renamed.Filename)
		}
		if renamed.Folder != "/projects/beta" {
			t.Fatalf("Rename must not move the file, folder became %q", renamed.Folder)
		}
	})

	t.Run("SearchByName", func(t *testing.T) {
		list := client.ListFiles("search=notes")
		if list.Total != 1 {
			t.Fatalf("Expected 1 match for notes, got %d", list.Total)
		}

		list = client.ListFiles("search=nomatch")
		if list.Total != 0 {
			t.Fatalf("Expected no matches, got %d", list.Total)
		}
	})

	t.Run("Pagination", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			client.Upload(fmt.Sprintf("page-%d.txt", i), "/paging", []byte{byte(i)})
		}

		first := client.ListFiles("folder=%2Fpaging&page=1&page_size=2")
		if first.Total != 5 {
			t.Fatalf("Expected total 5, got %d", first.Total)
		}
		if len(first.Files) != 2 {
			t.Fatalf("Expected 2 files on page 1, got %d", len(first.Files))
		}

		last := client.ListFiles("folder=%2Fpaging&page=3&page_size=2")
		if len(last.Files) != 1 {
			t.Fatalf("Expected 1 file on page 3, got %d", len(last.Files))
		}
	})
}
