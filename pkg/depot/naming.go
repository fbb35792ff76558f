package depot

import (
	"crypto/md5"
	"encoding/hex"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxNameLen bounds filenames and folder segments, matching common
// filesystem limits.
const maxNameLen = 255

// ObjectKey builds the blob-store key for a new upload.
//
// Layout: YYYY/MM/DD/<md5(owner-email)[:8]>/<uuid><ext>. The date prefix
// keeps listings browsable by upload day, the email digest groups one
// owner's objects under a stable but non-identifying segment, and the
// UUID makes collisions impossible regardless of the display filename.
func ObjectKey(ownerEmail, filename string, now time.Time) string {
	sum := md5.Sum([]byte(strings.ToLower(ownerEmail)))
	owner := hex.EncodeToString(sum[:])[:8]

	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 16 {
		// Absurd extensions are dropped rather than propagated into keys
		ext = ""
	}

	return now.UTC().Format("2006/01/02") + "/" + owner + "/" + uuid.NewString() + ext
}

// NormalizeFolder validates and canonicalizes a logical folder path.
//
// The result is always absolute and clean ("/" for the root). Dot
// segments are resolved and cannot escape the root. Backslashes and
// control characters are rejected so keys stay portable.
func NormalizeFolder(p string) (string, error) {
	if p == "" {
		return "/", nil
	}
	if strings.ContainsRune(p, '\\') || hasControl(p) {
		return "", &StoreError{
			Code:    ErrInvalidArgument,
			Message: "folder contains invalid characters",
			Key:     p,
		}
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	clean := path.Clean(p)
	for _, seg := range strings.Split(strings.TrimPrefix(clean, "/"), "/") {
		if len(seg) > maxNameLen {
			return "", &StoreError{
				Code:    ErrInvalidArgument,
				Message: "folder segment too long",
				Key:     seg,
			}
		}
	}
	return clean, nil
}

// ValidateFilename checks a display filename for storage.
//
// Filenames are display-only (keys come from ObjectKey) so the rules are
// lenient: non-empty, no path separators, no control characters, at most
// 255 bytes.
func ValidateFilename(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return &StoreError{Code: ErrInvalidArgument, Message: "filename is empty or reserved", Key: name}
	case strings.ContainsAny(name, "/\\"):
		return &StoreError{Code: ErrInvalidArgument, Message: "filename contains path separators", Key: name}
	case hasControl(name):
		return &StoreError{Code: ErrInvalidArgument, Message: "filename contains control characters", Key: name}
	case len(name) > maxNameLen:
		return &StoreError{Code: ErrInvalidArgument, Message: "filename too long"}
	}
	return nil
}

// hasControl reports whether s contains C0 control characters or DEL.
func hasControl(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
